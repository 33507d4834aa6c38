package rules

import (
	"sync"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// DefaultDirectorCredits is the number of rule proposals a director may
// submit per cycle. A credit is spent at submission and is not refunded
// when the proposal is later rejected.
const DefaultDirectorCredits = 3

// ledgerKey scopes credits to one director in one cycle.
type ledgerKey struct {
	DirectorID string
	Cycle      model.Cycle
}

// CreditLedger tracks director proposal credits per cycle. Safe for
// concurrent use.
type CreditLedger struct {
	mu       sync.Mutex
	spent    map[ledgerKey]int
	perCycle int
}

// NewCreditLedger creates a ledger granting perCycle credits per director
// per cycle.
func NewCreditLedger(perCycle int) *CreditLedger {
	if perCycle <= 0 {
		perCycle = DefaultDirectorCredits
	}
	return &CreditLedger{
		spent:    make(map[ledgerKey]int),
		perCycle: perCycle,
	}
}

// Spend consumes one credit for the director in the given cycle.
func (l *CreditLedger) Spend(directorID string, cycle model.Cycle) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{DirectorID: directorID, Cycle: cycle}
	if l.spent[key] >= l.perCycle {
		return ErrInsufficientCredit
	}
	l.spent[key]++
	return nil
}

// Refund returns one credit to the director for the cycle. Used when a
// spent proposal never makes it into the rule store; a rejected proposal
// keeps its credit spent.
func (l *CreditLedger) Refund(directorID string, cycle model.Cycle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{DirectorID: directorID, Cycle: cycle}
	if l.spent[key] > 0 {
		l.spent[key]--
	}
}

// Remaining reports the director's unspent credits for the cycle.
func (l *CreditLedger) Remaining(directorID string, cycle model.Cycle) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.perCycle - l.spent[ledgerKey{DirectorID: directorID, Cycle: cycle}]
}

// ValidateProposal checks a pending rule against the active rule set:
// proposals conflicting with an active rule, or depending on a rule that is
// not active, are rejected before any voting session opens.
func ValidateProposal(rule model.Rule, active map[string]model.Rule) error {
	if rule.Status != model.RuleStatusPendingApproval {
		return ErrNotPending
	}
	if rule.Value < model.RuleValueMin || rule.Value > model.RuleValueMax {
		return ErrValueOutOfBounds
	}
	for _, dep := range rule.DependsOn {
		if r, ok := active[dep]; !ok || !r.Active() {
			return ErrMissingDependency
		}
	}
	for _, conflict := range rule.ConflictsWith {
		if r, ok := active[conflict]; ok && r.Active() {
			return ErrConflictingRule
		}
	}
	return nil
}

// Decide applies an approval vote outcome to a pending proposal. A passed
// vote activates the rule; anything else makes it terminally rejected. The
// director's credit stays spent either way.
func Decide(rule model.Rule, result types.VotingResult) (model.Rule, error) {
	if rule.Status != model.RuleStatusPendingApproval {
		return rule, ErrNotPending
	}

	if result.Passed {
		rule.Status = model.RuleStatusActive
	} else {
		rule.Status = model.RuleStatusRejected
	}
	return rule, nil
}
