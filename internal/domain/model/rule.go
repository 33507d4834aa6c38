package model

// Rule value bounds.
const (
	RuleValueMin = 0
	RuleValueMax = 100
)

// RuleStatus is the lifecycle state of a rule. Removed and Rejected are
// terminal for a rule identifier; re-creation requires a new rule.
type RuleStatus string

const (
	RuleStatusPendingApproval RuleStatus = "pending_approval"
	RuleStatusActive          RuleStatus = "active"
	RuleStatusRemoved         RuleStatus = "removed"
	RuleStatusRejected        RuleStatus = "rejected"
)

// Rule is one evolving governance rule. Value is always clamped to
// [RuleValueMin, RuleValueMax]; VotingThreshold is the majority fraction a
// modification session must reach.
type Rule struct {
	ID              string
	Title           string
	Value           float64
	VotingThreshold float64 // 0.5-0.95
	DependsOn       []string
	ConflictsWith   []string
	Status          RuleStatus
	ProposedBy      string // director id for pending proposals
}

// Active reports whether the rule participates in voting and evolution.
func (r Rule) Active() bool {
	return r.Status == RuleStatusActive
}
