package repository

import (
	"context"
	"sync"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/pkg/metrics"
)

// voteKey identifies one rule vote slot: unique per (target, voter, cycle).
type voteKey struct {
	RuleID  string
	VoterID string
	Cycle   model.Cycle
}

// RuleStore holds the rule set and accumulates rule votes per cycle.
// A cycle must be sealed before its votes feed the evolution engine, and a
// sealed cycle accepts no further votes.
type RuleStore struct {
	mu     sync.RWMutex
	rules  map[string]model.Rule
	votes  map[voteKey]model.Ballot
	sealed map[model.Cycle]bool
}

// NewRuleStore creates an empty rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{
		rules:  make(map[string]model.Rule),
		votes:  make(map[voteKey]model.Ballot),
		sealed: make(map[model.Cycle]bool),
	}
}

// Put inserts a new rule. Rule identifiers are never reused; a removed
// rule's ID stays taken.
func (s *RuleStore) Put(_ context.Context, rule model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; ok {
		return ErrRuleExists
	}
	s.rules[rule.ID] = rule
	return nil
}

// Get returns the rule by ID.
func (s *RuleStore) Get(_ context.Context, ruleID string) (model.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[ruleID]
	if !ok {
		return model.Rule{}, ErrRuleNotFound
	}
	return rule, nil
}

// Update replaces a stored rule after evolution or a lifecycle decision.
func (s *RuleStore) Update(_ context.Context, rule model.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[rule.ID]; !ok {
		return ErrRuleNotFound
	}
	s.rules[rule.ID] = rule
	return nil
}

// Active returns the active rules keyed by ID.
func (s *RuleStore) Active(_ context.Context) map[string]model.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.Rule)
	for id, rule := range s.rules {
		if rule.Active() {
			out[id] = rule
		}
	}
	return out
}

// CastVote records one rule vote. A second vote from the same voter for
// the same rule and cycle is rejected, never overwritten, and votes for a
// sealed cycle are refused.
func (s *RuleStore) CastVote(_ context.Context, ballot model.Ballot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed[ballot.Cycle] {
		metrics.RecordBallotRejected("cycle_closed")
		return ErrCycleClosed
	}

	rule, ok := s.rules[ballot.TargetID]
	if !ok {
		metrics.RecordBallotRejected("rule_not_found")
		return ErrRuleNotFound
	}
	if !rule.Active() {
		metrics.RecordBallotRejected("rule_not_active")
		return ErrRuleNotFound
	}

	key := voteKey{RuleID: ballot.TargetID, VoterID: ballot.VoterID, Cycle: ballot.Cycle}
	if _, ok := s.votes[key]; ok {
		metrics.RecordBallotRejected("duplicate")
		return ErrDuplicateBallot
	}

	s.votes[key] = ballot
	metrics.RecordBallotAccepted()
	return nil
}

// SealCycle closes voting for the cycle and returns the accumulated votes
// grouped by rule, ready for the evolution engine. Sealing twice returns
// the same grouping.
func (s *RuleStore) SealCycle(_ context.Context, cycle model.Cycle) map[string][]model.Ballot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sealed[cycle] = true

	grouped := make(map[string][]model.Ballot)
	for key, ballot := range s.votes {
		if key.Cycle == cycle {
			grouped[key.RuleID] = append(grouped[key.RuleID], ballot)
		}
	}
	return grouped
}
