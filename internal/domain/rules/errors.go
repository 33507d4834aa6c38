package rules

import "errors"

var (
	// ErrRuleNotActive indicates an evolution attempt on a rule that is
	// pending, removed, or rejected.
	ErrRuleNotActive = errors.New("rule is not active")
	// ErrValueOutOfBounds indicates a stored rule value outside [0,100],
	// which signals a caller defect rather than a votable condition.
	ErrValueOutOfBounds = errors.New("rule value out of bounds")
	// ErrVoteTargetMismatch indicates a ballot cast for a different rule.
	ErrVoteTargetMismatch = errors.New("vote targets a different rule")
	// ErrUnknownVoteOption indicates a ballot option outside
	// strengthen/weaken/remove.
	ErrUnknownVoteOption = errors.New("unknown rule vote option")
	// ErrInsufficientCredit indicates a director has spent all proposal
	// credits for the cycle.
	ErrInsufficientCredit = errors.New("insufficient director credit")
	// ErrNotPending indicates a lifecycle operation on a rule that is not
	// awaiting approval.
	ErrNotPending = errors.New("rule is not pending approval")
	// ErrMissingDependency indicates a proposal depending on a rule that is
	// not active.
	ErrMissingDependency = errors.New("proposal depends on an inactive rule")
	// ErrConflictingRule indicates a proposal conflicting with an active
	// rule.
	ErrConflictingRule = errors.New("proposal conflicts with an active rule")
)
