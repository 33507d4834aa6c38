// Package types contains outward result shapes shared across the application.
package types

// Entry represents a merit leaderboard row.
type Entry struct {
	Rank            int     `json:"rank"`
	MemberID        string  `json:"member_id"`
	CumulativeScore float64 `json:"cumulative_score"`
	VotingWeight    float64 `json:"voting_weight"`
	Percentile      float64 `json:"percentile"`
}

// PresentationScoreResult is the published outcome of score aggregation.
// A zero score with zero confidence means insufficient evaluators, which is
// distinct from a genuine low score.
type PresentationScoreResult struct {
	PresentationID          string  `json:"presentation_id"`
	Score                   float64 `json:"score"`
	Confidence              float64 `json:"confidence"`
	QualityMultiplier       float64 `json:"quality_multiplier"`
	ParticipationMultiplier float64 `json:"participation_multiplier"`
	EvaluatorsUsed          int     `json:"evaluators_used"`
	EvaluatorsRemoved       int     `json:"evaluators_removed"`
	Insufficient            bool    `json:"insufficient"`
}

// VotingWeightUpdate is published after a member's merit recomputation.
type VotingWeightUpdate struct {
	MemberID        string  `json:"member_id"`
	CumulativeScore float64 `json:"cumulative_score"`
	VotingWeight    float64 `json:"voting_weight"`
	Rank            int     `json:"rank"`
	Percentile      float64 `json:"percentile"`
}

// FailureReason explains a non-passing voting result.
type FailureReason string

const (
	FailureNone          FailureReason = ""
	FailureQuorum        FailureReason = "quorum_not_met"
	FailureNoMajority    FailureReason = "no_majority"
	FailureUnderMajority FailureReason = "majority_not_reached"
)

// VotingResult is the deterministic outcome of tallying one session.
type VotingResult struct {
	SessionID     string             `json:"session_id"`
	Passed        bool               `json:"passed"`
	WinningOption string             `json:"winning_option,omitempty"`
	QuorumMet     bool               `json:"quorum_met"`
	FailureReason FailureReason      `json:"failure_reason,omitempty"`
	Tallies       map[string]float64 `json:"tallies"`
	TotalCast     float64            `json:"total_cast"`
	TotalEligible float64            `json:"total_eligible"`
}

// RuleModificationResult is published after one cycle's rule evolution.
type RuleModificationResult struct {
	RuleID   string  `json:"rule_id"`
	OldValue float64 `json:"old_value"`
	NewValue float64 `json:"new_value"`
	Removed  bool    `json:"removed"`
	Modified bool    `json:"modified"`
}

// DetectionRecordView is the moderation-facing projection of a detection
// record.
type DetectionRecordView struct {
	ID             string   `json:"id"`
	PresentationID string   `json:"presentation_id"`
	Suspicion      float64  `json:"suspicion"`
	Issues         []string `json:"issues"`
	RequiresReview bool     `json:"requires_review"`
	Severity       string   `json:"severity,omitempty"`
}
