package model

// HistoryEntry is one cycle's presentation score for a member. Entries are
// immutable once decayed into the cumulative score.
type HistoryEntry struct {
	Cycle Cycle
	Score float64
}

// Member carries a member's decayed merit state plus the roster attributes
// supplied by the membership collaborator. Voting weight is a deterministic
// function of cumulative score and is only ever written by the merit tracker.
type Member struct {
	ID              string
	SubjectID       string
	CumulativeScore float64
	VotingWeight    float64
	History         []HistoryEntry // ordered, oldest first

	// Roster attributes (externally supplied, read-only here).
	JoinedCycle        Cycle
	ParticipationRate  float64 // fraction of cycles with a submitted evaluation
	ParticipationScore float64 // 0-10, from the membership roster
	LeadershipScore    float64 // 0-10, from the membership roster
	Sanctioned         bool
	Presenter          bool // presenters are excluded from the active denominator
}
