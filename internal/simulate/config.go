package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Members      int           // Number of presenting members to simulate
	Evaluators   int           // Evaluators per presentation
	TopN         int           // Number of leaderboard entries to fetch
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	OutputFile   string        // Output file for generated evaluations
	LogFile      string        // Log file for simulation output
	Verbose      bool          // Enable verbose logging
	Cycle        int           // Evaluation cycle stamped on submissions
	ColluderRing int           // Size of the colluding evaluator ring (0 disables)
}

// Evaluation is the wire form of a peer evaluation submission.
type Evaluation struct {
	EventID          string  `json:"event_id"`
	PresentationID   string  `json:"presentation_id"`
	PresenterID      string  `json:"presenter_id,omitempty"`
	EvaluatorID      string  `json:"evaluator_id"`
	CategoryScores   []int   `json:"category_scores"`
	OverallScore     int     `json:"overall_score"`
	TimeSpentMinutes float64 `json:"time_spent_minutes"`
	SubmittedAt      string  `json:"submitted_at"`
	WeightSnapshot   float64 `json:"weight_snapshot"`
	Cycle            int     `json:"cycle"`
}

// ScoreResult is the wire form of a presentation score.
type ScoreResult struct {
	PresentationID string  `json:"presentation_id"`
	Score          float64 `json:"score"`
	Confidence     float64 `json:"confidence"`
	EvaluatorsUsed int     `json:"evaluators_used"`
	Insufficient   bool    `json:"insufficient"`
}

// Entry is a merit leaderboard entry.
type Entry struct {
	Rank            int     `json:"rank"`
	MemberID        string  `json:"member_id"`
	CumulativeScore float64 `json:"cumulative_score"`
	VotingWeight    float64 `json:"voting_weight"`
}

// AckResponse is the response to an evaluation submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// SessionResult is the wire form of a decided voting session.
type SessionResult struct {
	SessionID     string             `json:"session_id"`
	Passed        bool               `json:"passed"`
	WinningOption string             `json:"winning_option,omitempty"`
	QuorumMet     bool               `json:"quorum_met"`
	Tallies       map[string]float64 `json:"tallies"`
	TotalCast     float64            `json:"total_cast"`
}

// Stats holds simulation statistics.
type Stats struct {
	EvaluationsGenerated int
	EvaluationsSubmitted int
	EvaluationsAccepted  int
	EvaluationsDuplicate int
	EvaluationsFailed    int
	ScoresRetrieved      int
	ScoresInsufficient   int
	LeaderboardEntries   int
	BallotsCast          int
	BallotsRejected      int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
