// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"time"
)

// CategoryCount is the fixed number of category scores per evaluation.
const CategoryCount = 5

// Score bounds for category and overall scores.
const (
	MinScore = 1
	MaxScore = 10
)

// Cycle identifies one recurring evaluation/governance period (nominally weekly).
type Cycle int

// Evaluation represents one peer evaluation of a presentation. The voting
// weight is snapshotted at cast time and never updated afterwards.
type Evaluation struct {
	EventID          string // unique id for idempotency
	PresentationID   string
	PresenterID      string // member whose merit the presentation score feeds
	EvaluatorID      string
	CategoryScores   [CategoryCount]int
	OverallScore     int
	TimeSpentMinutes float64
	SubmittedAt      time.Time
	WeightSnapshot   float64
	Cycle            Cycle
	OriginKey        string // network/device origin of the submission, when known
}

// Validation errors for evaluations.
var (
	ErrScoreOutOfRange = errors.New("score out of range")
	ErrMissingIdentity = errors.New("missing presentation or evaluator id")
	ErrBadWeight       = errors.New("weight snapshot must be at least 1")
	ErrSelfEvaluation  = errors.New("presenter cannot evaluate own presentation")
)

// Validate rejects malformed evaluations before any state mutation.
func (e Evaluation) Validate() error {
	if e.PresentationID == "" || e.EvaluatorID == "" {
		return ErrMissingIdentity
	}
	if e.PresenterID != "" && e.PresenterID == e.EvaluatorID {
		return ErrSelfEvaluation
	}
	if e.OverallScore < MinScore || e.OverallScore > MaxScore {
		return ErrScoreOutOfRange
	}
	for _, s := range e.CategoryScores {
		if s < MinScore || s > MaxScore {
			return ErrScoreOutOfRange
		}
	}
	if e.WeightSnapshot < 1 {
		return ErrBadWeight
	}
	return nil
}
