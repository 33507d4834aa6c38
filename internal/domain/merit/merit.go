// Package merit maintains each member's cumulative merit score and derived
// voting weight.
//
// The tracker is the single authoritative writer of voting weight; callers
// read the weight from its output and must never set it directly. Updates
// for one member must be serialized by the caller; updates for different
// members are independent.
package merit

import (
	"context"
	"math"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/pkg/metrics"
)

// Default tracker parameters.
const (
	defaultDecayRate         = 0.05
	defaultSubjectMultiplier = 1.0
	defaultMaxWeightRatio    = 10.0
	minVotingWeight          = 1.0
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithDecayRate sets the per-cycle decay rate applied to prior scores.
func WithDecayRate(rate float64) Option {
	return func(t *Tracker) {
		if rate >= 0 && rate < 1 {
			t.decayRate = rate
		}
	}
}

// WithSubjectMultiplier sets the per-subject voting weight multiplier.
func WithSubjectMultiplier(m float64) Option {
	return func(t *Tracker) {
		if m > 0 {
			t.subjectMultiplier = m
		}
	}
}

// WithMaxWeightRatio sets the upper bound on voting weight.
func WithMaxWeightRatio(r float64) Option {
	return func(t *Tracker) {
		if r >= minVotingWeight {
			t.maxWeightRatio = r
		}
	}
}

// Update is the outcome of folding one new presentation score into a
// member's history.
type Update struct {
	MemberID        string
	CumulativeScore float64
	VotingWeight    float64
	History         []model.HistoryEntry
}

// Tracker computes cumulative merit and voting weight from score history.
type Tracker struct {
	decayRate         float64
	subjectMultiplier float64
	maxWeightRatio    float64
}

// New creates a Tracker with configuration options.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		decayRate:         defaultDecayRate,
		subjectMultiplier: defaultSubjectMultiplier,
		maxWeightRatio:    defaultMaxWeightRatio,
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Apply folds a newly computed presentation score into the member's prior
// history (ordered oldest first) and returns the updated cumulative score
// and voting weight. The input history is not mutated.
func (t *Tracker) Apply(_ context.Context, memberID string, history []model.HistoryEntry, score float64, cycle model.Cycle) (Update, error) {
	if score < 0 || score > float64(model.MaxScore) {
		return Update{}, ErrScoreOutOfRange
	}
	if len(history) > 0 && cycle < history[len(history)-1].Cycle {
		return Update{}, ErrStaleCycle
	}

	updated := make([]model.HistoryEntry, 0, len(history)+1)
	updated = append(updated, history...)
	updated = append(updated, model.HistoryEntry{Cycle: cycle, Score: score})

	cumulative := t.cumulativeScore(updated, cycle)
	weight := t.votingWeight(cumulative)

	metrics.RecordMeritUpdate()

	return Update{
		MemberID:        memberID,
		CumulativeScore: cumulative,
		VotingWeight:    weight,
		History:         updated,
	}, nil
}

// Recompute derives the cumulative score and voting weight from an existing
// history without appending, for idempotent replay after a restart.
func (t *Tracker) Recompute(_ context.Context, memberID string, history []model.HistoryEntry, asOf model.Cycle) Update {
	cumulative := t.cumulativeScore(history, asOf)
	return Update{
		MemberID:        memberID,
		CumulativeScore: cumulative,
		VotingWeight:    t.votingWeight(cumulative),
		History:         history,
	}
}

// cumulativeScore is the weighted mean over all entries with exponential
// decay by cycle age: weight(age) = (1 - decayRate)^age.
func (t *Tracker) cumulativeScore(history []model.HistoryEntry, asOf model.Cycle) float64 {
	if len(history) == 0 {
		return 0
	}

	var weightedSum, weightSum float64
	for _, entry := range history {
		age := float64(asOf - entry.Cycle)
		if age < 0 {
			age = 0
		}
		w := math.Pow(1-t.decayRate, age)
		weightedSum += entry.Score * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}

	return weightedSum / weightSum
}

// votingWeight maps cumulative score to voting weight on a logarithmic
// curve, clamped to [1, maxWeightRatio] so every member retains at least
// one vote and no member dominates past the configured ratio.
func (t *Tracker) votingWeight(cumulative float64) float64 {
	w := math.Log(cumulative+1) * t.subjectMultiplier
	if w < minVotingWeight {
		return minVotingWeight
	}
	if w > t.maxWeightRatio {
		return t.maxWeightRatio
	}

	return w
}
