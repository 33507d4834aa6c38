// Package aggregate turns one presentation's evaluation set into a single
// published score.
//
// Aggregation is a pure function over validated input: identical evaluation
// sets always produce identical results, so recomputation is idempotent and
// auditable. Persistence of the result is the caller's responsibility.
package aggregate

import (
	"context"
	"fmt"
	"math"

	"github.com/meritum/agora/internal/domain/model"
)

// Default aggregation constants.
const (
	defaultMinEvaluators   = 3
	defaultOutlierSigma    = 2.0
	defaultOutlierMinCount = 5
	defaultQualityGain     = 0.2
	defaultParticipation   = 0.3
	maxFinalScore          = 10.0
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithMinEvaluators sets the floor below which aggregation returns a
// zero-confidence result.
func WithMinEvaluators(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.minEvaluators = n
		}
	}
}

// WithOutlierSigma sets the removal threshold in standard deviations.
func WithOutlierSigma(sigma float64) Option {
	return func(a *Aggregator) {
		if sigma > 0 {
			a.outlierSigma = sigma
		}
	}
}

// WithOutlierMinCount disables outlier removal below this sample size.
func WithOutlierMinCount(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.outlierMinCount = n
		}
	}
}

// WithQualityGain sets the quality multiplier bonus scale.
func WithQualityGain(gain float64) Option {
	return func(a *Aggregator) {
		if gain >= 0 {
			a.qualityGain = gain
		}
	}
}

// WithParticipationGain sets the participation multiplier bonus scale.
func WithParticipationGain(gain float64) Option {
	return func(a *Aggregator) {
		if gain >= 0 {
			a.participationGain = gain
		}
	}
}

// WithParticipationCountsRemoved keeps outlier-removed evaluations in the
// participation numerator.
func WithParticipationCountsRemoved(counts bool) Option {
	return func(a *Aggregator) {
		a.participationCountsRemoved = counts
	}
}

// Input carries one presentation's evaluation set plus the roster context
// needed for the participation multiplier.
type Input struct {
	PresentationID string
	Evaluations    []model.Evaluation
	// ActiveMembers is the number of active subject members including the
	// presenter; the presenter is excluded from the denominator.
	ActiveMembers int
}

// Result is the aggregation outcome with a full multiplier breakdown for
// auditability. Insufficient marks the zero/zero case distinctly from a
// genuine low score.
type Result struct {
	PresentationID          string
	Score                   float64
	Confidence              float64
	WeightedAverage         float64
	QualityMultiplier       float64
	ParticipationMultiplier float64
	EvaluatorsUsed          int
	EvaluatorsRemoved       int
	Insufficient            bool
}

// Aggregator computes presentation scores from evaluation sets.
type Aggregator struct {
	minEvaluators              int
	outlierSigma               float64
	outlierMinCount            int
	qualityGain                float64
	participationGain          float64
	participationCountsRemoved bool
}

// New creates an Aggregator with configuration options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		minEvaluators:              defaultMinEvaluators,
		outlierSigma:               defaultOutlierSigma,
		outlierMinCount:            defaultOutlierMinCount,
		qualityGain:                defaultQualityGain,
		participationGain:          defaultParticipation,
		participationCountsRemoved: true,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Aggregate computes the presentation score. It never mutates state; the
// only error conditions are malformed evaluations, rejected before any
// computation.
func (a *Aggregator) Aggregate(_ context.Context, in Input) (Result, error) {
	seen := make(map[string]struct{}, len(in.Evaluations))
	for _, e := range in.Evaluations {
		if err := e.Validate(); err != nil {
			return Result{}, fmt.Errorf("evaluation %s: %w", e.EventID, err)
		}
		if e.PresentationID != in.PresentationID {
			return Result{}, fmt.Errorf("evaluation %s: %w", e.EventID, model.ErrMissingIdentity)
		}
		if _, dup := seen[e.EvaluatorID]; dup {
			return Result{}, fmt.Errorf("evaluator %s: %w", e.EvaluatorID, ErrDuplicateEvaluator)
		}
		seen[e.EvaluatorID] = struct{}{}
	}

	received := len(in.Evaluations)
	if received < a.minEvaluators {
		return Result{
			PresentationID: in.PresentationID,
			Insufficient:   true,
		}, nil
	}

	// Outlier removal is skipped below the minimum sample size; with fewer
	// samples the population deviation is statistically meaningless.
	retained := in.Evaluations
	removed := 0
	if received >= a.outlierMinCount {
		mean, sigma := overallMeanStddev(in.Evaluations)
		if sigma > 0 {
			kept := make([]model.Evaluation, 0, received)
			for _, e := range in.Evaluations {
				if math.Abs(float64(e.OverallScore)-mean) > a.outlierSigma*sigma {
					removed++
					continue
				}
				kept = append(kept, e)
			}
			retained = kept
		}
	}

	weightedAvg := weightedOverallAverage(retained)
	quality := a.qualityMultiplier(retained)
	participation := a.participationMultiplier(received, removed, in.ActiveMembers)

	score := weightedAvg * quality * participation
	score = math.Max(0, math.Min(maxFinalScore, score))

	return Result{
		PresentationID:          in.PresentationID,
		Score:                   score,
		Confidence:              confidence(received, in.ActiveMembers),
		WeightedAverage:         weightedAvg,
		QualityMultiplier:       quality,
		ParticipationMultiplier: participation,
		EvaluatorsUsed:          len(retained),
		EvaluatorsRemoved:       removed,
	}, nil
}

// overallMeanStddev returns the mean and population standard deviation of
// the overall scores.
func overallMeanStddev(evals []model.Evaluation) (float64, float64) {
	n := float64(len(evals))
	var sum float64
	for _, e := range evals {
		sum += float64(e.OverallScore)
	}
	mean := sum / n

	var sq float64
	for _, e := range evals {
		d := float64(e.OverallScore) - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}

// weightedOverallAverage averages overall scores using each evaluation's
// snapshotted voting weight.
func weightedOverallAverage(evals []model.Evaluation) float64 {
	var weighted, weights float64
	for _, e := range evals {
		weighted += float64(e.OverallScore) * e.WeightSnapshot
		weights += e.WeightSnapshot
	}
	if weights == 0 {
		return 0
	}
	return weighted / weights
}

// qualityMultiplier rewards consistency across the five category averages:
// variance 0 yields the full bonus, variance at or above 5 yields none.
func (a *Aggregator) qualityMultiplier(evals []model.Evaluation) float64 {
	if len(evals) == 0 {
		return 1
	}

	var averages [model.CategoryCount]float64
	var weights float64
	for _, e := range evals {
		weights += e.WeightSnapshot
		for i, s := range e.CategoryScores {
			averages[i] += float64(s) * e.WeightSnapshot
		}
	}
	if weights == 0 {
		return 1
	}

	var mean float64
	for i := range averages {
		averages[i] /= weights
		mean += averages[i]
	}
	mean /= model.CategoryCount

	var variance float64
	for _, avg := range averages {
		d := avg - mean
		variance += d * d
	}
	variance /= model.CategoryCount

	return 1 + math.Max(0, 1-variance/5)*a.qualityGain
}

// participationMultiplier rewards broad evaluation coverage of the subject.
func (a *Aggregator) participationMultiplier(received, removed, activeMembers int) float64 {
	counted := received
	if !a.participationCountsRemoved {
		counted = received - removed
	}
	denom := math.Max(float64(activeMembers-1), 1)
	return 1 + math.Min(1, float64(counted)/denom)*a.participationGain
}

// confidence grows with evaluator coverage and saturates at full coverage.
func confidence(received, activeMembers int) float64 {
	denom := math.Max(float64(activeMembers-1), 1)
	return math.Min(1, float64(received)/denom)
}
