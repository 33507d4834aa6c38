// Package gaming inspects evaluation sets for collusion, bias, and
// manipulation signatures.
//
// Four detectors run independently; the overall suspicion is the maximum of
// the per-detector scores, not the sum, so one mild anomaly per category
// cannot stack past the review threshold. Within a single detector,
// corroborating signatures compound (1 minus the product of 1 minus each
// sub-score), so identical vectors plus clustered timing read as stronger
// collusion evidence than either alone. A failing detector contributes zero
// suspicion and logs the failure: detection degrades gracefully instead of
// blocking scoring.
package gaming

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/pkg/logger"
	"github.com/meritum/agora/pkg/metrics"
)

// Suspicion levels assigned per signature.
const (
	suspicionIdenticalVectors = 0.6
	suspicionTimingCluster    = 0.5
	suspicionReciprocal       = 0.7
	suspicionExtremeScores    = 0.4
	suspicionDemographicSkew  = 0.6
	suspicionRushedBatch      = 0.5
	suspicionSharedOrigin     = 0.8
)

// Default detection thresholds.
const (
	defaultCollusionWindow = 2 * time.Minute
	defaultFastMinutes     = 5.0
	defaultReviewThreshold = 0.7
	extremeLow             = 2
	extremeHigh            = 9
	extremeShareLimit      = 0.5
	rushedShareLimit       = 0.3
	timingPairLimit        = 2
)

// Penalty severity bands, applied only after manual confirmation.
const (
	severeBand   = 0.9
	moderateBand = 0.7
	minorBand    = 0.5
)

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithCollusionWindow sets the submission window treated as suspiciously close.
func WithCollusionWindow(window time.Duration) Option {
	return func(d *Detector) {
		if window > 0 {
			d.collusionWindow = window
		}
	}
}

// WithFastEvaluationMinutes sets the rushed-evaluation threshold.
func WithFastEvaluationMinutes(minutes float64) Option {
	return func(d *Detector) {
		if minutes > 0 {
			d.fastMinutes = minutes
		}
	}
}

// WithReviewThreshold sets the suspicion level that triggers manual review.
func WithReviewThreshold(threshold float64) Option {
	return func(d *Detector) {
		if threshold > 0 && threshold <= 1 {
			d.reviewThreshold = threshold
		}
	}
}

// WithLogger sets a custom logger for the detector.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// Finding is one detector's verdict.
type Finding struct {
	Kind      model.DetectorKind
	Suspicion float64
	Issues    []string
}

// addSignature records one fired signature and compounds it into the
// detector suspicion.
func (f *Finding) addSignature(score float64, issue string) {
	f.Issues = append(f.Issues, issue)
	f.Suspicion = 1 - (1-f.Suspicion)*(1-score)
}

// Report is the combined detection outcome for one evaluation set.
type Report struct {
	PresentationID string
	Suspicion      float64
	Issues         []string
	RequiresReview bool
	Findings       []Finding
}

// Detector runs the four gaming detectors over one evaluation set.
type Detector struct {
	collusionWindow time.Duration
	fastMinutes     float64
	reviewThreshold float64
	logger          logger.Logger
}

// New creates a Detector with configuration options.
func New(opts ...Option) *Detector {
	d := &Detector{
		collusionWindow: defaultCollusionWindow,
		fastMinutes:     defaultFastMinutes,
		reviewThreshold: defaultReviewThreshold,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

type detectorFunc struct {
	kind model.DetectorKind
	run  func(evals []model.Evaluation, signals model.DetectionSignals) (Finding, error)
}

// Analyze runs all detectors and combines their findings. The overall
// suspicion is the maximum sub-score across detectors.
func (d *Detector) Analyze(ctx context.Context, job model.DetectionJob) Report {
	report := Report{PresentationID: job.PresentationID}

	detectors := []detectorFunc{
		{model.DetectorCollusion, d.detectCollusion},
		{model.DetectorBias, d.detectBias},
		{model.DetectorManipulation, d.detectManipulation},
		{model.DetectorSybil, d.detectSybil},
	}

	for _, det := range detectors {
		finding, err := det.run(job.Evaluations, job.Signals)
		if err != nil {
			// A broken detector must not block scoring; it contributes
			// zero suspicion.
			metrics.RecordDetectionFailure()
			if d.logger != nil {
				d.logger.Warn(ctx, "detector failed; contributing zero suspicion",
					logger.String("detector", string(det.kind)),
					logger.String("presentationID", job.PresentationID),
					logger.Error(err),
				)
			}
			finding = Finding{Kind: det.kind}
		}
		report.Findings = append(report.Findings, finding)
		report.Issues = append(report.Issues, finding.Issues...)
		report.Suspicion = math.Max(report.Suspicion, finding.Suspicion)
	}

	report.RequiresReview = report.Suspicion > d.reviewThreshold
	return report
}

// SeverityFor bands a confirmed suspicion level into a penalty severity.
// Penalties are only applied after manual confirmation, never on raw
// detection output.
func SeverityFor(suspicion float64) model.PenaltySeverity {
	switch {
	case suspicion >= severeBand:
		return model.PenaltySevere
	case suspicion >= moderateBand:
		return model.PenaltyModerate
	case suspicion >= minorBand:
		return model.PenaltyMinor
	default:
		return model.PenaltyWarning
	}
}

// detectCollusion looks for coordinated scoring: identical score vectors,
// tight submission timing, and reciprocal high-scoring.
func (d *Detector) detectCollusion(evals []model.Evaluation, signals model.DetectionSignals) (Finding, error) {
	finding := Finding{Kind: model.DetectorCollusion}
	if len(evals) < 2 {
		return finding, nil
	}

	// Identical or near-identical full score vectors from two or more
	// evaluators.
	vectors := make(map[[model.CategoryCount + 1]int][]string)
	for _, e := range evals {
		var key [model.CategoryCount + 1]int
		copy(key[:], e.CategoryScores[:])
		key[model.CategoryCount] = e.OverallScore
		vectors[key] = append(vectors[key], e.EvaluatorID)
	}
	for _, evaluators := range vectors {
		if len(evaluators) >= 2 {
			finding.addSignature(suspicionIdenticalVectors,
				fmt.Sprintf("identical score vectors from %d evaluators", len(evaluators)))
			break
		}
	}

	// Submissions clustered within the collusion window for more than two
	// pairs.
	times := make([]time.Time, len(evals))
	for i, e := range evals {
		times[i] = e.SubmittedAt
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	closePairs := 0
	for i := 1; i < len(times); i++ {
		if times[i].Sub(times[i-1]) < d.collusionWindow {
			closePairs++
		}
	}
	if closePairs > timingPairLimit {
		finding.addSignature(suspicionTimingCluster,
			fmt.Sprintf("%d evaluation pairs submitted within %s of each other", closePairs, d.collusionWindow))
	}

	// Reciprocal scoring pattern supplied by the cross-presentation signal.
	if len(signals.ReciprocalPairs) > 0 {
		evaluators := make(map[string]struct{}, len(evals))
		for _, e := range evals {
			evaluators[e.EvaluatorID] = struct{}{}
		}
		for _, pair := range signals.ReciprocalPairs {
			_, aHere := evaluators[pair.EvaluatorA]
			_, bHere := evaluators[pair.EvaluatorB]
			if aHere || bHere {
				finding.addSignature(suspicionReciprocal,
					fmt.Sprintf("reciprocal high-scoring between %s and %s", pair.EvaluatorA, pair.EvaluatorB))
				break
			}
		}
	}

	return finding, nil
}

// detectBias looks for extreme-score loading and externally supplied
// demographic skew signals.
func (d *Detector) detectBias(evals []model.Evaluation, signals model.DetectionSignals) (Finding, error) {
	finding := Finding{Kind: model.DetectorBias}
	if len(evals) == 0 {
		return finding, nil
	}

	extremes := 0
	for _, e := range evals {
		if e.OverallScore <= extremeLow || e.OverallScore >= extremeHigh {
			extremes++
		}
	}
	if share := float64(extremes) / float64(len(evals)); share > extremeShareLimit {
		finding.addSignature(suspicionExtremeScores,
			fmt.Sprintf("%.0f%% of scores at the extremes", share*100))
	}

	if signals.DemographicSkew {
		finding.addSignature(suspicionDemographicSkew, "demographic skew signal reported")
	}

	return finding, nil
}

// detectManipulation looks for rushed evaluation batches and shared
// network/device origins.
func (d *Detector) detectManipulation(evals []model.Evaluation, signals model.DetectionSignals) (Finding, error) {
	finding := Finding{Kind: model.DetectorManipulation}
	if len(evals) == 0 {
		return finding, nil
	}

	rushed := 0
	for _, e := range evals {
		if e.TimeSpentMinutes < d.fastMinutes {
			rushed++
		}
	}
	if share := float64(rushed) / float64(len(evals)); share > rushedShareLimit {
		finding.addSignature(suspicionRushedBatch,
			fmt.Sprintf("%.0f%% of evaluations completed in under %.0f minutes", share*100, d.fastMinutes))
	}

	origins := make(map[string]int)
	for _, e := range evals {
		if origin, ok := signals.Origins[e.EvaluatorID]; ok && origin != "" {
			origins[origin]++
		}
	}
	for origin, count := range origins {
		if count > 1 {
			finding.addSignature(suspicionSharedOrigin,
				fmt.Sprintf("%d evaluations traced to origin %s", count, origin))
			break
		}
	}

	return finding, nil
}

// detectSybil is a reserved extension point: it only reports when an
// identity-linkage signal is supplied externally.
func (d *Detector) detectSybil(evals []model.Evaluation, signals model.DetectionSignals) (Finding, error) {
	finding := Finding{Kind: model.DetectorSybil}
	if len(signals.IdentityLinks) == 0 {
		return finding, nil
	}

	evaluators := make(map[string]struct{}, len(evals))
	for _, e := range evals {
		evaluators[e.EvaluatorID] = struct{}{}
	}
	for _, link := range signals.IdentityLinks {
		linked := 0
		for _, id := range link.EvaluatorIDs {
			if _, ok := evaluators[id]; ok {
				linked++
			}
		}
		if linked >= 2 {
			finding.addSignature(suspicionSharedOrigin,
				fmt.Sprintf("%d evaluators share identity linkage (%s)", linked, link.Basis))
			break
		}
	}

	return finding, nil
}
