package gaming

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/meritum/agora/internal/domain/model"
)

func makeEval(evaluator string, overall int, categories [model.CategoryCount]int, at time.Time, minutes float64) model.Evaluation {
	return model.Evaluation{
		EventID:          "evt-" + evaluator,
		PresentationID:   "pres-1",
		EvaluatorID:      evaluator,
		CategoryScores:   categories,
		OverallScore:     overall,
		TimeSpentMinutes: minutes,
		SubmittedAt:      at,
		WeightSnapshot:   1.0,
	}
}

func TestDetectorCollusion(t *testing.T) {
	Convey("Given a gaming detector", t, func() {
		d := New()
		ctx := context.Background()
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

		Convey("When four identical full-score vectors arrive within 90 seconds", func() {
			full := [model.CategoryCount]int{10, 10, 10, 10, 10}
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 10, full, base, 12),
					makeEval("bob", 10, full, base.Add(30*time.Second), 11),
					makeEval("carol", 10, full, base.Add(60*time.Second), 13),
					makeEval("dave", 10, full, base.Add(90*time.Second), 12),
				},
			}

			report := d.Analyze(ctx, job)

			Convey("Then collusion suspicion is at least 0.6 and review is required", func() {
				So(report.Suspicion, ShouldBeGreaterThanOrEqualTo, 0.6)
				So(report.RequiresReview, ShouldBeTrue)
				So(len(report.Issues), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When submissions are spread out with distinct vectors", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 7, [model.CategoryCount]int{7, 8, 6, 7, 7}, base, 15),
					makeEval("bob", 8, [model.CategoryCount]int{8, 8, 9, 7, 8}, base.Add(40*time.Minute), 18),
					makeEval("carol", 6, [model.CategoryCount]int{6, 5, 7, 6, 6}, base.Add(90*time.Minute), 12),
				},
			}

			report := d.Analyze(ctx, job)

			Convey("Then no collusion is reported", func() {
				So(report.Suspicion, ShouldEqual, 0)
				So(report.RequiresReview, ShouldBeFalse)
			})
		})

		Convey("When a reciprocal scoring signal names a present evaluator", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 9, [model.CategoryCount]int{9, 9, 8, 9, 9}, base, 15),
					makeEval("bob", 7, [model.CategoryCount]int{7, 7, 8, 6, 7}, base.Add(30*time.Minute), 18),
				},
				Signals: model.DetectionSignals{
					ReciprocalPairs: []model.ReciprocalPair{{EvaluatorA: "alice", EvaluatorB: "eve"}},
				},
			}

			report := d.Analyze(ctx, job)

			Convey("Then the reciprocal sub-score applies", func() {
				So(report.Suspicion, ShouldAlmostEqual, 0.7, 1e-9)
			})
		})
	})
}

func TestDetectorBias(t *testing.T) {
	Convey("Given a gaming detector", t, func() {
		d := New()
		ctx := context.Background()
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

		Convey("When most scores sit at the extremes", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 10, [model.CategoryCount]int{10, 9, 10, 10, 10}, base, 15),
					makeEval("bob", 1, [model.CategoryCount]int{1, 2, 1, 1, 2}, base.Add(30*time.Minute), 18),
					makeEval("carol", 9, [model.CategoryCount]int{9, 9, 8, 9, 10}, base.Add(60*time.Minute), 12),
					makeEval("dave", 6, [model.CategoryCount]int{6, 6, 7, 5, 6}, base.Add(90*time.Minute), 14),
				},
			}

			report := d.Analyze(ctx, job)

			Convey("Then the extreme-score sub-score applies", func() {
				So(report.Suspicion, ShouldAlmostEqual, 0.4, 1e-9)
				So(report.RequiresReview, ShouldBeFalse)
			})
		})

		Convey("When a demographic skew signal is supplied", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 6, [model.CategoryCount]int{6, 6, 7, 5, 6}, base, 15),
					makeEval("bob", 7, [model.CategoryCount]int{7, 7, 6, 8, 7}, base.Add(30*time.Minute), 18),
				},
				Signals: model.DetectionSignals{DemographicSkew: true},
			}

			report := d.Analyze(ctx, job)

			So(report.Suspicion, ShouldAlmostEqual, 0.6, 1e-9)
		})
	})
}

func TestDetectorManipulation(t *testing.T) {
	Convey("Given a gaming detector", t, func() {
		d := New()
		ctx := context.Background()
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

		Convey("When more than 30% of evaluations are rushed", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 7, [model.CategoryCount]int{7, 8, 6, 7, 7}, base, 2),
					makeEval("bob", 8, [model.CategoryCount]int{8, 8, 9, 7, 8}, base.Add(30*time.Minute), 3),
					makeEval("carol", 6, [model.CategoryCount]int{6, 5, 7, 6, 6}, base.Add(60*time.Minute), 20),
				},
			}

			report := d.Analyze(ctx, job)

			So(report.Suspicion, ShouldAlmostEqual, 0.5, 1e-9)
		})

		Convey("When two evaluations share a network origin", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 7, [model.CategoryCount]int{7, 8, 6, 7, 7}, base, 15),
					makeEval("bob", 8, [model.CategoryCount]int{8, 8, 9, 7, 8}, base.Add(30*time.Minute), 18),
				},
				Signals: model.DetectionSignals{
					Origins: map[string]string{"alice": "10.0.0.9", "bob": "10.0.0.9"},
				},
			}

			report := d.Analyze(ctx, job)

			Convey("Then the shared-origin sub-score applies and review triggers", func() {
				So(report.Suspicion, ShouldAlmostEqual, 0.8, 1e-9)
				So(report.RequiresReview, ShouldBeTrue)
			})
		})
	})
}

func TestDetectorSybil(t *testing.T) {
	Convey("Given a gaming detector", t, func() {
		d := New()
		ctx := context.Background()
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

		Convey("Without identity signals the sybil detector stays silent", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 7, [model.CategoryCount]int{7, 8, 6, 7, 7}, base, 15),
				},
			}

			report := d.Analyze(ctx, job)
			So(report.Suspicion, ShouldEqual, 0)
		})

		Convey("With a linkage covering two present evaluators it reports", func() {
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 7, [model.CategoryCount]int{7, 8, 6, 7, 7}, base, 15),
					makeEval("bob", 8, [model.CategoryCount]int{8, 8, 9, 7, 8}, base.Add(30*time.Minute), 18),
				},
				Signals: model.DetectionSignals{
					IdentityLinks: []model.IdentityLink{{
						EvaluatorIDs: []string{"alice", "bob"},
						Basis:        "shared_payment_account",
					}},
				},
			}

			report := d.Analyze(ctx, job)
			So(report.Suspicion, ShouldAlmostEqual, 0.8, 1e-9)
			So(report.RequiresReview, ShouldBeTrue)
		})
	})
}

func TestSeverityFor(t *testing.T) {
	Convey("Severity banding follows suspicion level", t, func() {
		So(SeverityFor(0.95), ShouldEqual, model.PenaltySevere)
		So(SeverityFor(0.9), ShouldEqual, model.PenaltySevere)
		So(SeverityFor(0.75), ShouldEqual, model.PenaltyModerate)
		So(SeverityFor(0.6), ShouldEqual, model.PenaltyMinor)
		So(SeverityFor(0.3), ShouldEqual, model.PenaltyWarning)
	})
}

func TestDetectorOptions(t *testing.T) {
	Convey("Given detector options", t, func() {
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
		ctx := context.Background()

		Convey("A tighter collusion window ignores wider clusters", func() {
			d := New(WithCollusionWindow(10 * time.Second))
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 5, [model.CategoryCount]int{5, 6, 5, 4, 5}, base, 15),
					makeEval("bob", 6, [model.CategoryCount]int{6, 5, 7, 6, 6}, base.Add(time.Minute), 14),
					makeEval("carol", 7, [model.CategoryCount]int{7, 6, 7, 8, 7}, base.Add(2*time.Minute), 16),
					makeEval("dave", 4, [model.CategoryCount]int{4, 5, 4, 3, 4}, base.Add(3*time.Minute), 13),
				},
			}

			report := d.Analyze(ctx, job)
			So(report.Suspicion, ShouldEqual, 0)
		})

		Convey("A lower review threshold flags milder findings", func() {
			d := New(WithReviewThreshold(0.3))
			job := model.DetectionJob{
				PresentationID: "pres-1",
				Evaluations: []model.Evaluation{
					makeEval("alice", 10, [model.CategoryCount]int{10, 9, 10, 10, 10}, base, 15),
					makeEval("bob", 1, [model.CategoryCount]int{1, 2, 1, 1, 2}, base.Add(time.Hour), 18),
				},
			}

			report := d.Analyze(ctx, job)
			So(report.Suspicion, ShouldAlmostEqual, 0.4, 1e-9)
			So(report.RequiresReview, ShouldBeTrue)
		})
	})
}
