package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("custom"),
				WithSubsystem("merit"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should apply the options", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "custom")
				So(manager.subsystem, ShouldEqual, "merit")
			})
		})
	})
}

func TestPackageLevelHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording business metrics", func() {
			So(func() {
				RecordEvaluationReceived()
				RecordEvaluationDuplicate()
				RecordAggregationLatency(12.5)
				RecordAggregationInsufficient()
				RecordMeritUpdate()
			}, ShouldNotPanic)
		})

		Convey("When recording detection metrics", func() {
			So(func() {
				RecordDetectionSuspicion(0.75)
				RecordDetectionFlagged()
				RecordDetectionFailure()
			}, ShouldNotPanic)
		})

		Convey("When recording governance metrics", func() {
			So(func() {
				RecordBallotAccepted()
				RecordBallotRejected("session_closed")
				UpdateSessionsOpen(3)
				RecordSessionDecided()
				RecordRuleChangeApplied()
				RecordRuleRemoval()
			}, ShouldNotPanic)
		})

		Convey("When recording operational metrics", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				RecordQueueProcessingLatency(2.0)
				UpdateWorkerCount(4)
				UpdateWorkerActiveCount(4)
				UpdateWorkerIdleCount(0)
				UpdateWorkerJobsPerSecond(1.5)
				RecordWorkerProcessingLatency(5.0)
				RecordWorkerError()
				UpdateTotalMembers(25)
				RecordStoreUpdateLatency(0.5)
				RecordStoreQueryLatency(0.2)
				RecordArchiveWrite()
				RecordArchiveError()
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP and error metrics", func() {
			So(func() {
				RecordHTTPRequest("/evaluations", "POST", "202")
				RecordHTTPRequestDuration("/evaluations", "POST", "202", 3.4)
				RecordErrorByComponent("tally", "duplicate_ballot")
				RecordErrorByEndpoint("/sessions", "POST", "bad_request")
			}, ShouldNotPanic)
		})

		Convey("When recording system metrics", func() {
			So(func() {
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(42)
				RecordSystemGCPauseTime(0.3)
			}, ShouldNotPanic)
		})

		Convey("Then the registry should be exposed", func() {
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
