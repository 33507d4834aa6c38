package config_test

import (
	"context"
	"testing"

	"github.com/meritum/agora/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.MinEvaluators, convey.ShouldEqual, 3)
			convey.So(cfg.OutlierSigma, convey.ShouldEqual, 2.0)
			convey.So(cfg.OutlierMinCount, convey.ShouldEqual, 5)
			convey.So(cfg.DecayRate, convey.ShouldEqual, 0.05)
			convey.So(cfg.MaxVotingWeightRatio, convey.ShouldEqual, 10.0)
			convey.So(cfg.QuorumFraction, convey.ShouldEqual, 0.6)
			convey.So(cfg.RemoveThreshold, convey.ShouldEqual, 0.67)
			convey.So(cfg.RemoveValueCeiling, convey.ShouldEqual, 50.0)
			convey.So(cfg.ReviewThreshold, convey.ShouldEqual, 0.7)
			convey.So(cfg.CollusionWindowSeconds, convey.ShouldEqual, 120)
			convey.So(cfg.FastEvaluationMinutes, convey.ShouldEqual, 5.0)
			convey.So(cfg.TrendWindow, convey.ShouldEqual, 5)
			convey.So(cfg.MinMembershipCycles, convey.ShouldEqual, 4)
			convey.So(cfg.MinParticipationRate, convey.ShouldEqual, 0.75)
			convey.So(cfg.MinMeritScore, convey.ShouldEqual, 5.0)
		})
	})
}
