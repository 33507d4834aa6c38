package service_test

import (
	"context"
	"testing"
	"time"

	service "github.com/meritum/agora/internal/app"
	"github.com/meritum/agora/internal/config"
	"github.com/meritum/agora/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// testConfig disables the archive and shrinks sizes for fast tests.
func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.ArchivePath = ""
	cfg.WorkerCount = 2
	cfg.DetectionQueueSize = 1000
	cfg.DedupeSize = 1000
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(int(svc.Cycle()), ShouldEqual, 1)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithStartCycle(7),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
			So(int(svc.Cycle()), ShouldEqual, 7)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["cycle"], ShouldEqual, 1)
			})

			Convey("And starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it is marked stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And stopping again is a no-op", func() {
				svc.Stop()
			})
		})
	})
}

func TestService_Dedupe(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When an event id is recorded twice", func() {
			first := svc.SeenAndRecord(ctx, "ev-1")
			second := svc.SeenAndRecord(ctx, "ev-1")

			Convey("Then only the second is reported as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an event id is unrecorded", func() {
			svc.SeenAndRecord(ctx, "ev-2")
			svc.Unrecord(ctx, "ev-2")

			Convey("Then it can be recorded again", func() {
				So(svc.SeenAndRecord(ctx, "ev-2"), ShouldBeFalse)
			})
		})
	})
}
