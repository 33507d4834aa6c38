package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/meritum/agora/internal/adapters/http/api"
	"github.com/meritum/agora/internal/adapters/http/docs"
	app "github.com/meritum/agora/internal/app"
	"github.com/meritum/agora/internal/config"
	"github.com/meritum/agora/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		_ = os.Setenv("AGORA_ADDR", ":8080")
		_ = os.Setenv("AGORA_QUEUE_SIZE", "1000")
		_ = os.Setenv("AGORA_WORKER_COUNT", "4")
		defer func() {
			_ = os.Unsetenv("AGORA_ADDR")
			_ = os.Unsetenv("AGORA_QUEUE_SIZE")
			_ = os.Unsetenv("AGORA_WORKER_COUNT")
		}()

		convey.Convey("When loading the configuration", func() {
			cfg, err := config.Load(context.Background())

			convey.Convey("Then env values take effect", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DetectionQueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})
	})
}

func TestServerAssembly(t *testing.T) {
	convey.Convey("Given a started service wired into the HTTP mux", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		cfg.ArchivePath = ""
		cfg.WorkerCount = 2
		cfg.DetectionQueueSize = 100
		cfg.DedupeSize = 100

		svc := app.New(app.WithConfig(cfg))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		docs.Register(ctx, mux)
		api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)

		ts := httptest.NewServer(mux)
		defer ts.Close()

		convey.Convey("Then the liveness route responds", func() {
			resp, err := http.Get(ts.URL + "/healthz")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the metrics route responds", func() {
			resp, err := http.Get(ts.URL + "/metrics")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the API docs route responds", func() {
			resp, err := http.Get(ts.URL + "/api-docs")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("And the stats route reports the started service", func() {
			resp, err := http.Get(ts.URL + "/stats")
			convey.So(err, convey.ShouldBeNil)
			resp.Body.Close()
			convey.So(resp.StatusCode, convey.ShouldEqual, http.StatusOK)
		})
	})
}
