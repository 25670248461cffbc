package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/matchday/internal/adapters/http/api"
	"github.com/okian/matchday/internal/adapters/mq/notify"
	"github.com/okian/matchday/internal/adapters/repository"
	app "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/config"
	"github.com/okian/matchday/pkg/logger"
	"github.com/okian/matchday/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			t.Setenv("MATCHDAY_ADDR", ":8080")
			t.Setenv("MATCHDAY_QUEUE_SIZE", "1000")
			t.Setenv("MATCHDAY_WORKER_COUNT", "4")

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, repository.DriverMemory)
			})
		})

		convey.Convey("When testing service creation", func() {
			convey.Convey("Then service should be creatable with default options", func() {
				svc := app.New()
				convey.So(svc, convey.ShouldNotBeNil)
				convey.So(svc.IsStarted(), convey.ShouldBeFalse)
			})

			convey.Convey("And service should be creatable with custom options", func() {
				svc := app.New(
					app.WithWorkerCount(8),
					app.WithQueueSize(2000),
					app.WithPublisher(notify.Noop{}),
				)
				convey.So(svc, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			svc := app.New()
			convey.So(api.NewServer(svc, 100), convey.ShouldNotBeNil)
		})

		convey.Convey("When testing metrics initialization", func() {
			manager := metrics.NewManager(metrics.WithPrometheusRegistry(prometheus.NewRegistry()))
			convey.So(manager, convey.ShouldNotBeNil)
		})
	})
}

func TestMainApplicationComponents(t *testing.T) {
	convey.Convey("Given main application components", t, func() {
		convey.Convey("When the metrics updaters run until their context ends", func() {
			svc := app.New()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startSystemMetricsUpdater(ctx) }, convey.ShouldNotPanic)
			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the metrics are updated once", func() {
			svc := app.New()
			convey.So(func() { updateSystemMetrics() }, convey.ShouldNotPanic)
			convey.So(func() { updateServiceMetrics(context.Background(), svc) }, convey.ShouldNotPanic)
		})
	})
}

func TestOpenPublisher(t *testing.T) {
	convey.Convey("Given publisher configuration", t, func() {
		ctx := context.Background()

		convey.Convey("When no NATS url is configured", func() {
			cfg := config.New()
			pub, ns, err := openPublisher(ctx, cfg)

			convey.Convey("Then notifications are dropped", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ns, convey.ShouldBeNil)
				convey.So(pub, convey.ShouldHaveSameTypeAs, notify.Noop{})
			})
		})

		convey.Convey("When an embedded server is requested", func() {
			cfg := config.New()
			cfg.NATSEmbedded = true
			pub, ns, err := openPublisher(ctx, cfg)
			convey.So(err, convey.ShouldBeNil)
			defer ns.Shutdown()
			defer func() { _ = pub.Close() }()

			convey.Convey("Then the publisher is connected to it", func() {
				convey.So(ns, convey.ShouldNotBeNil)
				_, ok := pub.(*notify.NATSPublisher)
				convey.So(ok, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the NATS url is unreachable", func() {
			cfg := config.New()
			cfg.NATSURL = "nats://127.0.0.1:1"
			pub, ns, err := openPublisher(ctx, cfg)

			convey.Convey("Then an error is returned", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(pub, convey.ShouldBeNil)
				convey.So(ns, convey.ShouldBeNil)
			})
		})
	})
}

func TestStartScheduler(t *testing.T) {
	convey.Convey("Given a service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		svc := app.New(app.WithWorkerCount(1))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		convey.Convey("When the sweep interval is zero", func() {
			cfg := config.New()
			cfg.FinalizeIntervalSec = 0
			sched, err := startScheduler(ctx, cfg, svc)

			convey.Convey("Then no scheduler is started", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(sched, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the sweep interval is positive", func() {
			cfg := config.New()
			sched, err := startScheduler(ctx, cfg, svc)
			convey.So(err, convey.ShouldBeNil)
			convey.So(sched, convey.ShouldNotBeNil)

			convey.Convey("Then it stops cleanly", func() {
				convey.So(sched.Stop(), convey.ShouldBeNil)
			})
		})
	})
}

func TestNewMux(t *testing.T) {
	convey.Convey("Given the application mux", t, func() {
		ctx := context.Background()
		svc := app.New()
		mux := newMux(ctx, svc, config.New())

		for _, path := range []string{"/healthz", "/openapi.yaml", "/api-docs", "/leaderboard", "/stats"} {
			convey.Convey("Then GET "+path+" is served", func() {
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
				convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			})
		}

		convey.Convey("Then the leaderboard limit comes from configuration", func() {
			cfg := config.New()
			cfg.MaxLeaderboardLimit = 5
			rec := httptest.NewRecorder()
			newMux(ctx, svc, cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard?limit=6", nil))
			convey.So(rec.Code, convey.ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the store driver is unknown", func() {
			t.Setenv("MATCHDAY_STORE_DRIVER", "mongo")

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			t.Setenv("MATCHDAY_CONFIG", os.TempDir()+"/matchday-missing.yaml")

			convey.Convey("Then configuration loading should fail", func() {
				_, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the service is created with extreme values", func() {
			svc := app.New(
				app.WithWorkerCount(0),
				app.WithQueueSize(0),
			)
			convey.So(svc, convey.ShouldNotBeNil)
		})
	})
}
