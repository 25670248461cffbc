package leaguesim_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchday/internal/adapters/http/api"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
	"github.com/okian/matchday/internal/leaguesim"
	"github.com/okian/matchday/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a generated league", t, func() {
		league := leaguesim.Generate(42, 50)
		positions := league.Positions()

		Convey("Then it has one squad per manager", func() {
			So(len(league.Squads), ShouldEqual, 50)
			So(len(league.Players), ShouldEqual, 73)
		})

		Convey("Then every squad is valid and starts in a legal formation", func() {
			for _, sq := range league.Squads {
				So(sq.Validate(), ShouldBeNil)
				var f scoring.Formation
				for _, id := range sq.StartingXI {
					f = f.With(positions[id])
				}
				So(f.Legal(), ShouldBeTrue)
				So(positions[sq.Bench[0]], ShouldEqual, model.GK)
			}
		})

		Convey("Then the same seed gives the same events", func() {
			again := leaguesim.Generate(42, 1)
			So(again.Events, ShouldResemble, league.Events)
			So(again.Players, ShouldResemble, league.Players)
		})

		Convey("Then every event is already normalized", func() {
			for _, ev := range league.Events {
				So(ev, ShouldResemble, ev.Normalize())
			}
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		mux := http.NewServeMux()
		api.NewServer(svc, 100).Register(ctx, mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		Convey("When a league is simulated against it", func() {
			stats, err := leaguesim.Run(ctx, &leaguesim.Config{
				BaseURL:      srv.URL,
				Managers:     40,
				Seed:         7,
				Workers:      4,
				Timeout:      5 * time.Second,
				PollInterval: 10 * time.Millisecond,
				WaitFor:      10 * time.Second,
				TopN:         40,
			})

			Convey("Then every result matches the local engine", func() {
				So(err, ShouldBeNil)
				So(stats.SquadsUploaded, ShouldEqual, 40)
				So(stats.ResultsVerified, ShouldEqual, 40)
				So(stats.ResultsMismatched, ShouldEqual, 0)
				So(stats.LeaderboardEntries, ShouldEqual, 40)
			})
		})
	})

	Convey("Given no service", t, func() {
		Convey("When a simulation runs", func() {
			_, err := leaguesim.Run(context.Background(), &leaguesim.Config{
				BaseURL: "http://127.0.0.1:1",
				Timeout: time.Second,
			})

			Convey("Then the health check fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "health check")
			})
		})
	})
}

func TestShowHelp(t *testing.T) {
	Convey("Given the help text", t, func() {
		var buf bytes.Buffer
		leaguesim.ShowHelp(&buf)
		So(buf.String(), ShouldContainSubstring, "-managers")
	})
}
