package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchday/internal/adapters/mq/notify"
	"github.com/okian/matchday/internal/adapters/repository"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by sqlite and an embedded NATS server", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		ns, err := notify.StartEmbedded(0)
		So(err, ShouldBeNil)
		defer ns.Shutdown()

		listener, err := nats.Connect(ns.ClientURL())
		So(err, ShouldBeNil)
		defer listener.Close()
		msgs := make(chan *nats.Msg, 64)
		sub, err := listener.ChanSubscribe("matchday.results.>", msgs)
		So(err, ShouldBeNil)
		defer func() { _ = sub.Unsubscribe() }()
		So(listener.Flush(), ShouldBeNil)

		dbPath := filepath.Join(t.TempDir(), "league.db")
		store, err := repository.Open(ctx, repository.DriverSQLite, dbPath)
		So(err, ShouldBeNil)
		pub, err := notify.Connect(ns.ClientURL(), notify.DefaultSubjectPrefix)
		So(err, ShouldBeNil)

		svc := service.New(
			service.WithWorkerCount(4),
			service.WithQueueSize(100),
			service.WithStore(store),
			service.WithPublisher(pub),
		)
		So(svc.Start(ctx), ShouldBeNil)
		stopped := false
		defer func() {
			if !stopped {
				_ = svc.Stop(ctx)
			}
		}()

		managers := make([]string, 12)
		So(svc.PutPlayers(ctx, catalog()), ShouldBeNil)
		for i := range managers {
			managers[i] = fmt.Sprintf("manager-%02d", i)
			So(svc.PutSquad(ctx, managers[i], squad()), ShouldBeNil)
		}
		ev := everyonePlayed()
		delete(ev, 3)
		ev[9] = model.MatchEvent{Minutes: model.Minutes60Plus, Goals: 1, Assists: 1}
		So(svc.PutGameEvents(ctx, "gw1", ev, model.GameClosed), ShouldBeNil)

		want := scoring.ScoreSquad(squad(), positionsOf(catalog()), ev).Total

		Convey("When the closed game is swept", func() {
			n, err := svc.FinalizePending(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)

			Convey("Then every manager's result is published", func() {
				got := map[string]model.GameResult{}
				timeout := time.After(5 * time.Second)
				for len(got) < len(managers) {
					select {
					case m := <-msgs:
						var res model.GameResult
						So(json.Unmarshal(m.Data, &res), ShouldBeNil)
						So(m.Subject, ShouldEqual, "matchday.results.gw1."+res.ManagerID)
						got[res.ManagerID] = res
					case <-timeout:
						So(len(got), ShouldEqual, len(managers))
						return
					}
				}
				for _, m := range managers {
					So(got[m].Total, ShouldEqual, want)
					So(got[m].SubstitutedIn, ShouldResemble, []int{13})
				}
			})

			Convey("Then the results are stored in sqlite", func() {
				So(eventually(func() bool { return svc.GetStats(ctx).Finalized == int64(len(managers)) }), ShouldBeTrue)
				for _, m := range managers {
					res, err := svc.Result(ctx, m, "gw1")
					So(err, ShouldBeNil)
					So(res.Total, ShouldEqual, want)
				}
			})

			Convey("Then a restarted service rebuilds the standings from the database", func() {
				So(eventually(func() bool { return svc.GetStats(ctx).Finalized == int64(len(managers)) }), ShouldBeTrue)
				So(svc.Stop(ctx), ShouldBeNil)
				stopped = true

				reopened, err := repository.Open(ctx, repository.DriverSQLite, dbPath)
				So(err, ShouldBeNil)
				again := service.New(service.WithStore(reopened))
				So(again.Start(ctx), ShouldBeNil)
				defer func() { _ = again.Stop(ctx) }()

				top, err := again.TopN(ctx, len(managers))
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, len(managers))
				for _, e := range top {
					So(e.Rank, ShouldEqual, 1)
					So(e.Points, ShouldEqual, want)
				}
				So(top[0].ManagerID, ShouldEqual, "manager-00")
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given a started service with many managers", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(8), service.WithQueueSize(1000))
		So(svc.PutPlayers(ctx, catalog()), ShouldBeNil)
		const managers = 200
		for i := 0; i < managers; i++ {
			So(svc.PutSquad(ctx, fmt.Sprintf("m%03d", i), squad()), ShouldBeNil)
		}
		So(svc.PutGameEvents(ctx, "gw1", everyonePlayed(), model.GameClosed), ShouldBeNil)
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()

		Convey("When the same game is finalized from many goroutines", func() {
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				accepted int
			)
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					sum, err := svc.FinalizeGame(ctx, "gw1")
					if err != nil {
						return
					}
					mu.Lock()
					accepted += sum.Accepted
					mu.Unlock()
				}()
			}
			wg.Wait()

			Convey("Then every manager ends up with exactly one result", func() {
				So(accepted, ShouldBeGreaterThanOrEqualTo, managers)
				So(eventually(func() bool { return svc.GetStats(ctx).InFlight == 0 }), ShouldBeTrue)
				top, err := svc.TopN(ctx, managers)
				So(err, ShouldBeNil)
				So(len(top), ShouldEqual, managers)
				for _, e := range top {
					So(e.Points, ShouldEqual, 22)
				}
			})
		})
	})
}

func positionsOf(players []model.Player) map[int]model.Position {
	out := make(map[int]model.Position, len(players))
	for _, p := range players {
		out[p.ID] = p.Position
	}
	return out
}
