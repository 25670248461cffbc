package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/matchday/internal/adapters/http/api"
	"github.com/okian/matchday/internal/adapters/mq/queue"
	"github.com/okian/matchday/internal/adapters/repository"
	service "github.com/okian/matchday/internal/app"
	"github.com/okian/matchday/internal/domain/types"
	"github.com/okian/matchday/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const playersBody = `[
 {"id":1,"position":"GK"},{"id":2,"position":"DEF"},{"id":3,"position":"DEF"},{"id":4,"position":"DEF"},
 {"id":5,"position":"DEF"},{"id":6,"position":"MID"},{"id":7,"position":"MID"},{"id":8,"position":"MID"},
 {"id":9,"position":"MID"},{"id":10,"position":"FWD"},{"id":11,"position":"FWD"},{"id":12,"position":"GK"},
 {"id":13,"position":"DEF"},{"id":14,"position":"MID"},{"id":15,"position":"FWD"}
]`

const squadBody = `{"starting_xi":[1,2,3,4,5,6,7,8,9,10,11],"bench":[12,13,14,15]}`

// eventsBody has everyone playing 60+ except player 3; player 10 scores.
func eventsBody(status string) string {
	parts := make([]string, 0, 15)
	for id := 1; id <= 15; id++ {
		switch id {
		case 3:
			continue
		case 10:
			parts = append(parts, `"10":{"minutes":"60+","goals":1}`)
		default:
			parts = append(parts, fmt.Sprintf(`"%d":{"minutes":"60+"}`, id))
		}
	}
	return fmt.Sprintf(`{"status":%q,"events":{%s}}`, status, strings.Join(parts, ","))
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func newMux(svc api.Dependencies, maxLimit int) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc, maxLimit).Register(context.Background(), mux)
	return mux
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc, 50)

		Convey("Then /healthz serves Prometheus metrics", func() {
			do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "matchday_")
		})

		Convey("Then /stats reports the pipeline", func() {
			w := do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats types.Stats
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats.Workers, ShouldEqual, 2)
		})

		Convey("Then a wrong method is refused", func() {
			w := do(mux, http.MethodPost, "/players", playersBody)
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Catalog(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(service.New(), 50)

		Convey("When a valid catalog is uploaded", func() {
			w := do(mux, http.MethodPut, "/players", playersBody)

			Convey("Then it is accepted", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"count":15`)
			})
		})

		Convey("When a player has an unknown position", func() {
			w := do(mux, http.MethodPut, "/players", `[{"id":1,"position":"COACH"}]`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPut, "/players", `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the catalog is empty", func() {
			w := do(mux, http.MethodPut, "/players", `[]`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Squads(t *testing.T) {
	Convey("Given an API server", t, func() {
		mux := newMux(service.New(), 50)

		Convey("When a squad is stored", func() {
			w := do(mux, http.MethodPut, "/squads/alice", squadBody)
			So(w.Code, ShouldEqual, http.StatusOK)

			Convey("Then it can be read back", func() {
				w := do(mux, http.MethodGet, "/squads/alice", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"bench":[12,13,14,15]`)
			})
		})

		Convey("When a squad has the wrong size", func() {
			w := do(mux, http.MethodPut, "/squads/alice", `{"starting_xi":[1,2,3],"bench":[12,13,14,15]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When a squad has unknown fields", func() {
			w := do(mux, http.MethodPut, "/squads/alice", `{"starting":[1]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown squad is requested", func() {
			w := do(mux, http.MethodGet, "/squads/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})
	})
}

func TestServer_GameFlow(t *testing.T) {
	Convey("Given a league with two managers and a closed game", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(ctx) }()
		mux := newMux(svc, 50)

		So(do(mux, http.MethodPut, "/players", playersBody).Code, ShouldEqual, http.StatusOK)
		So(do(mux, http.MethodPut, "/squads/alice", squadBody).Code, ShouldEqual, http.StatusOK)
		So(do(mux, http.MethodPut, "/squads/bob", squadBody).Code, ShouldEqual, http.StatusOK)
		w := do(mux, http.MethodPut, "/games/gw1/events", eventsBody("closed"))
		So(w.Code, ShouldEqual, http.StatusOK)
		So(w.Body.String(), ShouldContainSubstring, `"players":14`)

		// ten starters on 60+ (20), goal by FWD 10 (4), bench DEF 13 for DEF 3 (2)
		const want = 26

		Convey("When a manager is previewed", func() {
			w := do(mux, http.MethodGet, "/games/gw1/preview/alice", "")

			Convey("Then the computed score includes the substitution", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var res struct {
					Total         int   `json:"total"`
					SubstitutedIn []int `json:"substituted_in"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
				So(res.Total, ShouldEqual, want)
				So(res.SubstitutedIn, ShouldResemble, []int{13})
			})

			Convey("Then nothing is persisted", func() {
				So(do(mux, http.MethodGet, "/games/gw1/results/alice", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the game is finalized", func() {
			w := do(mux, http.MethodPost, "/games/gw1/finalize", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var sum types.FinalizeSummary
			So(json.Unmarshal(w.Body.Bytes(), &sum), ShouldBeNil)
			So(sum.Accepted, ShouldEqual, 2)

			ok := false
			for deadline := time.Now().Add(3 * time.Second); time.Now().Before(deadline); time.Sleep(5 * time.Millisecond) {
				if do(mux, http.MethodGet, "/games/gw1/results/bob", "").Code == http.StatusOK &&
					do(mux, http.MethodGet, "/games/gw1/results/alice", "").Code == http.StatusOK {
					ok = true
					break
				}
			}
			So(ok, ShouldBeTrue)

			Convey("Then results, leaderboard and rank agree", func() {
				w := do(mux, http.MethodGet, "/games/gw1/results/alice", "")
				So(w.Body.String(), ShouldContainSubstring, fmt.Sprintf(`"total":%d`, want))

				w = do(mux, http.MethodGet, "/leaderboard?limit=5", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var entries []types.Entry
				So(json.Unmarshal(w.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldResemble, []types.Entry{
					{Rank: 1, ManagerID: "alice", Points: want},
					{Rank: 1, ManagerID: "bob", Points: want},
				})

				w = do(mux, http.MethodGet, "/rank/bob", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"rank":1`)
			})
		})

		Convey("When an unknown game is finalized", func() {
			w := do(mux, http.MethodPost, "/games/gw9/finalize", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When events carry an unknown status", func() {
			w := do(mux, http.MethodPut, "/games/gw2/events", eventsBody("paused"))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When an unknown manager is ranked", func() {
			w := do(mux, http.MethodGet, "/rank/nobody", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_found")
		})
	})
}

func TestServer_Score(t *testing.T) {
	Convey("Given an API server with an empty catalog", t, func() {
		mux := newMux(service.New(), 50)

		Convey("When a squad is scored with inline positions", func() {
			body := `{
			  "starting_xi":[1,2,3,4,5,6,7,8,9,10,11],
			  "bench":[12,13],
			  "players":[{"id":1,"position":"GK"},{"id":2,"position":"DEF"},{"id":3,"position":"DEF"},
			    {"id":4,"position":"DEF"},{"id":5,"position":"MID"},{"id":6,"position":"MID"},{"id":7,"position":"MID"},
			    {"id":8,"position":"MID"},{"id":9,"position":"FWD"},{"id":10,"position":"FWD"},{"id":11,"position":"FWD"},
			    {"id":12,"position":"GK"},{"id":13,"position":"DEF"}],
			  "events":{"1":{"minutes":"60+","clean_sheet":true,"penalties_saved":1},"2":{"minutes":"1_59"}}
			}`
			w := do(mux, http.MethodPost, "/score", body)

			Convey("Then the points follow the rules", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"total":10`)
			})
		})

		Convey("When the starting XI is missing", func() {
			w := do(mux, http.MethodPost, "/score", `{"bench":[1]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When a position is unknown", func() {
			w := do(mux, http.MethodPost, "/score", `{"starting_xi":[1],"players":[{"id":1,"position":"SW"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Leaderboard(t *testing.T) {
	Convey("Given an API server with a leaderboard cap of 5", t, func() {
		mux := newMux(service.New(), 5)

		cases := map[string]int{
			"/leaderboard":          http.StatusOK,
			"/leaderboard?limit=5":  http.StatusOK,
			"/leaderboard?limit=0":  http.StatusBadRequest,
			"/leaderboard?limit=-3": http.StatusBadRequest,
			"/leaderboard?limit=ab": http.StatusBadRequest,
			"/leaderboard?limit=6":  http.StatusBadRequest,
		}
		for path, status := range cases {
			Convey("When requesting "+path, func() {
				w := do(mux, http.MethodGet, path, "")
				So(w.Code, ShouldEqual, status)
			})
		}

		Convey("When the limit exceeds the cap", func() {
			w := do(mux, http.MethodGet, "/leaderboard?limit=6", "")
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})
	})
}

// failingDeps overrides a few operations with fixed errors.
type failingDeps struct {
	api.Dependencies
	err error
}

func (f failingDeps) TopN(context.Context, int) ([]types.Entry, error) { return nil, f.err }

func (f failingDeps) FinalizeGame(_ context.Context, gameID string) (types.FinalizeSummary, error) {
	return types.FinalizeSummary{GameID: gameID, Rejected: 3}, f.err
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		Convey("When the store breaks", func() {
			mux := newMux(failingDeps{err: errors.New("disk on fire")}, 10)
			w := do(mux, http.MethodGet, "/leaderboard?limit=3", "")

			Convey("Then the server reports an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			})
		})

		Convey("When the queue is full", func() {
			mux := newMux(failingDeps{err: fmt.Errorf("finalize gw1: %w", queue.ErrFull)}, 10)
			w := do(mux, http.MethodPost, "/games/gw1/finalize", "")

			Convey("Then the server reports backpressure", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(errorCode(w), ShouldEqual, "backpressure")
			})
		})

		Convey("When the service is stopped", func() {
			mux := newMux(failingDeps{err: queue.ErrClosed}, 10)
			w := do(mux, http.MethodPost, "/games/gw1/finalize", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given op-tagged errors", t, func() {
		cause := fmt.Errorf("squad x: %w", repository.ErrNotFound)

		Convey("Then WrapKind matches both kind and cause", func() {
			err := api.WrapKind("api.op", api.ErrBadRequest, cause)
			So(errors.Is(err, api.ErrBadRequest), ShouldBeTrue)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldStartWith, "api.op: bad request")
		})

		Convey("Then NewKind carries only the kind", func() {
			err := api.NewKind("api.op", api.ErrBackpressure)
			So(errors.Is(err, api.ErrBackpressure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "api.op: backpressure")
		})

		Convey("Then Wrap keeps nil as nil", func() {
			So(api.Wrap("api.op", nil), ShouldBeNil)
			So(errors.Is(api.Wrap("api.op", cause), repository.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given an instrumented handler", t, func() {
		Convey("When the handler panics before writing", func() {
			h := api.MetricsMiddleware(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			}, "test")
			w := httptest.NewRecorder()

			Convey("Then a JSON 500 is returned", func() {
				So(func() { h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody)) }, ShouldNotPanic)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(errorCode(w), ShouldEqual, "internal_error")
			})
		})

		Convey("When the handler writes a body without a status", func() {
			h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("ok"))
			}, "test")
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

			Convey("Then the implicit 200 passes through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldEqual, "ok")
			})
		})
	})
}
