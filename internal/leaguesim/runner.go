// Package leaguesim drives a running service with a generated league and
// checks the finalized scores against a local run of the scoring engine.
package leaguesim

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/types"
	"github.com/okian/matchday/pkg/logger"
)

// ErrVerification is returned when the service disagrees with the local
// scores.
var ErrVerification = errors.New("verification failed")

// Run executes the complete simulation.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	applyDefaults(cfg)
	log := logger.Get().Named("leaguesim")
	stats := &Stats{StartTime: time.Now(), Managers: cfg.Managers}

	log.Info(ctx, "starting league simulation",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("managers", cfg.Managers),
		logger.String("game_id", cfg.GameID),
		logger.Int64("seed", int64(cfg.Seed)),
		logger.Int("workers", cfg.Workers),
	)

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.do(ctx, "GET", "/healthz", nil, nil); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate and upload the league
	league := Generate(cfg.Seed, cfg.Managers)
	if err := client.do(ctx, "PUT", "/players", league.Players, nil); err != nil {
		return stats, fmt.Errorf("upload catalog: %w", err)
	}
	uploadSquads(ctx, cfg, client, league, stats)
	if stats.SquadsFailed > 0 {
		return stats, fmt.Errorf("%d squads failed to upload", stats.SquadsFailed)
	}
	body := struct {
		Status model.GameStatus `json:"status"`
		Events model.Events     `json:"events"`
	}{Status: model.GameClosed, Events: league.Events}
	if err := client.do(ctx, "PUT", gamePath(cfg.GameID, "events"), body, nil); err != nil {
		return stats, fmt.Errorf("upload events: %w", err)
	}

	// Step 3: Finalize
	var sum types.FinalizeSummary
	if err := client.do(ctx, "POST", gamePath(cfg.GameID, "finalize"), nil, &sum); err != nil {
		return stats, fmt.Errorf("finalize: %w", err)
	}
	log.Info(ctx, "finalization queued",
		logger.Int("accepted", sum.Accepted),
		logger.Int("duplicate", sum.Duplicate),
	)

	// Step 4: Verify every result against the local engine
	verifyResults(ctx, cfg, client, league, stats)

	// Step 5: Check the leaderboard
	var entries []types.Entry
	if err := client.do(ctx, "GET", fmt.Sprintf("/leaderboard?limit=%d", cfg.TopN), nil, &entries); err != nil {
		return stats, fmt.Errorf("leaderboard: %w", err)
	}
	stats.LeaderboardEntries = len(entries)
	leaderboardErr := verifyLeaderboard(entries)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.ResultsMismatched > 0 || stats.ResultsMissing > 0 {
		return stats, fmt.Errorf("%w: %d mismatched, %d missing", ErrVerification, stats.ResultsMismatched, stats.ResultsMissing)
	}
	if leaderboardErr != nil {
		return stats, fmt.Errorf("%w: %w", ErrVerification, leaderboardErr)
	}
	log.Info(ctx, "simulation completed successfully")
	return stats, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU() * 2
	}
	if cfg.GameID == "" {
		cfg.GameID = "gw1"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.WaitFor <= 0 {
		cfg.WaitFor = defaultWaitFor
	}
	if cfg.TopN < 1 {
		cfg.TopN = defaultTopN
	}
}

func gamePath(gameID string, parts ...string) string {
	p := "/games/" + url.PathEscape(gameID)
	for _, part := range parts {
		p += "/" + url.PathEscape(part)
	}
	return p
}

// forEachManager runs fn for every manager on cfg.Workers goroutines.
func forEachManager(ctx context.Context, cfg *Config, league *League, fn func(managerID string, squad model.Squad)) {
	work := make(chan string, cfg.Workers*workerChannelFactor)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range work {
				fn(id, league.Squads[id])
			}
		}()
	}
	go func() {
		defer close(work)
		for id := range league.Squads {
			select {
			case <-ctx.Done():
				return
			case work <- id:
			}
		}
	}()
	wg.Wait()
}

func uploadSquads(ctx context.Context, cfg *Config, client *httpClient, league *League, stats *Stats) {
	var mu sync.Mutex
	forEachManager(ctx, cfg, league, func(managerID string, squad model.Squad) {
		err := client.do(ctx, "PUT", "/squads/"+url.PathEscape(managerID), squad, nil)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			stats.SquadsFailed++
			logger.Get().Warn(ctx, "squad upload failed", logger.String("manager_id", managerID), logger.Error(err))
			return
		}
		stats.SquadsUploaded++
	})
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.ResultsVerified) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.Int("managers", stats.Managers),
		logger.Int("squads_uploaded", stats.SquadsUploaded),
		logger.Int("results_verified", stats.ResultsVerified),
		logger.Int("results_mismatched", stats.ResultsMismatched),
		logger.Int("results_missing", stats.ResultsMissing),
		logger.Int("leaderboard_entries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("results_per_second", perSecond),
	)
}
