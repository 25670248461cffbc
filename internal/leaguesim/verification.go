package leaguesim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/internal/domain/scoring"
	"github.com/okian/matchday/internal/domain/types"
	"github.com/okian/matchday/pkg/logger"
)

// verifyResults polls every manager's result until it appears or cfg.WaitFor
// passes, and compares it with a local ScoreSquad run.
func verifyResults(ctx context.Context, cfg *Config, client *httpClient, league *League, stats *Stats) {
	positions := league.Positions()
	deadline := time.Now().Add(cfg.WaitFor)
	var mu sync.Mutex

	forEachManager(ctx, cfg, league, func(managerID string, squad model.Squad) {
		want := scoring.ScoreSquad(squad, positions, league.Events)
		got, err := pollResult(ctx, cfg, client, managerID, deadline)

		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			stats.ResultsMissing++
			logger.Get().Warn(ctx, "result missing", logger.String("manager_id", managerID), logger.Error(err))
		case !sameResult(got, want):
			stats.ResultsMismatched++
			logger.Get().Warn(ctx, "result mismatch",
				logger.String("manager_id", managerID),
				logger.Int("service_total", got.Total),
				logger.Int("local_total", want.Total),
				logger.Any("service_subs", got.SubstitutedIn),
				logger.Any("local_subs", want.SubstitutedIn),
			)
		default:
			stats.ResultsVerified++
		}
	})
}

func pollResult(ctx context.Context, cfg *Config, client *httpClient, managerID string, deadline time.Time) (model.GameResult, error) {
	path := gamePath(cfg.GameID, "results", managerID)
	for {
		var res model.GameResult
		err := client.do(ctx, "GET", path, nil, &res)
		if err == nil {
			return res, nil
		}
		var se *statusError
		if !errors.As(err, &se) || se.Status != http.StatusNotFound || time.Now().After(deadline) {
			return model.GameResult{}, err
		}
		if cfg.Verbose {
			logger.Get().Debug(ctx, "result not ready", logger.String("manager_id", managerID))
		}
		select {
		case <-ctx.Done():
			return model.GameResult{}, ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
	}
}

func sameResult(got model.GameResult, want scoring.Result) bool {
	if got.Total != want.Total || len(got.SubstitutedIn) != len(want.SubstitutedIn) {
		return false
	}
	for i := range got.SubstitutedIn {
		if got.SubstitutedIn[i] != want.SubstitutedIn[i] {
			return false
		}
	}
	return true
}

// verifyLeaderboard checks ordering and competition ranks.
func verifyLeaderboard(entries []types.Entry) error {
	for i, e := range entries {
		if i == 0 {
			if e.Rank != 1 {
				return fmt.Errorf("leaderboard starts at rank %d", e.Rank)
			}
			continue
		}
		prev := entries[i-1]
		switch {
		case e.Points > prev.Points:
			return fmt.Errorf("leaderboard not ordered at position %d", i+1)
		case e.Points == prev.Points && e.Rank != prev.Rank:
			return fmt.Errorf("tied managers at position %d have ranks %d and %d", i+1, prev.Rank, e.Rank)
		case e.Points < prev.Points && e.Rank != i+1:
			return fmt.Errorf("manager at position %d has rank %d", i+1, e.Rank)
		}
	}
	return nil
}
