package leaguesim

import (
	"time"

	"github.com/okian/matchday/internal/domain/model"
)

// Config holds configuration for a simulated league run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Managers     int           // Number of managers to register
	GameID       string        // Game to simulate
	Seed         uint64        // Seed for catalog, squads and events
	Workers      int           // Number of concurrent HTTP workers
	Timeout      time.Duration // HTTP request timeout
	PollInterval time.Duration // Delay between result polls
	WaitFor      time.Duration // How long to wait for finalization
	TopN         int           // Leaderboard size to fetch
	Verbose      bool          // Log every mismatch and poll
}

// League is a generated catalog, the managers' squads and one game.
type League struct {
	Players []model.Player
	Squads  map[string]model.Squad
	Events  model.Events
}

// Positions indexes the catalog by id.
func (l *League) Positions() map[int]model.Position {
	out := make(map[int]model.Position, len(l.Players))
	for _, p := range l.Players {
		out[p.ID] = p.Position
	}
	return out
}

// Stats holds run statistics.
type Stats struct {
	Managers           int
	SquadsUploaded     int
	SquadsFailed       int
	ResultsVerified    int
	ResultsMismatched  int
	ResultsMissing     int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
