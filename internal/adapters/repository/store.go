// Package repository persists the player catalog, squads, match events and
// results, and keeps the ranked season standings.
package repository

import (
	"context"

	"github.com/okian/matchday/internal/domain/model"
)

// PlayerCatalog maps player ids to positions.
type PlayerCatalog interface {
	// PutPlayers upserts catalog entries.
	PutPlayers(ctx context.Context, players []model.Player) error
	// Positions returns the positions of the known ids; unknown ids are
	// absent from the result.
	Positions(ctx context.Context, ids []int) (map[int]model.Position, error)
}

// SquadStore keeps each manager's current squad.
type SquadStore interface {
	PutSquad(ctx context.Context, managerID string, squad model.Squad) error
	// Squad returns ErrNotFound for an unknown manager.
	Squad(ctx context.Context, managerID string) (model.Squad, error)
	// Managers returns every manager with a squad, sorted.
	Managers(ctx context.Context) ([]string, error)
}

// EventStore keeps per-game match events.
type EventStore interface {
	// PutGameEvents replaces the whole event set of a game and sets its status.
	PutGameEvents(ctx context.Context, gameID string, events model.Events, status model.GameStatus) error
	// GameEvents returns ErrNotFound for an unknown game.
	GameEvents(ctx context.Context, gameID string) (model.Events, error)
	Game(ctx context.Context, gameID string) (model.Game, error)
	// Games lists games in the given status, sorted by id.
	Games(ctx context.Context, status model.GameStatus) ([]model.Game, error)
	SetGameStatus(ctx context.Context, gameID string, status model.GameStatus) error
}

// ResultStore keeps finalized results.
type ResultStore interface {
	// SaveResult upserts the result for its manager and game.
	SaveResult(ctx context.Context, res model.GameResult) error
	// Result returns ErrNotFound when the game was not finalized for the manager.
	Result(ctx context.Context, managerID, gameID string) (model.GameResult, error)
	// SeasonTotal sums a manager's finalized results.
	SeasonTotal(ctx context.Context, managerID string) (int, error)
	// SeasonTotals sums finalized results for every manager with at least one.
	SeasonTotals(ctx context.Context) (map[string]int, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	PlayerCatalog
	SquadStore
	EventStore
	ResultStore
	Close() error
}

// Open returns the Store for driver. The memory driver ignores dsn.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (Store, error) {
	if driver == "" || driver == DriverMemory {
		return NewMemoryStore(), nil
	}
	return OpenSQL(ctx, driver, dsn, opts...)
}
