package model

import (
	"fmt"
	"time"
)

// Squad sizes.
const (
	StartingXISize = 11
	BenchSize      = 4
)

// Squad is a manager's selection: the starting XI in pitch order and the
// bench in substitution priority order.
type Squad struct {
	StartingXI []int `json:"starting_xi"`
	Bench      []int `json:"bench"`
}

// Validate enforces the shape the squad builder guarantees: 11 starters,
// 4 substitutes, no repeated ids.
func (s Squad) Validate() error {
	if len(s.StartingXI) != StartingXISize {
		return fmt.Errorf("%w: starting xi has %d players, want %d", ErrInvalidSquad, len(s.StartingXI), StartingXISize)
	}
	if len(s.Bench) != BenchSize {
		return fmt.Errorf("%w: bench has %d players, want %d", ErrInvalidSquad, len(s.Bench), BenchSize)
	}
	seen := make(map[int]struct{}, StartingXISize+BenchSize)
	for _, id := range append(append([]int{}, s.StartingXI...), s.Bench...) {
		if id <= 0 {
			return fmt.Errorf("%w: player id %d", ErrInvalidSquad, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: player %d selected twice", ErrInvalidSquad, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// GameStatus tracks where a game is in its lifecycle.
type GameStatus string

// Game statuses.
const (
	GameOpen      GameStatus = "open"
	GameClosed    GameStatus = "closed"
	GameFinalized GameStatus = "finalized"
)

// ParseGameStatus returns the status for s; empty means open.
func ParseGameStatus(s string) (GameStatus, error) {
	switch GameStatus(s) {
	case "", GameOpen:
		return GameOpen, nil
	case GameClosed:
		return GameClosed, nil
	case GameFinalized:
		return GameFinalized, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Game is a scoring round.
type Game struct {
	ID     string     `json:"id"`
	Status GameStatus `json:"status"`
}

// Substitution records a bench player replacing a starter who did not play.
// Out is zero when the replaced goalkeeper was not in the catalog.
type Substitution struct {
	Out      int      `json:"out"`
	In       int      `json:"in"`
	Position Position `json:"position"`
}

// GameResult is the persisted score for one manager in one game.
type GameResult struct {
	ManagerID     string         `json:"manager_id"`
	GameID        string         `json:"game_id"`
	Total         int            `json:"total"`
	SubstitutedIn []int          `json:"substituted_in"`
	Substitutions []Substitution `json:"substitutions"`
	FinalizedAt   time.Time      `json:"finalized_at"`
}
