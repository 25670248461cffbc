package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/okian/matchday/internal/domain/model"
)

type resultKey struct {
	manager, game string
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	players map[int]model.Position
	squads  map[string]model.Squad
	games   map[string]model.GameStatus
	events  map[string]model.Events
	results map[resultKey]model.GameResult
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		players: make(map[int]model.Position),
		squads:  make(map[string]model.Squad),
		games:   make(map[string]model.GameStatus),
		events:  make(map[string]model.Events),
		results: make(map[resultKey]model.GameResult),
	}
}

func (s *MemoryStore) PutPlayers(ctx context.Context, players []model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range players {
		s.players[p.ID] = p.Position
	}
	return nil
}

func (s *MemoryStore) Positions(ctx context.Context, ids []int) (map[int]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int]model.Position, len(ids))
	for _, id := range ids {
		if pos, ok := s.players[id]; ok {
			out[id] = pos
		}
	}
	return out, nil
}

func (s *MemoryStore) PutSquad(ctx context.Context, managerID string, squad model.Squad) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.squads[managerID] = model.Squad{
		StartingXI: slices.Clone(squad.StartingXI),
		Bench:      slices.Clone(squad.Bench),
	}
	return nil
}

func (s *MemoryStore) Squad(ctx context.Context, managerID string) (model.Squad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sq, ok := s.squads[managerID]
	if !ok {
		return model.Squad{}, fmt.Errorf("squad %s: %w", managerID, ErrNotFound)
	}
	return model.Squad{StartingXI: slices.Clone(sq.StartingXI), Bench: slices.Clone(sq.Bench)}, nil
}

func (s *MemoryStore) Managers(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.squads)), nil
}

func (s *MemoryStore) PutGameEvents(ctx context.Context, gameID string, events model.Events, status model.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[gameID] = maps.Clone(events)
	s.games[gameID] = status
	return nil
}

func (s *MemoryStore) GameEvents(ctx context.Context, gameID string) (model.Events, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return maps.Clone(ev), nil
}

func (s *MemoryStore) Game(ctx context.Context, gameID string) (model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.games[gameID]
	if !ok {
		return model.Game{}, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return model.Game{ID: gameID, Status: st}, nil
}

func (s *MemoryStore) Games(ctx context.Context, status model.GameStatus) ([]model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Game{}
	for _, id := range slices.Sorted(maps.Keys(s.games)) {
		if s.games[id] == status {
			out = append(out, model.Game{ID: id, Status: status})
		}
	}
	return out, nil
}

func (s *MemoryStore) SetGameStatus(ctx context.Context, gameID string, status model.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	s.games[gameID] = status
	return nil
}

func (s *MemoryStore) SaveResult(ctx context.Context, res model.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res.SubstitutedIn = slices.Clone(res.SubstitutedIn)
	res.Substitutions = slices.Clone(res.Substitutions)
	s.results[resultKey{res.ManagerID, res.GameID}] = res
	return nil
}

func (s *MemoryStore) Result(ctx context.Context, managerID, gameID string) (model.GameResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[resultKey{managerID, gameID}]
	if !ok {
		return model.GameResult{}, fmt.Errorf("result %s/%s: %w", gameID, managerID, ErrNotFound)
	}
	return res, nil
}

func (s *MemoryStore) SeasonTotal(ctx context.Context, managerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for k, res := range s.results {
		if k.manager == managerID {
			total += res.Total
		}
	}
	return total, nil
}

func (s *MemoryStore) SeasonTotals(ctx context.Context) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int)
	for k, res := range s.results {
		out[k.manager] += res.Total
	}
	return out, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
