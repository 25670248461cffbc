package service

import (
	"context"
	"sync"

	"github.com/okian/matchday/internal/domain/model"
	"github.com/okian/matchday/pkg/logger"
)

// keyedMutex serializes work per key. An entry lives only while someone
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l := k.locks[key]
	if l == nil {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// gameProgress counts a game's queued or running jobs and remembers whether
// any of them failed.
type gameProgress struct {
	pending int
	failed  bool
}

// beginJob registers one more job for gameID. It must run before the job is
// enqueued so a fast worker cannot finish it first.
func (s *Service) beginJob(gameID string) {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	p := s.progress[gameID]
	if p == nil {
		p = &gameProgress{}
		s.progress[gameID] = p
	}
	p.pending++
}

// endJob settles one job of gameID. When the last job of a round ends and
// none failed, the game is marked finalized. Otherwise it stays closed so
// the pending sweep picks it up again.
func (s *Service) endJob(ctx context.Context, gameID string, ok bool) {
	s.progressMu.Lock()
	p := s.progress[gameID]
	if p == nil {
		s.progressMu.Unlock()
		return
	}
	p.pending--
	if !ok {
		p.failed = true
	}
	if p.pending > 0 {
		s.progressMu.Unlock()
		return
	}
	delete(s.progress, gameID)
	failed := p.failed
	s.progressMu.Unlock()

	if failed {
		s.logger.Warn(ctx, "game left closed for retry", logger.String("game_id", gameID))
		return
	}
	if err := s.store.SetGameStatus(ctx, gameID, model.GameFinalized); err != nil {
		s.logger.Error(ctx, "mark game finalized", logger.String("game_id", gameID), logger.Error(err))
		return
	}
	s.logger.Info(ctx, "game finalized", logger.String("game_id", gameID))
}
