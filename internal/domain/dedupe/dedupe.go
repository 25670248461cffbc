// Package dedupe tracks finalization work that is queued or running so the
// same manager and game are never scored twice at once.
package dedupe

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
)

// Tracker records in-flight keys.
type Tracker interface {
	// Acquire atomically claims key. It returns false when the key is
	// already held or the tracker is full.
	Acquire(ctx context.Context, key string) bool

	// Release frees key once its work has ended, successfully or not.
	Release(ctx context.Context, key string)

	Size() int64
}

// Key builds the tracker key for one manager's result in one game. The game
// id is length-prefixed so ids containing the separator cannot collide.
func Key(gameID, managerID string) string {
	return strconv.Itoa(len(gameID)) + ":" + gameID + "/" + managerID
}

type inFlight struct {
	mu      sync.Mutex
	held    map[string]struct{}
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInFlight creates an in-memory tracker.
func NewInFlight(opts ...Option) Tracker {
	d := &inFlight{}
	for _, opt := range opts {
		opt(d)
	}
	d.held = make(map[string]struct{})
	return d
}

func (d *inFlight) Acquire(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.held[key]; ok {
		return false
	}
	if d.maxSize > 0 && len(d.held) >= d.maxSize {
		return false
	}
	d.held[key] = struct{}{}
	d.size.Add(1)
	return true
}

func (d *inFlight) Release(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.held[key]; ok {
		delete(d.held, key)
		d.size.Add(-1)
	}
}

// Size returns the number of keys currently held.
func (d *inFlight) Size() int64 {
	return d.size.Load()
}
