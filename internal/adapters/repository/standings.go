package repository

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/okian/matchday/internal/domain/types"
	"github.com/okian/matchday/pkg/metrics"
)

// Treap-based season standings.
//
// Ordering: points DESC, then manager id ASC. "less" means ranks earlier, so
// in-order traversal yields the table from top to bottom. Ties share a rank
// (standard competition ranking: 1, 1, 3).

type node struct {
	id     string
	points int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func less(aPoints int, aID string, bPoints int, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, points int, prio uint64) *node {
	if n == nil {
		return &node{id: id, points: points, prio: prio, size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points int) *node {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	case less(points, id, n.points, n.id):
		n.left = deleteNode(n.left, id, points)
	default:
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// countAbove returns how many managers have strictly more than points.
func countAbove(n *node, points int) int {
	c := 0
	for n != nil {
		if n.points > points {
			c += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return c
}

// collectTopN appends up to limit entries in table order.
func collectTopN(n *node, limit int, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, types.Entry{ManagerID: n.id, Points: n.points})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// Standings is the in-memory ranked table of season totals.
type Standings struct {
	mu     sync.RWMutex
	root   *node
	points map[string]int
}

// NewStandings returns an empty table.
func NewStandings() *Standings {
	return &Standings{points: make(map[string]int)}
}

// Set records manager's season total, replacing any previous value.
func (s *Standings) Set(ctx context.Context, managerID string, points int) {
	s.mu.Lock()
	if old, ok := s.points[managerID]; ok {
		if old == points {
			s.mu.Unlock()
			return
		}
		s.root = deleteNode(s.root, managerID, old)
	}
	s.points[managerID] = points
	s.root = insert(s.root, managerID, points, rand.Uint64())
	count := len(s.points)
	s.mu.Unlock()

	metrics.RecordStandingsUpdate()
	metrics.UpdateManagersTotal(count)
}

// Load replaces the whole table.
func (s *Standings) Load(ctx context.Context, totals map[string]int) {
	s.mu.Lock()
	s.root = nil
	s.points = make(map[string]int, len(totals))
	for id, pts := range totals {
		s.points[id] = pts
		s.root = insert(s.root, id, pts, rand.Uint64())
	}
	count := len(s.points)
	s.mu.Unlock()

	metrics.UpdateManagersTotal(count)
}

// Rank returns the manager's rank and total in O(log n).
// Returns ErrNotFound if the manager has no total.
func (s *Standings) Rank(ctx context.Context, managerID string) (types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pts, ok := s.points[managerID]
	if !ok {
		metrics.RecordErrorByComponent("standings", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{Rank: countAbove(s.root, pts) + 1, ManagerID: managerID, Points: pts}, nil
}

// TopN returns the first n rows of the table.
func (s *Standings) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("standings", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.points)))
	collectTopN(s.root, n, &out)
	for i := range out {
		if i > 0 && out[i].Points == out[i-1].Points {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out, nil
}

// Count returns the number of managers in the table.
func (s *Standings) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points)
}
