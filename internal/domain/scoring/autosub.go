package scoring

import "github.com/okian/matchday/internal/domain/model"

// RejectReason explains why a bench player who played was not brought on.
type RejectReason string

// Rejection reasons.
const (
	RejectMaxOnPitch         RejectReason = "max_on_pitch"
	RejectUnreachableMinimum RejectReason = "unreachable_minimum"
)

// Rejection records a bench player refused by a formation check.
type Rejection struct {
	PlayerID int          `json:"player_id"`
	Reason   RejectReason `json:"reason"`
}

// Credit is one player's contribution to the total.
type Credit struct {
	PlayerID   int            `json:"player_id"`
	Position   model.Position `json:"position"`
	Points     int            `json:"points"`
	Substitute bool           `json:"substitute"`
}

// Result is the outcome of scoring a squad for one game.
type Result struct {
	Total         int                  `json:"total"`
	SubstitutedIn []int                `json:"substituted_in"`
	Substitutions []model.Substitution `json:"substitutions"`
	Rejected      []Rejection          `json:"rejected"`
	Unresolved    []int                `json:"unresolved"`
	Formation     Formation            `json:"formation"`
	Credited      []Credit             `json:"credited"`
}

// dnpQueues holds starters who did not play, one ordered queue per
// outfield position, in starting-XI order.
type dnpQueues struct {
	byPos map[model.Position][]model.Player
	n     int
}

func (q *dnpQueues) push(p model.Player) {
	if q.byPos == nil {
		q.byPos = make(map[model.Position][]model.Player, len(outfield))
	}
	q.byPos[p.Position] = append(q.byPos[p.Position], p)
	q.n++
}

// drain removes the first starter from the first non-empty queue in the
// substitute's drain order.
func (q *dnpQueues) drain(sub model.Position) (model.Player, bool) {
	for _, p := range drainOrder[sub] {
		if queue := q.byPos[p]; len(queue) > 0 {
			q.byPos[p] = queue[1:]
			q.n--
			return queue[0], true
		}
	}
	return model.Player{}, false
}

// Autosub credits the starters who played and brings on bench players, in
// bench order, for starters who did not. starters and bench must already be
// resolved to catalog players; events missing a player mean did not play.
func Autosub(starters, bench []model.Player, events model.Events) Result {
	res := Result{
		SubstitutedIn: []int{},
		Substitutions: []model.Substitution{},
		Rejected:      []Rejection{},
		Unresolved:    []int{},
		Credited:      []Credit{},
	}
	var (
		f        Formation
		queues   dnpQueues
		used     = make(map[int]bool, len(starters)+len(bench))
		replaced = make(map[int]bool)
	)

	played := func(p model.Player) bool {
		ev, ok := events[p.ID]
		return ok && ev.Played()
	}
	credit := func(p model.Player, sub bool) {
		pts := CalculatePoints(p.Position, events[p.ID])
		res.Total += pts
		res.Credited = append(res.Credited, Credit{PlayerID: p.ID, Position: p.Position, Points: pts, Substitute: sub})
		used[p.ID] = true
	}
	bringOn := func(in model.Player, out int) {
		credit(in, true)
		res.SubstitutedIn = append(res.SubstitutedIn, in.ID)
		res.Substitutions = append(res.Substitutions, model.Substitution{Out: out, In: in.ID, Position: in.Position})
		replaced[out] = true
	}

	gk, hasGK := firstAt(starters, model.GK)
	benchGK, hasBenchGK := firstAt(bench, model.GK)
	switch {
	case hasGK && played(gk):
		credit(gk, false)
		f = f.With(model.GK)
	case hasBenchGK && played(benchGK):
		bringOn(benchGK, gk.ID)
		f = f.With(model.GK)
	}

	for _, p := range starters {
		if p.Position == model.GK {
			continue
		}
		if used[p.ID] {
			continue
		}
		if played(p) {
			credit(p, false)
			f = f.With(p.Position)
			continue
		}
		queues.push(p)
	}

	for _, b := range bench {
		if queues.n == 0 {
			break
		}
		if b.Position == model.GK || !b.Position.Valid() || used[b.ID] || !played(b) {
			continue
		}
		next := f.With(b.Position)
		if !next.WithinMax() {
			res.Rejected = append(res.Rejected, Rejection{PlayerID: b.ID, Reason: RejectMaxOnPitch})
			continue
		}
		if next.Shortfall() > queues.n-1 {
			res.Rejected = append(res.Rejected, Rejection{PlayerID: b.ID, Reason: RejectUnreachableMinimum})
			continue
		}
		out, _ := queues.drain(b.Position)
		f = next
		bringOn(b, out.ID)
	}

	for _, p := range starters {
		switch {
		case p.Position == model.GK && p.ID != gk.ID:
			// only the first goalkeeper in the XI is considered
		case used[p.ID] && !replaced[p.ID]:
		case !replaced[p.ID]:
			res.Unresolved = append(res.Unresolved, p.ID)
		}
	}
	res.Formation = f
	return res
}

// ScoreSquad resolves the squad's ids through positions, silently dropping
// ids the catalog does not know, and runs Autosub.
func ScoreSquad(squad model.Squad, positions map[int]model.Position, events model.Events) Result {
	seen := make(map[int]bool, len(squad.StartingXI)+len(squad.Bench))
	return Autosub(resolve(squad.StartingXI, positions, seen), resolve(squad.Bench, positions, seen), events)
}

// resolve maps ids to players, skipping unknown ids and ids already seen.
func resolve(ids []int, positions map[int]model.Position, seen map[int]bool) []model.Player {
	out := make([]model.Player, 0, len(ids))
	for _, id := range ids {
		pos, ok := positions[id]
		if !ok || !pos.Valid() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, model.Player{ID: id, Position: pos})
	}
	return out
}

func firstAt(players []model.Player, pos model.Position) (model.Player, bool) {
	for _, p := range players {
		if p.Position == pos {
			return p, true
		}
	}
	return model.Player{}, false
}
