package scoring

import "github.com/okian/matchday/internal/domain/model"

type bounds struct {
	min, max int
}

// limits are the on-pitch bounds every legal formation satisfies
// (3-4-3 through 5-4-1).
var limits = map[model.Position]bounds{
	model.GK:  {min: 1, max: 1},
	model.DEF: {min: 3, max: 5},
	model.MID: {min: 3, max: 5},
	model.FWD: {min: 1, max: 3},
}

var outfield = [...]model.Position{model.DEF, model.MID, model.FWD}

// drainOrder lists, for an incoming substitute's position, which DNP queues
// to take a starter from. Own position first.
var drainOrder = map[model.Position][3]model.Position{
	model.DEF: {model.DEF, model.MID, model.FWD},
	model.MID: {model.MID, model.DEF, model.FWD},
	model.FWD: {model.FWD, model.MID, model.DEF},
}

// Formation is the on-pitch tally per position. It is a value type: With
// returns a new tally so a tentative substitution can be checked and then
// committed or dropped.
type Formation struct {
	GK  int `json:"gk"`
	DEF int `json:"def"`
	MID int `json:"mid"`
	FWD int `json:"fwd"`
}

// Count returns the tally for p.
func (f Formation) Count(p model.Position) int {
	switch p {
	case model.GK:
		return f.GK
	case model.DEF:
		return f.DEF
	case model.MID:
		return f.MID
	case model.FWD:
		return f.FWD
	}
	return 0
}

// With returns f with one more player in p.
func (f Formation) With(p model.Position) Formation {
	switch p {
	case model.GK:
		f.GK++
	case model.DEF:
		f.DEF++
	case model.MID:
		f.MID++
	case model.FWD:
		f.FWD++
	}
	return f
}

// Size is the number of players on the pitch.
func (f Formation) Size() int {
	return f.GK + f.DEF + f.MID + f.FWD
}

// WithinMax reports whether no position exceeds its maximum.
func (f Formation) WithinMax() bool {
	for p, b := range limits {
		if f.Count(p) > b.max {
			return false
		}
	}
	return true
}

// Shortfall is how many more outfield players are needed to reach every
// outfield minimum.
func (f Formation) Shortfall() int {
	short := 0
	for _, p := range outfield {
		if need := limits[p].min - f.Count(p); need > 0 {
			short += need
		}
	}
	return short
}

// Legal reports whether f is a complete, legal formation.
func (f Formation) Legal() bool {
	if !f.WithinMax() {
		return false
	}
	for p, b := range limits {
		if f.Count(p) < b.min {
			return false
		}
	}
	return true
}
