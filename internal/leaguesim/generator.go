package leaguesim

import (
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/okian/matchday/internal/domain/model"
)

// Generate builds a catalog, one game of events and one squad per manager.
// The catalog and events depend only on seed; manager ids are random uuids.
func Generate(seed uint64, managers int) *League {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	l := &League{Squads: make(map[string]model.Squad, managers)}
	byPos := map[model.Position][]int{}
	id := 1
	for _, g := range []struct {
		pos model.Position
		n   int
	}{{model.GK, catalogGK}, {model.DEF, catalogDEF}, {model.MID, catalogMID}, {model.FWD, catalogFWD}} {
		for range g.n {
			l.Players = append(l.Players, model.Player{ID: id, Position: g.pos})
			byPos[g.pos] = append(byPos[g.pos], id)
			id++
		}
	}

	l.Events = make(model.Events, len(l.Players))
	for _, p := range l.Players {
		if ev, ok := randomEvent(rng, p.Position); ok {
			l.Events[p.ID] = ev
		}
	}

	for range managers {
		l.Squads[uuid.NewString()] = randomSquad(rng, byPos)
	}
	return l
}

// randomSquad picks a legal starting XI and a bench of one goalkeeper and
// three outfield players, all distinct.
func randomSquad(rng *rand.Rand, byPos map[model.Position][]int) model.Squad {
	shape := formations[rng.IntN(len(formations))]
	picked := map[model.Position][]int{}
	for _, pos := range []model.Position{model.GK, model.DEF, model.MID, model.FWD} {
		shuffled := append([]int(nil), byPos[pos]...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		picked[pos] = shuffled
	}

	xi := []int{picked[model.GK][0]}
	xi = append(xi, picked[model.DEF][:shape[0]]...)
	xi = append(xi, picked[model.MID][:shape[1]]...)
	xi = append(xi, picked[model.FWD][:shape[2]]...)

	var spare []int
	spare = append(spare, picked[model.DEF][shape[0]:]...)
	spare = append(spare, picked[model.MID][shape[1]:]...)
	spare = append(spare, picked[model.FWD][shape[2]:]...)
	rng.Shuffle(len(spare), func(i, j int) { spare[i], spare[j] = spare[j], spare[i] })

	bench := append([]int{picked[model.GK][1]}, spare[:3]...)
	return model.Squad{StartingXI: xi, Bench: bench}
}

// randomEvent returns a plausible match record. About one player in ten has
// no record at all.
func randomEvent(rng *rand.Rand, pos model.Position) (model.MatchEvent, bool) {
	r := rng.Float64()
	var ev model.MatchEvent
	switch {
	case r < 0.10:
		return ev, false
	case r < 0.25:
		ev.Minutes = model.MinutesNone
		return ev, true
	case r < 0.45:
		ev.Minutes = model.Minutes1To59
	default:
		ev.Minutes = model.Minutes60Plus
	}

	goalChance := map[model.Position]float64{model.GK: 0.005, model.DEF: 0.06, model.MID: 0.15, model.FWD: 0.3}[pos]
	for rng.Float64() < goalChance && ev.Goals < 3 {
		ev.Goals++
	}
	for rng.Float64() < 0.15 && ev.Assists < 3 {
		ev.Assists++
	}
	ev.CleanSheet = ev.Minutes == model.Minutes60Plus && rng.Float64() < 0.3
	if pos == model.GK && rng.Float64() < 0.05 {
		ev.PenaltiesSaved = 1
	}
	if rng.Float64() < 0.02 {
		ev.PenaltiesMissed = 1
	}
	if rng.Float64() < 0.12 {
		ev.YellowCards = 1
	}
	if rng.Float64() < 0.02 {
		ev.RedCards = 1
	}
	if rng.Float64() < 0.01 {
		ev.OwnGoals = 1
	}
	return ev, true
}
