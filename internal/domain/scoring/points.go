// Package scoring turns match events into fantasy points and resolves
// automatic substitutions for a squad.
//
// Everything here is pure: no I/O, no shared state, safe for concurrent use.
// Inputs are expected to be normalized (see model.MatchEvent.Normalize).
package scoring

import "github.com/okian/matchday/internal/domain/model"

// Flat per-event values, independent of position.
const (
	assistPoints        = 3
	penaltyMissedPoints = -2
	yellowCardPoints    = -1
	redCardPoints       = -3
	ownGoalPoints       = -2
)

var minutesPoints = map[model.MinutesBucket]int{
	model.Minutes1To59:  1,
	model.Minutes60Plus: 2,
}

var goalPoints = map[model.Position]int{
	model.GK:  10,
	model.DEF: 6,
	model.MID: 5,
	model.FWD: 4,
}

var cleanSheetPoints = map[model.Position]int{
	model.GK:  4,
	model.DEF: 4,
	model.MID: 1,
}

// Only goalkeepers are rewarded for saved penalties.
var penaltySavedPoints = map[model.Position]int{
	model.GK: 3,
}

// CalculatePoints returns the fantasy points a player in position earns
// from ev. The result is not clamped and may be negative.
func CalculatePoints(position model.Position, ev model.MatchEvent) int {
	pts := minutesPoints[ev.Minutes]
	if ev.Goals > 0 {
		pts += ev.Goals * goalPoints[position]
	}
	pts += ev.Assists * assistPoints
	if ev.CleanSheet {
		pts += cleanSheetPoints[position]
	}
	pts += ev.PenaltiesSaved * penaltySavedPoints[position]
	pts += ev.PenaltiesMissed * penaltyMissedPoints
	pts += ev.YellowCards * yellowCardPoints
	pts += ev.RedCards * redCardPoints
	pts += ev.OwnGoals * ownGoalPoints
	return pts
}
