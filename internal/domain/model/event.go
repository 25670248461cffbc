package model

// MinutesBucket is the coarse playing-time band recorded for a player.
type MinutesBucket string

// Minutes buckets.
const (
	MinutesNone   MinutesBucket = "0"
	Minutes1To59  MinutesBucket = "1_59"
	Minutes60Plus MinutesBucket = "60+"
)

// MatchEvent is one player's record for one game. The zero value (after
// Normalize) is the did-not-play record.
type MatchEvent struct {
	Minutes         MinutesBucket `json:"minutes"`
	Goals           int           `json:"goals"`
	Assists         int           `json:"assists"`
	CleanSheet      bool          `json:"clean_sheet"`
	PenaltiesMissed int           `json:"penalties_missed"`
	PenaltiesSaved  int           `json:"penalties_saved"`
	YellowCards     int           `json:"yellow_cards"`
	RedCards        int           `json:"red_cards"`
	OwnGoals        int           `json:"own_goals"`
}

// DidNotPlay returns the default record used for players with no entry.
func DidNotPlay() MatchEvent {
	return MatchEvent{Minutes: MinutesNone}
}

// Played reports whether the player took the field.
func (e MatchEvent) Played() bool {
	return e.Minutes == Minutes1To59 || e.Minutes == Minutes60Plus
}

// Normalize clamps negative counters to zero and maps an unknown minutes
// bucket to "0". The scoring engine assumes normalized input.
func (e MatchEvent) Normalize() MatchEvent {
	switch e.Minutes {
	case MinutesNone, Minutes1To59, Minutes60Plus:
	default:
		e.Minutes = MinutesNone
	}
	e.Goals = nonNegative(e.Goals)
	e.Assists = nonNegative(e.Assists)
	e.PenaltiesMissed = nonNegative(e.PenaltiesMissed)
	e.PenaltiesSaved = nonNegative(e.PenaltiesSaved)
	e.YellowCards = nonNegative(e.YellowCards)
	e.RedCards = nonNegative(e.RedCards)
	e.OwnGoals = nonNegative(e.OwnGoals)
	return e
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// Events maps player id to that player's record for a single game.
type Events map[int]MatchEvent
