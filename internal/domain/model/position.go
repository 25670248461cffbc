// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Position is a player's squad role.
type Position string

// Supported positions.
const (
	GK  Position = "GK"
	DEF Position = "DEF"
	MID Position = "MID"
	FWD Position = "FWD"
)

// Valid reports whether p is one of the four known positions.
func (p Position) Valid() bool {
	switch p {
	case GK, DEF, MID, FWD:
		return true
	}
	return false
}

// ParsePosition accepts a position name in any case.
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPosition, s)
	}
	return p, nil
}

// Player is the catalog reference for a player.
type Player struct {
	ID       int      `json:"id"`
	Position Position `json:"position"`
}
