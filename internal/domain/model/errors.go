package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownPosition = errors.New("unknown position")
	ErrInvalidSquad    = errors.New("invalid squad")
	ErrUnknownStatus   = errors.New("unknown game status")
)
