package service

import "errors"

// ErrNotStarted is returned by operations that need the workers running.
var ErrNotStarted = errors.New("service not started")
