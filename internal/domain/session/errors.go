package session

import "errors"

// Sentinel kinds for session lifecycle errors.
var (
	ErrAlreadyActive = errors.New("session already active")
	ErrNotActive     = errors.New("no active session")
)
