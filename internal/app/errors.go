package app

import "errors"

// Sentinel kinds for flow sequencing errors.
var (
	ErrNoActiveUnit = errors.New("no unit in flight; begin a unit first")
)
