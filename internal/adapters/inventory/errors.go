package inventory

import "errors"

// Sentinel kinds for inventory errors.
var (
	ErrUpstreamUnavailable = errors.New("inventory upstream unavailable")
	ErrAuth                = errors.New("inventory auth failed")
)
