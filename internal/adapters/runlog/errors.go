package runlog

import "errors"

// Sentinel kinds for runlog errors.
var (
	ErrAppend = errors.New("log append failed")
	ErrRead   = errors.New("log read failed")
)
