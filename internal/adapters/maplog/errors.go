package maplog

import "errors"

// Sentinel kinds for map log errors.
var (
	ErrLogUnreadable = errors.New("client log unreadable")
	ErrNoMapFound    = errors.New("no map generation line found")
)
