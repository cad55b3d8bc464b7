package diff

import "errors"

// Sentinel kinds for diff errors.
var (
	ErrSnapshotOrder = errors.New("post snapshot predates pre snapshot")
)
