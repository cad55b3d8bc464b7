package pricing

import "errors"

// Sentinel kinds for pricing errors.
var (
	ErrFeedUnavailable = errors.New("price feed unavailable")
)
