package valuation

import "errors"

// Sentinel kinds for valuation errors.
var (
	ErrPricing = errors.New("pricing lookup failed")
)
