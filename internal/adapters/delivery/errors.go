package delivery

import "errors"

// Sentinel kinds for delivery errors.
var (
	ErrNoEndpoint = errors.New("delivery endpoint must not be empty")
)
