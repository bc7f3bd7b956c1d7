package worker

import "errors"

// Sentinel kinds for dispatcher errors.
var (
	ErrPoolStopped = errors.New("dispatcher pool stopped")
)
