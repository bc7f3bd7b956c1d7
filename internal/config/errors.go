package config

import "errors"

// Sentinel kinds for config errors.
var (
	ErrInvalidConfig = errors.New("invalid configuration")
)
