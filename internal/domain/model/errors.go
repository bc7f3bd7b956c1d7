package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	ErrEmptyName      = errors.New("record name must not be empty")
	ErrEmptyBatch     = errors.New("batch must contain at least one record")
	ErrMalformedBatch = errors.New("malformed batch")
)
