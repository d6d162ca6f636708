package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBatchTooLarge = errors.New("batch too large")
	ErrEmptyBatch    = errors.New("requests must not be empty")
)
