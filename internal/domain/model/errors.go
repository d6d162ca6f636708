package model

import "errors"

// Sentinel kinds shared by the service and its adapters.
var (
	// ErrModelUnavailable reports that a task's artifacts failed to load at startup.
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrInvalidRequest reports a payload that failed validation.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidPrediction reports a non-finite model output.
	ErrInvalidPrediction = errors.New("model produced a non-finite prediction")
)
