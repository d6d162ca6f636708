package features

import "errors"

var (
	// ErrInvalidSchema reports a malformed schema definition.
	ErrInvalidSchema = errors.New("invalid feature schema")
	// ErrDuplicateLabel reports two encoder entries that normalize to the same label.
	ErrDuplicateLabel = errors.New("duplicate encoder label")
	// ErrNegativeCode reports an encoder code below zero.
	ErrNegativeCode = errors.New("negative encoder code")
)
