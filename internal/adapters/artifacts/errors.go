package artifacts

import "errors"

var (
	// ErrArtifactLoad wraps every failure to read a task's model or encoders.
	ErrArtifactLoad = errors.New("artifact load failed")
	// ErrSchemaMismatch reports a model trained on a different feature list.
	ErrSchemaMismatch = errors.New("model does not match feature schema")
	// ErrNoEncoders reports an encoder file with no entries.
	ErrNoEncoders = errors.New("encoder set is empty")
)
