package regressor

import "errors"

var (
	// ErrUnsupportedModel reports an unknown model type tag.
	ErrUnsupportedModel = errors.New("unsupported model type")
	// ErrMalformedModel reports a structurally invalid model document.
	ErrMalformedModel = errors.New("malformed model")
	// ErrFeatureCount reports an input vector or model sized for a different schema.
	ErrFeatureCount = errors.New("feature count mismatch")
)
