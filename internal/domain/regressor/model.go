// Package regressor holds the trained-model formats the service can run.
//
// Models are decoded from a JSON document whose "type" field selects the
// implementation. Decoded models are immutable and safe for concurrent use.
package regressor

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Supported model type tags.
const (
	TypeTreeEnsemble = "tree_ensemble"
	TypeLinear       = "linear"
)

// Model is a trained regressor.
type Model interface {
	// Predict maps one encoded feature vector to a raw prediction.
	Predict(x []float64) (float64, error)
	// FeatureNames returns the training-time feature order, if recorded.
	FeatureNames() []string
	// Metadata describes the model.
	Metadata() Metadata
	// Validate checks the model can consume vectors of n features.
	Validate(n int) error
}

// Metadata is the descriptive part of a model document.
type Metadata struct {
	Type         string             `json:"type"`
	Name         string             `json:"name,omitempty"`
	Version      string             `json:"version,omitempty"`
	FeatureNames []string           `json:"feature_names,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

type document struct {
	Metadata

	Aggregation string   `json:"aggregation"`
	BaseScore   float64  `json:"base_score"`
	Trees       [][]Node `json:"trees"`

	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Decode parses a model document.
func Decode(data []byte) (Model, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedModel, err)
	}
	switch doc.Type {
	case TypeTreeEnsemble:
		return newTreeEnsemble(doc)
	case TypeLinear:
		return newLinear(doc)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedModel)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, doc.Type)
	}
}

func (m Metadata) clone() Metadata {
	out := m
	out.FeatureNames = slices.Clone(m.FeatureNames)
	if m.Metrics != nil {
		out.Metrics = make(map[string]float64, len(m.Metrics))
		for k, v := range m.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

func (m Metadata) checkNames(n int) error {
	if len(m.FeatureNames) > 0 && len(m.FeatureNames) != n {
		return fmt.Errorf("%w: model lists %d feature names, schema has %d",
			ErrFeatureCount, len(m.FeatureNames), n)
	}
	return nil
}
