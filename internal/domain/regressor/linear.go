package regressor

import (
	"fmt"
	"math"
	"slices"
)

// Linear is intercept + coefficients . x.
type Linear struct {
	meta         Metadata
	intercept    float64
	coefficients []float64
}

func newLinear(doc document) (*Linear, error) {
	if len(doc.Coefficients) == 0 {
		return nil, fmt.Errorf("%w: no coefficients", ErrMalformedModel)
	}
	for i, c := range append([]float64{doc.Intercept}, doc.Coefficients...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: non-finite coefficient %d", ErrMalformedModel, i)
		}
	}
	return &Linear{
		meta:         doc.Metadata.clone(),
		intercept:    doc.Intercept,
		coefficients: slices.Clone(doc.Coefficients),
	}, nil
}

// Predict implements Model.
func (m *Linear) Predict(x []float64) (float64, error) {
	if len(x) != len(m.coefficients) {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrFeatureCount, len(x), len(m.coefficients))
	}
	y := m.intercept
	for i, c := range m.coefficients {
		y += c * x[i]
	}
	return y, nil
}

// FeatureNames implements Model.
func (m *Linear) FeatureNames() []string { return slices.Clone(m.meta.FeatureNames) }

// Metadata implements Model.
func (m *Linear) Metadata() Metadata { return m.meta.clone() }

// Validate implements Model.
func (m *Linear) Validate(n int) error {
	if err := m.meta.checkNames(n); err != nil {
		return err
	}
	if len(m.coefficients) != n {
		return fmt.Errorf("%w: %d coefficients, schema has %d", ErrFeatureCount, len(m.coefficients), n)
	}
	return nil
}
