// Package features turns prediction requests into the ordered numeric
// vectors the trained models expect.
//
// A Schema is an ordered list of typed features. Each feature carries its own
// resolver, so a vector built from a schema always has one value per feature
// in schema order.
package features

import (
	"fmt"
	"slices"
)

// Kind classifies how a feature value is resolved.
type Kind int

// Feature kinds.
const (
	KindCategorical Kind = iota + 1
	KindNumeric
	KindMonth
	KindDayOfWeek
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindCategorical:
		return "categorical"
	case KindNumeric:
		return "numeric"
	case KindMonth:
		return "month"
	case KindDayOfWeek:
		return "day_of_week"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Dated is implemented by requests that carry a raw date string.
type Dated interface {
	DateString() string
}

// Feature is one named slot of a Schema.
type Feature[R Dated] struct {
	Name  string
	Kind  Kind
	label func(R) string
	value func(R) float64
}

// Categorical declares a feature encoded through the EncoderSet.
func Categorical[R Dated](name string, get func(R) string) Feature[R] {
	return Feature[R]{Name: name, Kind: KindCategorical, label: get}
}

// Numeric declares a feature passed through as-is.
func Numeric[R Dated](name string, get func(R) float64) Feature[R] {
	return Feature[R]{Name: name, Kind: KindNumeric, value: get}
}

// Month declares the calendar month (1-12) derived from the request date.
func Month[R Dated]() Feature[R] {
	return Feature[R]{Name: "month", Kind: KindMonth}
}

// DayOfWeek declares the weekday (Monday=0) derived from the request date.
func DayOfWeek[R Dated]() Feature[R] {
	return Feature[R]{Name: "day_of_week", Kind: KindDayOfWeek}
}

// Schema is an immutable, ordered feature list for request type R.
type Schema[R Dated] struct {
	features []Feature[R]
	calendar bool
}

// NewSchema validates the feature definitions and builds a Schema.
func NewSchema[R Dated](features ...Feature[R]) (*Schema[R], error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: no features", ErrInvalidSchema)
	}
	s := &Schema[R]{features: slices.Clone(features)}
	seen := make(map[string]struct{}, len(features))
	for i, f := range features {
		if f.Name == "" {
			return nil, fmt.Errorf("%w: feature %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrInvalidSchema, f.Name)
		}
		seen[f.Name] = struct{}{}

		switch f.Kind {
		case KindCategorical:
			if f.label == nil || f.value != nil {
				return nil, fmt.Errorf("%w: %q needs a label resolver", ErrInvalidSchema, f.Name)
			}
		case KindNumeric:
			if f.value == nil || f.label != nil {
				return nil, fmt.Errorf("%w: %q needs a value resolver", ErrInvalidSchema, f.Name)
			}
		case KindMonth, KindDayOfWeek:
			if f.label != nil || f.value != nil {
				return nil, fmt.Errorf("%w: %q is derived from the date", ErrInvalidSchema, f.Name)
			}
			s.calendar = true
		default:
			return nil, fmt.Errorf("%w: %q has unknown kind %s", ErrInvalidSchema, f.Name, f.Kind)
		}
	}
	return s, nil
}

// MustSchema is NewSchema for package-level definitions; it panics on error.
func MustSchema[R Dated](features ...Feature[R]) *Schema[R] {
	s, err := NewSchema(features...)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of features.
func (s *Schema[R]) Len() int { return len(s.features) }

// Name returns the name of the i-th feature.
func (s *Schema[R]) Name(i int) string { return s.features[i].Name }

// Names returns the feature names in order.
func (s *Schema[R]) Names() []string {
	out := make([]string, len(s.features))
	for i, f := range s.features {
		out[i] = f.Name
	}
	return out
}

// CategoricalNames returns the names of categorical features in order.
func (s *Schema[R]) CategoricalNames() []string {
	var out []string
	for _, f := range s.features {
		if f.Kind == KindCategorical {
			out = append(out, f.Name)
		}
	}
	return out
}
