package features

import (
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// FallbackCode is returned for labels an encoder has never seen.
// It collides with the code of the first learned class.
const FallbackCode = 0

// Encoder maps categorical labels to the integer codes learned at training
// time. Labels are compared in Unicode NFC form.
type Encoder struct {
	codes   map[string]int
	classes []string
}

// NewEncoder builds an encoder from an ordered class list; the code of a
// class is its index.
func NewEncoder(classes []string) (*Encoder, error) {
	e := &Encoder{
		codes:   make(map[string]int, len(classes)),
		classes: make([]string, 0, len(classes)),
	}
	for i, c := range classes {
		n := norm.NFC.String(c)
		if _, dup := e.codes[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, c)
		}
		e.codes[n] = i
		e.classes = append(e.classes, n)
	}
	return e, nil
}

// NewEncoderFromCodes builds an encoder from an explicit label->code map.
func NewEncoderFromCodes(codes map[string]int) (*Encoder, error) {
	e := &Encoder{codes: make(map[string]int, len(codes))}
	for label, code := range codes {
		if code < 0 {
			return nil, fmt.Errorf("%w: %q=%d", ErrNegativeCode, label, code)
		}
		n := norm.NFC.String(label)
		if _, dup := e.codes[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateLabel, label)
		}
		e.codes[n] = code
		e.classes = append(e.classes, n)
	}
	sort.Slice(e.classes, func(i, j int) bool {
		ci, cj := e.codes[e.classes[i]], e.codes[e.classes[j]]
		if ci != cj {
			return ci < cj
		}
		return e.classes[i] < e.classes[j]
	})
	return e, nil
}

// Code returns the learned code for label. A nil encoder knows no labels.
func (e *Encoder) Code(label string) (int, bool) {
	if e == nil {
		return FallbackCode, false
	}
	code, ok := e.codes[norm.NFC.String(label)]
	if !ok {
		return FallbackCode, false
	}
	return code, true
}

// Len returns the number of known labels.
func (e *Encoder) Len() int {
	if e == nil {
		return 0
	}
	return len(e.codes)
}

// Classes returns the known labels ordered by code.
func (e *Encoder) Classes() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.classes))
	copy(out, e.classes)
	return out
}

// EncoderSet maps feature names to their encoders.
type EncoderSet map[string]*Encoder

// Missing returns the names that have no encoder in the set.
func (s EncoderSet) Missing(names []string) []string {
	var out []string
	for _, n := range names {
		if _, ok := s[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// EncodeCategorical returns the learned code for raw under feature. Unknown
// labels and absent encoders both yield FallbackCode with known=false.
func EncodeCategorical(set EncoderSet, feature, raw string) (code int, known bool) {
	return set[feature].Code(raw)
}
