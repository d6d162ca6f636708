package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/agripredict/agripredict/internal/domain/features"
)

// encoderSpec is one feature's entry in an encoder file: either the ordered
// class list of a label encoder, or an explicit label->code map.
type encoderSpec struct {
	classes []string
	codes   map[string]int
}

var errEncoderShape = errors.New("encoder must be a class list or a label->code map")

func (s *encoderSpec) UnmarshalJSON(b []byte) error {
	var classes []string
	if err := json.Unmarshal(b, &classes); err == nil {
		s.classes = classes
		return nil
	}
	var codes map[string]int
	if err := json.Unmarshal(b, &codes); err != nil {
		return fmt.Errorf("%w: %w", errEncoderShape, err)
	}
	s.codes = codes
	return nil
}

func (s *encoderSpec) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var classes []string
	if err := unmarshal(&classes); err == nil {
		s.classes = classes
		return nil
	}
	var codes map[string]int
	if err := unmarshal(&codes); err != nil {
		return fmt.Errorf("%w: %w", errEncoderShape, err)
	}
	s.codes = codes
	return nil
}

func (s encoderSpec) build() (*features.Encoder, error) {
	if s.codes != nil {
		return features.NewEncoderFromCodes(s.codes)
	}
	return features.NewEncoder(s.classes)
}

// LoadEncoders reads an encoder set. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func LoadEncoders(path string) (features.EncoderSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeEncoders(data, isYAML(path))
}

// DecodeEncoders parses an encoder document.
func DecodeEncoders(data []byte, asYAML bool) (features.EncoderSet, error) {
	var specs map[string]encoderSpec
	if asYAML {
		if err := yaml.Unmarshal(data, &specs); err != nil {
			return nil, err
		}
	} else {
		if err := json.Unmarshal(data, &specs); err != nil {
			return nil, err
		}
	}
	if len(specs) == 0 {
		return nil, ErrNoEncoders
	}

	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	sort.Strings(names)

	set := make(features.EncoderSet, len(specs))
	for _, name := range names {
		enc, err := specs[name].build()
		if err != nil {
			return nil, fmt.Errorf("encoder %q: %w", name, err)
		}
		set[name] = enc
	}
	return set, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
