// Package artifacts loads trained models and their categorical encoders
// from disk.
//
// Artifacts are read once at startup and never mutated afterwards. A task
// whose files fail to load is reported as unavailable rather than stopping
// the process.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/agripredict/agripredict/internal/domain/features"
	"github.com/agripredict/agripredict/internal/domain/model"
	"github.com/agripredict/agripredict/internal/domain/regressor"
	"github.com/agripredict/agripredict/pkg/logger"
)

// Artifacts is the immutable model+encoder pair serving one task.
type Artifacts struct {
	Task         model.Task
	Model        regressor.Model
	Encoders     features.EncoderSet
	ModelPath    string
	EncodersPath string
	LoadedAt     time.Time
}

// Source describes where one task's artifacts live and what they must fit.
type Source struct {
	Task         model.Task
	ModelPath    string
	EncodersPath string
	// Features is the schema order the model must consume.
	Features []string
	// Categorical lists the features that should have an encoder.
	Categorical []string
}

// PriceSource describes price artifacts that must fit features.PriceSchema.
func PriceSource(modelPath, encodersPath string) Source {
	return Source{
		Task:         model.TaskPrice,
		ModelPath:    modelPath,
		EncodersPath: encodersPath,
		Features:     features.PriceSchema.Names(),
		Categorical:  features.PriceSchema.CategoricalNames(),
	}
}

// DemandSource describes demand artifacts that must fit features.DemandSchema.
func DemandSource(modelPath, encodersPath string) Source {
	return Source{
		Task:         model.TaskDemand,
		ModelPath:    modelPath,
		EncodersPath: encodersPath,
		Features:     features.DemandSchema.Names(),
		Categorical:  features.DemandSchema.CategoricalNames(),
	}
}

// Load deserializes a model and its encoder set. Any failure wraps
// ErrArtifactLoad.
func Load(ctx context.Context, modelPath, encodersPath string) (*Artifacts, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactLoad, err)
	}
	m, err := LoadModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: model %s: %w", ErrArtifactLoad, modelPath, err)
	}
	set, err := LoadEncoders(encodersPath)
	if err != nil {
		return nil, fmt.Errorf("%w: encoders %s: %w", ErrArtifactLoad, encodersPath, err)
	}
	return &Artifacts{
		Model:        m,
		Encoders:     set,
		ModelPath:    modelPath,
		EncodersPath: encodersPath,
		LoadedAt:     time.Now(),
	}, nil
}

// LoadModel reads and decodes a model document.
func LoadModel(path string) (regressor.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return regressor.Decode(data)
}

// LoadTask loads src and checks the model against the schema: recorded
// feature names must equal src.Features, and the model must accept vectors
// of that length.
func LoadTask(ctx context.Context, src Source) (*Artifacts, error) {
	a, err := Load(ctx, src.ModelPath, src.EncodersPath)
	if err != nil {
		return nil, err
	}
	a.Task = src.Task

	if names := a.Model.FeatureNames(); len(names) > 0 && !slices.Equal(names, src.Features) {
		return nil, fmt.Errorf("%w: %w: model features %v, schema %v",
			ErrArtifactLoad, ErrSchemaMismatch, names, src.Features)
	}
	if err := a.Model.Validate(len(src.Features)); err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrArtifactLoad, ErrSchemaMismatch, err)
	}
	return a, nil
}

// LoadAvailable is LoadTask for process startup: failures are logged and
// reported as a nil result so the task is served as unavailable.
func LoadAvailable(ctx context.Context, log logger.Logger, src Source) *Artifacts {
	a, err := LoadTask(ctx, src)
	if err != nil {
		log.Error(ctx, "failed to load artifacts",
			logger.String("task", src.Task.String()),
			logger.String("model_path", src.ModelPath),
			logger.String("encoders_path", src.EncodersPath),
			logger.Error(err))
		return nil
	}
	if missing := a.MissingEncoders(src.Categorical); len(missing) > 0 {
		log.Warn(ctx, "categorical features without encoder will always use the fallback code",
			logger.String("task", src.Task.String()),
			logger.Any("features", missing))
	}
	meta := a.Model.Metadata()
	log.Info(ctx, "artifacts loaded",
		logger.String("task", src.Task.String()),
		logger.String("model_type", meta.Type),
		logger.String("model_name", meta.Name),
		logger.String("model_version", meta.Version),
		logger.Int("encoders", len(a.Encoders)))
	return a
}

// MissingEncoders returns the categorical features with no encoder.
func (a *Artifacts) MissingEncoders(categorical []string) []string {
	return a.Encoders.Missing(categorical)
}

// Info summarizes loaded artifacts for status endpoints.
type Info struct {
	Task         string              `json:"task"`
	Loaded       bool                `json:"loaded"`
	Model        *regressor.Metadata `json:"model,omitempty"`
	Encoders     map[string]int      `json:"encoders,omitempty"`
	ModelPath    string              `json:"model_path,omitempty"`
	EncodersPath string              `json:"encoders_path,omitempty"`
	LoadedAt     *time.Time          `json:"loaded_at,omitempty"`
}

// Describe reports the state of a (possibly nil) artifact pair.
func Describe(task model.Task, a *Artifacts) Info {
	if a == nil {
		return Info{Task: task.String()}
	}
	sizes := make(map[string]int, len(a.Encoders))
	for name, enc := range a.Encoders {
		sizes[name] = enc.Len()
	}
	meta := a.Model.Metadata()
	loadedAt := a.LoadedAt
	return Info{
		Task:         task.String(),
		Loaded:       true,
		Model:        &meta,
		Encoders:     sizes,
		ModelPath:    a.ModelPath,
		EncodersPath: a.EncodersPath,
		LoadedAt:     &loadedAt,
	}
}
