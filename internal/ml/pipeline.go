// Package ml loads fitted classification pipelines and exposes their
// prediction and scoring operations.
//
// Three backends are supported: a native linear pipeline read from a YAML or
// JSON file, a remote HTTP scoring service, and a persisted scikit-learn
// pipeline served by a Python child process. Which scoring methods a
// pipeline offers is resolved once at load time and reported through
// Capabilities.
package ml

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"classy/internal/sparse"

	"github.com/rs/zerolog"
)

var (
	// ErrNotSupported is returned when a pipeline is asked for a scoring
	// method it does not implement.
	ErrNotSupported = errors.New("operation not supported by pipeline")
	// ErrUnknownModel is returned when no backend recognises a model path.
	ErrUnknownModel = errors.New("unrecognised model reference")
)

// Capabilities lists the optional scoring methods of a pipeline.
type Capabilities struct {
	Probability      bool `json:"probability" yaml:"probability"`
	DecisionFunction bool `json:"decision_function" yaml:"decision_function"`
}

// Pipeline is a fitted classifier. It is read-only once loaded.
type Pipeline interface {
	// Name identifies the pipeline in logs.
	Name() string
	// Capabilities reports which scoring methods are available.
	Capabilities() Capabilities
	// Predict returns one class value per row of X.
	Predict(ctx context.Context, X *sparse.CSR) ([]int, error)
	// PredictProba returns per-class probabilities for each row.
	PredictProba(ctx context.Context, X *sparse.CSR) ([][]float64, error)
	// DecisionFunction returns confidence values for each row; binary
	// classifiers return a single value per row.
	DecisionFunction(ctx context.Context, X *sparse.CSR) ([][]float64, error)
	// Close releases backend resources.
	Close() error
}

// Options configures pipeline backends.
type Options struct {
	Timeout    time.Duration // per request, remote and python backends
	Retries    int           // remote backend
	PythonPath string        // python backend; discovered when empty
	Logger     zerolog.Logger
}

// Load opens the pipeline referenced by path. URLs select the remote
// backend, .pkl/.joblib files the python backend and .yaml/.yml/.json files
// the native linear backend.
func Load(ctx context.Context, path string, opts Options) (Pipeline, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var (
		p   Pipeline
		err error
	)

	switch {
	case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
		p, err = NewRemote(ctx, path, opts)
	default:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			p, err = LoadLinear(path)
		case ".pkl", ".pickle", ".joblib":
			p, err = NewPython(ctx, path, opts)
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownModel, path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline %s: %w", path, err)
	}

	caps := p.Capabilities()
	opts.Logger.Info().
		Str("model_path", path).
		Str("pipeline", p.Name()).
		Bool("predict_proba", caps.Probability).
		Bool("decision_function", caps.DecisionFunction).
		Msg("Pipeline loaded")

	return p, nil
}
