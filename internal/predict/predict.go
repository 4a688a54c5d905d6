// Package predict runs a fitted pipeline over index files or raw text and
// writes one tab separated line per prediction.
package predict

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"classy/internal/ml"

	"github.com/rs/zerolog"
)

// ErrUsage marks invalid flag combinations.
var ErrUsage = errors.New("usage error")

// Args are the options of a prediction run.
type Args struct {
	Text       bool     // raw text input instead of an inverted index
	Index      []string // index file (batch) or text files (stream)
	Model      string
	Scores     bool
	Labels     []string
	Vocabulary string
	CSV        bool
	Encoding   string
	Annotate   []int // 1-based, negative from the end
	Feature    []int
	NoID       bool
	IDSecond   bool
	IDLast     bool
}

// MetricsInterface defines the metrics recorded during a run.
type MetricsInterface interface {
	PredictionsAdd(int)
	InputRowsAdd(int)
	InputSourcesInc()
	ScoresAdd(method string, n int)
	PredictLatencyObserve(float64)
	ModelLoadSet(float64)
	ErrorsInc()
}

// Config wires a run to its environment.
type Config struct {
	Stdin   io.Reader
	Stdout  io.Writer
	Logger  zerolog.Logger
	Metrics MetricsInterface

	// Pipeline configures ml.Load when LoadPipeline is nil.
	Pipeline     ml.Options
	LoadPipeline func(ctx context.Context, path string) (ml.Pipeline, error)
}

func (c Config) withDefaults() Config {
	if c.Stdin == nil {
		c.Stdin = os.Stdin
	}
	if c.Stdout == nil {
		c.Stdout = os.Stdout
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
	if c.LoadPipeline == nil {
		opts := c.Pipeline
		opts.Logger = c.Logger
		c.LoadPipeline = func(ctx context.Context, path string) (ml.Pipeline, error) {
			return ml.Load(ctx, path, opts)
		}
	}
	return c
}

// PredictLabels runs the stream predictor for text input and the batch
// predictor otherwise.
func PredictLabels(ctx context.Context, args Args, cfg Config) error {
	cfg = cfg.withDefaults()
	cfg.Logger.Debug().Interface("args", args).Msg("Predict")

	var err error
	if args.Text {
		err = StreamPredictor(ctx, args, cfg)
	} else {
		err = BatchPredictor(ctx, args, cfg)
	}
	if err != nil {
		cfg.Metrics.ErrorsInc()
	}
	return err
}

func loadPipeline(ctx context.Context, path string, cfg Config) (ml.Pipeline, error) {
	start := time.Now()
	p, err := cfg.LoadPipeline(ctx, path)
	if err != nil {
		return nil, err
	}
	cfg.Metrics.ModelLoadSet(time.Since(start).Seconds())
	return p, nil
}

type nopMetrics struct{}

func (nopMetrics) PredictionsAdd(int)            {}
func (nopMetrics) InputRowsAdd(int)              {}
func (nopMetrics) InputSourcesInc()              {}
func (nopMetrics) ScoresAdd(string, int)         {}
func (nopMetrics) PredictLatencyObserve(float64) {}
func (nopMetrics) ModelLoadSet(float64)          {}
func (nopMetrics) ErrorsInc()                    {}
