package predict

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"classy/internal/data"
	"classy/internal/ml"
	"classy/internal/sparse"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakePipeline answers every call from fixed functions and counts them.
type fakePipeline struct {
	caps     ml.Capabilities
	predict  func(X *sparse.CSR) []int
	proba    func(X *sparse.CSR) [][]float64
	decision func(X *sparse.CSR) [][]float64

	predictCalls  int
	probaCalls    int
	decisionCalls int
	seen          []*sparse.CSR
	closed        bool
}

func (f *fakePipeline) Name() string                  { return "fake" }
func (f *fakePipeline) Capabilities() ml.Capabilities { return f.caps }
func (f *fakePipeline) Close() error                  { f.closed = true; return nil }

func (f *fakePipeline) Predict(_ context.Context, X *sparse.CSR) ([]int, error) {
	f.predictCalls++
	f.seen = append(f.seen, X)
	return f.predict(X), nil
}

func (f *fakePipeline) PredictProba(_ context.Context, X *sparse.CSR) ([][]float64, error) {
	f.probaCalls++
	if !f.caps.Probability {
		return nil, ml.ErrNotSupported
	}
	return f.proba(X), nil
}

func (f *fakePipeline) DecisionFunction(_ context.Context, X *sparse.CSR) ([][]float64, error) {
	f.decisionCalls++
	if !f.caps.DecisionFunction {
		return nil, ml.ErrNotSupported
	}
	return f.decision(X), nil
}

// constPredict returns the same class for every row.
func constPredict(class int) func(*sparse.CSR) []int {
	return func(X *sparse.CSR) []int {
		out := make([]int, X.NRows)
		for i := range out {
			out[i] = class
		}
		return out
	}
}

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	Predictions  int
	InputRows    int
	InputSources int
	Scores       map[string]int
	Latencies    int
	ModelLoads   int
	Errors       int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Scores: make(map[string]int)}
}

func (m *MockMetrics) PredictionsAdd(n int)            { m.Predictions += n }
func (m *MockMetrics) InputRowsAdd(n int)              { m.InputRows += n }
func (m *MockMetrics) InputSourcesInc()                { m.InputSources++ }
func (m *MockMetrics) ScoresAdd(method string, n int)  { m.Scores[method] += n }
func (m *MockMetrics) PredictLatencyObserve(_ float64) { m.Latencies++ }
func (m *MockMetrics) ModelLoadSet(_ float64)          { m.ModelLoads++ }
func (m *MockMetrics) ErrorsInc()                      { m.Errors++ }

// testConfig returns a config that hands out p for any model path and
// counts how often a pipeline was loaded.
func testConfig(p ml.Pipeline, loads *int) Config {
	return Config{
		Logger:  zerolog.Nop(),
		Metrics: NewMockMetrics(),
		LoadPipeline: func(context.Context, string) (ml.Pipeline, error) {
			if loads != nil {
				*loads++
			}
			if p == nil {
				return nil, errors.New("no pipeline")
			}
			return p, nil
		},
	}
}

func writeIndex(t *testing.T, idx *data.Index) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, data.WriteIndex(path, idx))
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
