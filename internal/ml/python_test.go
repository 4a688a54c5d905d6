package ml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"classy/internal/sparse"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInterpreter answers the line protocol without Python: it ignores its
// script and model arguments and replies to each op with a fixed result.
const fakeInterpreter = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"op":"describe"'*)
      echo '{"result":{"name":"LinearSVC","classes":[0,1],"probability":false,"decision_function":true}}' ;;
    *'"op":"predict"'*)
      echo '{"result":[1.0]}' ;;
    *'"op":"decision_function"'*)
      echo '{"result":[0.75]}' ;;
    *)
      echo '{"error":"unknown op"}' ;;
  esac
done
`

func newFakePython(t *testing.T, script string) (python, model string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter needs /bin/sh")
	}

	dir := t.TempDir()
	python = filepath.Join(dir, "python3")
	require.NoError(t, os.WriteFile(python, []byte(script), 0o755))

	model = filepath.Join(dir, "model.joblib")
	require.NoError(t, os.WriteFile(model, []byte("not really a pickle"), 0o600))
	return python, model
}

func TestPythonPipeline_Protocol(t *testing.T) {
	python, model := newFakePython(t, fakeInterpreter)

	p, err := Load(context.Background(), model, Options{
		PythonPath: python,
		Timeout:    5 * time.Second,
		Logger:     zerolog.Nop(),
	})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "LinearSVC", p.Name())
	assert.Equal(t, Capabilities{DecisionFunction: true}, p.Capabilities())

	X := sparse.Single(sparse.Vector{Indices: []int{1}, Values: []float64{2}}, 3)

	pred, err := p.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, pred)

	dec, err := p.DecisionFunction(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.75}}, dec)

	_, err = p.PredictProba(context.Background(), X)
	assert.True(t, errors.Is(err, ErrNotSupported))
}

func TestPythonPipeline_ScriptRemovedOnClose(t *testing.T) {
	python, model := newFakePython(t, fakeInterpreter)

	p, err := NewPython(context.Background(), model, Options{PythonPath: python, Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.True(t, p.ownScript)

	script := p.scriptPath
	_, err = os.Stat(script)
	require.NoError(t, err)

	require.NoError(t, p.Close())
	_, err = os.Stat(script)
	assert.True(t, os.IsNotExist(err))
}

func TestPythonPipeline_Timeout(t *testing.T) {
	python, model := newFakePython(t, "#!/bin/sh\nsleep 10\n")

	start := time.Now()
	_, err := NewPython(context.Background(), model, Options{PythonPath: python, Timeout: 200 * time.Millisecond, Logger: zerolog.Nop()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	assert.Less(t, time.Since(start), 9*time.Second)
}

func TestPythonPipeline_ProcessExits(t *testing.T) {
	python, model := newFakePython(t, "#!/bin/sh\necho boom >&2\nexit 3\n")

	_, err := NewPython(context.Background(), model, Options{PythonPath: python, Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestNewPython_MissingModel(t *testing.T) {
	_, err := NewPython(context.Background(), filepath.Join(t.TempDir(), "nope.pkl"), Options{Logger: zerolog.Nop()})
	assert.Error(t, err)
}

func TestPythonPipeline_NonIntegerClasses(t *testing.T) {
	// String class labels are reported as an empty class list.
	assert.Contains(t, inferenceScript, "except (TypeError, ValueError):\n                    classes = []")

	script := strings.Replace(fakeInterpreter, `"classes":[0,1]`, `"classes":[]`, 1)
	python, model := newFakePython(t, script)

	p, err := NewPython(context.Background(), model, Options{PythonPath: python, Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer p.Close()

	assert.Empty(t, p.desc.Classes)
	assert.Equal(t, "LinearSVC", p.Name())
}
