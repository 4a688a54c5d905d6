package ml

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"classy/internal/sparse"

	"github.com/rs/zerolog"
)

const inferenceScriptName = "classy_inference.py"

// PythonPipeline serves a persisted scikit-learn pipeline from a long-lived
// Python child process. Requests and responses are single JSON lines on the
// child's stdin and stdout.
type PythonPipeline struct {
	modelPath  string
	pythonPath string
	scriptPath string
	ownScript  bool
	timeout    time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan lineResult
	quit   chan struct{}
	stderr syncBuffer
	broken error
	desc   Description
	log    zerolog.Logger
}

// syncBuffer collects child stderr while requests read it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type lineResult struct {
	line []byte
	err  error
}

// NewPython starts the inference process for the model at path and asks
// it which scoring methods the pipeline offers.
func NewPython(ctx context.Context, path string, opts Options) (*PythonPipeline, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not accessible: %w", err)
	}

	p := &PythonPipeline{
		modelPath: path,
		timeout:   opts.Timeout,
		log:       opts.Logger.With().Str("backend", "python").Str("model_path", path).Logger(),
	}

	p.pythonPath = opts.PythonPath
	if p.pythonPath == "" {
		pythonPath, err := findPython(p.log)
		if err != nil {
			return nil, err
		}
		p.pythonPath = pythonPath
	}

	if err := p.locateScript(); err != nil {
		return nil, err
	}

	if err := p.start(ctx); err != nil {
		p.removeScript()
		return nil, err
	}

	raw, err := p.request(ctx, map[string]string{"op": "describe"})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("describe failed: %w", err)
	}
	if err := json.Unmarshal(raw, &p.desc); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to parse description: %w", err)
	}
	if p.desc.Name == "" {
		p.desc.Name = filepath.Base(path)
	}

	return p, nil
}

// locateScript uses an inference script shipped next to the model or in a
// sibling scripts directory, and writes the embedded one otherwise.
func (p *PythonPipeline) locateScript() error {
	dir := filepath.Dir(p.modelPath)
	candidates := []string{
		filepath.Join(dir, inferenceScriptName),
		filepath.Join(filepath.Dir(dir), "scripts", inferenceScriptName),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			p.scriptPath = c
			return nil
		}
	}

	f, err := os.CreateTemp("", "classy-inference-*.py")
	if err != nil {
		return fmt.Errorf("failed to create inference script: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(inferenceScript); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to write inference script: %w", err)
	}
	p.scriptPath = f.Name()
	p.ownScript = true
	return nil
}

func (p *PythonPipeline) start(ctx context.Context) error {
	p.cmd = exec.CommandContext(ctx, p.pythonPath, p.scriptPath, p.modelPath)
	p.cmd.Stderr = &p.stderr
	p.cmd.WaitDelay = time.Second

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", p.pythonPath, err)
	}
	p.stdin = stdin

	// One reader goroutine owns stdout so a request can time out without
	// leaving a half-read line behind.
	p.lines = make(chan lineResult)
	p.quit = make(chan struct{})
	go func() {
		defer close(p.lines)
		r := bufio.NewReaderSize(stdout, 1<<20)
		for {
			line, err := r.ReadBytes('\n')
			select {
			case p.lines <- lineResult{line: line, err: err}:
			case <-p.quit:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	p.log.Debug().
		Str("python_path", p.pythonPath).
		Str("script_path", p.scriptPath).
		Msg("Inference process started")
	return nil
}

func (p *PythonPipeline) request(ctx context.Context, req interface{}) (json.RawMessage, error) {
	if p.broken != nil {
		return nil, p.broken
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	body = append(body, '\n')

	if _, err := p.stdin.Write(body); err != nil {
		return nil, fmt.Errorf("failed to send request: %w, stderr: %s", err, p.stderr.String())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var res lineResult
	select {
	case r, ok := <-p.lines:
		if !ok {
			return nil, fmt.Errorf("inference process exited, stderr: %s", p.stderr.String())
		}
		res = r
	case <-ctx.Done():
		// a late answer would be read by the next request
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			p.log.Error().Dur("timeout", p.timeout).Msg("Python inference timed out")
			p.broken = fmt.Errorf("prediction timeout after %v", p.timeout)
		} else {
			p.broken = ctx.Err()
		}
		return nil, p.broken
	}
	if res.err != nil {
		return nil, fmt.Errorf("inference process failed: %w, stderr: %s", res.err, p.stderr.String())
	}

	var resp Response
	if err := json.Unmarshal(res.line, &resp); err != nil {
		p.log.Error().
			Err(err).
			Str("stdout", string(res.line)).
			Str("stderr", p.stderr.String()).
			Msg("Failed to parse inference response")
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.Error != "" {
		if strings.Contains(resp.Error, "not supported") {
			return nil, fmt.Errorf("%s: %w", resp.Error, ErrNotSupported)
		}
		return nil, fmt.Errorf("python inference error: %s", resp.Error)
	}
	return resp.Result, nil
}

func (p *PythonPipeline) Name() string {
	return p.desc.Name
}

func (p *PythonPipeline) Capabilities() Capabilities {
	return p.desc.Capabilities
}

func (p *PythonPipeline) Predict(ctx context.Context, X *sparse.CSR) ([]int, error) {
	raw, err := p.request(ctx, newMatrixRequest("predict", X))
	if err != nil {
		return nil, err
	}
	return parsePredictions(raw)
}

func (p *PythonPipeline) PredictProba(ctx context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.desc.Probability {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodProba, ErrNotSupported)
	}
	raw, err := p.request(ctx, newMatrixRequest(MethodProba, X))
	if err != nil {
		return nil, err
	}
	return parseScores(raw)
}

func (p *PythonPipeline) DecisionFunction(ctx context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.desc.DecisionFunction {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodDecision, ErrNotSupported)
	}
	raw, err := p.request(ctx, newMatrixRequest(MethodDecision, X))
	if err != nil {
		return nil, err
	}
	return parseScores(raw)
}

// Close ends the child process and removes a generated script.
func (p *PythonPipeline) Close() error {
	defer p.removeScript()

	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	close(p.quit)
	p.stdin.Close()
	if p.broken != nil {
		p.cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		p.cmd = nil
		if err != nil {
			p.log.Debug().Err(err).Msg("Inference process exited")
		}
		return nil
	case <-time.After(5 * time.Second):
		p.cmd.Process.Kill()
		<-done
		p.cmd = nil
		return fmt.Errorf("inference process did not exit, killed")
	}
}

func (p *PythonPipeline) removeScript() {
	if p.ownScript && p.scriptPath != "" {
		os.Remove(p.scriptPath)
		p.ownScript = false
	}
}

// findPython looks for a Python 3 with scikit-learn in the active virtual
// environment, in venvs next to the executable and finally on PATH.
func findPython(log zerolog.Logger) (string, error) {
	const probe = "import sys, sklearn, joblib, scipy; print('Python', sys.version)"

	usable := func(path string) bool {
		out, err := exec.Command(path, "-c", probe).Output()
		return err == nil && strings.Contains(string(out), "Python 3")
	}

	if venvPath := os.Getenv("VIRTUAL_ENV"); venvPath != "" {
		for _, c := range []string{
			filepath.Join(venvPath, "bin", "python3"),
			filepath.Join(venvPath, "bin", "python"),
			filepath.Join(venvPath, "Scripts", "python.exe"),
		} {
			if _, err := os.Stat(c); err == nil && usable(c) {
				log.Info().Str("python_path", c).Msg("Using virtual environment Python")
				return c, nil
			}
		}
	}

	if execPath, err := os.Executable(); err == nil {
		execDir := filepath.Dir(execPath)
		for _, root := range []string{execDir, filepath.Dir(execDir)} {
			for _, c := range []string{
				filepath.Join(root, "venv", "bin", "python3"),
				filepath.Join(root, ".venv", "bin", "python3"),
				filepath.Join(root, "venv", "Scripts", "python.exe"),
			} {
				if _, err := os.Stat(c); err == nil && usable(c) {
					log.Info().Str("python_path", c).Msg("Using project virtual environment Python")
					return c, nil
				}
			}
		}
	}

	for _, name := range []string{"python3", "python"} {
		if path, err := exec.LookPath(name); err == nil && usable(path) {
			log.Info().Str("python_path", path).Msg("Using system Python")
			return path, nil
		}
	}

	return "", fmt.Errorf("no Python 3 with scikit-learn, joblib and scipy found; set CLASSY_PYTHON")
}

const inferenceScript = `#!/usr/bin/env python3
"""Serve a persisted scikit-learn pipeline over line-delimited JSON."""
import json
import sys

import joblib
import numpy as np
from scipy.sparse import csr_matrix


def to_matrix(req):
    data, indices, indptr = [], [], [0]
    for row in req["rows"]:
        indices.extend(row.get("indices") or [])
        data.extend(row.get("values") or [])
        indptr.append(len(indices))
    shape = (len(req["rows"]), req["n_features"])
    return csr_matrix((data, indices, indptr), shape=shape)


def main():
    model = joblib.load(sys.argv[1])
    out = sys.stdout
    for line in sys.stdin:
        line = line.strip()
        if not line:
            continue
        try:
            req = json.loads(line)
            op = req.get("op")
            if op == "describe":
                try:
                    classes = [int(c) for c in getattr(model, "classes_", [])]
                except (TypeError, ValueError):
                    classes = []
                result = {
                    "name": type(model).__name__,
                    "classes": classes,
                    "probability": hasattr(model, "predict_proba"),
                    "decision_function": hasattr(model, "decision_function"),
                }
            elif op in ("predict", "predict_proba", "decision_function"):
                if not hasattr(model, op):
                    raise AttributeError(op + " not supported")
                result = np.asarray(getattr(model, op)(to_matrix(req))).tolist()
            else:
                raise ValueError("unknown op: %r" % op)
            out.write(json.dumps({"result": result}) + "\n")
        except Exception as e:
            out.write(json.dumps({"error": str(e)}) + "\n")
        out.flush()


if __name__ == "__main__":
    main()
`
