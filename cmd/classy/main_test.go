package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"classy/internal/common"
	"classy/internal/data"
	"classy/internal/sparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const svmModel = "kind: linear_svm\nclasses: [0, 1]\ncoef: [[1.5, -2]]\nintercept: [0]\n"

func setup(t *testing.T) (dir string) {
	t.Helper()
	for _, key := range []string{
		common.EnvConfig, common.EnvLogLevel, common.EnvLogFormat, common.EnvPython,
		common.EnvModelTimeout, common.EnvRemoteRetries, common.EnvMetricsFile,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	dir = t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.yaml"), []byte(svmModel), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vocab.yaml"), []byte("good: 0\nbad: 1\n"), 0o600))
	require.NoError(t, data.WriteIndex(filepath.Join(dir, "index.db"), &data.Index{
		Rows: []sparse.Vector{
			{Indices: []int{0}, Values: []float64{1}},
			{Indices: []int{1}, Values: []float64{1}},
			{Indices: []int{0, 1}, Values: []float64{1, 1}},
		},
		NFeatures: 2,
	}))
	return dir
}

func TestRun_Batch(t *testing.T) {
	dir := setup(t)
	var stdout, stderr bytes.Buffer

	code := run([]string{
		"--log-level", "warn",
		"predict",
		"--index", filepath.Join(dir, "index.db"),
		"--model", filepath.Join(dir, "model.yaml"),
	}, strings.NewReader(""), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "1\t1\n2\t0\n3\t0\n", stdout.String())
}

func TestRun_StreamWithScoresAndMetrics(t *testing.T) {
	dir := setup(t)
	metricsFile := filepath.Join(dir, "classy.prom")
	var stdout, stderr bytes.Buffer

	code := run([]string{
		"--log-format", "json",
		"--metrics-file", metricsFile,
		"predict", "--text", "--scores",
		"--model", filepath.Join(dir, "model.yaml"),
		"--vocabulary", filepath.Join(dir, "vocab.yaml"),
		"--label", "negative", "positive",
	}, strings.NewReader("r1\tGood good\nr2\tbad\n"), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "r1\tpositive\t 3.00000000\nr2\tnegative\t-2.00000000\n", stdout.String())

	content, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "classy_predictions_total 2")
	assert.Contains(t, string(content), `classy_scores_total{method="decision_function"} 2`)
}

func TestRun_LogFlagsOverrideEnvironment(t *testing.T) {
	dir := setup(t)
	t.Setenv(common.EnvLogLevel, "loud")
	t.Setenv(common.EnvLogFormat, "xml")
	var stdout, stderr bytes.Buffer

	code := run([]string{
		"--log-level", "warn", "--log-format", "json",
		"predict",
		"--index", filepath.Join(dir, "index.db"),
		"--model", filepath.Join(dir, "model.yaml"),
	}, strings.NewReader(""), &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Equal(t, "1\t1\n2\t0\n3\t0\n", stdout.String())

	stdout.Reset()
	code = run([]string{
		"predict",
		"--index", filepath.Join(dir, "index.db"),
		"--model", filepath.Join(dir, "model.yaml"),
	}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout.String())
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name string
		argv func(dir string) []string
		want int
	}{
		{"help", func(string) []string { return []string{"--help"} }, exitOK},
		{"no command", func(string) []string { return nil }, exitUsage},
		{"unknown flag", func(string) []string { return []string{"predict", "--nope"} }, exitUsage},
		{"missing model", func(string) []string { return []string{"predict", "--index", "x.db"} }, exitUsage},
		{"missing index", func(dir string) []string {
			return []string{"predict", "--model", filepath.Join(dir, "model.yaml")}
		}, exitUsage},
		{"two indexes", func(dir string) []string {
			return []string{"predict", "--model", filepath.Join(dir, "model.yaml"), "--index", "a.db", "b.db"}
		}, exitUsage},
		{"missing vocabulary", func(dir string) []string {
			return []string{"predict", "--text", "--model", filepath.Join(dir, "model.yaml")}
		}, exitUsage},
		{"bad log level", func(dir string) []string {
			return []string{"--log-level", "loud", "predict", "--model", filepath.Join(dir, "model.yaml")}
		}, exitUsage},
		{"missing model file", func(dir string) []string {
			return []string{"predict", "--index", filepath.Join(dir, "index.db"), "--model", filepath.Join(dir, "nope.yaml")}
		}, exitError},
		{"bad config file", func(dir string) []string {
			return []string{"--config", filepath.Join(dir, "missing.yaml"), "predict", "--model", "m.yaml"}
		}, exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setup(t)
			var stdout, stderr bytes.Buffer
			code := run(tt.argv(dir), strings.NewReader(""), &stdout, &stderr)
			assert.Equal(t, tt.want, code, stderr.String())
		})
	}
}
