package ml

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classy/internal/sparse"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func newScoringServer(t *testing.T, caps Capabilities) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/model":
			assert.Equal(t, http.MethodGet, r.Method)
			writeJSON(t, w, http.StatusOK, map[string]interface{}{
				"result": Description{Name: "svc", Classes: []int{0, 1}, Capabilities: caps},
			})
		case "/model/predict":
			assert.Equal(t, http.MethodPost, r.Method)
			var req MatrixRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 4, req.NFeatures)

			out := make([]int, len(req.Rows))
			for i, row := range req.Rows {
				out[i] = row.Len() % 2
			}
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"result": out})
		case "/model/predict_proba":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"result": [][]float64{{0.1, 0.9}}})
		case "/model/decision_function":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"result": []float64{-0.25}})
		default:
			writeJSON(t, w, http.StatusNotFound, map[string]string{"error": "no route " + r.URL.Path})
		}
	}))
}

func TestRemotePipeline(t *testing.T) {
	server := newScoringServer(t, Capabilities{Probability: true, DecisionFunction: true})
	defer server.Close()

	p, err := NewRemote(context.Background(), server.URL+"/model/", Options{Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, "svc", p.Name())
	assert.True(t, p.Capabilities().Probability)

	X := sparse.FromRows([]sparse.Vector{
		{Indices: []int{0}, Values: []float64{1}},
		{Indices: []int{0, 3}, Values: []float64{1, 1}},
	}, 4)

	pred, err := p.Predict(context.Background(), X)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, pred)

	proba, err := p.PredictProba(context.Background(), sparse.Single(X.Row(0), 4))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.1, 0.9}}, proba)

	dec, err := p.DecisionFunction(context.Background(), sparse.Single(X.Row(0), 4))
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-0.25}}, dec)
}

func TestRemotePipeline_DecisionOnly(t *testing.T) {
	server := newScoringServer(t, Capabilities{DecisionFunction: true})
	defer server.Close()

	p, err := Load(context.Background(), server.URL+"/model", Options{Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = p.PredictProba(context.Background(), sparse.FromRows(nil, 4))
	assert.True(t, errors.Is(err, ErrNotSupported))

	s, err := NewScorer(p)
	require.NoError(t, err)
	assert.Equal(t, MethodDecision, s.Method)
}

func TestRemotePipeline_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			writeJSON(t, w, http.StatusOK, map[string]interface{}{"result": map[string]interface{}{"classes": []int{0, 1}}})
		case "/predict":
			writeJSON(t, w, http.StatusInternalServerError, map[string]string{"error": "model exploded"})
		default:
			w.WriteHeader(http.StatusNotImplemented)
		}
	}))
	defer server.Close()

	p, err := NewRemote(context.Background(), server.URL, Options{Timeout: 5 * time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	assert.Equal(t, server.URL, p.Name())

	_, err = p.Predict(context.Background(), sparse.FromRows(nil, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
}

func TestNewRemote_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewRemote(context.Background(), url, Options{Timeout: time.Second, Logger: zerolog.Nop()})
	assert.Error(t, err)
}
