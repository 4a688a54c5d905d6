package ml

import (
	"encoding/json"
	"fmt"

	"classy/internal/sparse"
)

// MatrixRequest is the body of a predict, predict_proba or
// decision_function call to an out-of-process pipeline.
type MatrixRequest struct {
	Op        string          `json:"op,omitempty"`
	NFeatures int             `json:"n_features"`
	Rows      []sparse.Vector `json:"rows"`
}

// Response wraps every answer of an out-of-process pipeline.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Description is returned by the describe call.
type Description struct {
	Name    string `json:"name"`
	Classes []int  `json:"classes"`
	Capabilities
}

func newMatrixRequest(op string, X *sparse.CSR) MatrixRequest {
	return MatrixRequest{Op: op, NFeatures: X.NCols, Rows: X.Rows()}
}

func parsePredictions(raw json.RawMessage) ([]int, error) {
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		// float class values such as 1.0 from numpy
		var fl []float64
		if err2 := json.Unmarshal(raw, &fl); err2 != nil {
			return nil, fmt.Errorf("failed to parse predictions: %w", err)
		}
		out = make([]int, len(fl))
		for i, v := range fl {
			out[i] = int(v)
		}
	}
	return out, nil
}

// parseScores accepts one list of scores per row, or one scalar per row as
// returned by binary decision functions.
func parseScores(raw json.RawMessage) ([][]float64, error) {
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err == nil {
		return nested, nil
	}

	var flat []float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse scores: %w", err)
	}
	out := make([][]float64, len(flat))
	for i, v := range flat {
		out[i] = []float64{v}
	}
	return out, nil
}
