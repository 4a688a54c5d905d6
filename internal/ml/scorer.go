package ml

import (
	"context"
	"fmt"

	"classy/internal/sparse"
)

const (
	MethodProba    = "predict_proba"
	MethodDecision = "decision_function"
)

// ScoreFunc returns confidence scores for every row of X.
type ScoreFunc func(ctx context.Context, X *sparse.CSR) ([][]float64, error)

// Scorer is the scoring method chosen for a pipeline.
type Scorer struct {
	Method string
	Score  ScoreFunc
}

// NewScorer picks probabilities when the pipeline has them and falls back
// to the decision function otherwise. The choice is made once.
func NewScorer(p Pipeline) (*Scorer, error) {
	caps := p.Capabilities()
	switch {
	case caps.Probability:
		return &Scorer{Method: MethodProba, Score: p.PredictProba}, nil
	case caps.DecisionFunction:
		return &Scorer{Method: MethodDecision, Score: p.DecisionFunction}, nil
	default:
		return nil, fmt.Errorf("pipeline %s has neither %s nor %s: %w", p.Name(), MethodProba, MethodDecision, ErrNotSupported)
	}
}
