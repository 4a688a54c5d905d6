package ml

import (
	"context"
	"fmt"
	"math"
	"os"

	"classy/internal/sparse"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Linear pipeline kinds.
const (
	KindLogistic      = "logistic"
	KindLinearSVM     = "linear_svm"
	KindMultinomialNB = "multinomial_nb"
)

// LinearConfig is the on-disk form of a linear pipeline. For logistic and
// SVM models a binary problem has a single coefficient row; naive Bayes
// always has one row of feature log-probabilities per class, with the class
// log-priors as intercepts.
type LinearConfig struct {
	Name       string       `yaml:"name"`
	Kind       string       `yaml:"kind"`
	Classes    []int        `yaml:"classes"`
	NFeatures  int          `yaml:"n_features"`
	Coef       [][]float64  `yaml:"coef"`
	Intercept  []float64    `yaml:"intercept"`
	MultiClass string       `yaml:"multi_class"` // ovr (default) or multinomial
	TFIDF      *TFIDFConfig `yaml:"tfidf"`
}

// TFIDFConfig rescales raw term counts before the linear model.
type TFIDFConfig struct {
	IDF         []float64 `yaml:"idf"`
	SublinearTF bool      `yaml:"sublinear_tf"`
	Norm        string    `yaml:"norm"` // l2 (default), l1 or none
}

// LinearPipeline evaluates a linear classifier in process.
type LinearPipeline struct {
	cfg LinearConfig
}

// LoadLinear reads a linear pipeline from a YAML or JSON file.
func LoadLinear(path string) (*LinearPipeline, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var cfg LinearConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}

	return NewLinear(cfg)
}

// NewLinear validates cfg and builds the pipeline.
func NewLinear(cfg LinearConfig) (*LinearPipeline, error) {
	switch cfg.Kind {
	case KindLogistic, KindLinearSVM, KindMultinomialNB:
	default:
		return nil, fmt.Errorf("unknown linear pipeline kind %q", cfg.Kind)
	}

	nClasses := len(cfg.Classes)
	if nClasses < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", nClasses)
	}

	wantRows := nClasses
	if nClasses == 2 && cfg.Kind != KindMultinomialNB {
		wantRows = 1
	}
	if len(cfg.Coef) != wantRows {
		return nil, fmt.Errorf("%s with %d classes needs %d coefficient rows, got %d", cfg.Kind, nClasses, wantRows, len(cfg.Coef))
	}
	if len(cfg.Intercept) == 0 {
		cfg.Intercept = make([]float64, wantRows)
	}
	if len(cfg.Intercept) != wantRows {
		return nil, fmt.Errorf("need %d intercepts, got %d", wantRows, len(cfg.Intercept))
	}

	if cfg.NFeatures == 0 {
		cfg.NFeatures = len(cfg.Coef[0])
	}
	for i, row := range cfg.Coef {
		if len(row) != cfg.NFeatures {
			return nil, fmt.Errorf("coefficient row %d has %d features, want %d", i, len(row), cfg.NFeatures)
		}
	}

	switch cfg.MultiClass {
	case "":
		cfg.MultiClass = "ovr"
	case "ovr", "multinomial":
	default:
		return nil, fmt.Errorf("unknown multi_class %q", cfg.MultiClass)
	}

	if t := cfg.TFIDF; t != nil {
		if len(t.IDF) != 0 && len(t.IDF) != cfg.NFeatures {
			return nil, fmt.Errorf("idf has %d entries, want %d", len(t.IDF), cfg.NFeatures)
		}
		switch t.Norm {
		case "":
			t.Norm = "l2"
		case "l1", "l2", "none":
		default:
			return nil, fmt.Errorf("unknown tfidf norm %q", t.Norm)
		}
	}

	return &LinearPipeline{cfg: cfg}, nil
}

func (p *LinearPipeline) Name() string {
	return p.cfg.Name
}

func (p *LinearPipeline) Capabilities() Capabilities {
	switch p.cfg.Kind {
	case KindLogistic:
		return Capabilities{Probability: true, DecisionFunction: true}
	case KindLinearSVM:
		return Capabilities{DecisionFunction: true}
	default:
		return Capabilities{Probability: true}
	}
}

func (p *LinearPipeline) Close() error {
	return nil
}

func (p *LinearPipeline) Predict(_ context.Context, X *sparse.CSR) ([]int, error) {
	out := make([]int, X.NRows)
	for i := 0; i < X.NRows; i++ {
		d := p.decision(X.Row(i))
		if len(d) == 1 {
			if d[0] > 0 {
				out[i] = p.cfg.Classes[1]
			} else {
				out[i] = p.cfg.Classes[0]
			}
			continue
		}
		out[i] = p.cfg.Classes[floats.MaxIdx(d)]
	}
	return out, nil
}

func (p *LinearPipeline) PredictProba(_ context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.Capabilities().Probability {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodProba, ErrNotSupported)
	}

	out := make([][]float64, X.NRows)
	for i := 0; i < X.NRows; i++ {
		d := p.decision(X.Row(i))
		switch {
		case len(d) == 1:
			pos := sigmoid(d[0])
			out[i] = []float64{1 - pos, pos}
		case p.cfg.Kind == KindMultinomialNB || p.cfg.MultiClass == "multinomial":
			out[i] = softmax(d)
		default:
			for j := range d {
				d[j] = sigmoid(d[j])
			}
			if sum := floats.Sum(d); sum > 0 {
				floats.Scale(1/sum, d)
			}
			out[i] = d
		}
	}
	return out, nil
}

func (p *LinearPipeline) DecisionFunction(_ context.Context, X *sparse.CSR) ([][]float64, error) {
	if !p.Capabilities().DecisionFunction {
		return nil, fmt.Errorf("%s: %s: %w", p.Name(), MethodDecision, ErrNotSupported)
	}

	out := make([][]float64, X.NRows)
	for i := 0; i < X.NRows; i++ {
		out[i] = p.decision(X.Row(i))
	}
	return out, nil
}

// decision returns coef . x + intercept for every coefficient row.
func (p *LinearPipeline) decision(row sparse.Vector) []float64 {
	x := p.tfidf(row)
	d := make([]float64, len(p.cfg.Coef))
	for j, w := range p.cfg.Coef {
		d[j] = x.Dot(w) + p.cfg.Intercept[j]
	}
	return d
}

func (p *LinearPipeline) tfidf(row sparse.Vector) sparse.Vector {
	t := p.cfg.TFIDF
	if t == nil {
		return row
	}

	vals := make([]float64, len(row.Values))
	copy(vals, row.Values)
	for k, idx := range row.Indices {
		if t.SublinearTF && vals[k] > 0 {
			vals[k] = 1 + math.Log(vals[k])
		}
		if len(t.IDF) > 0 && idx >= 0 && idx < len(t.IDF) {
			vals[k] *= t.IDF[idx]
		}
	}

	var norm float64
	switch t.Norm {
	case "l2":
		norm = floats.Norm(vals, 2)
	case "l1":
		norm = floats.Norm(vals, 1)
	}
	if norm > 0 {
		floats.Scale(1/norm, vals)
	}

	return sparse.Vector{Indices: row.Indices, Values: vals}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func softmax(d []float64) []float64 {
	lse := floats.LogSumExp(d)
	out := make([]float64, len(d))
	for j, v := range d {
		out[j] = math.Exp(v - lse)
	}
	return out
}
