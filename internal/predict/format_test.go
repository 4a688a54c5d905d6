package predict

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelResolver(t *testing.T) {
	labels := []string{"ham", "spam"}

	tests := []struct {
		name   string
		labels []string
		index  int
		want   string
	}{
		{"in range", labels, 1, "spam"},
		{"first", labels, 0, "ham"},
		{"past end", labels, 2, "2"},
		{"negative", labels, -1, "-1"},
		{"no labels", nil, 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LabelResolver(tt.labels)(tt.index))
		})
	}
}

func TestFormatScores(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   string
	}{
		{"probabilities", []float64{0.1, 0.9}, " 0.10000000\t 0.90000000"},
		{"single decision value", []float64{-0.5}, "-0.50000000"},
		{"rounding", []float64{1.0 / 3, 2.0 / 3}, " 0.33333333\t 0.66666667"},
		{"large", []float64{-12345.678901234}, "-12345.67890123"},
		{"zero", []float64{0}, " 0.00000000"},
		{"empty", nil, ""},
		{"not finite", []float64{math.NaN(), math.Inf(1), math.Inf(-1)}, " nan\t inf\t-inf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatScores(tt.scores))
		})
	}
}

func TestFormatScore_ScalarIsOneField(t *testing.T) {
	assert.Equal(t, FormatScores([]float64{0.25}), FormatScore(0.25))
	assert.Equal(t, " 0.25000000", FormatScore(0.25))
}
