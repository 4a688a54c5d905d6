package predict

import (
	"math"
	"strconv"
	"strings"
)

// LabelResolver maps a predicted class index to its display name. Indices
// outside the label list, including negative ones, are printed as integers.
func LabelResolver(labels []string) func(int) string {
	return func(i int) string {
		if i >= 0 && i < len(labels) {
			return labels[i]
		}
		return strconv.Itoa(i)
	}
}

// FormatScores renders scores with 8 decimals and a sign column: a space
// for non-negative values and "-" for negative ones, joined by tabs.
func FormatScores(scores []float64) string {
	fields := make([]string, len(scores))
	for i, s := range scores {
		fields[i] = FormatScore(s)
	}
	return strings.Join(fields, "\t")
}

// FormatScore renders a single score the way FormatScores does.
func FormatScore(s float64) string {
	switch {
	case math.IsNaN(s):
		return " nan"
	case math.IsInf(s, 1):
		return " inf"
	case math.IsInf(s, -1):
		return "-inf"
	}
	str := strconv.FormatFloat(s, 'f', 8, 64)
	if str[0] != '-' {
		return " " + str
	}
	return str
}
