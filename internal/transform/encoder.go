package transform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"classy/internal/data"
	"classy/internal/sparse"
)

// IDColumn selects the column holding the text identifier.
type IDColumn struct {
	Index   int
	Present bool
}

// NoID means rows carry no identifier; a 1-based counter is used instead.
func NoID() IDColumn {
	return IDColumn{}
}

// Column selects column i (negative counts from the end).
func Column(i int) IDColumn {
	return IDColumn{Index: i, Present: true}
}

// FeatureEncoder turns records into (text id, sparse feature vector) pairs.
type FeatureEncoder struct {
	input *Input
	vocab *data.Vocabulary
	idCol IDColumn
	count int
}

// NewFeatureEncoder encodes the records of input with vocab.
func NewFeatureEncoder(input *Input, vocab *data.Vocabulary, idCol IDColumn) *FeatureEncoder {
	return &FeatureEncoder{input: input, vocab: vocab, idCol: idCol}
}

// Width is the number of feature columns produced.
func (e *FeatureEncoder) Width() int {
	return e.vocab.Size()
}

// Next returns the next encoded row; io.EOF when the input is exhausted.
func (e *FeatureEncoder) Next() (string, sparse.Vector, error) {
	rec, err := e.input.Read()
	if err != nil {
		return "", sparse.Vector{}, err
	}
	e.count++

	id := strconv.Itoa(e.count)
	idPos := -1
	if e.idCol.Present {
		pos, ok := resolve(e.idCol.Index, len(rec.Fields))
		if !ok {
			return "", sparse.Vector{}, fmt.Errorf("row %d has %d columns, no id column %d", e.count, len(rec.Fields), e.idCol.Index)
		}
		id = rec.Fields[pos]
		idPos = pos
	}

	counts := make(map[int]float64)
	for i, field := range rec.Fields {
		if i == idPos {
			continue
		}
		switch rec.Role(i) {
		case Text:
			for _, tok := range Tokenize(field) {
				if idx, ok := e.vocab.Lookup(tok); ok {
					counts[idx]++
				}
			}
		case Features:
			for _, tok := range strings.Fields(field) {
				name, weight := splitWeight(tok)
				if idx, ok := e.vocab.Lookup(name); ok {
					counts[idx] += weight
				}
			}
		}
	}

	return id, toVector(counts), nil
}

// Tokenize lower-cases s and splits it into runs of letters and digits.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func splitWeight(tok string) (string, float64) {
	i := strings.LastIndexByte(tok, '=')
	if i <= 0 {
		return tok, 1
	}
	w, err := strconv.ParseFloat(tok[i+1:], 64)
	if err != nil {
		return tok, 1
	}
	return tok[:i], w
}

func toVector(counts map[int]float64) sparse.Vector {
	v := sparse.Vector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		v.Indices = append(v.Indices, idx)
	}
	sort.Ints(v.Indices)
	for _, idx := range v.Indices {
		v.Values = append(v.Values, counts[idx])
	}
	return v
}
