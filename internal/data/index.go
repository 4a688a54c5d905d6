package data

import (
	"fmt"

	"classy/internal/sparse"
)

// Index is an inverted feature index: one sparse row per text.
type Index struct {
	Rows      []sparse.Vector
	TextIDs   []string // optional, one per row
	Labels    []int    // optional gold labels
	NFeatures int
}

// ToCSR packs the rows into a row-compressed matrix.
func (ix *Index) ToCSR() *sparse.CSR {
	return sparse.FromRows(ix.Rows, ix.featureCount())
}

func (ix *Index) featureCount() int {
	if ix.NFeatures > 0 {
		return ix.NFeatures
	}
	n := 0
	for _, r := range ix.Rows {
		for _, idx := range r.Indices {
			if idx+1 > n {
				n = idx + 1
			}
		}
	}
	return n
}

// GetNRows returns the number of rows in the index.
func GetNRows(ix *Index) int {
	return len(ix.Rows)
}

// LoadIndex reads the index file at path.
func LoadIndex(path string) (*Index, error) {
	store, err := Open(path, true)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	idx, err := store.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load index %s: %w", path, err)
	}

	if len(idx.TextIDs) > 0 && len(idx.TextIDs) != len(idx.Rows) {
		return nil, fmt.Errorf("index %s: %d text ids for %d rows", path, len(idx.TextIDs), len(idx.Rows))
	}
	return idx, nil
}

// WriteIndex writes idx to a new or existing index file at path.
func WriteIndex(path string, idx *Index) error {
	store, err := Open(path, false)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(idx); err != nil {
		return fmt.Errorf("failed to write index %s: %w", path, err)
	}
	return nil
}
