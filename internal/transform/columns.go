// Package transform selects the columns of text rows and encodes them into
// sparse feature vectors with a vocabulary.
package transform

import (
	"errors"
	"fmt"
)

// ErrColumnOffset reports a column offset of zero; offsets are 1-based
// from the left or negative from the right.
var ErrColumnOffset = errors.New("column offsets are 1-based; 0 is not a column")

// FixColumnOffset converts 1-based command-line column numbers to 0-based
// offsets. Negative offsets count from the end and are kept as is.
func FixColumnOffset(cols []int) ([]int, error) {
	if len(cols) == 0 {
		return nil, nil
	}

	fixed := make([]int, len(cols))
	for i, c := range cols {
		switch {
		case c > 0:
			fixed[i] = c - 1
		case c < 0:
			fixed[i] = c
		default:
			return nil, fmt.Errorf("%w (got %v)", ErrColumnOffset, cols)
		}
	}
	return fixed, nil
}

// resolve turns a possibly negative offset into an absolute position in a
// row of n fields. The second result is false when it falls outside.
func resolve(col, n int) (int, bool) {
	if col < 0 {
		col += n
	}
	return col, col >= 0 && col < n
}
