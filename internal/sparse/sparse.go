// Package sparse holds the row-compressed feature matrix handed to
// classification pipelines.
package sparse

import "fmt"

// Vector is a single sparse feature row as parallel index/value arrays.
type Vector struct {
	Indices []int     `json:"indices"`
	Values  []float64 `json:"values"`
}

// Len returns the number of stored entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// Dot returns the inner product of v with a dense weight vector.
// Indices outside the weight vector are ignored.
func (v Vector) Dot(weights []float64) float64 {
	var sum float64
	for k, idx := range v.Indices {
		if idx >= 0 && idx < len(weights) {
			sum += weights[idx] * v.Values[k]
		}
	}
	return sum
}

// CSR is a compressed sparse row matrix.
type CSR struct {
	NRows   int
	NCols   int
	Indptr  []int
	Indices []int
	Data    []float64
}

// FromRows packs rows into a CSR matrix with nCols columns.
func FromRows(rows []Vector, nCols int) *CSR {
	nnz := 0
	for _, r := range rows {
		nnz += r.Len()
	}

	m := &CSR{
		NRows:   len(rows),
		NCols:   nCols,
		Indptr:  make([]int, 0, len(rows)+1),
		Indices: make([]int, 0, nnz),
		Data:    make([]float64, 0, nnz),
	}
	m.Indptr = append(m.Indptr, 0)
	for _, r := range rows {
		m.Indices = append(m.Indices, r.Indices...)
		m.Data = append(m.Data, r.Values...)
		m.Indptr = append(m.Indptr, len(m.Indices))
	}
	return m
}

// Single wraps one row as a 1-row matrix.
func Single(row Vector, nCols int) *CSR {
	return FromRows([]Vector{row}, nCols)
}

// Row returns row i as a vector sharing the matrix storage.
func (m *CSR) Row(i int) Vector {
	start, end := m.Indptr[i], m.Indptr[i+1]
	return Vector{
		Indices: m.Indices[start:end],
		Values:  m.Data[start:end],
	}
}

// Rows returns every row of the matrix.
func (m *CSR) Rows() []Vector {
	rows := make([]Vector, m.NRows)
	for i := range rows {
		rows[i] = m.Row(i)
	}
	return rows
}

// Validate checks the structural consistency of the matrix.
func (m *CSR) Validate() error {
	if len(m.Indptr) != m.NRows+1 {
		return fmt.Errorf("indptr has %d entries, want %d", len(m.Indptr), m.NRows+1)
	}
	if len(m.Indices) != len(m.Data) {
		return fmt.Errorf("indices/data length mismatch: %d != %d", len(m.Indices), len(m.Data))
	}
	for i := 0; i < m.NRows; i++ {
		if m.Indptr[i] > m.Indptr[i+1] {
			return fmt.Errorf("indptr not monotonic at row %d", i)
		}
	}
	for _, idx := range m.Indices {
		if idx < 0 || (m.NCols > 0 && idx >= m.NCols) {
			return fmt.Errorf("column index %d out of range [0, %d)", idx, m.NCols)
		}
	}
	return nil
}
