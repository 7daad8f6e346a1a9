// Package sparse holds the sparse-coding machinery of the denoiser: a
// column-oriented coefficient container, the coder and learner contracts,
// and working implementations of both (a non-negative lasso on precomputed
// Gram products and an online mini-batch dictionary learner).
package sparse

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape reports operands whose dimensions do not line up.
	ErrShape = errors.New("sparse: dimension mismatch")

	// ErrColumn reports a column index outside the matrix.
	ErrColumn = errors.New("sparse: column out of range")
)

// ColMatrix stores a sparse matrix column by column as parallel index and
// value slices. Only nonzero entries are kept; indices within a column are
// ascending.
type ColMatrix struct {
	RowCount, ColCount int

	Ind [][]int
	Val [][]float64
}

// NewColMatrix returns an all-zero rows x cols sparse matrix.
func NewColMatrix(rows, cols int) *ColMatrix {
	return &ColMatrix{
		RowCount: rows,
		ColCount: cols,
		Ind:      make([][]int, cols),
		Val:      make([][]float64, cols),
	}
}

// SetCol replaces column j with the given nonzero pattern. ind must be
// ascending row indices; val holds the matching values. The slices are
// copied.
func (m *ColMatrix) SetCol(j int, ind []int, val []float64) error {
	if j < 0 || j >= m.ColCount {
		return fmt.Errorf("%w: column %d of %d", ErrColumn, j, m.ColCount)
	}
	if len(ind) != len(val) {
		return fmt.Errorf("%w: %d indices for %d values", ErrShape, len(ind), len(val))
	}
	for i, r := range ind {
		if r < 0 || r >= m.RowCount {
			return fmt.Errorf("%w: row %d of %d", ErrColumn, r, m.RowCount)
		}
		if i > 0 && ind[i-1] >= r {
			return fmt.Errorf("%w: column indices must be ascending", ErrShape)
		}
	}
	m.Ind[j] = append([]int(nil), ind...)
	m.Val[j] = append([]float64(nil), val...)
	return nil
}

// SetColDense replaces column j from a dense vector, keeping only nonzeros.
func (m *ColMatrix) SetColDense(j int, v []float64) error {
	if len(v) != m.RowCount {
		return fmt.Errorf("%w: vector length %d for %d rows", ErrShape, len(v), m.RowCount)
	}
	var ind []int
	var val []float64
	for r, x := range v {
		if x != 0 {
			ind = append(ind, r)
			val = append(val, x)
		}
	}
	return m.SetCol(j, ind, val)
}

// NNZ returns the number of stored nonzeros in column j.
func (m *ColMatrix) NNZ(j int) int { return len(m.Ind[j]) }

// Col expands column j into the dense vector dst, which must have length
// RowCount.
func (m *ColMatrix) Col(dst []float64, j int) {
	for i := range dst {
		dst[i] = 0
	}
	for i, r := range m.Ind[j] {
		dst[r] = m.Val[j][i]
	}
}

// MulVecTo computes dst = D * column j, exploiting the column's sparsity.
// D must have ColCount(D) == RowCount(m).
func (m *ColMatrix) MulVecTo(dst []float64, d mat.Matrix, j int) {
	for i := range dst {
		dst[i] = 0
	}
	rows, _ := d.Dims()
	for i, r := range m.Ind[j] {
		v := m.Val[j][i]
		for k := 0; k < rows; k++ {
			dst[k] += d.At(k, r) * v
		}
	}
}

// Scale multiplies every stored value of column j by the per-row factors in
// s, indexed by the stored row. Used to undo the reweighting change of
// variables on the nonzeros only.
func (m *ColMatrix) Scale(j int, s []float64) {
	for i, r := range m.Ind[j] {
		m.Val[j][i] *= s[r]
	}
}

// MaxAbsDiff returns the largest absolute difference between column j of m
// and the dense vector v.
func (m *ColMatrix) MaxAbsDiff(v []float64, j int) float64 {
	maxd := 0.0
	i := 0
	for r := 0; r < m.RowCount; r++ {
		cur := 0.0
		if i < len(m.Ind[j]) && m.Ind[j][i] == r {
			cur = m.Val[j][i]
			i++
		}
		d := cur - v[r]
		if d < 0 {
			d = -d
		}
		if d > maxd {
			maxd = d
		}
	}
	return maxd
}
