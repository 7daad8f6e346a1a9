package denoise

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"nlsam/pkg/sparse"
	"nlsam/pkg/volume"
)

const (
	dictIterations = 150
	dictBatchSize  = 500
)

// DictionaryTrainer learns one dictionary from the masked blocks of a
// neighborhood volume. The dictionary is trained once per neighborhood and
// shared read-only by every parallel slab solve.
type DictionaryTrainer struct {
	Learner sparse.Learner // nil means sparse.DictLearner
	Seed    uint64
}

// Train decomposes the volume into non-overlapping blocks, keeps the blocks
// whose mask fraction exceeds one half, drops all-zero columns, normalizes
// the survivors and hands them to the learner. The atom count and sparsity
// penalty follow the block volume: 2x the flattened block length atoms,
// penalty 1.2/sqrt(length).
func (t DictionaryTrainer) Train(data *volume.Volume, mask *volume.Mask, block [3]int) (*mat.Dense, error) {
	cols, grid, err := volume.Decompose(data, block, [3]int{0, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	fractions := volume.MaskFractions(mask, grid)
	rows := grid.Rows()

	var keep []int
	col := make([]float64, rows)
	for j, f := range fractions {
		if f <= 0.5 {
			continue
		}
		mat.Col(col, j, cols)
		zero := true
		for _, v := range col {
			if v != 0 {
				zero = false
				break
			}
		}
		if !zero {
			keep = append(keep, j)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no training blocks left for block shape %v", ErrInsufficientData, block)
	}

	train := mat.NewDense(rows, len(keep), nil)
	for c, j := range keep {
		mat.Col(col, j, cols)
		norm := 0.0
		for _, v := range col {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		for i := range col {
			col[i] /= norm
		}
		train.SetCol(c, col)
	}

	learner := t.Learner
	if learner == nil {
		learner = sparse.DictLearner{}
	}
	p := sparse.DictParams{
		Atoms:        2 * rows,
		Lambda:       1.2 / math.Sqrt(float64(rows)),
		Iterations:   dictIterations,
		BatchSize:    dictBatchSize,
		PositiveDict: true,
		PositiveCode: true,
		Seed:         t.Seed,
	}
	dict, err := learner.Train(train, p)
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary learning: %v", ErrSolverFailure, err)
	}

	// Guard against solver drift: atoms must come back unit-norm.
	dr, atoms := dict.Dims()
	if dr != rows {
		return nil, fmt.Errorf("%w: learner returned %d-row atoms for %d-row blocks", ErrSolverFailure, dr, rows)
	}
	atom := make([]float64, rows)
	for j := 0; j < atoms; j++ {
		mat.Col(atom, j, dict)
		norm := 0.0
		for _, v := range atom {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		if math.IsNaN(norm) || math.IsInf(norm, 0) || norm == 0 {
			return nil, fmt.Errorf("%w: degenerate atom %d", ErrSolverFailure, j)
		}
		for i := range atom {
			atom[i] /= norm
		}
		dict.SetCol(j, atom)
	}
	return dict, nil
}
