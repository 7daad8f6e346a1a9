package sparse

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DictLearner trains a dictionary by online mini-batch learning: each
// iteration sparse-codes a random batch against the current dictionary,
// folds the batch into the sufficient statistics A = sum(a a') and
// B = sum(x a'), then updates the atoms by block coordinate descent.
type DictLearner struct {
	Coder Coder // penalty-mode coder used on each batch; nil means LassoCoder
}

// Train learns p.Atoms unit-norm atoms from the columns of x.
func (dl DictLearner) Train(x *mat.Dense, p DictParams) (*mat.Dense, error) {
	rows, samples := x.Dims()
	if samples == 0 {
		return nil, fmt.Errorf("%w: no training columns", ErrShape)
	}
	if p.Atoms < 1 {
		return nil, fmt.Errorf("need at least one atom, got %d", p.Atoms)
	}
	coder := dl.Coder
	if coder == nil {
		coder = LassoCoder{}
	}
	batch := p.BatchSize
	if batch <= 0 || batch > samples {
		batch = samples
	}

	rng := rand.New(rand.NewSource(p.Seed))
	gauss := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	dict := mat.NewDense(rows, p.Atoms, nil)
	col := make([]float64, rows)
	for j := 0; j < p.Atoms; j++ {
		mat.Col(col, rng.Intn(samples), x)
		if p.PositiveDict {
			for i := range col {
				col[i] = math.Abs(col[i])
			}
		}
		setAtom(dict, j, col, gauss, p.PositiveDict)
	}

	a := mat.NewDense(p.Atoms, p.Atoms, nil)
	b := mat.NewDense(rows, p.Atoms, nil)

	xb := mat.NewDense(rows, batch, nil)
	gram := mat.NewDense(p.Atoms, p.Atoms, nil)
	cross := mat.NewDense(p.Atoms, batch, nil)
	alpha := make([]float64, p.Atoms)
	dcol := make([]float64, rows)

	params := CodeParams{Mode: PenaltyMode, Positive: p.PositiveCode}
	for it := 0; it < p.Iterations; it++ {
		for c := 0; c < batch; c++ {
			mat.Col(col, rng.Intn(samples), x)
			xb.SetCol(c, col)
		}
		gram.Mul(dict.T(), dict)
		cross.Mul(dict.T(), xb)

		codes, err := coder.Code(gram, cross, nil, []float64{p.Lambda}, params)
		if err != nil {
			return nil, fmt.Errorf("coding training batch: %w", err)
		}

		for c := 0; c < batch; c++ {
			codes.Col(alpha, c)
			for i, ai := range alpha {
				if ai == 0 {
					continue
				}
				for k, ak := range alpha {
					if ak != 0 {
						a.Set(i, k, a.At(i, k)+ai*ak)
					}
				}
				for r := 0; r < rows; r++ {
					b.Set(r, i, b.At(r, i)+xb.At(r, c)*ai)
				}
			}
		}

		updateAtoms(dict, a, b, x, rng, gauss, p.PositiveDict, col, dcol)
	}

	for j := 0; j < p.Atoms; j++ {
		mat.Col(col, j, dict)
		setAtom(dict, j, col, gauss, p.PositiveDict)
	}
	if !isFinite(dict) {
		return nil, fmt.Errorf("dictionary contains non-finite atoms")
	}
	return dict, nil
}

// updateAtoms performs one block coordinate descent pass over the atoms
// using the running sufficient statistics, projecting each updated atom
// onto the unit ball. Atoms that no code has touched yet are left alone;
// atoms whose update collapses to zero are re-seeded from the data.
func updateAtoms(dict, a, b, x *mat.Dense, rng *rand.Rand, gauss distuv.Normal, positive bool, u, dcol []float64) {
	rows, atoms := dict.Dims()
	_, samples := x.Dims()
	for j := 0; j < atoms; j++ {
		ajj := a.At(j, j)
		if ajj < 1e-12 {
			continue
		}
		// u = d_j + (b_j - D a_j) / a_jj
		for r := 0; r < rows; r++ {
			u[r] = b.At(r, j)
		}
		for k := 0; k < atoms; k++ {
			akj := a.At(k, j)
			if akj == 0 {
				continue
			}
			mat.Col(dcol, k, dict)
			for r := 0; r < rows; r++ {
				u[r] -= akj * dcol[r]
			}
		}
		for r := 0; r < rows; r++ {
			u[r] = dict.At(r, j) + u[r]/ajj
			if positive && u[r] < 0 {
				u[r] = 0
			}
		}
		norm := 0.0
		for _, v := range u {
			norm += v * v
		}
		norm = math.Sqrt(norm)
		switch {
		case norm < 1e-12:
			mat.Col(u, rng.Intn(samples), x)
			if positive {
				for r := range u {
					u[r] = math.Abs(u[r])
				}
			}
			setAtom(dict, j, u, gauss, positive)
		case norm > 1:
			for r := range u {
				u[r] /= norm
			}
			dict.SetCol(j, u)
		default:
			dict.SetCol(j, u)
		}
	}
}

// setAtom writes v as column j of dict, normalized to unit length. A
// degenerate v is replaced with a random draw first.
func setAtom(dict *mat.Dense, j int, v []float64, gauss distuv.Normal, positive bool) {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	for norm < 1e-12 {
		norm = 0
		for i := range v {
			v[i] = gauss.Rand()
			if positive {
				v[i] = math.Abs(v[i])
			}
			norm += v[i] * v[i]
		}
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	dict.SetCol(j, v)
}

func isFinite(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}
