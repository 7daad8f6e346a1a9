package sparse

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	defaultSweeps = 1000
	defaultTol    = 1e-8

	// continuationCap bounds the penalty halvings in residual mode; 60
	// halvings span ~18 orders of magnitude from lambda_max.
	continuationCap = 60
)

// LassoCoder solves the lasso by cyclic coordinate descent over the Gram
// matrix. Working in Gram space means the caller never has to hand over the
// dictionary itself, only DtD and DtX, which is exactly what the reweighted
// solver precomputes.
type LassoCoder struct{}

// Code sparse-codes every column described by cross. See Coder for the
// meaning of the inputs.
func (LassoCoder) Code(gram, cross *mat.Dense, xsq, lambda []float64, p CodeParams) (*ColMatrix, error) {
	atoms, ga := gram.Dims()
	if atoms != ga {
		return nil, fmt.Errorf("%w: gram is %dx%d, want square", ErrShape, atoms, ga)
	}
	ca, cols := cross.Dims()
	if ca != atoms {
		return nil, fmt.Errorf("%w: cross has %d rows for %d atoms", ErrShape, ca, atoms)
	}
	if len(lambda) != 1 && len(lambda) != cols {
		return nil, fmt.Errorf("%w: %d lambdas for %d columns", ErrShape, len(lambda), cols)
	}
	if p.Mode == ResidualMode && len(xsq) != cols {
		return nil, fmt.Errorf("%w: %d squared norms for %d columns", ErrShape, len(xsq), cols)
	}

	sweeps := p.MaxIter
	if sweeps <= 0 {
		sweeps = defaultSweeps
	}
	tol := p.Tol
	if tol <= 0 {
		tol = defaultTol
	}

	out := NewColMatrix(atoms, cols)
	alpha := make([]float64, atoms)
	q := make([]float64, atoms)
	for j := 0; j < cols; j++ {
		lam := lambda[0]
		if len(lambda) == cols {
			lam = lambda[j]
		}
		for k := 0; k < atoms; k++ {
			q[k] = cross.At(k, j)
			alpha[k] = 0
		}

		switch p.Mode {
		case PenaltyMode:
			descend(alpha, gram, q, lam, p.Positive, sweeps, tol)
		case ResidualMode:
			codeResidual(alpha, gram, q, xsq[j], lam, p.Positive, sweeps, tol)
		default:
			return nil, fmt.Errorf("unknown code mode %d", p.Mode)
		}

		if err := out.SetColDense(j, alpha); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// descend runs cyclic coordinate descent on
// 1/2 a'Ga - q'a + lam ||a||_1 (+ a >= 0 when positive), updating alpha in
// place. Stops after the largest single-coordinate move in a sweep drops
// below tol.
func descend(alpha []float64, gram *mat.Dense, q []float64, lam float64, positive bool, sweeps int, tol float64) {
	atoms := len(alpha)
	for s := 0; s < sweeps; s++ {
		maxMove := 0.0
		for k := 0; k < atoms; k++ {
			gkk := gram.At(k, k)
			if gkk <= 0 {
				continue
			}
			// u is the unpenalized univariate optimum times gkk.
			u := q[k] + gkk*alpha[k]
			for l := 0; l < atoms; l++ {
				u -= gram.At(k, l) * alpha[l]
			}
			var next float64
			if positive {
				next = (u - lam) / gkk
				if next < 0 {
					next = 0
				}
			} else {
				switch {
				case u > lam:
					next = (u - lam) / gkk
				case u < -lam:
					next = (u + lam) / gkk
				default:
					next = 0
				}
			}
			move := math.Abs(next - alpha[k])
			if move > maxMove {
				maxMove = move
			}
			alpha[k] = next
		}
		if maxMove < tol {
			break
		}
	}
}

// codeResidual solves min ||a||_1 s.t. ||x - D a||^2 <= target by geometric
// continuation on the penalty: start near lambda_max, halve until the
// residual budget is met, warm-starting each solve from the previous one.
func codeResidual(alpha []float64, gram *mat.Dense, q []float64, xsq, target float64, positive bool, sweeps int, tol float64) {
	if xsq <= target {
		for k := range alpha {
			alpha[k] = 0
		}
		return
	}

	lamMax := 0.0
	for _, v := range q {
		if positive {
			if v > lamMax {
				lamMax = v
			}
		} else if a := math.Abs(v); a > lamMax {
			lamMax = a
		}
	}
	if lamMax <= 0 {
		// No atom correlates with the signal; the zero code is as close as
		// the dictionary gets.
		for k := range alpha {
			alpha[k] = 0
		}
		return
	}

	lam := lamMax * 0.5
	for i := 0; i < continuationCap; i++ {
		descend(alpha, gram, q, lam, positive, sweeps, tol)
		if residualSq(alpha, gram, q, xsq) <= target {
			return
		}
		lam *= 0.5
	}
}

// residualSq evaluates ||x - D a||^2 = ||x||^2 - 2 a'q + a'G a without the
// dictionary.
func residualSq(alpha []float64, gram *mat.Dense, q []float64, xsq float64) float64 {
	res := xsq
	for k, a := range alpha {
		if a == 0 {
			continue
		}
		res -= 2 * a * q[k]
		for l, b := range alpha {
			if b != 0 {
				res += a * gram.At(k, l) * b
			}
		}
	}
	return res
}
