package sparse

import "gonum.org/v1/gonum/mat"

// CodeMode selects which lasso formulation a Coder solves.
type CodeMode int

const (
	// ResidualMode minimizes the l1 norm of the code subject to a squared
	// residual budget: min ||a||_1 s.t. ||x - D a||^2 <= lambda.
	ResidualMode CodeMode = iota + 1

	// PenaltyMode minimizes the penalized least squares objective:
	// min 1/2 ||x - D a||^2 + lambda ||a||_1.
	PenaltyMode
)

// CodeParams carries the per-call tuning of a Coder.
type CodeParams struct {
	Mode     CodeMode
	Positive bool    // constrain codes to be non-negative
	MaxIter  int     // sweep budget per penalty solve; 0 means a default
	Tol      float64 // sweep convergence threshold; 0 means a default
}

// Coder sparse-codes signal columns against a fixed dictionary, given only
// the precomputed products: gram = DtD (atoms x atoms), cross = DtX
// (atoms x cols) and xsq[j] = ||x_j||^2. lambda holds the per-column
// parameter; a single-element slice broadcasts to every column.
type Coder interface {
	Code(gram, cross *mat.Dense, xsq, lambda []float64, p CodeParams) (*ColMatrix, error)
}

// DictParams carries the tuning of a dictionary Learner.
type DictParams struct {
	Atoms        int
	Lambda       float64
	Iterations   int
	BatchSize    int
	PositiveDict bool // constrain atoms to be non-negative
	PositiveCode bool // constrain training codes to be non-negative
	Seed         uint64
}

// Learner trains a dictionary on the columns of X and returns it with
// unit-norm atoms.
type Learner interface {
	Train(x *mat.Dense, p DictParams) (*mat.Dense, error)
}
