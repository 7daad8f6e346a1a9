// Package denoise implements a multi-shell diffusion MRI denoiser that
// reconstructs overlapping spatial blocks of angular direction
// neighborhoods as sparse combinations of dictionary atoms learned from the
// data, with an iteratively reweighted l1 solve driven by a local
// noise-variance estimate.
package denoise

import "errors"

var (
	// ErrConfiguration reports invalid run parameters, such as a neighbor
	// count exceeding the direction count or a malformed block shape.
	ErrConfiguration = errors.New("denoise: invalid configuration")

	// ErrShapeMismatch reports data, mask and variance arrays whose shapes
	// disagree.
	ErrShapeMismatch = errors.New("denoise: shape mismatch")

	// ErrInsufficientData reports a training set left empty after masking
	// and zero-column filtering.
	ErrInsufficientData = errors.New("denoise: insufficient training data")

	// ErrSolverFailure reports an external solver that failed or returned
	// non-finite values.
	ErrSolverFailure = errors.New("denoise: solver failure")
)
