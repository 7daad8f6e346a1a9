package denoise

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"nlsam/pkg/sparse"
	"nlsam/pkg/volume"
)

const (
	// gammaRegularization scales the chi-square tail bound that turns the
	// per-block noise variance into a residual budget.
	gammaRegularization = 3.0

	// tauReweight is the exponent on the coefficient magnitude in the
	// weight update.
	tauReweight = 1.0

	// convergenceTol is the per-column stopping threshold on the largest
	// coefficient change between rounds. Strictly less-than, so floating
	// noise cannot stall the loop on an exact tie.
	convergenceTol = 1e-5
)

// ReweightedSolver reconstructs each overlapping spatial block of a slab as
// a non-negative sparse combination of dictionary atoms, sharpening the
// sparsity over a few reweighted l1 rounds.
type ReweightedSolver struct {
	Coder sparse.Coder // nil means sparse.LassoCoder
	NIter int          // reweighting round budget; 0 and 1 both mean one plain solve
	Seed  uint64
}

// DenoiseSlab processes one thick slab. It returns the weight-scaled block
// accumulation and the matching per-sample weight accumulation; the caller
// sums both across slabs and divides once. A slab whose mask selects no
// block returns all-zero arrays without touching the solvers.
func (s ReweightedSolver) DenoiseSlab(data *volume.Volume, mask *volume.Mask, variance *volume.VarianceMap,
	dict, gram *mat.Dense, block, overlap [3]int) (*volume.Volume, *volume.Volume, error) {

	shape := data.SpatialShape()
	cols, grid, err := volume.Decompose(data, block, overlap)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	fractions := volume.MaskFractions(mask, grid)
	var selected []int
	for j, f := range fractions {
		if f > 0.5 {
			selected = append(selected, j)
		}
	}
	if len(selected) == 0 {
		return volume.NewVolume(shape[0], shape[1], shape[2], data.NV),
			volume.NewVolume(shape[0], shape[1], shape[2], data.NV), nil
	}

	rows := grid.Rows()
	nsel := len(selected)
	varAll := volume.VarianceMedians(variance, grid)
	varMat := make([]float64, nsel)
	for c, j := range selected {
		varMat[c] = varAll[j]
	}

	x := mat.NewDense(rows, nsel, nil)
	xsq := make([]float64, nsel)
	buf := make([]float64, rows)
	for c, j := range selected {
		mat.Col(buf, j, cols)
		x.SetCol(c, buf)
		sq := 0.0
		for _, v := range buf {
			sq += v * v
		}
		xsq[c] = sq
	}

	_, atoms := dict.Dims()
	dtx := mat.NewDense(atoms, nsel, nil)
	dtx.Mul(dict.T(), x)

	eps := noiseFloor(dict, varMat, rows, s.Seed)

	coder := s.Coder
	if coder == nil {
		coder = sparse.LassoCoder{}
	}

	alpha := mat.NewDense(atoms, nsel, nil)
	alphaOld := mat.NewDense(atoms, nsel, nil)
	w := mat.NewDense(atoms, nsel, nil)
	for i := 0; i < atoms; i++ {
		for c := 0; c < nsel; c++ {
			alphaOld.Set(i, c, 1)
			w.Set(i, c, 1)
		}
	}
	converged := make([]bool, nsel)

	residualBudget := float64(rows) + gammaRegularization*math.Sqrt(2*float64(rows))
	gramW := mat.NewDense(atoms, atoms, nil)
	crossW := mat.NewDense(atoms, 1, nil)
	wcol := make([]float64, atoms)
	acol := make([]float64, atoms)

	rounds := s.NIter
	if rounds < 1 {
		rounds = 1
	}
	for r := 0; r < rounds; r++ {
		for c := 0; c < nsel; c++ {
			if converged[c] {
				continue
			}
			mat.Col(wcol, c, w)
			for i := 0; i < atoms; i++ {
				wi := 1 / wcol[i]
				for k := 0; k < atoms; k++ {
					gramW.Set(i, k, wi*gram.At(i, k)/wcol[k])
				}
				crossW.Set(i, 0, dtx.At(i, c)/wcol[i])
			}

			codes, err := coder.Code(gramW, crossW, []float64{xsq[c]}, []float64{varMat[c] * residualBudget},
				sparse.CodeParams{Mode: sparse.ResidualMode, Positive: true})
			if err != nil {
				return nil, nil, fmt.Errorf("%w: sparse coding column %d: %v", ErrSolverFailure, selected[c], err)
			}

			// Undo the reweighting change of variables on the nonzeros.
			codes.Col(acol, 0)
			for i := range acol {
				if acol[i] != 0 {
					acol[i] /= wcol[i]
				}
				if math.IsNaN(acol[i]) || math.IsInf(acol[i], 0) {
					return nil, nil, fmt.Errorf("%w: non-finite coefficient in column %d", ErrSolverFailure, selected[c])
				}
			}
			alpha.SetCol(c, acol)
		}

		all := true
		for c := 0; c < nsel; c++ {
			if converged[c] {
				continue
			}
			maxd := 0.0
			for i := 0; i < atoms; i++ {
				d := math.Abs(alphaOld.At(i, c) - alpha.At(i, c))
				if d > maxd {
					maxd = d
				}
			}
			if maxd < convergenceTol {
				converged[c] = true
				continue
			}
			all = false
			for i := 0; i < atoms; i++ {
				a := alpha.At(i, c)
				alphaOld.Set(i, c, a)
				w.Set(i, c, 1/(math.Pow(math.Abs(a), tauReweight)+eps[c]))
			}
		}
		if all {
			break
		}
	}

	// Reconstruct the selected columns and down-weight the less sparse ones.
	recon := mat.NewDense(rows, nsel, nil)
	recon.Mul(dict, alpha)

	full := mat.NewDense(rows, grid.Cols(), nil)
	weights := make([]float64, grid.Cols())
	for j := range weights {
		weights[j] = 1
	}
	for c, j := range selected {
		nnz := 0
		for i := 0; i < atoms; i++ {
			if alpha.At(i, c) != 0 {
				nnz++
			}
		}
		weights[j] = 1 / float64(nnz+1)
		mat.Col(buf, c, recon)
		full.SetCol(j, buf)
	}

	acc, wacc, err := volume.Reassemble(full, grid, shape, weights)
	if err != nil {
		return nil, nil, fmt.Errorf("reassembling slab: %w", err)
	}
	return acc, wacc, nil
}

// noiseFloor draws pure noise at each column's standard deviation and
// records the strongest atom correlation it produces, a floor that keeps
// the reweighting denominator away from zero.
func noiseFloor(dict *mat.Dense, varMat []float64, rows int, seed uint64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	gauss := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}

	nsel := len(varMat)
	xi := mat.NewDense(rows, nsel, nil)
	for c := 0; c < nsel; c++ {
		sd := math.Sqrt(varMat[c])
		for i := 0; i < rows; i++ {
			xi.Set(i, c, gauss.Rand()*sd)
		}
	}
	_, atoms := dict.Dims()
	corr := mat.NewDense(atoms, nsel, nil)
	corr.Mul(dict.T(), xi)

	eps := make([]float64, nsel)
	for c := 0; c < nsel; c++ {
		maxAbs := 0.0
		for i := 0; i < atoms; i++ {
			if a := math.Abs(corr.At(i, c)); a > maxAbs {
				maxAbs = a
			}
		}
		eps[c] = maxAbs
	}
	return eps
}
