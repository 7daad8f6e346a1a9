package denoise

import (
	"fmt"
	"io"
	"runtime"

	"nlsam/pkg/angular"
	"nlsam/pkg/sparse"
	"nlsam/pkg/volume"
)

// Params holds the run parameters of a denoising pass.
type Params struct {
	// BlockSize is the 4-D block shape: three spatial extents plus the
	// angular extent. The angular extent sets how many directions are
	// processed together (the b0 channel plus BlockSize[3]-1 neighbors).
	BlockSize [4]int

	// B0Threshold is the largest b-value still counted as a b0 acquisition.
	B0Threshold float64

	// NIter bounds the reweighted l1 rounds per block column.
	NIter int

	// NoSymmetry asserts that antipodal directions are already present in
	// the gradient table, skipping the antipodal doubling.
	NoSymmetry bool

	// Greedy reduces the direction neighborhoods to a covering subset.
	Greedy bool

	// Workers bounds the slab pool; 0 or less means GOMAXPROCS.
	Workers int

	// Seed drives the dictionary learner and the reweighting noise draw.
	Seed uint64
}

// Denoiser denoises a 4-D diffusion volume. The zero value of Trainer and
// Coder selects the built-in implementations.
type Denoiser struct {
	Params  Params
	Log     io.Writer      // progress output, nil discards
	Trainer sparse.Learner // dictionary learning solver override
	Coder   sparse.Coder   // sparse coding solver override
}

// Run denoises data and returns a new volume of the same shape; the input
// is left untouched. Multiple b0 acquisitions are averaged into one working
// channel and the denoised average is reinserted at every original b0
// position afterwards.
func (d *Denoiser) Run(data *volume.Volume, variance *volume.VarianceMap, mask *volume.Mask,
	bvals []float64, bvecs [][3]float64) (*volume.Volume, error) {

	if err := d.validate(data, variance, mask, bvals, bvecs); err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = io.Discard
	}
	workers := d.Params.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	b0Locs, dwis := partitionB0s(bvals, d.Params.B0Threshold)
	if len(b0Locs) == 0 {
		return nil, fmt.Errorf("%w: no b0 image found below b-value %v", ErrConfiguration, d.Params.B0Threshold)
	}
	fmt.Fprintf(log, "found %d b0s at position %v\n", len(b0Locs), b0Locs)

	// Fold multiple b0s into their mean at the first b0 position; the
	// remaining positions are filled back in at the end.
	folded, foldedBvecs, b0Loc, restB0s := foldB0s(data, bvecs, b0Locs, dwis)

	dwiBvecs := make([][3]float64, 0, folded.NV-1)
	for v, vec := range foldedBvecs {
		if v != b0Loc {
			dwiBvecs = append(dwiBvecs, vec)
		}
	}

	k := d.Params.BlockSize[3] - 1
	neighbors, err := angular.Neighbors(dwiBvecs, k, d.Params.NoSymmetry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	items := make([]angular.WorkItem, len(neighbors))
	for i, nb := range neighbors {
		items[i] = append(angular.WorkItem{i}, nb...)
	}
	cover := angular.Cover(items, d.Params.Greedy)

	denoised := volume.NewVolume(folded.NX, folded.NY, folded.NZ, folded.NV)
	divider := make([]float64, folded.NV)

	run := *d
	run.Params.Workers = workers
	for i, item := range cover {
		fmt.Fprintf(log, "now denoising volumes %v / block %d out of %d\n", []int(item), i+1, len(cover))

		// The b0 channel leads every neighborhood volume.
		dirs := make([]int, 0, len(item)+1)
		dirs = append(dirs, b0Loc)
		for _, j := range item {
			dirs = append(dirs, dwiPosition(j, b0Loc))
		}

		result, err := run.denoiseNeighborhood(folded.Gather(dirs), mask, variance, d.Params.Seed+uint64(i)*7919)
		if err != nil {
			return nil, err
		}

		for c, pos := range dirs {
			ch := result.Channel(c)
			for vi, v := range ch {
				denoised.Data[vi*denoised.NV+pos] += v
			}
			divider[pos]++
		}
	}

	for pos, div := range divider {
		if div == 0 {
			continue
		}
		for vi := 0; vi < denoised.NX*denoised.NY*denoised.NZ; vi++ {
			denoised.Data[vi*denoised.NV+pos] /= div
		}
	}

	return unfoldB0s(denoised, data.NV, b0Loc, restB0s), nil
}

func (d *Denoiser) validate(data *volume.Volume, variance *volume.VarianceMap, mask *volume.Mask,
	bvals []float64, bvecs [][3]float64) error {

	if err := volume.CheckSpatialMatch(data, mask, variance); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if len(bvals) != data.NV || len(bvecs) != data.NV {
		return fmt.Errorf("%w: %d b-values and %d directions for %d data channels",
			ErrShapeMismatch, len(bvals), len(bvecs), data.NV)
	}
	b := d.Params.BlockSize
	for a := 0; a < 3; a++ {
		if b[a] < 1 {
			return fmt.Errorf("%w: block size %v has a non-positive extent", ErrConfiguration, b)
		}
	}
	if b[0] > data.NX || b[1] > data.NY || b[2] > data.NZ {
		return fmt.Errorf("%w: block size %v exceeds data shape [%d %d %d]",
			ErrConfiguration, b, data.NX, data.NY, data.NZ)
	}
	if b[3] < 2 {
		return fmt.Errorf("%w: angular block size %d needs at least one neighbor", ErrConfiguration, b[3])
	}
	if d.Params.NIter < 0 {
		return fmt.Errorf("%w: negative iteration count %d", ErrConfiguration, d.Params.NIter)
	}
	return nil
}

// partitionB0s splits the channel indices into b0s and DWIs by b-value.
func partitionB0s(bvals []float64, thresh float64) (b0s, dwis []int) {
	for i, b := range bvals {
		if b <= thresh {
			b0s = append(b0s, i)
		} else {
			dwis = append(dwis, i)
		}
	}
	return b0s, dwis
}

// foldB0s collapses every b0 channel to a single mean channel placed at the
// first b0 position. It returns the folded volume, the matching direction
// table, the position of the folded b0 and the positions where copies must
// be reinserted.
func foldB0s(data *volume.Volume, bvecs [][3]float64, b0Locs, dwis []int) (*volume.Volume, [][3]float64, int, []int) {
	if len(b0Locs) == 1 {
		return data, bvecs, b0Locs[0], nil
	}

	b0Loc := b0Locs[0]
	mean := data.MeanChannels(b0Locs)

	// All channels before the first b0 are DWIs, so the mean lands at the
	// same index in the folded ordering.
	order := make([]int, 0, len(dwis)+1)
	order = append(order, dwis[:b0Loc]...)
	order = append(order, b0Locs[0]) // placeholder, overwritten below
	order = append(order, dwis[b0Loc:]...)

	folded := data.Gather(order)
	folded.SetChannel(b0Loc, mean)

	vecs := make([][3]float64, len(order))
	for i, src := range order {
		vecs[i] = bvecs[src]
	}
	vecs[b0Loc] = [3]float64{0, 0, 0}

	return folded, vecs, b0Loc, b0Locs[1:]
}

// dwiPosition maps a DWI working index to its position in the folded
// volume, stepping over the b0 slot.
func dwiPosition(j, b0Loc int) int {
	if j < b0Loc {
		return j
	}
	return j + 1
}

// unfoldB0s expands a folded result back to the original channel count by
// copying the denoised b0 into every removed b0 position.
func unfoldB0s(denoised *volume.Volume, origNV, b0Loc int, restB0s []int) *volume.Volume {
	if len(restB0s) == 0 {
		return denoised
	}
	b0 := denoised.Channel(b0Loc)
	out := volume.NewVolume(denoised.NX, denoised.NY, denoised.NZ, origNV)

	rest := make(map[int]bool, len(restB0s))
	for _, p := range restB0s {
		rest[p] = true
	}
	shift := 0
	for i := 0; i < origNV; i++ {
		if rest[i] {
			out.SetChannel(i, b0)
			shift++
			continue
		}
		out.SetChannel(i, denoised.Channel(i-shift))
	}
	return out
}
