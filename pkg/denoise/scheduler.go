package denoise

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"nlsam/pkg/volume"
)

// slabResult carries one slab's private accumulation buffers back to the
// reduction step.
type slabResult struct {
	z0   int
	acc  *volume.Volume
	wacc *volume.Volume
	err  error
}

// denoiseNeighborhood runs the full pipeline for one direction
// neighborhood: train the dictionary sequentially, then fan the overlapping
// z-slabs out to a bounded worker pool and reduce the returned buffers with
// a single weighted division after the join.
func (d *Denoiser) denoiseNeighborhood(data *volume.Volume, mask *volume.Mask, variance *volume.VarianceMap, seed uint64) (*volume.Volume, error) {
	block := [3]int{d.Params.BlockSize[0], d.Params.BlockSize[1], d.Params.BlockSize[2]}
	overlap := [3]int{block[0] - 1, block[1] - 1, block[2] - 1}

	trainer := DictionaryTrainer{Learner: d.Trainer, Seed: seed}
	dict, err := trainer.Train(data, mask, block)
	if err != nil {
		return nil, err
	}
	_, atoms := dict.Dims()
	gram := mat.NewDense(atoms, atoms, nil)
	gram.Mul(dict.T(), dict)

	offsets := make([]int, 0, data.NZ-block[2]+1)
	for z0 := 0; z0+block[2] <= data.NZ; z0++ {
		offsets = append(offsets, z0)
	}

	workers := d.Params.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	results := make(chan slabResult, len(offsets))

	for _, z0 := range offsets {
		z0 := z0
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			solver := ReweightedSolver{
				Coder: d.Coder,
				NIter: d.Params.NIter,
				Seed:  seed + uint64(z0) + 1,
			}
			acc, wacc, err := solver.DenoiseSlab(
				data.Slab(z0, z0+block[2]),
				mask.Slab(z0, z0+block[2]),
				variance.Slab(z0, z0+block[2]),
				dict, gram, block, overlap)
			results <- slabResult{z0: z0, acc: acc, wacc: wacc, err: err}
		}()
	}

	acc := volume.NewVolume(data.NX, data.NY, data.NZ, data.NV)
	wacc := volume.NewVolume(data.NX, data.NY, data.NZ, data.NV)
	var firstErr error
	for range offsets {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("slab at z=%d: %w", res.z0, res.err)
			}
			continue
		}
		if firstErr != nil {
			continue
		}
		dst := acc.Slab(res.z0, res.z0+block[2])
		wdst := wacc.Slab(res.z0, res.z0+block[2])
		for i, v := range res.acc.Data {
			dst.Data[i] += v
			wdst.Data[i] += res.wacc.Data[i]
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}

	out := volume.NewVolume(data.NX, data.NY, data.NZ, data.NV)
	for i, w := range wacc.Data {
		if w != 0 {
			out.Data[i] = acc.Data[i] / w
		}
	}
	return out, nil
}
