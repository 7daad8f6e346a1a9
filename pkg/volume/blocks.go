package volume

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BlockGrid describes the window positions of one decomposition. The same
// grid must be used to reassemble what Decompose produced.
type BlockGrid struct {
	// XS, YS, ZS are the window origins along each spatial axis.
	XS, YS, ZS []int

	// Block is the spatial window extent (bx, by, bz).
	Block [3]int

	// NV is the direction count of the decomposed volume.
	NV int
}

// Cols returns the number of windows, the column count of the decomposed
// matrix.
func (g *BlockGrid) Cols() int { return len(g.XS) * len(g.YS) * len(g.ZS) }

// Rows returns the flattened window length, the row count of the decomposed
// matrix.
func (g *BlockGrid) Rows() int { return g.Block[0] * g.Block[1] * g.Block[2] * g.NV }

// axisPositions lists window origins along one axis: 0, step, 2*step, ...
// plus a final origin clamped to extent-block so the last window stays
// in-bounds. step is block-overlap.
func axisPositions(extent, block, overlap int) []int {
	step := block - overlap
	if step < 1 {
		step = 1
	}
	var pos []int
	for p := 0; p+block <= extent; p += step {
		pos = append(pos, p)
	}
	last := extent - block
	if len(pos) == 0 || pos[len(pos)-1] != last {
		pos = append(pos, last)
	}
	return pos
}

// Decompose extracts every overlapping spatial window of the given block
// extent and returns them as the columns of a dense matrix. Each column is
// a window flattened in (z, y, x, v) order with v fastest; columns are laid
// out in raster order, x windows fastest and z windows slowest. The overlap
// is per spatial axis and must be smaller than the block on that axis.
func Decompose(vol *Volume, block [3]int, overlap [3]int) (*mat.Dense, *BlockGrid, error) {
	for a := 0; a < 3; a++ {
		if block[a] < 1 || overlap[a] < 0 || overlap[a] >= block[a] {
			return nil, nil, fmt.Errorf("block %v with overlap %v is not a valid window", block, overlap)
		}
	}
	if block[0] > vol.NX || block[1] > vol.NY || block[2] > vol.NZ {
		return nil, nil, fmt.Errorf("block %v exceeds volume shape [%d %d %d]", block, vol.NX, vol.NY, vol.NZ)
	}

	grid := &BlockGrid{
		XS:    axisPositions(vol.NX, block[0], overlap[0]),
		YS:    axisPositions(vol.NY, block[1], overlap[1]),
		ZS:    axisPositions(vol.NZ, block[2], overlap[2]),
		Block: block,
		NV:    vol.NV,
	}

	out := mat.NewDense(grid.Rows(), grid.Cols(), nil)
	col := 0
	for _, z0 := range grid.ZS {
		for _, y0 := range grid.YS {
			for _, x0 := range grid.XS {
				row := 0
				for dz := 0; dz < block[2]; dz++ {
					for dy := 0; dy < block[1]; dy++ {
						base := vol.Idx(x0, y0+dy, z0+dz, 0)
						n := block[0] * vol.NV
						src := vol.Data[base : base+n]
						for i := 0; i < n; i++ {
							out.Set(row+i, col, src[i])
						}
						row += n
					}
				}
				col++
			}
		}
	}
	return out, grid, nil
}

// Reassemble scatters the columns back onto a volume of the grid's original
// shape. Each column is multiplied by its weight before accumulation; the
// returned weight volume counts the total weight deposited on each sample.
// The caller divides acc by weight once all contributions are summed, which
// lets several reassembled results share a single division. weights may be
// nil, meaning all ones.
func Reassemble(cols mat.Matrix, grid *BlockGrid, shape [3]int, weights []float64) (*Volume, *Volume, error) {
	r, c := cols.Dims()
	if r != grid.Rows() || c != grid.Cols() {
		return nil, nil, fmt.Errorf("column matrix %dx%d does not match grid %dx%d", r, c, grid.Rows(), grid.Cols())
	}
	if weights != nil && len(weights) != c {
		return nil, nil, fmt.Errorf("got %d weights for %d columns", len(weights), c)
	}

	acc := NewVolume(shape[0], shape[1], shape[2], grid.NV)
	wacc := NewVolume(shape[0], shape[1], shape[2], grid.NV)
	block := grid.Block
	col := 0
	for _, z0 := range grid.ZS {
		for _, y0 := range grid.YS {
			for _, x0 := range grid.XS {
				w := 1.0
				if weights != nil {
					w = weights[col]
				}
				row := 0
				for dz := 0; dz < block[2]; dz++ {
					for dy := 0; dy < block[1]; dy++ {
						base := acc.Idx(x0, y0+dy, z0+dz, 0)
						n := block[0] * grid.NV
						for i := 0; i < n; i++ {
							acc.Data[base+i] += w * cols.At(row+i, col)
							wacc.Data[base+i] += w
						}
						row += n
					}
				}
				col++
			}
		}
	}
	return acc, wacc, nil
}

// MaskFractions returns, per window of the grid, the fraction of voxels
// inside the mask. Windows are visited in the grid's raster order.
func MaskFractions(m *Mask, grid *BlockGrid) []float64 {
	block := grid.Block
	voxels := float64(block[0] * block[1] * block[2])
	out := make([]float64, 0, grid.Cols())
	for _, z0 := range grid.ZS {
		for _, y0 := range grid.YS {
			for _, x0 := range grid.XS {
				inside := 0
				for dz := 0; dz < block[2]; dz++ {
					for dy := 0; dy < block[1]; dy++ {
						base := m.Idx(x0, y0+dy, z0+dz)
						for dx := 0; dx < block[0]; dx++ {
							if m.Data[base+dx] {
								inside++
							}
						}
					}
				}
				out = append(out, float64(inside)/voxels)
			}
		}
	}
	return out
}

// VarianceMedians returns, per window of the grid, the median noise variance
// over the voxels of the window. The variance map broadcasts over the
// direction axis, which leaves the median unchanged, so the 3-D window
// median stands in for the flattened 4-D one. Windows are visited in the
// grid's raster order.
func VarianceMedians(vm *VarianceMap, grid *BlockGrid) []float64 {
	block := grid.Block
	out := make([]float64, 0, grid.Cols())
	buf := make([]float64, 0, block[0]*block[1]*block[2])
	for _, z0 := range grid.ZS {
		for _, y0 := range grid.YS {
			for _, x0 := range grid.XS {
				buf = buf[:0]
				for dz := 0; dz < block[2]; dz++ {
					for dy := 0; dy < block[1]; dy++ {
						base := vm.Idx(x0, y0+dy, z0+dz)
						buf = append(buf, vm.Data[base:base+block[0]]...)
					}
				}
				out = append(out, median(buf))
			}
		}
	}
	return out
}

// median sorts its argument in place and returns the midpoint value.
func median(v []float64) float64 {
	sort.Float64s(v)
	return stat.Quantile(0.5, stat.LinInterp, v, nil)
}
