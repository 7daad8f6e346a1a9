// Package volume provides the in-memory data model for multi-shell
// diffusion-weighted datasets: a 4-D intensity volume with a trailing
// gradient-direction axis, a 3-D binary mask and a 3-D noise-variance map,
// together with the overlapping-block codec used by the sparse denoiser.
package volume

import (
	"fmt"
)

// Volume is a 4-D diffusion dataset stored as a flat slice in (Z, Y, X, V)
// order with the direction axis V varying fastest and Z slowest. A thick
// slab along the third spatial axis is therefore one contiguous sub-slice
// of Data, which lets the slab scheduler hand out zero-copy views.
type Volume struct {
	// Data holds the voxel intensities, len NX*NY*NZ*NV.
	Data []float64

	// NX, NY, NZ are the spatial extents in voxels.
	NX, NY, NZ int

	// NV is the number of gradient directions (b0 channels included).
	NV int
}

// NewVolume allocates a zero-filled volume with the given extents.
func NewVolume(nx, ny, nz, nv int) *Volume {
	return &Volume{
		Data: make([]float64, nx*ny*nz*nv),
		NX:   nx,
		NY:   ny,
		NZ:   nz,
		NV:   nv,
	}
}

// Idx returns the flat index of voxel (x, y, z) at direction v.
func (vol *Volume) Idx(x, y, z, v int) int {
	return ((z*vol.NY+y)*vol.NX+x)*vol.NV + v
}

// At returns the intensity of voxel (x, y, z) at direction v.
func (vol *Volume) At(x, y, z, v int) float64 {
	return vol.Data[vol.Idx(x, y, z, v)]
}

// Set stores the intensity of voxel (x, y, z) at direction v.
func (vol *Volume) Set(x, y, z, v int, val float64) {
	vol.Data[vol.Idx(x, y, z, v)] = val
}

// Slab returns a view of the z range [z0, z1). The view shares backing
// storage with the receiver; writes through either are visible to both.
func (vol *Volume) Slab(z0, z1 int) *Volume {
	stride := vol.NY * vol.NX * vol.NV
	return &Volume{
		Data: vol.Data[z0*stride : z1*stride],
		NX:   vol.NX,
		NY:   vol.NY,
		NZ:   z1 - z0,
		NV:   vol.NV,
	}
}

// Channel extracts direction v as a flat 3-D array in (Z, Y, X) order.
func (vol *Volume) Channel(v int) []float64 {
	out := make([]float64, vol.NX*vol.NY*vol.NZ)
	for i := range out {
		out[i] = vol.Data[i*vol.NV+v]
	}
	return out
}

// SetChannel overwrites direction v from a flat 3-D array in (Z, Y, X) order.
func (vol *Volume) SetChannel(v int, vals []float64) {
	for i, val := range vals {
		vol.Data[i*vol.NV+v] = val
	}
}

// Gather builds a new volume whose direction axis is the given sequence of
// source directions, in order. Directions may repeat.
func (vol *Volume) Gather(dirs []int) *Volume {
	out := NewVolume(vol.NX, vol.NY, vol.NZ, len(dirs))
	voxels := vol.NX * vol.NY * vol.NZ
	for i := 0; i < voxels; i++ {
		src := vol.Data[i*vol.NV : (i+1)*vol.NV]
		dst := out.Data[i*len(dirs) : (i+1)*len(dirs)]
		for c, d := range dirs {
			dst[c] = src[d]
		}
	}
	return out
}

// MeanChannels returns the voxel-wise mean over the given directions as a
// flat 3-D array in (Z, Y, X) order.
func (vol *Volume) MeanChannels(dirs []int) []float64 {
	voxels := vol.NX * vol.NY * vol.NZ
	out := make([]float64, voxels)
	inv := 1.0 / float64(len(dirs))
	for i := 0; i < voxels; i++ {
		sum := 0.0
		for _, d := range dirs {
			sum += vol.Data[i*vol.NV+d]
		}
		out[i] = sum * inv
	}
	return out
}

// SpatialShape returns the three spatial extents.
func (vol *Volume) SpatialShape() [3]int {
	return [3]int{vol.NX, vol.NY, vol.NZ}
}

// Mask is a 3-D boolean volume in (Z, Y, X) order marking the voxels that
// participate in dictionary training and sparse reconstruction.
type Mask struct {
	Data       []bool
	NX, NY, NZ int
}

// NewMask allocates an all-false mask with the given extents.
func NewMask(nx, ny, nz int) *Mask {
	return &Mask{Data: make([]bool, nx*ny*nz), NX: nx, NY: ny, NZ: nz}
}

// FullMask allocates an all-true mask with the given extents.
func FullMask(nx, ny, nz int) *Mask {
	m := NewMask(nx, ny, nz)
	for i := range m.Data {
		m.Data[i] = true
	}
	return m
}

// Idx returns the flat index of voxel (x, y, z).
func (m *Mask) Idx(x, y, z int) int { return (z*m.NY+y)*m.NX + x }

// At reports whether voxel (x, y, z) is inside the mask.
func (m *Mask) At(x, y, z int) bool { return m.Data[m.Idx(x, y, z)] }

// Slab returns a view of the z range [z0, z1), sharing backing storage.
func (m *Mask) Slab(z0, z1 int) *Mask {
	stride := m.NY * m.NX
	return &Mask{Data: m.Data[z0*stride : z1*stride], NX: m.NX, NY: m.NY, NZ: z1 - z0}
}

// VarianceMap is a 3-D noise-variance estimate in (Z, Y, X) order. It is
// broadcast over the direction axis wherever a 4-D view is needed.
type VarianceMap struct {
	Data       []float64
	NX, NY, NZ int
}

// NewVarianceMap allocates a zero variance map with the given extents.
func NewVarianceMap(nx, ny, nz int) *VarianceMap {
	return &VarianceMap{Data: make([]float64, nx*ny*nz), NX: nx, NY: ny, NZ: nz}
}

// UniformVariance allocates a variance map holding the same value everywhere.
func UniformVariance(nx, ny, nz int, v float64) *VarianceMap {
	vm := NewVarianceMap(nx, ny, nz)
	for i := range vm.Data {
		vm.Data[i] = v
	}
	return vm
}

// Idx returns the flat index of voxel (x, y, z).
func (vm *VarianceMap) Idx(x, y, z int) int { return (z*vm.NY+y)*vm.NX + x }

// At returns the noise variance of voxel (x, y, z).
func (vm *VarianceMap) At(x, y, z int) float64 { return vm.Data[vm.Idx(x, y, z)] }

// Slab returns a view of the z range [z0, z1), sharing backing storage.
func (vm *VarianceMap) Slab(z0, z1 int) *VarianceMap {
	stride := vm.NY * vm.NX
	return &VarianceMap{Data: vm.Data[z0*stride : z1*stride], NX: vm.NX, NY: vm.NY, NZ: z1 - z0}
}

// CheckSpatialMatch verifies that the mask and variance map share the data
// volume's spatial extents. The returned error carries both shapes.
func CheckSpatialMatch(data *Volume, mask *Mask, variance *VarianceMap) error {
	if mask.NX != data.NX || mask.NY != data.NY || mask.NZ != data.NZ {
		return fmt.Errorf("mask shape [%d %d %d] does not match data shape [%d %d %d]",
			mask.NX, mask.NY, mask.NZ, data.NX, data.NY, data.NZ)
	}
	if variance.NX != data.NX || variance.NY != data.NY || variance.NZ != data.NZ {
		return fmt.Errorf("variance shape [%d %d %d] does not match data shape [%d %d %d]",
			variance.NX, variance.NY, variance.NZ, data.NX, data.NY, data.NZ)
	}
	return nil
}
