package raster

import (
	"github.com/landmetrics/eftrich/pkg/errors"
)

// KernelNoData is the nodata sentinel written on kernel rasters. The boolean
// disc test never produces it.
const KernelNoData = -1

// DiscKernel builds a binary disc kernel with a pixel radius of n. The
// kernel is a square grid of side 2*n where cell (r, c) is 1 iff its
// Euclidean distance from the center (n, n) is strictly less than n, else 0.
// The result is georeferenced in pixel units (dx = dy = 1) because one
// kernel is shared by every raster that resolves to the same pixel radius,
// whatever their projected resolutions.
func DiscKernel(n int) (*Grid, error) {
	if err := errors.ValidatePixelRadius(n); err != nil {
		return nil, err
	}
	side := 2 * n
	g := NewGrid(Info{
		Nx: side, Ny: side,
		DX: 1, DY: 1,
		NoData: KernelNoData, HasNoData: true,
	})
	for r := 0; r < side; r++ {
		for c := 0; c < side; c++ {
			dr, dc := r-n, c-n
			if dr*dr+dc*dc < n*n {
				g.Set(1, r, c)
			}
		}
	}
	return g, nil
}

// WriteDiscKernel builds a disc kernel and writes it as a byte raster.
func WriteDiscKernel(path string, n int) error {
	g, err := DiscKernel(n)
	if err != nil {
		return err
	}
	return Write(path, g, Byte)
}
