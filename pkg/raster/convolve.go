package raster

import (
	"github.com/landmetrics/eftrich/pkg/errors"
)

// CountNoData is the nodata sentinel on neighborhood-count rasters.
const CountNoData = -1

// kernelOffset is one set kernel cell expressed as a row/column offset from
// the cell under the kernel's center.
type kernelOffset struct {
	dr, dc int
}

// Convolve computes a spatial neighborhood sum: each output cell holds the
// number of mask cells valued 1 within the kernel's footprint centered on
// that cell. Mask cells holding anything other than 1, including the
// invalid sentinel, contribute nothing to the sum, as do cells outside
// the grid.
//
// The kernel must be a square, even-sided, pixel-unit raster as produced by
// DiscKernel; anything else is rejected rather than guessed at. The mask is
// streamed in row blocks with a halo of kernel-radius rows, so arbitrarily
// large masks stay within bounded memory.
func Convolve(outPath, maskPath, kernelPath string) error {
	kernel, err := Read(kernelPath)
	if err != nil {
		return err
	}
	offsets, n, err := kernelOffsets(kernel, kernelPath)
	if err != nil {
		return err
	}

	mask, err := OpenReader(maskPath)
	if err != nil {
		return err
	}
	defer mask.Close()

	out := mask.Info
	out.NoData, out.HasNoData = CountNoData, true
	w, err := CreateWriter(outPath, out, Int32)
	if err != nil {
		return err
	}

	nx, ny := out.Nx, out.Ny
	for r0 := 0; r0 < ny; r0 += blockRows {
		r1 := min(r0+blockRows, ny)

		// The kernel reaches n rows up and n-1 rows down from each
		// output row, so read the block with that halo.
		h0 := max(r0-n, 0)
		h1 := min(r1+n, ny)
		halo, err := mask.ReadRows(h0, h1)
		if err != nil {
			w.Abort()
			return err
		}

		outVals := make([]float64, (r1-r0)*nx)
		for r := r0; r < r1; r++ {
			for c := 0; c < nx; c++ {
				sum := 0
				for _, off := range offsets {
					mr, mc := r+off.dr, c+off.dc
					if mr < h0 || mr >= h1 || mc < 0 || mc >= nx {
						continue
					}
					if halo[(mr-h0)*nx+mc] == 1 {
						sum++
					}
				}
				outVals[(r-r0)*nx+c] = float64(sum)
			}
		}
		if err := w.WriteRows(r0, r1, outVals); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}

// kernelOffsets validates the kernel's shape and pixel-unit georeference and
// flattens its set cells into center-relative offsets. Returns the offsets
// and the kernel's pixel radius.
func kernelOffsets(kernel *Grid, path string) ([]kernelOffset, int, error) {
	in := kernel.Info
	if in.Nx != in.Ny || in.Nx%2 != 0 || in.Nx < 2 {
		return nil, 0, errors.New(errors.ErrCodeKernelMismatch,
			"kernel %s is %dx%d; want an even-sided square of side 2*n_pixels",
			path, in.Nx, in.Ny)
	}
	if !near(in.DX, 1) || !near(in.DY, 1) {
		return nil, 0, errors.New(errors.ErrCodeKernelMismatch,
			"kernel %s has pixel size %gx%g; kernels must be in pixel units (1x1)",
			path, in.DX, in.DY)
	}
	n := in.Nx / 2
	var offsets []kernelOffset
	for r := 0; r < in.Ny; r++ {
		for c := 0; c < in.Nx; c++ {
			if kernel.At(r, c) == 1 {
				offsets = append(offsets, kernelOffset{dr: r - n, dc: c - n})
			}
		}
	}
	return offsets, n, nil
}
