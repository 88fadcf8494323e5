// Package raster reads, writes, and transforms single-band geo-referenced
// rasters stored as COARDS-style NetCDF files.
//
// A raster file holds one two-dimensional data variable with dimensions
// ("y", "x") plus global attributes describing its georeference: the origin
// (x0, y0), the pixel size (dx, dy), and an optional nodata sentinel. Grids
// are held in memory as *sparse.DenseArray in row-major order.
//
// All whole-raster operations (Apply, UniqueValues, Convolve) stream the
// data in row blocks so rasters larger than memory can be processed.
package raster

import (
	"math"

	"github.com/ctessum/sparse"

	"github.com/landmetrics/eftrich/pkg/errors"
)

// CellType selects the on-disk storage type of a raster variable.
type CellType int

const (
	// Byte stores cells as signed 8-bit integers (masks, kernels).
	Byte CellType = iota
	// Int32 stores cells as 32-bit integers (neighborhood counts).
	Int32
	// Float32 stores cells as 32-bit floats (general numeric data).
	Float32
)

// Info describes a raster's shape and georeference.
type Info struct {
	Nx, Ny    int     // columns, rows
	X0, Y0    float64 // origin of the grid in projected units
	DX, DY    float64 // pixel size in projected units
	NoData    float64 // nodata sentinel; meaningful only if HasNoData
	HasNoData bool
}

// Cells returns the total number of cells in the grid.
func (in Info) Cells() int { return in.Nx * in.Ny }

// MinDim returns the smaller of the grid's two dimensions in cells.
func (in Info) MinDim() int {
	if in.Nx < in.Ny {
		return in.Nx
	}
	return in.Ny
}

// IsNoData reports whether v is invalid under this raster's nodata
// convention. Rasters that declare no nodata value treat non-finite cells
// as invalid.
func (in Info) IsNoData(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return in.HasNoData && v == in.NoData
}

// AlignedWith reports whether two rasters share shape, origin, and pixel
// size within floating-point tolerance.
func (in Info) AlignedWith(other Info) bool {
	return in.Nx == other.Nx && in.Ny == other.Ny &&
		near(in.X0, other.X0) && near(in.Y0, other.Y0) &&
		near(in.DX, other.DX) && near(in.DY, other.DY)
}

func near(a, b float64) bool {
	const tol = 1e-9
	d := math.Abs(a - b)
	if d <= tol {
		return true
	}
	return d <= tol*math.Max(math.Abs(a), math.Abs(b))
}

// checkAligned returns an EXTENT_MISMATCH error naming both paths when the
// two rasters do not line up.
func checkAligned(base Info, basePath string, other Info, otherPath string) error {
	if base.AlignedWith(other) {
		return nil
	}
	return errors.New(errors.ErrCodeExtentMismatch,
		"raster %s (%dx%d at %g,%g step %g,%g) is not aligned with %s (%dx%d at %g,%g step %g,%g)",
		otherPath, other.Nx, other.Ny, other.X0, other.Y0, other.DX, other.DY,
		basePath, base.Nx, base.Ny, base.X0, base.Y0, base.DX, base.DY)
}

// Grid bundles a fully loaded raster with its metadata.
type Grid struct {
	Info Info
	Data *sparse.DenseArray // shape [Ny, Nx], row-major
}

// At returns the cell value at row r, column c.
func (g *Grid) At(r, c int) float64 {
	return g.Data.Elements[r*g.Info.Nx+c]
}

// Set assigns the cell value at row r, column c.
func (g *Grid) Set(v float64, r, c int) {
	g.Data.Elements[r*g.Info.Nx+c] = v
}

// NewGrid allocates a zero-filled grid with the given metadata.
func NewGrid(info Info) *Grid {
	return &Grid{Info: info, Data: sparse.ZerosDense(info.Ny, info.Nx)}
}
