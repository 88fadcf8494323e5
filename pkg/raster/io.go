package raster

import (
	"fmt"
	"io"
	"os"

	"github.com/ctessum/cdf"

	"github.com/landmetrics/eftrich/pkg/errors"
)

// dataVar is the variable name this package writes. Readers accept any
// single-variable file regardless of name.
const dataVar = "values"

// blockRows is the number of rows processed per streaming block.
const blockRows = 256

// ReadInfo reads raster metadata (shape, georeference, nodata) without
// loading cell data.
func ReadInfo(path string) (Info, error) {
	r, err := openReader(path)
	if err != nil {
		return Info{}, err
	}
	defer r.Close()
	return r.Info, nil
}

// Read loads a whole raster into memory.
func Read(path string) (*Grid, error) {
	r, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	g := NewGrid(r.Info)
	for r0 := 0; r0 < r.Info.Ny; r0 += blockRows {
		r1 := min(r0+blockRows, r.Info.Ny)
		vals, err := r.ReadRows(r0, r1)
		if err != nil {
			return nil, err
		}
		copy(g.Data.Elements[r0*r.Info.Nx:r1*r.Info.Nx], vals)
	}
	return g, nil
}

// Write stores a full grid at path with the given storage type. The target
// file is removed on error so a failed write never looks complete.
func Write(path string, g *Grid, typ CellType) error {
	w, err := CreateWriter(path, g.Info, typ)
	if err != nil {
		return err
	}
	if err := w.WriteRows(0, g.Info.Ny, g.Data.Elements); err != nil {
		w.Abort()
		return err
	}
	return w.Close()
}

// Reader streams a raster's cells in row blocks.
type Reader struct {
	Info Info

	f    *os.File
	cf   *cdf.File
	name string
	path string
}

// openReader opens path and decodes its header.
func openReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err, "open raster %s", path)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err, "decode raster %s", path)
	}

	name, err := pickVariable(cf)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err, "raster %s", path)
	}
	lens := cf.Header.Lengths(name)
	if len(lens) != 2 {
		f.Close()
		return nil, errors.New(errors.ErrCodeRasterIO,
			"raster %s: variable %q has %d dimensions, want 2", path, name, len(lens))
	}

	info := Info{Ny: lens[0], Nx: lens[1]}
	info.X0, _ = attrFloat(cf, "", "x0")
	info.Y0, _ = attrFloat(cf, "", "y0")
	var ok bool
	if info.DX, ok = attrFloat(cf, "", "dx"); !ok {
		info.DX = 1
	}
	if info.DY, ok = attrFloat(cf, "", "dy"); !ok {
		info.DY = info.DX
	}
	if v, ok := attrFloat(cf, "", "nodata"); ok {
		info.NoData, info.HasNoData = v, true
	} else if v, ok := attrFloat(cf, name, "_FillValue"); ok {
		info.NoData, info.HasNoData = v, true
	} else if v, ok := attrFloat(cf, name, "missing_value"); ok {
		info.NoData, info.HasNoData = v, true
	}

	return &Reader{Info: info, f: f, cf: cf, name: name, path: path}, nil
}

// OpenReader opens a raster for streaming reads.
func OpenReader(path string) (*Reader, error) {
	return openReader(path)
}

// ReadRows returns the cell values of rows [r0, r1) as float64, row-major.
func (r *Reader) ReadRows(r0, r1 int) ([]float64, error) {
	n := (r1 - r0) * r.Info.Nx
	cr := r.cf.Reader(r.name, []int{r0, 0}, []int{r1, r.Info.Nx})
	buf := cr.Zero(n)
	if _, err := cr.Read(buf); err != nil && err != io.EOF {
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err,
			"read rows %d-%d of %s", r0, r1, r.path)
	}
	return toFloat64(buf), nil
}

// Close releases the underlying file.
func (r *Reader) Close() error { return r.f.Close() }

// Writer streams cell values into a new raster file.
type Writer struct {
	info Info
	typ  CellType
	f    *os.File
	cf   *cdf.File
	path string
}

// CreateWriter creates a raster file at path and writes its header. Cell
// values follow via WriteRows; Close finalizes the file.
func CreateWriter(path string, info Info, typ CellType) (*Writer, error) {
	h := cdf.NewHeader([]string{"y", "x"}, []int{info.Ny, info.Nx})
	h.AddAttribute("", "Conventions", "COARDS")
	h.AddAttribute("", "x0", []float64{info.X0})
	h.AddAttribute("", "y0", []float64{info.Y0})
	h.AddAttribute("", "dx", []float64{info.DX})
	h.AddAttribute("", "dy", []float64{info.DY})
	if info.HasNoData {
		h.AddAttribute("", "nodata", []float64{info.NoData})
	}
	h.AddVariable(dataVar, []string{"y", "x"}, zeroValue(typ))
	if info.HasNoData {
		h.AddAttribute(dataVar, "_FillValue", fillValue(typ, info.NoData))
	}
	h.Define()

	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err, "create raster %s", path)
	}
	cf, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrap(errors.ErrCodeRasterIO, err, "write raster header %s", path)
	}
	return &Writer{info: info, typ: typ, f: f, cf: cf, path: path}, nil
}

// WriteRows stores the cell values for rows [r0, r1). vals must hold
// (r1-r0)*Nx values in row-major order.
func (w *Writer) WriteRows(r0, r1 int, vals []float64) error {
	n := (r1 - r0) * w.info.Nx
	if len(vals) != n {
		return errors.New(errors.ErrCodeInternal,
			"write rows %d-%d of %s: have %d values, want %d", r0, r1, w.path, len(vals), n)
	}
	cw := w.cf.Writer(dataVar, []int{r0, 0}, []int{r1, w.info.Nx})
	if _, err := cw.Write(typedValues(w.typ, vals)); err != nil {
		return errors.Wrap(errors.ErrCodeRasterIO, err,
			"write rows %d-%d of %s", r0, r1, w.path)
	}
	return nil
}

// Close finalizes the record count and closes the file.
func (w *Writer) Close() error {
	if err := cdf.UpdateNumRecs(w.f); err != nil {
		w.Abort()
		return errors.Wrap(errors.ErrCodeRasterIO, err, "finalize raster %s", w.path)
	}
	if err := w.f.Close(); err != nil {
		os.Remove(w.path)
		return errors.Wrap(errors.ErrCodeRasterIO, err, "close raster %s", w.path)
	}
	return nil
}

// Abort closes and removes the partially written file. A failed stage must
// not leave its target looking complete.
func (w *Writer) Abort() {
	w.f.Close()
	os.Remove(w.path)
}

// pickVariable returns the file's single data variable.
func pickVariable(cf *cdf.File) (string, error) {
	vars := cf.Header.Variables()
	var names []string
	for _, v := range vars {
		// Skip coordinate variables (named after a dimension).
		if len(cf.Header.Lengths(v)) == 2 {
			names = append(names, v)
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("no two-dimensional data variable found")
	}
	return names[0], nil
}

// attrFloat reads a numeric attribute, tolerating the handful of types the
// NetCDF encoders in the wild actually use.
func attrFloat(cf *cdf.File, varName, attr string) (float64, bool) {
	v := cf.Header.GetAttribute(varName, attr)
	if v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case []float64:
		if len(t) > 0 {
			return t[0], true
		}
	case []float32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int32:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []int16:
		if len(t) > 0 {
			return float64(t[0]), true
		}
	case []uint8:
		if len(t) > 0 {
			return float64(int8(t[0])), true
		}
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}

// toFloat64 widens a typed cdf buffer to float64.
func toFloat64(buf interface{}) []float64 {
	switch t := buf.(type) {
	case []float64:
		return t
	case []float32:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out
	case []int32:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out
	case []int16:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(v)
		}
		return out
	case []uint8:
		out := make([]float64, len(t))
		for i, v := range t {
			out[i] = float64(int8(v))
		}
		return out
	}
	return nil
}

// zeroValue returns the typed zero slice that fixes a new variable's
// storage type.
func zeroValue(typ CellType) interface{} {
	switch typ {
	case Byte:
		return []uint8{0}
	case Int32:
		return []int32{0}
	default:
		return []float32{0}
	}
}

// fillValue returns nodata as a one-element slice of the variable's type.
func fillValue(typ CellType, nodata float64) interface{} {
	switch typ {
	case Byte:
		return []uint8{uint8(int8(nodata))}
	case Int32:
		return []int32{int32(nodata)}
	default:
		return []float32{float32(nodata)}
	}
}

// typedValues narrows float64 cell values to the variable's storage type.
func typedValues(typ CellType, vals []float64) interface{} {
	switch typ {
	case Byte:
		out := make([]uint8, len(vals))
		for i, v := range vals {
			out[i] = uint8(int8(v))
		}
		return out
	case Int32:
		out := make([]int32, len(vals))
		for i, v := range vals {
			out[i] = int32(v)
		}
		return out
	default:
		out := make([]float32, len(vals))
		for i, v := range vals {
			out[i] = float32(v)
		}
		return out
	}
}
