package raster

// TransformFunc computes one output cell from the corresponding cells of
// the aligned input rasters. cells holds one value per input, in the order
// the inputs were given; interpreting nodata is the transform's job.
type TransformFunc func(cells []float64) float64

// Apply streams one or more aligned input rasters through fn and writes the
// result to outPath with the given metadata and storage type. The inputs
// must share shape, origin, and pixel size; a mismatch is an error, never
// silently tolerated. The output file is removed if any stage of the write
// fails.
func Apply(outPath string, inputPaths []string, out Info, typ CellType, fn TransformFunc) error {
	readers := make([]*Reader, 0, len(inputPaths))
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	for _, p := range inputPaths {
		r, err := OpenReader(p)
		if err != nil {
			return err
		}
		readers = append(readers, r)
	}
	for i := 1; i < len(readers); i++ {
		if err := checkAligned(readers[0].Info, inputPaths[0], readers[i].Info, inputPaths[i]); err != nil {
			return err
		}
	}
	if err := checkAligned(readers[0].Info, inputPaths[0], out, outPath); err != nil {
		return err
	}

	w, err := CreateWriter(outPath, out, typ)
	if err != nil {
		return err
	}

	cells := make([]float64, len(readers))
	blocks := make([][]float64, len(readers))
	for r0 := 0; r0 < out.Ny; r0 += blockRows {
		r1 := min(r0+blockRows, out.Ny)
		for i, r := range readers {
			if blocks[i], err = r.ReadRows(r0, r1); err != nil {
				w.Abort()
				return err
			}
		}
		outVals := make([]float64, (r1-r0)*out.Nx)
		for j := range outVals {
			for i := range blocks {
				cells[i] = blocks[i][j]
			}
			outVals[j] = fn(cells)
		}
		if err := w.WriteRows(r0, r1, outVals); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}
