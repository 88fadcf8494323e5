package raster

import (
	"math"
	"sort"
)

// UniqueValues scans a categorical raster once and returns the sorted set of
// distinct integer codes present. Cells equal to the raster's nodata
// sentinel are excluded, as are non-finite cells. The scan streams row
// blocks so memory stays bounded by the block size, not the raster.
func UniqueValues(path string) ([]int, error) {
	r, err := OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	seen := make(map[int]struct{})
	for r0 := 0; r0 < r.Info.Ny; r0 += blockRows {
		r1 := min(r0+blockRows, r.Info.Ny)
		vals, err := r.ReadRows(r0, r1)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if r.Info.IsNoData(v) {
				continue
			}
			seen[int(math.Round(v))] = struct{}{}
		}
	}

	codes := make([]int, 0, len(seen))
	for c := range seen {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes, nil
}
