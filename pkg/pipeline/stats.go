package pipeline

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/landmetrics/eftrich/pkg/raster"
)

// OutputStats summarizes the valid cells of one category count raster.
type OutputStats struct {
	ValidCells int64
	Min        float64
	Max        float64
	Mean       float64
	Std        float64

	// Histogram maps each category count value to the number of cells
	// holding it.
	Histogram map[int]int64
}

// statsBlockRows is the row block size for streaming the count raster.
const statsBlockRows = 256

// collectStats streams a count raster and summarizes its valid cells.
// Count values are small non-negative integers, so the summary works off
// a histogram rather than the raw cells.
func collectStats(path string) (OutputStats, error) {
	r, err := raster.OpenReader(path)
	if err != nil {
		return OutputStats{}, err
	}
	defer r.Close()

	hist := make(map[int]int64)
	for r0 := 0; r0 < r.Info.Ny; r0 += statsBlockRows {
		r1 := min(r0+statsBlockRows, r.Info.Ny)
		vals, err := r.ReadRows(r0, r1)
		if err != nil {
			return OutputStats{}, err
		}
		for _, v := range vals {
			if r.Info.IsNoData(v) {
				continue
			}
			hist[int(math.Round(v))]++
		}
	}

	st := OutputStats{Histogram: hist}
	if len(hist) == 0 {
		return st, nil
	}

	values := make([]float64, 0, len(hist))
	weights := make([]float64, 0, len(hist))
	for k := range hist {
		values = append(values, float64(k))
	}
	sort.Float64s(values)
	for _, v := range values {
		n := hist[int(v)]
		weights = append(weights, float64(n))
		st.ValidCells += n
	}
	st.Min = floats.Min(values)
	st.Max = floats.Max(values)
	st.Mean = stat.Mean(values, weights)
	if st.ValidCells > 1 {
		st.Std = stat.StdDev(values, weights)
	}
	return st, nil
}

// writeStatsCSV writes the per-output summary rows for one run.
func writeStatsCSV(path, runID string, outputs []Output) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{
		"run_id", "input", "count_raster", "categories",
		"valid_cells", "min", "max", "mean", "std", "histogram",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write stats header: %w", err)
	}
	for _, o := range outputs {
		rec := []string{
			runID,
			o.Input,
			o.CountPath,
			strconv.Itoa(len(o.Categories)),
			strconv.FormatInt(o.Stats.ValidCells, 10),
			fmtFloat(o.Stats.Min),
			fmtFloat(o.Stats.Max),
			fmtFloat(o.Stats.Mean),
			fmtFloat(o.Stats.Std),
			fmtHistogram(o.Stats.Histogram),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write stats row for %s: %w", o.Input, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush stats file: %w", err)
	}
	return nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// fmtHistogram renders a histogram as "value=cells" pairs, ascending.
func fmtHistogram(hist map[int]int64) string {
	keys := make([]int, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += ";"
		}
		s += fmt.Sprintf("%d=%d", k, hist[k])
	}
	return s
}
