package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
)

func TestCollectStatsAllNoData(t *testing.T) {
	dir := t.TempDir()
	vals := make([]float64, 16)
	for i := range vals {
		vals[i] = testNoData
	}
	path := writeRaster(t, dir, "empty.nc", 4, 4, vals)

	st, err := collectStats(path)
	if err != nil {
		t.Fatalf("collectStats: %v", err)
	}
	if st.ValidCells != 0 {
		t.Errorf("valid cells = %d, want 0", st.ValidCells)
	}
	if len(st.Histogram) != 0 {
		t.Errorf("histogram = %v, want empty", st.Histogram)
	}
}

func TestWriteStatsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	outputs := []Output{
		{
			Input:      "land.nc",
			CountPath:  "land_eft_count.nc",
			Categories: []int{1, 2},
			Stats: OutputStats{
				ValidCells: 15,
				Min:        1, Max: 2,
				Mean:      1.4666666666666666,
				Std:       0.5163977794943222,
				Histogram: map[int]int64{1: 8, 2: 7},
			},
		},
	}
	if err := writeStatsCSV(path, "run-123", outputs); err != nil {
		t.Fatalf("writeStatsCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	rec := rows[1]
	if rec[0] != "run-123" || rec[1] != "land.nc" {
		t.Errorf("row = %v", rec)
	}
	if rec[3] != "2" || rec[4] != "15" {
		t.Errorf("categories/cells = %s/%s, want 2/15", rec[3], rec[4])
	}
	if rec[9] != "1=8;2=7" {
		t.Errorf("histogram column = %q, want 1=8;2=7", rec[9])
	}
}
