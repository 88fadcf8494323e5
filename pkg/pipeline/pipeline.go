// Package pipeline computes per-pixel habitat richness for categorical
// raster layers: for every pixel, the number of distinct category codes
// reachable within one or more search radii.
//
// # Architecture
//
// For each input raster the pipeline runs five stages on a shared task
// graph:
//
//  1. Discover: enumerate the distinct category codes in the raster
//  2. Kernel: build one disc kernel per search radius, shared run-wide
//  3. Mask: build a binary presence mask per category
//  4. Count: windowed neighborhood sum of each mask under each kernel
//  5. Aggregate: per pixel, count the categories reachable at any radius
//
// Stages are file-producing tasks in a [taskgraph.Graph], so kernels are
// built at most once per run, completed artifacts from earlier runs are
// reused, and a failure skips only its dependents.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, logger)
//	opts := pipeline.Options{
//	    Inputs:    []string{"landcover.nc"},
//	    Radii:     []float64{300, 1000},
//	    Workspace: "richness_workspace",
//	}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	count := result.Outputs[0].CountPath
package pipeline

import (
	"io"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/landmetrics/eftrich/pkg/errors"
	"github.com/landmetrics/eftrich/pkg/taskgraph"
)

// DefaultWorkspace is the directory that holds intermediate and output
// rasters when none is configured.
const DefaultWorkspace = "eftrich_workspace"

// DefaultWorkers is the worker pool bound when none is configured. Zero
// lets the task graph fall back to runtime.NumCPU().
const DefaultWorkers = 0

// Options contains all configuration for a pipeline run.
type Options struct {
	// Inputs are the categorical raster files to process. Use
	// ExpandPatterns to resolve glob patterns first.
	Inputs []string

	// Radii are the search radii in the rasters' projected units. Each
	// radius becomes one kernel and one neighborhood count per category.
	Radii []float64

	// Force disables the guard that rejects radii spanning more than 5%
	// of the raster's shorter side.
	Force bool

	// Workers bounds the number of tasks executing concurrently.
	Workers int

	// Workspace is the directory for intermediate and output rasters.
	Workspace string

	// Hooks receives task lifecycle events, e.g. for a progress display.
	Hooks taskgraph.Hooks

	// Logger overrides the runner's logger for this run.
	Logger *log.Logger

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Inputs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one input raster is required")
	}
	if len(o.Radii) == 0 {
		return errors.New(errors.ErrCodeInvalidRadius, "at least one search radius is required")
	}
	for _, r := range o.Radii {
		if r <= 0 {
			return errors.New(errors.ErrCodeInvalidRadius, "search radius must be positive, got %g", r)
		}
	}
	if o.Workspace == "" {
		o.Workspace = DefaultWorkspace
	}
	if o.Workers < 0 {
		o.Workers = DefaultWorkers
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ExpandPatterns resolves glob patterns to raster paths. A pattern that
// matches nothing is an error rather than a silent no-op, and duplicate
// matches across patterns are dropped.
func ExpandPatterns(patterns []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPattern, err, "bad pattern %q", pattern)
		}
		if len(matches) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidPattern, "pattern %q matched no files", pattern)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	return paths, nil
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// RunID identifies the run in logs and the stats file.
	RunID string

	// Outputs holds one entry per input raster whose aggregation
	// succeeded, in input order.
	Outputs []Output

	// StatsPath is the per-run statistics CSV, empty if no output
	// succeeded.
	StatsPath string

	// Stats contains run-level counters and timing.
	Stats Stats
}

// Output describes the result for one input raster.
type Output struct {
	// Input is the source raster path.
	Input string

	// CountPath is the per-pixel category count raster.
	CountPath string

	// Categories are the distinct codes discovered in the input, sorted.
	Categories []int

	// Stats summarizes the count raster's valid cells.
	Stats OutputStats
}

// Stats contains run execution statistics.
type Stats struct {
	Tasks    int           // tasks submitted
	Reused   int           // tasks satisfied by a prior run's artifact
	Duration time.Duration // wall time from scheduling to Join
}
