// Package pkg provides the core libraries for eftrich habitat richness
// analysis.
//
// # Overview
//
// eftrich computes, for every pixel of a categorical raster, the number
// of distinct habitat category codes reachable within one or more search
// radii. The pkg directory is organized into five main areas:
//
//  1. [raster] - Gridded raster model and NetCDF I/O (masks, kernels, convolution)
//  2. [taskgraph] - Concurrent file-producing task graph with fingerprint reuse
//  3. [pipeline] - Orchestration (discover → mask → count → aggregate)
//  4. [cache] - Task fingerprint caches (file, Redis, null)
//  5. [errors] - Coded errors and radius validation
//
// # Architecture
//
// The typical data flow through eftrich:
//
//	Categorical raster (NetCDF)
//	         ↓
//	    [pipeline] discovers category codes
//	         ↓
//	    [raster] builds per-category masks and disc kernels
//	         ↓
//	    [raster] convolves each mask under each kernel
//	         ↓
//	    per-pixel richness count raster + summary statistics
//
// All stages run as tasks on a [taskgraph.Graph], so independent work is
// parallel, artifacts are deduplicated by target path, and completed
// outputs from earlier runs are skipped via [cache] fingerprints.
//
// # Quick Start
//
// Compute richness counts for a landcover raster:
//
//	import (
//	    "context"
//	    "github.com/landmetrics/eftrich/pkg/cache"
//	    "github.com/landmetrics/eftrich/pkg/pipeline"
//	)
//
//	c, _ := cache.NewFileCache("workspace/.cache")
//	runner := pipeline.NewRunner(c, nil)
//	result, err := runner.Execute(context.Background(), pipeline.Options{
//	    Inputs: []string{"landcover.nc"},
//	    Radii:  []float64{300, 1000},
//	})
//
// # Main Packages
//
// [raster] - Raster domain model. Streamed NetCDF reads and writes,
// per-category binary masks, circular pixel-unit kernels, and windowed
// neighborhood sums over no-data aware grids.
//
// [taskgraph] - Bounded-concurrency execution of file-producing tasks.
// Tasks declare targets and dependencies; the graph dedupes by target,
// skips tasks whose fingerprints match a prior run, and fails dependents
// without aborting unrelated work.
//
// [pipeline] - The complete richness pipeline used by the CLI. Validates
// options, expands input patterns, wires tasks per input and radius, and
// aggregates summary statistics into a CSV report.
//
// [cache] - Fingerprint storage behind a small Cache interface with file,
// Redis, and null backends.
//
// [errors] - Coded errors carried across package boundaries, plus radius
// and extent validation shared by the CLI and pipeline.
//
// [buildinfo] - Version metadata injected at build time.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...               # All tests
//	go test ./pkg/raster/...        # Specific package
//
// [raster]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/raster
// [taskgraph]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/taskgraph
// [pipeline]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/cache
// [errors]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/errors
// [buildinfo]: https://pkg.go.dev/github.com/landmetrics/eftrich/pkg/buildinfo
package pkg
