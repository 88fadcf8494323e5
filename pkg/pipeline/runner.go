package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/landmetrics/eftrich/pkg/cache"
	"github.com/landmetrics/eftrich/pkg/errors"
	"github.com/landmetrics/eftrich/pkg/raster"
	"github.com/landmetrics/eftrich/pkg/taskgraph"
)

// Mask cell values. The invalid sentinel marks source nodata so it can
// never be confused with category absence.
const (
	maskClear   = 0
	maskSet     = 1
	maskInvalid = 2
)

// kernelsDir is the shared kernel directory under the workspace. Kernels
// depend only on the pixel radius, so every raster in a run shares them.
const kernelsDir = "kernels"

// Runner executes the richness pipeline with fingerprint caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store run results. Multiple goroutines can safely use the same Runner
// with different options.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner with the given fingerprint cache.
// If c is nil, a NullCache is used (artifact reuse across runs disabled).
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// Execute runs the discover → kernel → mask → count → aggregate pipeline
// for every input raster on one shared task graph.
//
// Configuration problems (unreadable input, radius too large for the grid)
// abort before anything is scheduled. Once scheduled, a stage failure skips
// only its dependents: the returned Result holds the outputs that did
// succeed even when the error is non-nil.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	logger := r.runLogger(opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	plans, err := r.preparePlans(opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := time.Now()
	logger.Info("starting run",
		"run_id", runID,
		"inputs", len(plans),
		"radii", opts.Radii,
		"workspace", opts.Workspace)

	g := taskgraph.New(ctx, taskgraph.Options{
		Workers: opts.Workers,
		Cache:   r.Cache,
		Logger:  logger,
		Hooks:   opts.Hooks,
	})
	defer g.Close()

	kernels := newKernelSet(g, filepath.Join(opts.Workspace, kernelsDir))

	// Submit every discovery and kernel first. Kernels depend only on the
	// pixel radii known from the headers, so they build while the inputs
	// are still being scanned; the per-category fan expands as each
	// raster's categories arrive.
	for _, p := range plans {
		p.categories = taskgraph.AddResult(g, taskgraph.Spec{
			Name: fmt.Sprintf("discover %s", p.base),
		}, func(ctx context.Context) ([]int, error) {
			return raster.UniqueValues(p.input)
		})
		p.discover = p.categories.Task()
		for _, n := range p.nPixels {
			kernels.get(n)
		}
	}
	for _, p := range plans {
		cats, err := p.categories.Get(ctx)
		if err != nil {
			// Already a task failure; Join reports it.
			continue
		}
		p.cats = cats
		logger.Info("discovered categories", "input", p.base, "categories", len(cats))
		r.addRasterTasks(g, kernels, p, opts)
	}

	runErr := g.Join()

	result := &Result{RunID: runID}
	for _, t := range g.Tasks() {
		result.Stats.Tasks++
		if t.Cached() {
			result.Stats.Reused++
		}
	}
	for _, p := range plans {
		if p.aggregate == nil || p.aggregate.State() != taskgraph.StateDone {
			continue
		}
		st, err := collectStats(p.countPath)
		if err != nil {
			runErr = stderrors.Join(runErr, err)
			continue
		}
		result.Outputs = append(result.Outputs, Output{
			Input:      p.input,
			CountPath:  p.countPath,
			Categories: p.cats,
			Stats:      st,
		})
	}
	if len(result.Outputs) > 0 {
		statsPath := filepath.Join(opts.Workspace,
			fmt.Sprintf("eft_stats_%s.csv", start.UTC().Format("20060102_150405")))
		if err := writeStatsCSV(statsPath, runID, result.Outputs); err != nil {
			runErr = stderrors.Join(runErr, err)
		} else {
			result.StatsPath = statsPath
		}
	}
	result.Stats.Duration = time.Since(start)

	logger.Info("run finished",
		"run_id", runID,
		"outputs", len(result.Outputs),
		"tasks", result.Stats.Tasks,
		"reused", result.Stats.Reused,
		"duration", result.Stats.Duration.Round(time.Millisecond))
	return result, runErr
}

// Plan builds the full task graph for the given options without executing
// any work and returns it in Graphviz DOT format. Category discovery still
// reads the inputs; everything downstream is planned only.
func (r *Runner) Plan(ctx context.Context, opts Options) (string, error) {
	logger := r.runLogger(opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return "", err
	}
	plans, err := r.preparePlans(opts)
	if err != nil {
		return "", err
	}

	g := taskgraph.New(ctx, taskgraph.Options{
		Workers: opts.Workers,
		Logger:  logger,
		DryRun:  true,
	})
	defer g.Close()

	kernels := newKernelSet(g, filepath.Join(opts.Workspace, kernelsDir))
	for _, p := range plans {
		cats, err := raster.UniqueValues(p.input)
		if err != nil {
			return "", err
		}
		p.cats = cats
		p.discover = g.Add(taskgraph.Spec{
			Name: fmt.Sprintf("discover %s", p.base),
			Do:   func(ctx context.Context) error { return nil },
		})
		r.addRasterTasks(g, kernels, p, opts)
	}
	if err := g.Join(); err != nil {
		return "", err
	}
	return g.DOT(), nil
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// rasterPlan is the per-input bookkeeping for one run.
type rasterPlan struct {
	input   string
	base    string
	dir     string
	info    raster.Info
	nPixels []int // distinct pixel radii, ascending

	cats       []int
	discover   *taskgraph.Task
	categories *taskgraph.Future[[]int]
	aggregate  *taskgraph.Task
	countPath  string
}

// preparePlans reads each input's header and validates every radius
// against its grid. Any configuration problem aborts the run before a
// single task is scheduled.
func (r *Runner) preparePlans(opts Options) ([]*rasterPlan, error) {
	plans := make([]*rasterPlan, 0, len(opts.Inputs))
	for _, input := range opts.Inputs {
		info, err := raster.ReadInfo(input)
		if err != nil {
			return nil, err
		}
		pixelSize := math.Abs(info.DX)
		if err := errors.ValidateRadii(opts.Radii, pixelSize, info.MinDim(), opts.Force); err != nil {
			return nil, errors.Wrap(errors.GetCode(err), err, "input %s", input)
		}
		// Radii that round to the same pixel radius share one kernel and
		// one neighborhood count, so collapse them here.
		seen := make(map[int]bool)
		var nPixels []int
		for _, radius := range opts.Radii {
			n := errors.PixelRadius(radius, pixelSize)
			if !seen[n] {
				seen[n] = true
				nPixels = append(nPixels, n)
			}
		}
		sort.Ints(nPixels)
		base := baseName(input)
		plans = append(plans, &rasterPlan{
			input:   input,
			base:    base,
			dir:     filepath.Join(opts.Workspace, base),
			info:    info,
			nPixels: nPixels,
		})
	}
	return plans, nil
}

// addRasterTasks expands one raster's category set into its mask, count,
// and aggregate tasks.
func (r *Runner) addRasterTasks(g *taskgraph.Graph, kernels *kernelSet, p *rasterPlan, opts Options) {
	var counts []*taskgraph.Task
	var reachPaths []string
	for _, code := range p.cats {
		mp := filepath.Join(p.dir, fmt.Sprintf("mask_%d.nc", code))
		mask := g.Add(taskgraph.Spec{
			Name:    fmt.Sprintf("mask %s code=%d", p.base, code),
			Key:     []any{p.input, code},
			Targets: []string{mp},
			Deps:    []*taskgraph.Task{p.discover},
			Do: func(ctx context.Context) error {
				if err := os.MkdirAll(p.dir, 0755); err != nil {
					return errors.Wrap(errors.ErrCodeRasterIO, err, "create workspace dir %s", p.dir)
				}
				return raster.Apply(mp, []string{p.input}, maskInfo(p.info), raster.Byte, maskTransform(p.info, code))
			},
		})
		for _, n := range p.nPixels {
			kernel, kp := kernels.get(n)
			rp := filepath.Join(p.dir, fmt.Sprintf("reach_%d_n%d.nc", code, n))
			count := g.Add(taskgraph.Spec{
				Name:    fmt.Sprintf("count %s code=%d n=%d", p.base, code, n),
				Key:     []any{p.input, code, n},
				Targets: []string{rp},
				Deps:    []*taskgraph.Task{mask, kernel},
				Do: func(ctx context.Context) error {
					return raster.Convolve(rp, mp, kp)
				},
			})
			counts = append(counts, count)
			reachPaths = append(reachPaths, rp)
		}
	}

	cp := filepath.Join(opts.Workspace, p.base+"_eft_count.nc")
	nKernels := len(p.nPixels)
	nCats := len(p.cats)
	p.aggregate = g.Add(taskgraph.Spec{
		Name:    fmt.Sprintf("aggregate %s", p.base),
		Key:     []any{p.input, p.cats, p.nPixels},
		Targets: []string{cp},
		Deps:    counts,
		Do: func(ctx context.Context) error {
			inputs := append([]string{p.input}, reachPaths...)
			return raster.Apply(cp, inputs, countInfo(p.info), raster.Int32, countTransform(p.info, nCats, nKernels))
		},
	})
	p.countPath = cp
}

// runLogger picks the per-run logger.
func (r *Runner) runLogger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}

// maskInfo is the geometry of a category mask: the source grid, but with
// no nodata sentinel since invalid cells are encoded in-band.
func maskInfo(src raster.Info) raster.Info {
	src.NoData, src.HasNoData = 0, false
	return src
}

// maskTransform builds the per-cell mask function for one category code.
func maskTransform(src raster.Info, code int) raster.TransformFunc {
	return func(cells []float64) float64 {
		v := cells[0]
		if src.IsNoData(v) {
			return maskInvalid
		}
		if int(math.Round(v)) == code {
			return maskSet
		}
		return maskClear
	}
}

// countInfo is the geometry of the final category count raster.
func countInfo(src raster.Info) raster.Info {
	src.NoData, src.HasNoData = raster.CountNoData, true
	return src
}

// countTransform builds the aggregation function. cells[0] is the source
// value; the rest are the neighborhood counts ordered category-major,
// kernel-minor. A category is reachable when any of its per-kernel counts
// is positive.
func countTransform(src raster.Info, nCats, nKernels int) raster.TransformFunc {
	return func(cells []float64) float64 {
		if src.IsNoData(cells[0]) {
			return raster.CountNoData
		}
		reachable := 0
		for i := 0; i < nCats; i++ {
			for j := 0; j < nKernels; j++ {
				if cells[1+i*nKernels+j] > 0 {
					reachable++
					break
				}
			}
		}
		return float64(reachable)
	}
}

// kernelSet deduplicates kernel tasks run-wide: rasters with the same
// pixel radius share one kernel file and one task.
type kernelSet struct {
	mu    sync.Mutex
	g     *taskgraph.Graph
	dir   string
	tasks map[int]*taskgraph.Task
}

func newKernelSet(g *taskgraph.Graph, dir string) *kernelSet {
	return &kernelSet{g: g, dir: dir, tasks: make(map[int]*taskgraph.Task)}
}

// get returns the kernel task and file path for a pixel radius, creating
// the task on first use.
func (k *kernelSet) get(n int) (*taskgraph.Task, string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	path := filepath.Join(k.dir, fmt.Sprintf("kernel_%d.nc", n))
	if t, ok := k.tasks[n]; ok {
		return t, path
	}
	t := k.g.Add(taskgraph.Spec{
		Name:    fmt.Sprintf("kernel n=%d", n),
		Key:     []any{n},
		Targets: []string{path},
		Do: func(ctx context.Context) error {
			if err := os.MkdirAll(k.dir, 0755); err != nil {
				return errors.Wrap(errors.ErrCodeRasterIO, err, "create kernel dir %s", k.dir)
			}
			return raster.WriteDiscKernel(path, n)
		},
	})
	k.tasks[n] = t
	return t, path
}

// baseName strips the directory and extension from a raster path.
func baseName(path string) string {
	b := filepath.Base(path)
	return strings.TrimSuffix(b, filepath.Ext(b))
}

