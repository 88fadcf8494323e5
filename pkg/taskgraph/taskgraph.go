// Package taskgraph executes file-producing work items on a bounded worker
// pool with dependency ordering and skip-if-already-computed semantics.
//
// Each task declares a name, the file paths it will create, the tasks it
// depends on, and a work function. The graph guarantees:
//
//   - a task never starts before every task in its dependency list has
//     completed successfully
//   - at most one task executes per distinct target path set within a run;
//     adding a second task for the same targets returns the first
//   - a task whose recorded fingerprint matches a prior run and whose
//     target files are intact is skipped instead of re-executed
//   - a failure aborts only the dependents of the failed task; unrelated
//     branches of the graph run to completion, and Join reports the
//     aggregate outcome
//
// Fingerprints are recorded through a cache.Cache so the skip behavior
// survives across processes.
//
// # Usage
//
//	g := taskgraph.New(ctx, taskgraph.Options{Workers: 8, Cache: c})
//	defer g.Close()
//
//	kernel := g.Add(taskgraph.Spec{
//	    Name:    "kernel n=3",
//	    Key:     []any{3},
//	    Targets: []string{kernelPath},
//	    Do:      func(ctx context.Context) error { return raster.WriteDiscKernel(kernelPath, 3) },
//	})
//	mask := g.Add(taskgraph.Spec{ ... })
//	g.Add(taskgraph.Spec{Name: "convolve", Deps: []*taskgraph.Task{kernel, mask}, ...})
//
//	if err := g.Join(); err != nil { ... }
package taskgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/landmetrics/eftrich/pkg/cache"
)

// Options configures a Graph.
type Options struct {
	// Workers bounds the number of tasks executing concurrently.
	// Defaults to runtime.NumCPU().
	Workers int

	// Cache records task fingerprints for cross-run skipping. Defaults to
	// a NullCache (every task re-executes).
	Cache cache.Cache

	// Logger receives per-task debug logging. Defaults to a discarding
	// logger.
	Logger *log.Logger

	// Hooks receives task lifecycle events. Defaults to no-op hooks.
	Hooks Hooks

	// DryRun marks every task done without calling its work function or
	// touching the fingerprint cache. Used for graph previews.
	DryRun bool
}

// Spec declares one task for Graph.Add.
type Spec struct {
	// Name is the display name used in logs, errors, and the DOT export.
	Name string

	// Key holds the arguments that identify this task's work. Together
	// with Targets it forms the fingerprint that decides whether a prior
	// run's artifact can be reused.
	Key []any

	// Targets are the file paths the task creates. Tasks with targets are
	// deduplicated and fingerprinted; tasks without targets always run.
	Targets []string

	// Deps are the tasks that must succeed before this one starts.
	Deps []*Task

	// Do performs the work.
	Do func(ctx context.Context) error
}

// Graph owns the worker pool and the set of submitted tasks for one run.
type Graph struct {
	ctx    context.Context
	cache  cache.Cache
	logger *log.Logger
	hooks  Hooks
	dryRun bool

	mu       sync.Mutex
	tasks    []*Task
	byTarget map[string]*Task

	qmu    sync.Mutex
	qcond  *sync.Cond
	queue  []*Task
	closed bool

	wg sync.WaitGroup
}

// New creates a graph and starts its workers. The context is passed to every
// task's work function; cancelling it fails tasks that have not yet run.
func New(ctx context.Context, opts Options) *Graph {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Hooks == nil {
		opts.Hooks = NoopHooks{}
	}
	g := &Graph{
		ctx:      ctx,
		cache:    opts.Cache,
		logger:   opts.Logger,
		hooks:    opts.Hooks,
		dryRun:   opts.DryRun,
		byTarget: make(map[string]*Task),
	}
	g.qcond = sync.NewCond(&g.qmu)
	for i := 0; i < opts.Workers; i++ {
		go g.worker(i)
	}
	return g
}

// Add submits a task. If a task already exists for the spec's first target
// path, that task is returned instead: at most one task executes per
// distinct target set within a run. spec.Do must be non-nil.
func (g *Graph) Add(spec Spec) *Task {
	g.mu.Lock()
	if len(spec.Targets) > 0 {
		if existing, ok := g.byTarget[spec.Targets[0]]; ok {
			g.mu.Unlock()
			return existing
		}
	}
	t := &Task{
		name:      spec.Name,
		key:       spec.Key,
		targets:   spec.Targets,
		deps:      spec.Deps,
		fn:        spec.Do,
		g:         g,
		remaining: len(spec.Deps),
		done:      make(chan struct{}),
	}
	for _, p := range spec.Targets {
		g.byTarget[p] = t
	}
	g.tasks = append(g.tasks, t)
	g.wg.Add(1)
	g.mu.Unlock()

	g.hooks.OnTaskQueued(t.name)
	if len(spec.Deps) == 0 {
		g.enqueue(t)
		return t
	}
	for _, d := range spec.Deps {
		d.notify(t)
	}
	return t
}

// Join blocks until every submitted task has completed, failed, or been
// skipped, then returns the failures joined into one error. Skipped tasks
// are consequences of a failure, not failures themselves, and are only
// counted.
func (g *Graph) Join() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	var errs []error
	skipped := 0
	for _, t := range g.tasks {
		switch t.State() {
		case StateFailed:
			errs = append(errs, t.Err())
		case StateSkipped:
			skipped++
		}
	}
	if skipped > 0 {
		g.logger.Warn("tasks skipped due to upstream failures", "count", skipped)
	}
	return errors.Join(errs...)
}

// Close stops the worker pool. Pending tasks are abandoned; call Join first
// to drain the graph.
func (g *Graph) Close() {
	g.qmu.Lock()
	g.closed = true
	g.qmu.Unlock()
	g.qcond.Broadcast()
}

// Tasks returns a snapshot of every submitted task, in submission order.
func (g *Graph) Tasks() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Task, len(g.tasks))
	copy(out, g.tasks)
	return out
}

// enqueue makes a task available to the worker pool.
func (g *Graph) enqueue(t *Task) {
	g.qmu.Lock()
	g.queue = append(g.queue, t)
	g.qmu.Unlock()
	g.qcond.Signal()
}

// next blocks until a task is available or the graph is closed.
func (g *Graph) next() *Task {
	g.qmu.Lock()
	defer g.qmu.Unlock()
	for len(g.queue) == 0 && !g.closed {
		g.qcond.Wait()
	}
	if len(g.queue) == 0 {
		return nil
	}
	t := g.queue[0]
	g.queue = g.queue[1:]
	return t
}

// worker is the processing loop for one pool slot.
func (g *Graph) worker(id int) {
	for {
		t := g.next()
		if t == nil {
			return
		}
		g.run(t, id)
	}
}

// run executes one task: reuse the recorded artifact if it is intact,
// otherwise call the work function and record the result.
func (g *Graph) run(t *Task, workerID int) {
	t.mu.Lock()
	if t.state != StatePending {
		t.mu.Unlock()
		return
	}
	t.state = StateRunning
	t.mu.Unlock()

	start := time.Now()
	g.hooks.OnTaskStart(t.name)

	if g.dryRun {
		g.hooks.OnTaskDone(t.name, false, time.Since(start))
		t.finish(nil, false)
		return
	}

	var key string
	if len(t.targets) > 0 {
		key = cache.TaskKey(t.name, t.key, t.targets)
		if g.targetsIntact(key, t.targets) {
			g.logger.Debug("task reused existing artifact",
				"task", t.name, "worker", workerID)
			g.hooks.OnTaskDone(t.name, true, time.Since(start))
			t.finish(nil, true)
			return
		}
	}

	err := g.ctx.Err()
	if err == nil {
		err = t.fn(g.ctx)
	}
	if err == nil && key != "" {
		err = g.recordTargets(key, t.targets)
	}

	if err != nil {
		g.logger.Error("task failed", "task", t.name, "worker", workerID, "error", err)
		g.hooks.OnTaskFailed(t.name, err)
		t.finish(err, false)
		return
	}
	g.logger.Debug("task done",
		"task", t.name, "worker", workerID,
		"duration", time.Since(start).Round(time.Millisecond))
	g.hooks.OnTaskDone(t.name, false, time.Since(start))
	t.finish(nil, false)
}

// fingerprint is the recorded completion proof for one task: the size of
// every target file at the time the task succeeded.
type fingerprint struct {
	Targets map[string]int64 `json:"targets"`
}

// targetsIntact reports whether a prior run recorded this fingerprint and
// every target file still exists with its recorded size.
func (g *Graph) targetsIntact(key string, targets []string) bool {
	data, hit, err := g.cache.Get(g.ctx, key)
	if err != nil || !hit {
		return false
	}
	var fp fingerprint
	if json.Unmarshal(data, &fp) != nil {
		return false
	}
	for _, p := range targets {
		st, err := os.Stat(p)
		if err != nil || st.Size() != fp.Targets[p] {
			return false
		}
	}
	return true
}

// recordTargets verifies the task created its declared targets and stores
// their fingerprint.
func (g *Graph) recordTargets(key string, targets []string) error {
	fp := fingerprint{Targets: make(map[string]int64, len(targets))}
	for _, p := range targets {
		st, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("declared target %s was not created: %w", p, err)
		}
		fp.Targets[p] = st.Size()
	}
	data, err := json.Marshal(fp)
	if err != nil {
		return err
	}
	if err := g.cache.Set(g.ctx, key, data, 0); err != nil {
		// A cache write failure only costs a future skip; the artifact
		// itself is complete.
		g.logger.Warn("failed to record task fingerprint", "key", key, "error", err)
	}
	return nil
}
