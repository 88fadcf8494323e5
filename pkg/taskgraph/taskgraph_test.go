package taskgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/landmetrics/eftrich/pkg/cache"
)

func newTestGraph(t *testing.T, opts Options) *Graph {
	t.Helper()
	g := New(context.Background(), opts)
	t.Cleanup(g.Close)
	return g
}

func TestDependencyOrdering(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 4})

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	a := g.Add(Spec{Name: "a", Do: record("a")})
	b := g.Add(Spec{Name: "b", Deps: []*Task{a}, Do: record("b")})
	g.Add(Spec{Name: "c", Deps: []*Task{a, b}, Do: record("c")})

	if err := g.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		t.Errorf("execution order %v violates dependencies", order)
	}
}

func TestTargetDedupe(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 4})
	target := filepath.Join(t.TempDir(), "kernel.bin")

	var runs int32
	spec := Spec{
		Name:    "kernel",
		Targets: []string{target},
		Do: func(context.Context) error {
			atomic.AddInt32(&runs, 1)
			return os.WriteFile(target, []byte("k"), 0644)
		},
	}

	t1 := g.Add(spec)
	t2 := g.Add(spec)
	if t1 != t2 {
		t.Error("Add with an existing target should return the existing task")
	}
	if err := g.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
}

func TestFailureSkipsOnlyDependents(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 4})

	var unrelatedRan int32
	bad := g.Add(Spec{Name: "bad", Do: func(context.Context) error {
		return fmt.Errorf("boom")
	}})
	dep := g.Add(Spec{Name: "dep", Deps: []*Task{bad}, Do: func(context.Context) error {
		t.Error("dependent of a failed task must not run")
		return nil
	}})
	grand := g.Add(Spec{Name: "grand", Deps: []*Task{dep}, Do: func(context.Context) error {
		t.Error("transitive dependent of a failed task must not run")
		return nil
	}})
	ok := g.Add(Spec{Name: "ok", Do: func(context.Context) error {
		atomic.AddInt32(&unrelatedRan, 1)
		return nil
	}})

	err := g.Join()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("Join = %v, want the upstream failure", err)
	}
	if bad.State() != StateFailed {
		t.Errorf("bad state = %v, want failed", bad.State())
	}
	if dep.State() != StateSkipped || grand.State() != StateSkipped {
		t.Errorf("dependents = %v/%v, want skipped/skipped", dep.State(), grand.State())
	}
	if ok.State() != StateDone || atomic.LoadInt32(&unrelatedRan) != 1 {
		t.Error("unrelated branch should run to completion")
	}
}

func TestFingerprintSkipAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	target := filepath.Join(dir, "artifact.bin")

	var runs int32
	spec := func() Spec {
		return Spec{
			Name:    "artifact",
			Key:     []any{"v1"},
			Targets: []string{target},
			Do: func(context.Context) error {
				atomic.AddInt32(&runs, 1)
				return os.WriteFile(target, []byte("data"), 0644)
			},
		}
	}

	g1 := newTestGraph(t, Options{Workers: 2, Cache: c})
	first := g1.Add(spec())
	if err := g1.Join(); err != nil {
		t.Fatalf("first Join: %v", err)
	}
	if first.Cached() {
		t.Error("first run should execute, not reuse")
	}

	// Second run with the same cache and intact target: skipped.
	g2 := newTestGraph(t, Options{Workers: 2, Cache: c})
	second := g2.Add(spec())
	if err := g2.Join(); err != nil {
		t.Fatalf("second Join: %v", err)
	}
	if !second.Cached() {
		t.Error("second run should reuse the recorded artifact")
	}
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("work function ran %d times, want 1", got)
	}

	// Removing the target forces re-execution.
	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}
	g3 := newTestGraph(t, Options{Workers: 2, Cache: c})
	third := g3.Add(spec())
	if err := g3.Join(); err != nil {
		t.Fatalf("third Join: %v", err)
	}
	if third.Cached() {
		t.Error("missing target must force re-execution")
	}
	if got := atomic.LoadInt32(&runs); got != 2 {
		t.Errorf("work function ran %d times, want 2", got)
	}
}

func TestChangedKeyInvalidatesFingerprint(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.NewFileCache(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	target := filepath.Join(dir, "artifact.bin")

	var runs int32
	add := func(g *Graph, key string) *Task {
		return g.Add(Spec{
			Name:    "artifact",
			Key:     []any{key},
			Targets: []string{target},
			Do: func(context.Context) error {
				atomic.AddInt32(&runs, 1)
				return os.WriteFile(target, []byte(key), 0644)
			},
		})
	}

	g1 := newTestGraph(t, Options{Workers: 1, Cache: c})
	add(g1, "v1")
	if err := g1.Join(); err != nil {
		t.Fatal(err)
	}

	g2 := newTestGraph(t, Options{Workers: 1, Cache: c})
	tk := add(g2, "v2")
	if err := g2.Join(); err != nil {
		t.Fatal(err)
	}
	if tk.Cached() {
		t.Error("changed key must not reuse the old artifact")
	}
	if got := atomic.LoadInt32(&runs); got != 2 {
		t.Errorf("work function ran %d times, want 2", got)
	}
}

func TestMissingDeclaredTargetFails(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 1, Cache: mustFileCache(t)})
	tk := g.Add(Spec{
		Name:    "liar",
		Targets: []string{filepath.Join(t.TempDir(), "never-written.bin")},
		Do:      func(context.Context) error { return nil },
	})
	if err := g.Join(); err == nil {
		t.Fatal("a task that does not create its declared target must fail")
	}
	if tk.State() != StateFailed {
		t.Errorf("state = %v, want failed", tk.State())
	}
}

func mustFileCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestFutureResult(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 2})
	f := AddResult(g, Spec{Name: "discover"}, func(context.Context) ([]int, error) {
		return []int{3, 7}, nil
	})

	got, err := f.Get(context.Background())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 7 {
		t.Errorf("Get = %v, want [3 7]", got)
	}
	if err := g.Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}
}

func TestFutureError(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 2})
	f := AddResult(g, Spec{Name: "discover"}, func(context.Context) (int, error) {
		return 0, fmt.Errorf("unreadable")
	})

	if _, err := f.Get(context.Background()); err == nil {
		t.Fatal("Get should surface the task error")
	}
	if err := g.Join(); err == nil {
		t.Fatal("Join should report the failure")
	}
}

func TestDOT(t *testing.T) {
	g := newTestGraph(t, Options{Workers: 1})
	a := g.Add(Spec{Name: "mask 7", Do: func(context.Context) error { return nil }})
	g.Add(Spec{Name: "convolve 7 r=3", Deps: []*Task{a}, Do: func(context.Context) error { return nil }})
	if err := g.Join(); err != nil {
		t.Fatal(err)
	}

	dot := g.DOT()
	if !strings.Contains(dot, `"mask 7"`) || !strings.Contains(dot, `"convolve 7 r=3"`) {
		t.Errorf("DOT missing nodes:\n%s", dot)
	}
	if !strings.Contains(dot, `"mask 7" -> "convolve 7 r=3"`) {
		t.Errorf("DOT missing edge:\n%s", dot)
	}
}

func TestHooksFire(t *testing.T) {
	h := &countingHooks{}
	g := newTestGraph(t, Options{Workers: 2, Hooks: h})
	g.Add(Spec{Name: "ok", Do: func(context.Context) error { return nil }})
	bad := g.Add(Spec{Name: "bad", Do: func(context.Context) error { return fmt.Errorf("x") }})
	g.Add(Spec{Name: "skipped", Deps: []*Task{bad}, Do: func(context.Context) error { return nil }})
	_ = g.Join()

	if got := atomic.LoadInt32(&h.queued); got != 3 {
		t.Errorf("queued = %d, want 3", got)
	}
	if got := atomic.LoadInt32(&h.done); got != 1 {
		t.Errorf("done = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&h.failed); got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
	if got := atomic.LoadInt32(&h.skipped); got != 1 {
		t.Errorf("skipped = %d, want 1", got)
	}
}

type countingHooks struct {
	queued, started, done, failed, skipped int32
}

func (h *countingHooks) OnTaskQueued(string)  { atomic.AddInt32(&h.queued, 1) }
func (h *countingHooks) OnTaskStart(string)   { atomic.AddInt32(&h.started, 1) }
func (h *countingHooks) OnTaskDone(string, bool, time.Duration) {
	atomic.AddInt32(&h.done, 1)
}
func (h *countingHooks) OnTaskFailed(string, error)  { atomic.AddInt32(&h.failed, 1) }
func (h *countingHooks) OnTaskSkipped(string, error) { atomic.AddInt32(&h.skipped, 1) }
