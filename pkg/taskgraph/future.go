package taskgraph

import (
	"context"
	"sync"
)

// Future holds the in-memory result of a store-result task. Unlike
// file-producing tasks, result tasks always execute: their value lives only
// in process memory, so there is no artifact to reuse across runs.
type Future[T any] struct {
	task *Task

	mu  sync.Mutex
	val T
}

// AddResult submits a task whose work function returns a value, and returns
// a Future for retrieving it. The spec's Do field is ignored; dependencies,
// name, and key apply as usual.
func AddResult[T any](g *Graph, spec Spec, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{}
	spec.Targets = nil // results are memory-only; never fingerprinted
	spec.Do = func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		f.mu.Lock()
		f.val = v
		f.mu.Unlock()
		return nil
	}
	f.task = g.Add(spec)
	return f
}

// Get blocks until the task completes and returns its value. This is one of
// the two calls that may legitimately block orchestration logic (the other
// being Graph.Join).
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	var zero T
	if err := f.task.Wait(ctx); err != nil {
		return zero, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val, nil
}

// Task returns the underlying task for use in dependency lists.
func (f *Future[T]) Task() *Task { return f.task }
