package taskgraph

import (
	"context"
	"fmt"
	"sync"
)

// State describes where a task is in its lifecycle.
type State int

const (
	// StatePending means the task is waiting on dependencies or a worker.
	StatePending State = iota
	// StateRunning means a worker is executing the task.
	StateRunning
	// StateDone means the task finished successfully (possibly by reusing
	// an existing artifact).
	StateDone
	// StateFailed means the task's work function returned an error.
	StateFailed
	// StateSkipped means an upstream dependency failed, so the task never
	// ran.
	StateSkipped
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return "unknown"
}

// Task is one unit of work in the graph. Tasks are created by Graph.Add and
// complete exactly once: succeeded, failed, or skipped.
type Task struct {
	name    string
	key     []any
	targets []string
	deps    []*Task
	fn      func(context.Context) error
	g       *Graph

	mu         sync.Mutex
	state      State
	err        error
	cached     bool
	remaining  int // dependencies not yet succeeded
	dependents []*Task
	done       chan struct{}
}

// Name returns the task's display name.
func (t *Task) Name() string { return t.name }

// Targets returns the file paths the task declares it will create.
func (t *Task) Targets() []string { return t.targets }

// State returns the task's current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the task's terminal error, or nil. Valid once the task has
// completed; callers normally reach it through Wait.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Cached reports whether the task was satisfied by an existing artifact
// instead of executing.
func (t *Task) Cached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cached
}

// Wait blocks until the task completes or ctx is cancelled, returning the
// task's terminal error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notify registers dependent to be told when t reaches a terminal state.
// If t is already terminal the report happens immediately.
func (t *Task) notify(dependent *Task) {
	t.mu.Lock()
	switch t.state {
	case StateDone, StateFailed, StateSkipped:
		err := t.err
		t.mu.Unlock()
		dependent.depDone(err)
		return
	}
	t.dependents = append(t.dependents, dependent)
	t.mu.Unlock()
}

// depDone records the completion of one dependency. A failed or skipped
// dependency skips this task; when the last dependency succeeds the task is
// queued for execution.
func (t *Task) depDone(depErr error) {
	if depErr != nil {
		t.skip(depErr)
		return
	}
	t.mu.Lock()
	t.remaining--
	ready := t.remaining == 0 && t.state == StatePending
	t.mu.Unlock()
	if ready {
		t.g.enqueue(t)
	}
}

// skip marks t terminally skipped because an upstream task failed, then
// cascades to t's own dependents. Branches of the graph that do not depend
// on the failed task keep running.
func (t *Task) skip(cause error) {
	t.mu.Lock()
	if t.state != StatePending {
		t.mu.Unlock()
		return
	}
	t.state = StateSkipped
	t.err = fmt.Errorf("%s skipped: %w", t.name, cause)
	dependents := t.dependents
	t.dependents = nil
	err := t.err
	close(t.done)
	t.mu.Unlock()

	t.g.hooks.OnTaskSkipped(t.name, err)
	t.g.logger.Debug("task skipped", "task", t.name, "cause", cause)
	t.g.wg.Done()
	for _, d := range dependents {
		d.depDone(err)
	}
}

// finish records the task's terminal outcome after execution and releases
// its dependents.
func (t *Task) finish(err error, cached bool) {
	t.mu.Lock()
	if err != nil {
		t.state = StateFailed
		t.err = fmt.Errorf("%s: %w", t.name, err)
	} else {
		t.state = StateDone
	}
	t.cached = cached
	dependents := t.dependents
	t.dependents = nil
	terr := t.err
	close(t.done)
	t.mu.Unlock()

	t.g.wg.Done()
	for _, d := range dependents {
		d.depDone(terr)
	}
}
