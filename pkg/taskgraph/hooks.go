package taskgraph

import "time"

// Hooks receives task lifecycle events. Implementations must be safe for
// concurrent use; workers call them from multiple goroutines. The progress
// UI subscribes through this interface so the graph itself stays free of
// terminal concerns.
type Hooks interface {
	// OnTaskQueued fires when a task is submitted to the graph.
	OnTaskQueued(name string)

	// OnTaskStart fires when a worker picks the task up.
	OnTaskStart(name string)

	// OnTaskDone fires on success. cached reports whether an existing
	// artifact was reused instead of executing.
	OnTaskDone(name string, cached bool, d time.Duration)

	// OnTaskFailed fires when the work function returns an error.
	OnTaskFailed(name string, err error)

	// OnTaskSkipped fires when an upstream failure prevents the task from
	// running.
	OnTaskSkipped(name string, err error)
}

// NoopHooks discards all events.
type NoopHooks struct{}

func (NoopHooks) OnTaskQueued(string)                     {}
func (NoopHooks) OnTaskStart(string)                      {}
func (NoopHooks) OnTaskDone(string, bool, time.Duration)  {}
func (NoopHooks) OnTaskFailed(string, error)              {}
func (NoopHooks) OnTaskSkipped(string, error)             {}

// Ensure NoopHooks implements Hooks.
var _ Hooks = NoopHooks{}
