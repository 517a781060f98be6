package worker

import (
	"context"
	"errors"
	"time"
)

// ErrNoWorker is returned by an Allocator when no idle worker exists for
// a task type. The scheduler surfaces it instead of blocking.
var ErrNoWorker = errors.New("no worker available")

// Request carries one task into a worker, together with the outputs of
// the task's direct dependencies.
type Request struct {
	TaskID       string
	TaskType     string
	SessionID    string
	Payload      map[string]any
	Dependencies map[string]Output // Dependency task id -> its output
}

// Prompt returns the user-facing instruction from the payload, if any.
func (r Request) Prompt() string {
	if v, ok := r.Payload["prompt"].(string); ok {
		return v
	}
	return ""
}

// Output is what a worker produces for one task.
type Output struct {
	Data          string
	TokensUsed    int
	ExecutionTime time.Duration
}

// Worker performs the actual content-producing work for one task.
// Implementations are expected to be safe for reuse across tasks but not
// for concurrent Execute calls; the Pool enforces exclusive checkout.
type Worker interface {
	// Role identifies the kind of worker (e.g. "writer", "critic").
	Role() string

	// Execute runs the task. Timeouts, if any, are the worker's
	// responsibility; the scheduler imposes none.
	Execute(ctx context.Context, req Request) (Output, error)
}

// Allocator hands out workers for tasks. The pool it manages is shared
// mutable state across a batch, so it is passed into the scheduler as an
// explicit collaborator rather than reached through a singleton.
type Allocator interface {
	// Allocate returns an idle worker able to handle the task type, or
	// ErrNoWorker. It never blocks waiting for one to free up.
	Allocate(taskType string) (Worker, error)

	// Release returns a worker obtained from Allocate to the pool.
	Release(w Worker)
}
