package scheduler

import (
	"fmt"
	"strings"
)

// CycleError reports a dependency cycle found at graph-build time.
// TaskIDs holds the members of the cycle in the order they were visited.
type CycleError struct {
	TaskIDs []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.TaskIDs, " -> "))
}

// UnknownDependencyError reports a task referencing a dependency id that
// does not exist in the submitted task set. Only returned when the graph
// is built with StrictDependencies; otherwise the reference is logged and
// ignored, and may surface later as a DeadlockError.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.DependencyID)
}

// DeadlockError reports that scheduling stalled: tasks remain that are
// neither completed nor failed, yet none of them are ready to run.
type DeadlockError struct {
	TaskIDs []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("scheduling deadlock: %d task(s) can never become ready: %s",
		len(e.TaskIDs), strings.Join(e.TaskIDs, ", "))
}

// AllocationError reports that no worker was available for a task.
// It fails that task only; sibling dispatches in the same batch proceed.
type AllocationError struct {
	TaskID   string
	TaskType string
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("no worker available for task %q (type %q): %v", e.TaskID, e.TaskType, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
