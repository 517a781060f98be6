package scheduler

import (
	"time"
)

// TaskStatus represents the current state of a task.
type TaskStatus int

const (
	TaskPending   TaskStatus = iota // Waiting for dependencies
	TaskRunning                     // Currently executing
	TaskCompleted                   // Finished successfully
	TaskFailed                      // Finished with error
)

// String returns the lowercase name used in logs and persistence.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	}
	return "unknown"
}

// Task represents a unit of schedulable work.
type Task struct {
	ID             string         // Unique identifier
	Type           string         // Kind of work (e.g. "generate_content")
	Payload        map[string]any // Structured data the worker needs
	DependsOn      []string       // Task IDs that must complete first
	Status         TaskStatus
	AssignedWorker string    // Role of the worker that picked this up, empty until assigned
	Priority       string    // "high", "normal", "low" -- advisory only
	CreatedAt      time.Time
	Error          error // Error if failed
}

// IsGenerationType reports whether a task type produces document
// content. Strategy selection and refinement treat generation tasks
// differently from navigation or bookkeeping work.
func IsGenerationType(taskType string) bool {
	switch taskType {
	case "generate_content", "generate_structure", "improve_content":
		return true
	}
	return false
}

// IsGeneration reports whether the task produces document content.
func (t *Task) IsGeneration() bool {
	return IsGenerationType(t.Type)
}

// TargetName returns the human-readable name of whatever the task
// writes to, if the payload carries one.
func (t *Task) TargetName() string {
	for _, key := range []string{"section_name", "name", "title"} {
		if v, ok := t.Payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// TargetSection returns the section id the task writes to, if any.
func (t *Task) TargetSection() string {
	if v, ok := t.Payload["section_id"].(string); ok {
		return v
	}
	return ""
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	if task.Payload != nil {
		cp.Payload = make(map[string]any, len(task.Payload))
		for k, v := range task.Payload {
			cp.Payload[k] = v
		}
	}
	return &cp
}
