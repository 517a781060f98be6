package events

import (
	"time"
)

// Event is the base interface for all events published on the bus.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicTask      = "task"
	TopicRun       = "run"
	TopicNarration = "narration"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskCompleted = "task.completed"
	EventTypeTaskFailed    = "task.failed"
	EventTypeBatchStarted  = "run.batch_started"
	EventTypeRunCompleted  = "run.completed"
	EventTypeNarration     = "narration.message"
)

// Narration message kinds, mirroring how the assistant annotates its
// progress for the conversation transcript.
const (
	KindThinking = "thinking"
	KindDecision = "decision"
	KindResult   = "result"
	KindError    = "error"
	KindProgress = "progress"
)

// TaskStartedEvent is published when a task begins execution.
type TaskStartedEvent struct {
	ID        string
	Type      string
	Worker    string
	Timestamp time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskCompletedEvent is published when a task completes successfully.
type TaskCompletedEvent struct {
	ID         string
	TokensUsed int
	Duration   time.Duration
	Timestamp  time.Time
}

func (e TaskCompletedEvent) EventType() string { return EventTypeTaskCompleted }
func (e TaskCompletedEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task fails.
type TaskFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// BatchStartedEvent is published when the scheduler dispatches a batch.
type BatchStartedEvent struct {
	Number    int // 1-based batch index within the run
	Size      int
	Timestamp time.Time
}

func (e BatchStartedEvent) EventType() string { return EventTypeBatchStarted }
func (e BatchStartedEvent) TaskID() string    { return "" }

// RunCompletedEvent is published when a scheduler run settles.
type RunCompletedEvent struct {
	SessionID string
	Success   bool
	Completed int
	Failed    int
	Total     int
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) TaskID() string    { return "" }

// Message is a progress-narration line for the conversation transcript.
// Publishing is fire-and-forget; nothing in the core consumes the result.
type Message struct {
	Role      string // "orchestrator" or "system"
	Content   string
	Kind      string // thinking | decision | result | error | progress
	Timestamp time.Time
}

func (m Message) EventType() string { return EventTypeNarration }
func (m Message) TaskID() string    { return "" }
