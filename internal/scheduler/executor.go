package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PalMachulla/Publo-sub003/internal/events"
	"github.com/PalMachulla/Publo-sub003/internal/worker"
)

// ExecutionResult is the sole return value of a scheduler run.
// Immutable once produced. A non-Success result means some unknown
// subset of tasks never ran: tasks in batches after the first failure
// stay pending and appear in neither Completed nor Failed.
type ExecutionResult struct {
	Success            bool
	Completed          map[string]worker.Output // Task id -> worker output
	Failed             map[string]error         // Task id -> error
	ExecutionTime      time.Duration
	TotalTasks         int
	ParallelBatchCount int
	MaxParallelism     int // Size of the largest dispatched batch
}

// ExecutorConfig configures the batch executor.
type ExecutorConfig struct {
	Allocator        worker.Allocator
	Locks            *SectionLockManager // Optional; created when nil
	Bus              *events.Bus         // Optional progress events
	Logger           *slog.Logger        // Defaults to slog.Default()
	ConcurrencyLimit int                 // Max in-flight dispatches per batch (default 4)
	Sequential       bool                // Dispatch one task per batch, in ready order
}

// Executor runs a dependency graph in topological batches: every task
// whose dependencies are satisfied is dispatched concurrently, the whole
// batch is awaited, state advances, and the next batch is computed.
type Executor struct {
	allocator  worker.Allocator
	locks      *SectionLockManager
	bus        *events.Bus
	log        *slog.Logger
	limit      int
	sequential bool
}

// NewExecutor creates an Executor from the config, applying defaults.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Locks == nil {
		cfg.Locks = NewSectionLockManager()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 4
	}
	return &Executor{
		allocator:  cfg.Allocator,
		locks:      cfg.Locks,
		bus:        cfg.Bus,
		log:        cfg.Logger,
		limit:      cfg.ConcurrencyLimit,
		sequential: cfg.Sequential,
	}
}

// dispatch is the settled outcome of one task in a batch.
type dispatch struct {
	taskID string
	output worker.Output
	err    error
}

// Execute runs the graph to completion or to the first failing batch.
//
// Failure semantics: the batch containing the first failure is allowed
// to settle fully (in-flight siblings are not cancelled), then no
// further batches start. Structural problems (deadlock) return an error
// and no result; execution failures are captured in the result instead.
func (e *Executor) Execute(ctx context.Context, g *Graph, sessionID string) (*ExecutionResult, error) {
	start := time.Now()

	result := &ExecutionResult{
		Completed:  make(map[string]worker.Output),
		Failed:     make(map[string]error),
		TotalTasks: g.Len(),
	}

	for len(result.Completed) < result.TotalTasks {
		if err := ctx.Err(); err != nil {
			result.ExecutionTime = time.Since(start)
			return result, err
		}

		ready := g.Ready()
		if len(ready) == 0 {
			if unsettled := g.Unsettled(); len(unsettled) > 0 {
				return nil, &DeadlockError{TaskIDs: unsettled}
			}
			break // Everything settled
		}
		if e.sequential && len(ready) > 1 {
			ready = ready[:1]
		}

		result.ParallelBatchCount++
		if len(ready) > result.MaxParallelism {
			result.MaxParallelism = len(ready)
		}

		e.log.Info("dispatching batch",
			"session", sessionID,
			"batch", result.ParallelBatchCount,
			"size", len(ready))
		e.publish(events.TopicRun, events.BatchStartedEvent{
			Number:    result.ParallelBatchCount,
			Size:      len(ready),
			Timestamp: time.Now(),
		})

		settled := e.runBatch(ctx, g, ready, sessionID, result.Completed)

		// All state transitions happen here, after the whole batch has
		// settled. The dispatches themselves never touch these maps.
		failedThisBatch := false
		for _, d := range settled {
			if d.err != nil {
				failedThisBatch = true
				result.Failed[d.taskID] = d.err
				_ = g.MarkFailed(d.taskID, d.err)
				e.publish(events.TopicTask, events.TaskFailedEvent{
					ID:        d.taskID,
					Err:       d.err,
					Duration:  d.output.ExecutionTime,
					Timestamp: time.Now(),
				})
				continue
			}
			result.Completed[d.taskID] = d.output
			_ = g.MarkCompleted(d.taskID)
			e.publish(events.TopicTask, events.TaskCompletedEvent{
				ID:         d.taskID,
				TokensUsed: d.output.TokensUsed,
				Duration:   d.output.ExecutionTime,
				Timestamp:  time.Now(),
			})
		}

		// First failure stops the line: later batches never start, and
		// their tasks remain pending.
		if failedThisBatch {
			break
		}
	}

	result.ExecutionTime = time.Since(start)
	result.Success = len(result.Failed) == 0 && len(result.Completed) == result.TotalTasks

	e.publish(events.TopicRun, events.RunCompletedEvent{
		SessionID: sessionID,
		Success:   result.Success,
		Completed: len(result.Completed),
		Failed:    len(result.Failed),
		Total:     result.TotalTasks,
		Duration:  result.ExecutionTime,
		Timestamp: time.Now(),
	})

	return result, nil
}

// runBatch fans out every ready task and fans in once all have settled.
func (e *Executor) runBatch(ctx context.Context, g *Graph, ready []*Task, sessionID string, done map[string]worker.Output) []dispatch {
	settled := make([]dispatch, len(ready))

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(e.limit)

	for i, task := range ready {
		// Snapshot of this task's dependency outputs; the done map is
		// not touched again until the batch settles.
		deps := make(map[string]worker.Output, len(task.DependsOn))
		for _, depID := range task.DependsOn {
			if out, ok := done[depID]; ok {
				deps[depID] = out
			}
		}

		grp.Go(func() error {
			settled[i] = e.runTask(gctx, g, task, sessionID, deps)
			return nil // Failures live in settled, never abort the group
		})
	}

	_ = grp.Wait()
	return settled
}

// runTask allocates a worker, executes one task, and returns the outcome.
func (e *Executor) runTask(ctx context.Context, g *Graph, task *Task, sessionID string, deps map[string]worker.Output) dispatch {
	w, err := e.allocator.Allocate(task.Type)
	if err != nil {
		return dispatch{taskID: task.ID, err: &AllocationError{
			TaskID:   task.ID,
			TaskType: task.Type,
			Err:      err,
		}}
	}
	defer e.allocator.Release(w)

	_ = g.MarkRunning(task.ID, w.Role())
	e.publish(events.TopicTask, events.TaskStartedEvent{
		ID:        task.ID,
		Type:      task.Type,
		Worker:    w.Role(),
		Timestamp: time.Now(),
	})

	if section := task.TargetSection(); section != "" {
		e.locks.Acquire([]string{section})
		defer e.locks.Release([]string{section})
	}

	out, err := w.Execute(ctx, worker.Request{
		TaskID:       task.ID,
		TaskType:     task.Type,
		SessionID:    sessionID,
		Payload:      task.Payload,
		Dependencies: deps,
	})
	if err != nil {
		return dispatch{taskID: task.ID, output: out, err: err}
	}
	return dispatch{taskID: task.ID, output: out}
}

func (e *Executor) publish(topic string, ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(topic, ev)
	}
}
