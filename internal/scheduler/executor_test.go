package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PalMachulla/Publo-sub003/internal/worker"
)

// stubWorker runs a caller-supplied function as its Execute.
type stubWorker struct {
	role string
	fn   func(ctx context.Context, req worker.Request) (worker.Output, error)
}

func (s *stubWorker) Role() string { return s.role }

func (s *stubWorker) Execute(ctx context.Context, req worker.Request) (worker.Output, error) {
	if s.fn == nil {
		return worker.Output{Data: "output:" + req.TaskID}, nil
	}
	return s.fn(ctx, req)
}

// stubPool builds a routed pool of n stub workers sharing one function.
func stubPool(n int, fn func(ctx context.Context, req worker.Request) (worker.Output, error)) *worker.Pool {
	pool := worker.NewPool()
	pool.Route("generate_content", "stub")
	for i := 0; i < n; i++ {
		pool.Add(&stubWorker{role: "stub", fn: fn})
	}
	return pool
}

// TestExecutorTopologicalBatches runs a diamond graph and checks batch
// structure and dependency output propagation.
func TestExecutorTopologicalBatches(t *testing.T) {
	g, err := BuildGraph([]*Task{
		task("A"), task("B", "A"), task("C", "A"), task("D", "B", "C"),
	})
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	depsSeen := make(map[string][]string)

	pool := stubPool(4, func(_ context.Context, req worker.Request) (worker.Output, error) {
		mu.Lock()
		var got []string
		for id := range req.Dependencies {
			got = append(got, id)
		}
		depsSeen[req.TaskID] = got
		mu.Unlock()
		return worker.Output{Data: "output:" + req.TaskID, TokensUsed: 10}, nil
	})

	exec := NewExecutor(ExecutorConfig{Allocator: pool})
	result, err := exec.Execute(context.Background(), g, "session-1")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !result.Success {
		t.Errorf("Success = false, failed: %v", result.Failed)
	}
	if len(result.Completed) != 4 {
		t.Errorf("Completed = %d, want 4", len(result.Completed))
	}
	if result.ParallelBatchCount != 3 {
		t.Errorf("ParallelBatchCount = %d, want 3 (A, then B+C, then D)", result.ParallelBatchCount)
	}
	if result.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d, want 2", result.MaxParallelism)
	}

	if got := depsSeen["D"]; len(got) != 2 {
		t.Errorf("D received dependency outputs %v, want outputs of B and C", got)
	}
	if out := result.Completed["B"]; out.Data != "output:B" {
		t.Errorf("Completed[B].Data = %q", out.Data)
	}
}

// TestExecutorIndependentTasksSingleBatch checks that fully independent
// tasks dispatch as one wide batch.
func TestExecutorIndependentTasksSingleBatch(t *testing.T) {
	var tasks []*Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, task(fmt.Sprintf("t%d", i)))
	}
	g, err := BuildGraph(tasks)
	if err != nil {
		t.Fatal(err)
	}

	var inFlight, peak atomic.Int32
	pool := stubPool(5, func(ctx context.Context, req worker.Request) (worker.Output, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return worker.Output{Data: req.TaskID}, nil
	})

	exec := NewExecutor(ExecutorConfig{Allocator: pool, ConcurrencyLimit: 5})
	result, err := exec.Execute(context.Background(), g, "session-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.ParallelBatchCount != 1 {
		t.Errorf("ParallelBatchCount = %d, want 1", result.ParallelBatchCount)
	}
	if result.MaxParallelism != 5 {
		t.Errorf("MaxParallelism = %d, want 5", result.MaxParallelism)
	}
	if peak.Load() < 2 {
		t.Errorf("peak concurrency = %d, expected parallel execution", peak.Load())
	}
}

// TestExecutorFirstFailureStopsLine checks that a failing batch settles,
// no further batches start, and downstream tasks stay pending.
func TestExecutorFirstFailureStopsLine(t *testing.T) {
	g, err := BuildGraph([]*Task{
		task("A"), task("B", "A"), task("E", "A"), task("C", "B"),
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("generation blew up")
	pool := stubPool(4, func(_ context.Context, req worker.Request) (worker.Output, error) {
		if req.TaskID == "B" {
			return worker.Output{}, boom
		}
		return worker.Output{Data: req.TaskID}, nil
	})

	exec := NewExecutor(ExecutorConfig{Allocator: pool})
	result, err := exec.Execute(context.Background(), g, "session-1")
	if err != nil {
		t.Fatalf("execution failures must not be returned as errors: %v", err)
	}

	if result.Success {
		t.Error("Success = true with a failed task")
	}
	if !errors.Is(result.Failed["B"], boom) {
		t.Errorf("Failed[B] = %v, want %v", result.Failed["B"], boom)
	}
	// E is in the same batch as B and settles normally.
	if _, ok := result.Completed["E"]; !ok {
		t.Error("sibling E of the failing task should still complete")
	}
	// C never ran: not completed, not failed.
	if _, ok := result.Completed["C"]; ok {
		t.Error("C must not run after its line failed")
	}
	if _, ok := result.Failed["C"]; ok {
		t.Error("C must stay pending, not be marked failed")
	}
	if c, _ := g.Get("C"); c.Status != TaskPending {
		t.Errorf("C status = %v, want pending", c.Status)
	}
}

// TestExecutorDeadlock checks that an unsatisfiable graph is reported as
// a structural error, not an execution failure.
func TestExecutorDeadlock(t *testing.T) {
	// Lenient build drops the dangling edge but keeps A unrunnable.
	g, err := BuildGraph([]*Task{task("A", "missing")})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewExecutor(ExecutorConfig{Allocator: stubPool(1, nil)})
	result, err := exec.Execute(context.Background(), g, "session-1")

	var deadlock *DeadlockError
	if !errors.As(err, &deadlock) {
		t.Fatalf("expected DeadlockError, got %v", err)
	}
	if len(deadlock.TaskIDs) != 1 || deadlock.TaskIDs[0] != "A" {
		t.Errorf("DeadlockError.TaskIDs = %v, want [A]", deadlock.TaskIDs)
	}
	if result != nil {
		t.Error("deadlock must not produce a partial result")
	}
}

// TestExecutorAllocationFailure checks that no available worker fails
// the task rather than the run.
func TestExecutorAllocationFailure(t *testing.T) {
	g, err := BuildGraph([]*Task{task("A")})
	if err != nil {
		t.Fatal(err)
	}

	// Pool with no route for the task type.
	exec := NewExecutor(ExecutorConfig{Allocator: worker.NewPool()})
	result, err := exec.Execute(context.Background(), g, "session-1")
	if err != nil {
		t.Fatal(err)
	}

	if result.Success {
		t.Error("Success = true with an unallocatable task")
	}
	taskErr := result.Failed["A"]
	var allocErr *AllocationError
	if !errors.As(taskErr, &allocErr) {
		t.Fatalf("expected AllocationError, got %v", taskErr)
	}
	if !errors.Is(taskErr, worker.ErrNoWorker) {
		t.Errorf("AllocationError should wrap ErrNoWorker, got %v", taskErr)
	}
}

// TestExecutorSequential checks the one-task-per-batch mode.
func TestExecutorSequential(t *testing.T) {
	g, err := BuildGraph([]*Task{task("A"), task("B"), task("C")})
	if err != nil {
		t.Fatal(err)
	}

	exec := NewExecutor(ExecutorConfig{Allocator: stubPool(1, nil), Sequential: true})
	result, err := exec.Execute(context.Background(), g, "session-1")
	if err != nil {
		t.Fatal(err)
	}

	if !result.Success {
		t.Errorf("Success = false: %v", result.Failed)
	}
	if result.ParallelBatchCount != 3 {
		t.Errorf("ParallelBatchCount = %d, want 3", result.ParallelBatchCount)
	}
	if result.MaxParallelism != 1 {
		t.Errorf("MaxParallelism = %d, want 1", result.MaxParallelism)
	}
}

// TestExecutorContextCancellation checks a cancelled context aborts
// between batches with the partial result.
func TestExecutorContextCancellation(t *testing.T) {
	g, err := BuildGraph([]*Task{task("A"), task("B", "A")})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pool := stubPool(1, func(_ context.Context, req worker.Request) (worker.Output, error) {
		cancel() // Cancel while the first batch is running
		return worker.Output{Data: req.TaskID}, nil
	})

	exec := NewExecutor(ExecutorConfig{Allocator: pool})
	result, err := exec.Execute(ctx, g, "session-1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil {
		t.Fatal("cancellation should return the partial result")
	}
	if _, ok := result.Completed["A"]; !ok {
		t.Error("A settled before cancellation and should be in the result")
	}
}
