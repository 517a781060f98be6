package worker

import (
	"context"
	"errors"
	"testing"
)

type fakeWorker struct {
	role string
}

func (f *fakeWorker) Role() string { return f.role }

func (f *fakeWorker) Execute(_ context.Context, req Request) (Output, error) {
	return Output{Data: req.TaskID}, nil
}

// TestPoolAllocateRelease tests checkout and checkin accounting.
func TestPoolAllocateRelease(t *testing.T) {
	pool := NewPool()
	pool.Route("generate_content", "writer")
	pool.Add(&fakeWorker{role: "writer"})
	pool.Add(&fakeWorker{role: "writer"})

	w1, err := pool.Allocate("generate_content")
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	w2, err := pool.Allocate("generate_content")
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if w1 == w2 {
		t.Fatal("allocated the same worker twice")
	}

	if _, err := pool.Allocate("generate_content"); !errors.Is(err, ErrNoWorker) {
		t.Fatalf("exhausted pool: want ErrNoWorker, got %v", err)
	}

	pool.Release(w1)
	if pool.Idle("writer") != 1 {
		t.Errorf("Idle = %d after one release, want 1", pool.Idle("writer"))
	}
	if _, err := pool.Allocate("generate_content"); err != nil {
		t.Errorf("allocate after release: %v", err)
	}
}

// TestPoolUnknownRoute tests that unrouted task types fail fast.
func TestPoolUnknownRoute(t *testing.T) {
	pool := NewPool()
	pool.Add(&fakeWorker{role: "writer"})

	if _, err := pool.Allocate("mystery_type"); !errors.Is(err, ErrNoWorker) {
		t.Fatalf("want ErrNoWorker for unknown route, got %v", err)
	}
}

// TestPoolRouteSharing tests multiple task types routed to one role.
func TestPoolRouteSharing(t *testing.T) {
	pool := NewPool()
	pool.Route("generate_content", "writer")
	pool.Route("improve_content", "writer")
	pool.Add(&fakeWorker{role: "writer"})

	w, err := pool.Allocate("improve_content")
	if err != nil {
		t.Fatalf("allocate via second route: %v", err)
	}
	pool.Release(w)

	if _, err := pool.Allocate("generate_content"); err != nil {
		t.Errorf("allocate via first route: %v", err)
	}
}

// TestPoolReleaseUnknownWorker tests releasing a foreign worker is a
// no-op rather than a panic.
func TestPoolReleaseUnknownWorker(t *testing.T) {
	pool := NewPool()
	pool.Release(&fakeWorker{role: "stranger"})
	pool.Release(nil)
}
