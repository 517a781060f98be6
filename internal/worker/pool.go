package worker

import (
	"fmt"
	"sync"
)

// Pool is a role-keyed worker pool with idle/busy accounting.
// Task types are routed to roles; Allocate checks out an idle worker of
// the routed role and Release checks it back in.
type Pool struct {
	mu      sync.Mutex
	entries map[string][]*poolEntry // role -> workers
	routes  map[string]string       // task type -> role
}

type poolEntry struct {
	worker Worker
	busy   bool
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		entries: make(map[string][]*poolEntry),
		routes:  make(map[string]string),
	}
}

// Add registers a worker under its role.
func (p *Pool) Add(w Worker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[w.Role()] = append(p.entries[w.Role()], &poolEntry{worker: w})
}

// Route maps a task type to the role that handles it.
func (p *Pool) Route(taskType, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[taskType] = role
}

// Allocate checks out an idle worker for the task type.
// Returns ErrNoWorker (wrapped, with the type and role for diagnostics)
// when the route is unknown or every worker of the role is busy.
func (p *Pool) Allocate(taskType string) (Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	role, ok := p.routes[taskType]
	if !ok {
		return nil, fmt.Errorf("no role routed for task type %q: %w", taskType, ErrNoWorker)
	}

	for _, e := range p.entries[role] {
		if !e.busy {
			e.busy = true
			return e.worker, nil
		}
	}
	return nil, fmt.Errorf("all %q workers busy: %w", role, ErrNoWorker)
}

// Release checks a worker back in. Unknown workers are ignored.
func (p *Pool) Release(w Worker) {
	if w == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries[w.Role()] {
		if e.worker == w {
			e.busy = false
			return
		}
	}
}

// Idle reports how many workers of the role are currently idle.
func (p *Pool) Idle(role string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, e := range p.entries[role] {
		if !e.busy {
			n++
		}
	}
	return n
}
