package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/toposort"
)

// Graph is a directed acyclic graph of tasks. It is built once per
// Execute call and exclusively owned by that call; it is never reused.
type Graph struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Reverse edges: taskID -> tasks that depend on it
	log        *slog.Logger
}

// BuildOption configures graph construction.
type BuildOption func(*buildOptions)

type buildOptions struct {
	strictDeps bool
	log        *slog.Logger
}

// StrictDependencies makes BuildGraph fail with an UnknownDependencyError
// when a task references a dependency id that is not in the task set.
// The default (lenient) behavior logs a warning and drops the edge, which
// matches the historical semantics but can surface as a DeadlockError at
// execution time instead.
func StrictDependencies() BuildOption {
	return func(o *buildOptions) { o.strictDeps = true }
}

// WithLogger sets the logger used for build-time warnings.
func WithLogger(log *slog.Logger) BuildOption {
	return func(o *buildOptions) { o.log = log }
}

// BuildGraph constructs a dependency graph from a flat task list.
// It computes reverse (dependent) edges and rejects cycles with a CycleError.
func BuildGraph(tasks []*Task, opts ...BuildOption) (*Graph, error) {
	o := buildOptions{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Graph{
		tasks:      make(map[string]*Task, len(tasks)),
		dependents: make(map[string][]string),
		log:        o.log,
	}

	for _, task := range tasks {
		if _, exists := g.tasks[task.ID]; exists {
			return nil, fmt.Errorf("duplicate task id %q", task.ID)
		}
		g.tasks[task.ID] = task
	}

	// Reverse-edge construction. Dangling references are dropped (with a
	// warning) unless strict mode is on.
	for _, task := range tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				if o.strictDeps {
					return nil, &UnknownDependencyError{TaskID: task.ID, DependencyID: depID}
				}
				o.log.Warn("task references unknown dependency",
					"task", task.ID, "dependency", depID)
				continue
			}
			g.dependents[depID] = append(g.dependents[depID], task.ID)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleError{TaskIDs: cycle}
	}

	return g, nil
}

// findCycle runs an iterative-rooted DFS over the dependency edges,
// tracking a per-root recursion stack. A back-edge into a node still on
// the stack is a cycle. Returns the cycle members or nil.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool, len(g.tasks))
	onStack := make(map[string]bool, len(g.tasks))

	// Sort roots so the reported cycle is deterministic.
	roots := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		roots = append(roots, id)
	}
	sort.Strings(roots)

	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		visited[id] = true
		onStack[id] = true
		stack = append(stack, id)

		for _, depID := range g.tasks[id].DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				continue // Dangling edge, already warned at build
			}
			if onStack[depID] {
				// Trim the stack down to where the cycle starts.
				for i, sid := range stack {
					if sid == depID {
						return append([]string(nil), stack[i:]...)
					}
				}
				return []string{depID, id}
			}
			if !visited[depID] {
				if cycle := visit(depID); cycle != nil {
					return cycle
				}
			}
		}

		onStack[id] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, id := range roots {
		if visited[id] {
			continue
		}
		if cycle := visit(id); cycle != nil {
			return cycle
		}
	}
	return nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Ready returns all pending tasks whose dependencies have ALL completed.
// A dependency that failed, or that does not exist in the graph, never
// resolves; its dependents stay pending.
func (g *Graph) Ready() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := []*Task{}
	for _, task := range g.tasks {
		if task.Status != TaskPending {
			continue
		}

		resolved := true
		for _, depID := range task.DependsOn {
			dep, exists := g.tasks[depID]
			if !exists || dep.Status != TaskCompleted {
				resolved = false
				break
			}
		}

		if resolved {
			ready = append(ready, cloneTask(task))
		}
	}

	// Deterministic dispatch order within a batch (no ordering guarantee
	// is promised, but stable output makes logs and tests sane).
	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready
}

// Unsettled returns the ids of tasks that are neither completed nor failed.
// Used for deadlock diagnostics.
func (g *Graph) Unsettled() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, task := range g.tasks {
		if task.Status != TaskCompleted && task.Status != TaskFailed {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// MarkRunning sets task status to TaskRunning and records the worker role.
func (g *Graph) MarkRunning(taskID, workerRole string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	task.Status = TaskRunning
	task.AssignedWorker = workerRole
	return nil
}

// MarkCompleted sets task status to TaskCompleted.
func (g *Graph) MarkCompleted(taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	task.Status = TaskCompleted
	return nil
}

// MarkFailed sets task status to TaskFailed and stores the error.
func (g *Graph) MarkFailed(taskID string, err error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	task.Status = TaskFailed
	task.Error = err
	return nil
}

// Get returns a copy of the task by ID.
func (g *Graph) Get(taskID string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.tasks))
	for _, task := range g.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// Dependents returns the ids of tasks that directly depend on taskID.
// Derived once at build time; used for diagnostics only.
func (g *Graph) Dependents(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	deps := g.dependents[taskID]
	out := append([]string(nil), deps...)
	sort.Strings(out)
	return out
}

// Order returns a full topological ordering of task ids. The graph is
// already known to be acyclic, so this is a diagnostic convenience for
// logging and visualization.
func (g *Graph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []toposort.Edge
	for taskID, task := range g.tasks {
		linked := false
		for _, depID := range task.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				continue
			}
			// Edge (depID, taskID): depID must come before taskID.
			edges = append(edges, toposort.Edge{depID, taskID})
			linked = true
		}
		if !linked {
			// Isolated or root task: anchor it so the sort includes it.
			edges = append(edges, toposort.Edge{nil, taskID})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("topological sort failed: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}
	if len(order) != len(g.tasks) {
		return nil, fmt.Errorf("topological sort lost %d task(s)", len(g.tasks)-len(order))
	}
	return order, nil
}

// Describe renders a one-line-per-task view of the graph for logs.
func (g *Graph) Describe() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		task := g.tasks[id]
		fmt.Fprintf(&b, "%s [%s] deps=%v dependents=%v\n",
			id, task.Status, task.DependsOn, g.dependents[id])
	}
	return b.String()
}
