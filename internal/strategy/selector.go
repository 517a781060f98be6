package strategy

import (
	"fmt"
	"strings"

	"github.com/PalMachulla/Publo-sub003/internal/scheduler"
)

// Mode is an execution strategy for a batch of tasks.
type Mode string

const (
	ModeSequential Mode = "sequential" // One task at a time
	ModeParallel   Mode = "parallel"   // DAG-based batch execution
	ModeRefine     Mode = "refine"     // Iterative writer/critic loop
)

// Decision is a chosen mode plus the reasoning behind it.
type Decision struct {
	Mode      Mode
	Reasoning string
}

// Selector picks an execution mode for a batch of tasks. The heuristic
// implementation is the core; richer (model-driven) policies satisfy the
// same interface and can be swapped in.
type Selector interface {
	Select(tasks []*scheduler.Task) Decision
}

// Keywords that flag a generation task as high-priority: the opening of
// a work gets the full refinement treatment.
var highPriorityKeywords = []string{"opening", "first", "chapter 1", "prologue"}

// Heuristic is the deterministic strategy policy.
type Heuristic struct{}

// Select applies the policy:
//   - a single high-priority generation task -> refine
//   - three or more independent generation tasks -> parallel
//   - two or fewer operations, or no generation work -> sequential
//   - anything else -> sequential
func (Heuristic) Select(tasks []*scheduler.Task) Decision {
	var generation []*scheduler.Task
	for _, t := range tasks {
		if t.IsGeneration() {
			generation = append(generation, t)
		}
	}

	if len(generation) == 0 {
		return Decision{
			Mode:      ModeSequential,
			Reasoning: "no content generation requested",
		}
	}

	if len(generation) == 1 && isHighPriority(generation[0]) {
		return Decision{
			Mode:      ModeRefine,
			Reasoning: fmt.Sprintf("single high-priority generation task (%q) gets writer/critic refinement", generation[0].TargetName()),
		}
	}

	if len(generation) >= 3 && independent(generation) {
		return Decision{
			Mode:      ModeParallel,
			Reasoning: fmt.Sprintf("%d independent generation tasks can run as a parallel batch", len(generation)),
		}
	}

	return Decision{
		Mode:      ModeSequential,
		Reasoning: fmt.Sprintf("%d task(s), running one at a time", len(tasks)),
	}
}

// isHighPriority checks the advisory priority flag and the target name
// for keywords that mark a section as the high-stakes opening of a work.
func isHighPriority(t *scheduler.Task) bool {
	if t.Priority == "high" {
		return true
	}
	name := strings.ToLower(t.TargetName())
	for _, kw := range highPriorityKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// independent reports whether none of the tasks depend on each other.
func independent(tasks []*scheduler.Task) bool {
	ids := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		ids[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if ids[dep] {
				return false
			}
		}
	}
	return true
}
