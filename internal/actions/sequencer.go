package actions

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"

	"github.com/PalMachulla/Publo-sub003/internal/scheduler"
)

// Resolution is the outcome of sequencing one batch of operations.
type Resolution struct {
	// Ready holds the tasks the scheduler may execute now, in dependency
	// order. Where one ready task's operation depended on another ready
	// task's type, the instance-level edge is recorded on the task so the
	// graph scheduler sees it too.
	Ready []*scheduler.Task

	// ForUI holds the operations the core declined to run: navigation
	// operations (completed here, executed by the caller), anything
	// requiring user confirmation, and operations whose dependencies
	// never resolved.
	ForUI []Operation
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// InstanceKeyed switches dependency tracking from type-keyed to
// consume-once instance matching: each completed operation of a type
// unblocks at most one dependent keyed on that type. The historical
// behavior (default) marks the whole TYPE complete after any single
// operation of that type, which can unblock dependents even though a
// second same-typed operation has not run. Kept as the default for
// compatibility; it is a known correctness hazard.
func InstanceKeyed() Option {
	return func(s *Sequencer) { s.instanceKeyed = true }
}

// WithLogger sets the sequencer's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Sequencer) { s.log = log }
}

// Sequencer is the coarse, type-keyed dependency resolver that sits above
// the graph scheduler. It decides which requested operations can run now,
// which must wait on another operation type, and which go back to the
// caller.
type Sequencer struct {
	log           *slog.Logger
	instanceKeyed bool
}

// NewSequencer creates a Sequencer.
func NewSequencer(opts ...Option) *Sequencer {
	s := &Sequencer{log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// pendingOp tracks one operation through the resolution passes.
type pendingOp struct {
	op    Operation
	index int // Submission order, for stable sorting
}

// Resolve partitions and orders a batch of operations.
//
// Completion is tracked per operation type. Each full pass processes
// every operation whose dependency types are satisfied; a pass that
// makes no progress means the remainder is undispatchable, and it is
// returned to the caller rather than looping forever.
func (s *Sequencer) Resolve(ops []Operation) Resolution {
	var res Resolution

	pending := make([]pendingOp, 0, len(ops))
	seen := make(map[uint64]bool)

	for i, op := range ops {
		// Collapse exact duplicates (same type and payload) up front.
		if key, err := hashstructure.Hash(struct {
			Type    string
			Payload map[string]any
		}{op.Type, op.Payload}, hashstructure.FormatV2, nil); err == nil {
			if seen[key] {
				s.log.Debug("dropping duplicate operation", "type", op.Type)
				continue
			}
			seen[key] = true
		}

		// Operations needing user confirmation never become tasks and are
		// returned untouched. Their type does not count as completed.
		if op.RequiresUserInput {
			res.ForUI = append(res.ForUI, op)
			continue
		}

		pending = append(pending, pendingOp{op: op, index: i})
	}

	completed := make(map[string]int)             // type -> completion count
	sideValues := make(map[string]map[string]any) // type -> values for dependents
	taskByType := make(map[string][]string)       // type -> task ids created

	for len(pending) > 0 {
		s.sortByReadiness(pending, completed)

		progressed := false
		var still []pendingOp

		for _, p := range pending {
			if !s.satisfied(p.op, completed) {
				still = append(still, p)
				continue
			}

			s.consume(p.op, completed)
			res = s.process(p.op, res, sideValues, taskByType)
			completed[p.op.Type]++
			progressed = true
		}

		pending = still
		if !progressed {
			// Sequencing stall: nothing became ready in a full pass.
			// Degrade gracefully, mirroring the scheduler's deadlock
			// check at this coarser level.
			for _, p := range pending {
				s.log.Warn("operation dependencies never resolved, deferring to caller",
					"type", p.op.Type, "depends_on", p.op.DependsOn)
				res.ForUI = append(res.ForUI, p.op)
			}
			break
		}
	}

	return res
}

// sortByReadiness orders a pass: dependency-free operations first, then
// operations whose dependencies are already satisfied, then the blocked
// remainder. Stable within each group by submission order.
func (s *Sequencer) sortByReadiness(pending []pendingOp, completed map[string]int) {
	rank := func(p pendingOp) int {
		switch {
		case len(p.op.DependsOn) == 0:
			return 0
		case s.satisfied(p.op, completed):
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := rank(pending[i]), rank(pending[j])
		if ri != rj {
			return ri < rj
		}
		return pending[i].index < pending[j].index
	})
}

// satisfied reports whether every dependency type of the operation has
// completed. In instance-keyed mode the counts must cover this dependent
// without double-spending a completion already consumed by another.
func (s *Sequencer) satisfied(op Operation, completed map[string]int) bool {
	for _, depType := range op.DependsOn {
		if completed[depType] <= 0 {
			return false
		}
	}
	return true
}

// consume spends one completion per dependency type in instance-keyed
// mode. Type-keyed mode never decrements: one completion of a type
// satisfies every dependent keyed on it.
func (s *Sequencer) consume(op Operation, completed map[string]int) {
	if !s.instanceKeyed {
		return
	}
	for _, depType := range op.DependsOn {
		completed[depType]--
	}
}

// process applies the type-specific rule for one ready operation.
func (s *Sequencer) process(op Operation, res Resolution, sideValues map[string]map[string]any, taskByType map[string][]string) Resolution {
	if op.isNavigation() {
		// Navigation completes immediately and is handed back to the
		// caller for actual execution. It also produces data-flow values
		// (the target section) that dependents need merged into their
		// payloads: dependencies here are data-flow, not just ordering.
		vals := map[string]any{}
		for _, key := range []string{"section_id", "section_name"} {
			if v, ok := op.Payload[key]; ok {
				vals[key] = v
			}
		}
		if len(vals) > 0 {
			sideValues[op.Type] = vals
		}
		res.ForUI = append(res.ForUI, op)
		return res
	}

	if !op.AutoExecute {
		// Resolvable but not ours to run.
		res.ForUI = append(res.ForUI, op)
		return res
	}

	task := s.toTask(op, sideValues, taskByType)
	taskByType[op.Type] = append(taskByType[op.Type], task.ID)
	res.Ready = append(res.Ready, task)
	return res
}

// toTask converts a ready operation to a schedulable task, merging in
// values produced by its dependency operations and recording
// instance-level edges onto tasks created for those dependency types.
func (s *Sequencer) toTask(op Operation, sideValues map[string]map[string]any, taskByType map[string][]string) *scheduler.Task {
	payload := make(map[string]any, len(op.Payload))
	for k, v := range op.Payload {
		payload[k] = v
	}

	var dependsOn []string
	for _, depType := range op.DependsOn {
		for k, v := range sideValues[depType] {
			if _, exists := payload[k]; !exists {
				payload[k] = v
			}
		}
		// Type-level dependency becomes instance-level edges on whatever
		// tasks that type produced in this resolution.
		dependsOn = append(dependsOn, taskByType[depType]...)
	}

	priority := op.Priority
	if priority == "" {
		priority = "normal"
	}

	return &scheduler.Task{
		ID:        uuid.NewString(),
		Type:      op.Type,
		Payload:   payload,
		DependsOn: dependsOn,
		Status:    scheduler.TaskPending,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
}
