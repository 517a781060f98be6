package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PalMachulla/Publo-sub003/internal/actions"
	"github.com/PalMachulla/Publo-sub003/internal/config"
	"github.com/PalMachulla/Publo-sub003/internal/events"
	"github.com/PalMachulla/Publo-sub003/internal/scheduler"
	"github.com/PalMachulla/Publo-sub003/internal/strategy"
	"github.com/PalMachulla/Publo-sub003/internal/worker"
)

// Config wires an Orchestrator's collaborators.
type Config struct {
	Allocator worker.Allocator
	Selector  strategy.Selector // Defaults to the heuristic policy
	Reviewer  Reviewer          // Optional; refine mode needs one
	Bus       *events.Bus       // Optional progress events and narration
	Logger    *slog.Logger
	Tuning    config.TuningConfig
}

// Orchestrator is the top of the pipeline: it sequences requested
// operations into tasks, picks an execution strategy, and runs the
// resulting graph.
type Orchestrator struct {
	sequencer *actions.Sequencer
	selector  strategy.Selector
	allocator worker.Allocator
	reviewer  Reviewer
	bus       *events.Bus
	log       *slog.Logger
	tuning    config.TuningConfig
	locks     *scheduler.SectionLockManager
}

// New creates an Orchestrator, applying defaults for optional pieces.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Selector == nil {
		cfg.Selector = strategy.Heuristic{}
	}
	if cfg.Tuning.MaxIterations <= 0 {
		cfg.Tuning.MaxIterations = DefaultMaxIterations
	}

	seqOpts := []actions.Option{actions.WithLogger(cfg.Logger)}
	if cfg.Tuning.InstanceKeyed {
		seqOpts = append(seqOpts, actions.InstanceKeyed())
	}

	return &Orchestrator{
		sequencer: actions.NewSequencer(seqOpts...),
		selector:  cfg.Selector,
		allocator: cfg.Allocator,
		reviewer:  cfg.Reviewer,
		bus:       cfg.Bus,
		log:       cfg.Logger,
		tuning:    cfg.Tuning,
		locks:     scheduler.NewSectionLockManager(),
	}
}

// Outcome is what one Process call produced.
type Outcome struct {
	Strategy strategy.Decision
	Result   *scheduler.ExecutionResult // nil when nothing was schedulable
	ForUI    []actions.Operation        // Operations handed back to the caller
}

// Process runs one batch of requested operations end to end: sequence,
// select a strategy, execute. Structural problems in the batch (cycles,
// deadlocks, unknown dependencies in strict mode) come back as errors;
// per-task execution failures live in the Outcome's Result.
func (o *Orchestrator) Process(ctx context.Context, ops []actions.Operation, sessionID string) (*Outcome, error) {
	o.narrate(fmt.Sprintf("sequencing %d requested operation(s)", len(ops)), events.KindThinking)

	res := o.sequencer.Resolve(ops)
	outcome := &Outcome{ForUI: res.ForUI}

	if len(res.Ready) == 0 {
		o.narrate("nothing to schedule, returning operations to the caller", events.KindResult)
		return outcome, nil
	}

	decision := o.selector.Select(res.Ready)
	if decision.Mode == strategy.ModeRefine && !o.canRefine() {
		decision.Mode = strategy.ModeSequential
		decision.Reasoning += " (critic disabled, falling back to sequential)"
		o.log.Warn("refine requested without a critic, running sequentially")
	}
	outcome.Strategy = decision
	o.narrate(fmt.Sprintf("strategy: %s. %s", decision.Mode, decision.Reasoning), events.KindDecision)

	buildOpts := []scheduler.BuildOption{scheduler.WithLogger(o.log)}
	if o.tuning.StrictDependencies {
		buildOpts = append(buildOpts, scheduler.StrictDependencies())
	}
	g, err := scheduler.BuildGraph(res.Ready, buildOpts...)
	if err != nil {
		o.narrate(fmt.Sprintf("cannot schedule batch: %v", err), events.KindError)
		return outcome, err
	}

	execCfg := scheduler.ExecutorConfig{
		Allocator:        o.allocator,
		Locks:            o.locks,
		Bus:              o.bus,
		Logger:           o.log,
		ConcurrencyLimit: o.tuning.ConcurrencyLimit,
	}
	switch decision.Mode {
	case strategy.ModeSequential:
		execCfg.Sequential = true
	case strategy.ModeRefine:
		// Sequential execution with generation workers wrapped in the
		// writer/critic loop.
		execCfg.Sequential = true
		execCfg.Allocator = &refiningAllocator{
			inner:         o.allocator,
			reviewer:      o.reviewer,
			bus:           o.bus,
			log:           o.log,
			maxIterations: o.tuning.MaxIterations,
		}
	}

	result, err := scheduler.NewExecutor(execCfg).Execute(ctx, g, sessionID)
	outcome.Result = result
	if err != nil {
		o.narrate(fmt.Sprintf("run aborted: %v", err), events.KindError)
		return outcome, err
	}

	if result.Success {
		o.narrate(fmt.Sprintf("run complete: %d task(s) in %d batch(es)",
			len(result.Completed), result.ParallelBatchCount), events.KindResult)
	} else {
		o.narrate(fmt.Sprintf("run stopped: %d completed, %d failed, %d never started",
			len(result.Completed), len(result.Failed),
			result.TotalTasks-len(result.Completed)-len(result.Failed)), events.KindError)
	}
	return outcome, nil
}

// canRefine reports whether the writer/critic loop is usable.
func (o *Orchestrator) canRefine() bool {
	return o.reviewer != nil && o.tuning.EnableCritic
}

func (o *Orchestrator) narrate(content, kind string) {
	if o.bus != nil {
		o.bus.Narrate("orchestrator", content, kind)
	}
}
