// Command publo runs a batch of creative-writing operations through the
// task orchestration core: sequence the operations, pick an execution
// strategy, and run the resulting task graph against a pool of LLM
// workers.
//
// Operations are read as a JSON array from a file argument or stdin:
//
//	publo -offline ops.json
//	echo '[{"type":"generate_content","auto_execute":true,"payload":{"prompt":"..."}}]' | publo
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/PalMachulla/Publo-sub003/internal/actions"
	"github.com/PalMachulla/Publo-sub003/internal/config"
	"github.com/PalMachulla/Publo-sub003/internal/events"
	"github.com/PalMachulla/Publo-sub003/internal/orchestrator"
	"github.com/PalMachulla/Publo-sub003/internal/persistence"
	"github.com/PalMachulla/Publo-sub003/internal/strategy"
	"github.com/PalMachulla/Publo-sub003/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "project config file (default .publo/config.json)")
		dbPath     = flag.String("db", "", "session database path (default under the user data dir)")
		sessionID  = flag.String("session", "", "session id to run under (default: new)")
		offline    = flag.Bool("offline", false, "use deterministic offline workers, no API calls")
		verbose    = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	projectPath := *configPath
	if projectPath == "" {
		projectPath = filepath.Join(".publo", "config.json")
	}
	cfg, err := config.Load(config.GlobalPath(), projectPath)
	if err != nil {
		return err
	}

	ops, err := readOperations(flag.Arg(0))
	if err != nil {
		return err
	}
	if len(ops) == 0 {
		return fmt.Errorf("no operations to run")
	}

	session := *sessionID
	if session == "" {
		session = uuid.NewString()
	}

	path := *dbPath
	if path == "" {
		path = config.DataPath("sessions.db")
	}
	store, err := persistence.NewSQLiteStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	// Print and persist narration as it arrives.
	transcript := bus.Subscribe(events.TopicNarration, 0)
	transcriptDone := make(chan struct{})
	go func() {
		defer close(transcriptDone)
		for ev := range transcript {
			msg, ok := ev.(events.Message)
			if !ok {
				continue
			}
			fmt.Printf("[%s] %s\n", msg.Kind, msg.Content)
			if err := store.SaveMessage(context.Background(), session, msg.Role, msg.Content, msg.Kind); err != nil {
				log.Warn("failed to persist message", "error", err)
			}
		}
	}()

	pool, reviewer, selector, err := buildWorkers(cfg, *offline, log)
	if err != nil {
		return err
	}

	orch := orchestrator.New(orchestrator.Config{
		Allocator: pool,
		Selector:  selector,
		Reviewer:  reviewer,
		Bus:       bus,
		Logger:    log,
		Tuning:    cfg.Tuning,
	})

	outcome, runErr := orch.Process(ctx, ops, session)

	// The bus is drained before the summary so narration and summary
	// don't interleave on stdout.
	bus.Close()
	<-transcriptDone

	if outcome != nil {
		if err := saveOutcome(store, session, outcome); err != nil {
			log.Warn("failed to persist run", "error", err)
		}
		printSummary(outcome, session)
	}
	return runErr
}

// readOperations decodes the operation batch from a file or stdin.
func readOperations(path string) ([]actions.Operation, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading operations: %w", err)
	}

	var ops []actions.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		return nil, fmt.Errorf("parsing operations: %w", err)
	}
	return ops, nil
}

// buildWorkers assembles the worker pool, the critic, and the strategy
// selector from config. Offline mode swaps every model call for
// deterministic placeholders.
func buildWorkers(cfg *config.Config, offline bool, log *slog.Logger) (*worker.Pool, orchestrator.Reviewer, strategy.Selector, error) {
	pool := worker.NewPool()
	for _, taskType := range []string{
		actions.OpGenerateContent, actions.OpGenerateStructure, actions.OpImproveContent,
	} {
		pool.Route(taskType, worker.RoleWriter)
	}
	pool.Route("review_content", worker.RoleCritic)

	if offline {
		for i := 0; i < roleCount(cfg, worker.RoleWriter); i++ {
			pool.Add(worker.NewEcho(worker.RoleWriter, 10*time.Millisecond))
		}
		pool.Add(worker.NewEcho(worker.RoleCritic, 0))
		return pool, approveAll{}, strategy.Heuristic{}, nil
	}

	breakers := worker.NewBreakerRegistry(log)
	retry := worker.DefaultRetryConfig()

	writerCfg := cfg.Roles["writer"]
	writerModel, err := modelFor(cfg, writerCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("writer model: %w", err)
	}
	var writerOpts []worker.WriterOption
	if writerCfg.SystemPrompt != "" {
		writerOpts = append(writerOpts, worker.WithSystemPrompt(writerCfg.SystemPrompt))
	}
	writerOpts = append(writerOpts, worker.WithSampling(writerCfg.Temperature, writerCfg.MaxTokens))
	for i := 0; i < roleCount(cfg, worker.RoleWriter); i++ {
		pool.Add(worker.NewResilient(worker.NewWriter(writerModel, writerOpts...), breakers, retry))
	}

	criticCfg := cfg.Roles["critic"]
	criticModel, err := modelFor(cfg, criticCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("critic model: %w", err)
	}
	critic := worker.NewCritic(criticModel, cfg.Tuning.CriticThreshold)
	pool.Add(worker.NewResilient(critic, breakers, retry))

	var selector strategy.Selector = strategy.Heuristic{}
	if cfg.Tuning.UseModelSelector {
		selectorModel, err := modelFor(cfg, cfg.Roles["selector"])
		if err != nil {
			return nil, nil, nil, fmt.Errorf("selector model: %w", err)
		}
		selector = strategy.NewLLMSelector(selectorModel, log)
	}

	return pool, critic, selector, nil
}

// modelFor resolves a role's provider reference to a model client.
func modelFor(cfg *config.Config, rc config.RoleConfig) (llms.Model, error) {
	provider, ok := cfg.Providers[rc.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", rc.Provider)
	}
	return worker.NewModel(provider, rc.Model)
}

func roleCount(cfg *config.Config, role string) int {
	if rc, ok := cfg.Roles[role]; ok && rc.Count > 0 {
		return rc.Count
	}
	return 1
}

// approveAll is the offline reviewer: every draft passes first time.
type approveAll struct{}

func (approveAll) Review(_ context.Context, _ string) (worker.Critique, error) {
	return worker.Critique{Score: 8, Feedback: "offline critic: auto-approved", Approved: true}, nil
}

// saveOutcome persists the run record for the session.
func saveOutcome(store persistence.Store, session string, outcome *orchestrator.Outcome) error {
	rec := &persistence.RunRecord{
		SessionID: session,
		Strategy:  string(outcome.Strategy.Mode),
		Reasoning: outcome.Strategy.Reasoning,
	}
	if r := outcome.Result; r != nil {
		rec.Success = r.Success
		rec.TotalTasks = r.TotalTasks
		rec.BatchCount = r.ParallelBatchCount
		rec.MaxParallelism = r.MaxParallelism
		rec.Duration = r.ExecutionTime
		for id, out := range r.Completed {
			rec.Results = append(rec.Results, persistence.TaskResult{
				TaskID:     id,
				Output:     out.Data,
				TokensUsed: out.TokensUsed,
				Duration:   out.ExecutionTime,
			})
		}
		for id, err := range r.Failed {
			rec.Results = append(rec.Results, persistence.TaskResult{
				TaskID: id,
				Error:  err.Error(),
			})
		}
	}
	return store.SaveRun(context.Background(), rec)
}

// printSummary writes the human-readable run summary to stdout.
func printSummary(outcome *orchestrator.Outcome, session string) {
	fmt.Printf("\nSession %s\n", session)
	fmt.Printf("Strategy: %s (%s)\n", outcome.Strategy.Mode, outcome.Strategy.Reasoning)

	if r := outcome.Result; r != nil {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("Run %s: %d of %d task(s) completed in %d batch(es), max parallelism %d, took %s\n",
			status, len(r.Completed), r.TotalTasks,
			r.ParallelBatchCount, r.MaxParallelism,
			r.ExecutionTime.Round(time.Millisecond))

		tokens := 0
		for _, out := range r.Completed {
			tokens += out.TokensUsed
		}
		if tokens > 0 {
			fmt.Printf("Tokens used: %s\n", humanize.Comma(int64(tokens)))
		}
		for id, err := range r.Failed {
			fmt.Printf("  task %s failed: %v\n", id, err)
		}
	}

	if len(outcome.ForUI) > 0 {
		fmt.Printf("Returned to caller (%d):\n", len(outcome.ForUI))
		for _, op := range outcome.ForUI {
			fmt.Printf("  %s\n", op.Type)
		}
	}
}
