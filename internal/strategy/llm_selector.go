package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/PalMachulla/Publo-sub003/internal/scheduler"
)

const selectorSystemPrompt = `You are the execution planner of a creative-writing assistant.
Given a list of pending tasks, choose how to run them.

Modes:
- "sequential": run tasks one at a time. Right for small or mixed batches.
- "parallel": run independent generation tasks concurrently. Right for 3+ independent sections.
- "refine": run a single high-stakes piece through a write/critique/rewrite loop.

Respond with ONLY valid JSON (no markdown, no extra text):
{"mode": "sequential", "reasoning": "why"}`

// LLMSelector asks a language model to pick the execution mode. It
// satisfies the same Selector interface as the deterministic Heuristic
// and falls back to it whenever the model call or its output cannot be
// trusted, so strategy selection never fails outright.
type LLMSelector struct {
	model    llms.Model
	fallback Selector
	timeout  time.Duration
	log      *slog.Logger
}

// NewLLMSelector creates an LLMSelector backed by the given model.
func NewLLMSelector(model llms.Model, log *slog.Logger) *LLMSelector {
	if log == nil {
		log = slog.Default()
	}
	return &LLMSelector{
		model:    model,
		fallback: Heuristic{},
		timeout:  15 * time.Second,
		log:      log,
	}
}

// Select asks the model for a mode, validating the answer against the
// known modes before trusting it.
func (s *LLMSelector) Select(tasks []*scheduler.Task) Decision {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	summary := summarizeTasks(tasks)

	resp, err := s.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, selectorSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, summary),
		},
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(300),
	)
	if err != nil {
		s.log.Warn("strategy model call failed, using heuristic", "error", err)
		return s.fallback.Select(tasks)
	}
	if len(resp.Choices) == 0 {
		s.log.Warn("strategy model returned no choices, using heuristic")
		return s.fallback.Select(tasks)
	}

	decision, err := parseDecision(resp.Choices[0].Content)
	if err != nil {
		s.log.Warn("unparseable strategy response, using heuristic", "error", err)
		return s.fallback.Select(tasks)
	}
	return decision
}

func summarizeTasks(tasks []*scheduler.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending task(s):\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "- type=%s priority=%s target=%q deps=%d\n",
			t.Type, t.Priority, t.TargetName(), len(t.DependsOn))
	}
	return b.String()
}

func parseDecision(raw string) (Decision, error) {
	raw = stripFences(raw)

	var parsed struct {
		Mode      string `json:"mode"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Decision{}, fmt.Errorf("parsing strategy response: %w", err)
	}

	switch Mode(parsed.Mode) {
	case ModeSequential, ModeParallel, ModeRefine:
		return Decision{Mode: Mode(parsed.Mode), Reasoning: parsed.Reasoning}, nil
	}
	return Decision{}, fmt.Errorf("unknown mode %q", parsed.Mode)
}

// stripFences removes a markdown code fence around a JSON body, which
// models add despite instructions not to.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(raw, "```json"); ok {
		raw = after
	} else if after, ok := strings.CutPrefix(raw, "```"); ok {
		raw = after
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
