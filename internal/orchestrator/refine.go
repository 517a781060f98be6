package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PalMachulla/Publo-sub003/internal/events"
	"github.com/PalMachulla/Publo-sub003/internal/scheduler"
	"github.com/PalMachulla/Publo-sub003/internal/worker"
)

// Reviewer scores a piece of content and decides whether it is good
// enough. *worker.Critic is the production implementation.
type Reviewer interface {
	Review(ctx context.Context, content string) (worker.Critique, error)
}

// DefaultMaxIterations bounds the refinement loop when config gives none.
const DefaultMaxIterations = 3

// refiner wraps a generation worker in a bounded writer/critic loop:
// generate, critique, fold the feedback into the next attempt. The loop
// ends on approval or when the iteration budget runs out, whichever
// comes first; an exhausted budget returns the best-scoring attempt and
// is not an error.
type refiner struct {
	inner         worker.Worker
	reviewer      Reviewer
	bus           *events.Bus
	log           *slog.Logger
	maxIterations int
}

func (r *refiner) Role() string { return r.inner.Role() }

func (r *refiner) Execute(ctx context.Context, req worker.Request) (worker.Output, error) {
	var best worker.Output
	bestScore := -1
	totalTokens := 0
	feedback := ""

	for iteration := 1; iteration <= r.maxIterations; iteration++ {
		attempt := req
		if feedback != "" {
			payload := make(map[string]any, len(req.Payload)+1)
			for k, v := range req.Payload {
				payload[k] = v
			}
			payload["feedback"] = feedback
			attempt.Payload = payload
		}

		out, err := r.inner.Execute(ctx, attempt)
		if err != nil {
			if bestScore >= 0 {
				// A later attempt failing must not discard earlier work.
				r.log.Warn("refinement attempt failed, keeping best so far",
					"task", req.TaskID, "iteration", iteration, "error", err)
				best.TokensUsed = totalTokens
				return best, nil
			}
			return out, err
		}
		totalTokens += out.TokensUsed

		r.narrate(fmt.Sprintf("draft %d of %q complete, sending to critic",
			iteration, req.TaskID), events.KindProgress)

		critique, err := r.reviewer.Review(ctx, out.Data)
		if err != nil {
			// A broken critic must not fail the generation; ship the draft.
			r.log.Warn("critic unavailable, accepting current draft",
				"task", req.TaskID, "iteration", iteration, "error", err)
			out.TokensUsed = totalTokens
			return out, nil
		}

		if critique.Score > bestScore {
			best = out
			bestScore = critique.Score
		}

		if critique.Approved {
			r.narrate(fmt.Sprintf("critic approved draft %d (score %d/10)",
				iteration, critique.Score), events.KindDecision)
			out.TokensUsed = totalTokens
			return out, nil
		}

		r.narrate(fmt.Sprintf("critic scored draft %d at %d/10, revising: %s",
			iteration, critique.Score, critique.Feedback), events.KindDecision)
		feedback = revisionNotes(critique)
	}

	r.narrate(fmt.Sprintf("iteration budget spent, keeping best draft (score %d/10)",
		bestScore), events.KindDecision)
	best.TokensUsed = totalTokens
	return best, nil
}

func (r *refiner) narrate(content, kind string) {
	if r.bus != nil {
		r.bus.Narrate("critic", content, kind)
	}
}

// revisionNotes flattens a critique into the feedback text the writer
// folds into its next attempt.
func revisionNotes(c worker.Critique) string {
	notes := c.Feedback
	if len(c.Suggestions) > 0 {
		notes += "\nSuggestions:\n- " + strings.Join(c.Suggestions, "\n- ")
	}
	return notes
}

// refiningAllocator decorates allocated generation workers with the
// refinement loop, leaving other roles untouched. It lets refine mode
// reuse the ordinary scheduler: the executor sees plain workers.
type refiningAllocator struct {
	inner         worker.Allocator
	reviewer      Reviewer
	bus           *events.Bus
	log           *slog.Logger
	maxIterations int
}

func (a *refiningAllocator) Allocate(taskType string) (worker.Worker, error) {
	w, err := a.inner.Allocate(taskType)
	if err != nil {
		return nil, err
	}
	if !scheduler.IsGenerationType(taskType) {
		return w, nil
	}
	return &refiner{
		inner:         w,
		reviewer:      a.reviewer,
		bus:           a.bus,
		log:           a.log,
		maxIterations: a.maxIterations,
	}, nil
}

func (a *refiningAllocator) Release(w worker.Worker) {
	if r, ok := w.(*refiner); ok {
		w = r.inner
	}
	a.inner.Release(w)
}
