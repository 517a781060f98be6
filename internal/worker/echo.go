package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Echo is a deterministic offline worker. It produces placeholder
// content derived from the request instead of calling a model, which
// makes dry runs and tests reproducible.
type Echo struct {
	role  string
	delay time.Duration
}

// NewEcho creates an Echo worker for the given role. A non-zero delay
// simulates generation latency.
func NewEcho(role string, delay time.Duration) *Echo {
	return &Echo{role: role, delay: delay}
}

// Role implements Worker.
func (e *Echo) Role() string { return e.role }

// Execute implements Worker. Critic-role echoes emit an approving
// critique so offline refinement loops terminate on the first pass.
func (e *Echo) Execute(ctx context.Context, req Request) (Output, error) {
	start := time.Now()

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return Output{ExecutionTime: time.Since(start)}, ctx.Err()
		}
	}

	if e.role == RoleCritic {
		data, _ := json.Marshal(Critique{
			Score:    8,
			Feedback: "offline critic: auto-approved",
			Approved: true,
		})
		return Output{Data: string(data), ExecutionTime: time.Since(start)}, nil
	}

	name := req.TaskID
	if v, ok := req.Payload["section_name"].(string); ok && v != "" {
		name = v
	}
	return Output{
		Data:          fmt.Sprintf("[%s] placeholder content for %s", req.TaskType, name),
		ExecutionTime: time.Since(start),
	}, nil
}
