package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// RoleCritic is the pool role for reviewing workers.
const RoleCritic = "critic"

// DefaultCriticThreshold is the minimum score (1-10) for approval.
const DefaultCriticThreshold = 7

const criticSystemPrompt = `You are an expert editor and writing critic.
Your job is to evaluate content quality and provide constructive feedback.

Evaluate based on:
1. Clarity and readability
2. Engagement and flow
3. Grammar and style
4. Consistency with context
5. Creativity and originality

Respond with ONLY valid JSON (no markdown, no extra text):
Example: {"score": 8, "feedback": "Good writing with strong imagery", "suggestions": ["Add more dialogue"]}

Score 1-10 where 7 or higher means approved quality.`

// Critique is the critic's verdict on one piece of content.
type Critique struct {
	Score       int      `json:"score"` // 1-10
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
	Approved    bool     `json:"approved"`
}

// Critic reviews generated content and scores it against a threshold.
type Critic struct {
	model       llms.Model
	threshold   int
	temperature float64
	maxTokens   int
}

// NewCritic creates a Critic. A threshold <= 0 selects the default.
func NewCritic(model llms.Model, threshold int) *Critic {
	if threshold <= 0 {
		threshold = DefaultCriticThreshold
	}
	return &Critic{
		model:       model,
		threshold:   threshold,
		temperature: 0.3,
		maxTokens:   1000,
	}
}

// Role implements Worker.
func (c *Critic) Role() string { return RoleCritic }

// Threshold returns the approving score.
func (c *Critic) Threshold() int { return c.threshold }

// Execute implements Worker for review tasks. The content under review
// comes from the payload, or failing that, from the first dependency
// output. The output data is the critique serialized as JSON.
func (c *Critic) Execute(ctx context.Context, req Request) (Output, error) {
	start := time.Now()

	content, _ := req.Payload["content"].(string)
	if content == "" {
		for _, dep := range req.Dependencies {
			content = dep.Data
			break
		}
	}
	if content == "" {
		return Output{}, fmt.Errorf("no content to review for task %q", req.TaskID)
	}

	critique, err := c.Review(ctx, content)
	if err != nil {
		return Output{ExecutionTime: time.Since(start)}, err
	}

	data, err := json.Marshal(critique)
	if err != nil {
		return Output{ExecutionTime: time.Since(start)}, fmt.Errorf("encoding critique: %w", err)
	}
	return Output{Data: string(data), ExecutionTime: time.Since(start)}, nil
}

// Review critiques content and decides if it meets the threshold.
// An unparseable model response approves with a neutral score rather
// than failing: a broken critic must never wedge the refinement loop.
func (c *Critic) Review(ctx context.Context, content string) (Critique, error) {
	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, criticSystemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman,
				fmt.Sprintf("Evaluate this content:\n\n%s", truncate(content, 3000))),
		},
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		return Critique{}, fmt.Errorf("critic call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Critique{}, fmt.Errorf("critic returned no choices")
	}

	return c.parseCritique(resp.Choices[0].Content), nil
}

// parseCritique decodes the model's JSON verdict, stripping markdown
// fences first. Parse failures fall back to neutral approval.
func (c *Critic) parseCritique(raw string) Critique {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		raw = raw[idx+len("```json"):]
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
	} else if idx := strings.Index(raw, "```"); idx >= 0 {
		raw = raw[idx+3:]
		if end := strings.Index(raw, "```"); end >= 0 {
			raw = raw[:end]
		}
	}

	var critique Critique
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &critique); err != nil {
		return Critique{
			Score:    c.threshold,
			Feedback: "unable to parse critique response",
			Approved: true,
		}
	}

	if critique.Score == 0 {
		critique.Score = 5
	}
	critique.Approved = critique.Score >= c.threshold
	return critique
}
