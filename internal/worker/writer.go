package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// RoleWriter is the pool role for content-generating workers.
const RoleWriter = "writer"

const defaultWriterPrompt = "You are an expert creative writer. Generate high-quality " +
	"content for the given section. Write in a clear, engaging style, match the tone " +
	"and voice of any existing content, and keep a strong narrative flow."

// Writer generates document content with an LLM. One Writer handles one
// task at a time; pool several for parallel batches.
type Writer struct {
	model        llms.Model
	systemPrompt string
	temperature  float64
	maxTokens    int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithSystemPrompt overrides the default writer system prompt.
func WithSystemPrompt(prompt string) WriterOption {
	return func(w *Writer) { w.systemPrompt = prompt }
}

// WithSampling sets temperature and max output tokens.
func WithSampling(temperature float64, maxTokens int) WriterOption {
	return func(w *Writer) {
		w.temperature = temperature
		w.maxTokens = maxTokens
	}
}

// NewWriter creates a Writer backed by the given model.
func NewWriter(model llms.Model, opts ...WriterOption) *Writer {
	w := &Writer{
		model:        model,
		systemPrompt: defaultWriterPrompt,
		temperature:  0.7,
		maxTokens:    4000,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Role implements Worker.
func (w *Writer) Role() string { return RoleWriter }

// Execute generates content for the task's section.
// Dependency outputs and any payload context are folded into the prompt
// so the piece stays consistent with what was already written.
func (w *Writer) Execute(ctx context.Context, req Request) (Output, error) {
	start := time.Now()

	resp, err := w.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, w.systemPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, buildWriterPrompt(req)),
		},
		llms.WithTemperature(w.temperature),
		llms.WithMaxTokens(w.maxTokens),
	)
	if err != nil {
		return Output{ExecutionTime: time.Since(start)}, fmt.Errorf("writer generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Output{ExecutionTime: time.Since(start)}, fmt.Errorf("writer returned no choices")
	}

	choice := resp.Choices[0]
	return Output{
		Data:          choice.Content,
		TokensUsed:    tokensUsed(choice),
		ExecutionTime: time.Since(start),
	}, nil
}

// buildWriterPrompt assembles the user prompt from the request payload,
// prior-iteration feedback, and dependency outputs.
func buildWriterPrompt(req Request) string {
	var b strings.Builder

	if name, ok := req.Payload["section_name"].(string); ok && name != "" {
		fmt.Fprintf(&b, "Section: %s\n\n", name)
	}
	if docCtx, ok := req.Payload["context"].(string); ok && docCtx != "" {
		fmt.Fprintf(&b, "Document context:\n%s\n\n", docCtx)
	}
	if existing, ok := req.Payload["existing_content"].(string); ok && existing != "" {
		fmt.Fprintf(&b, "Existing content:\n%s\n\n", truncate(existing, 2000))
	}

	if len(req.Dependencies) > 0 {
		// Stable ordering keeps regenerated prompts reproducible.
		ids := make([]string, 0, len(req.Dependencies))
		for id := range req.Dependencies {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		b.WriteString("Previously completed work to stay consistent with:\n")
		for _, id := range ids {
			fmt.Fprintf(&b, "---\n%s\n", truncate(req.Dependencies[id].Data, 1500))
		}
		b.WriteString("\n")
	}

	if feedback, ok := req.Payload["feedback"].(string); ok && feedback != "" {
		fmt.Fprintf(&b, "Revise to address this editorial feedback:\n%s\n\n", feedback)
	}

	fmt.Fprintf(&b, "User request: %s\n\nWrite the content for this section:", req.Prompt())
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
