package worker

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/PalMachulla/Publo-sub003/internal/config"
)

// NewModel creates a langchaingo model client from provider config.
// API keys come from the conventional environment variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY); ollama needs none.
func NewModel(provider config.ProviderConfig, model string) (llms.Model, error) {
	if model == "" {
		model = provider.Model
	}

	switch provider.Kind {
	case "anthropic":
		var opts []anthropic.Option
		if model != "" {
			opts = append(opts, anthropic.WithModel(model))
		}
		return anthropic.New(opts...)

	case "openai":
		var opts []openai.Option
		if model != "" {
			opts = append(opts, openai.WithModel(model))
		}
		if provider.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(provider.BaseURL))
		}
		return openai.New(opts...)

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(model)}
		if provider.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(provider.BaseURL))
		}
		return ollama.New(opts...)

	default:
		return nil, fmt.Errorf("unknown provider kind: %s", provider.Kind)
	}
}

// tokensUsed pulls token counts out of a generation's provider metadata.
// Providers disagree on key names; sum whatever is present.
func tokensUsed(choice *llms.ContentChoice) int {
	if choice == nil || choice.GenerationInfo == nil {
		return 0
	}

	total := 0
	for _, key := range []string{"CompletionTokens", "PromptTokens", "InputTokens", "OutputTokens"} {
		if v, ok := choice.GenerationInfo[key]; ok {
			if n, ok := v.(int); ok {
				total += n
			}
		}
	}
	return total
}
