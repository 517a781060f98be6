package config

// DefaultConfig returns the default configuration with built-in
// providers, roles, and tuning.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"anthropic": {
				Kind:  "anthropic",
				Model: "claude-sonnet-4-20250514",
			},
			"openai": {
				Kind:  "openai",
				Model: "gpt-4o",
			},
			"ollama": {
				Kind:    "ollama",
				Model:   "llama3",
				BaseURL: "http://localhost:11434",
			},
		},
		Roles: map[string]RoleConfig{
			"writer": {
				Provider:    "anthropic",
				Temperature: 0.7,
				MaxTokens:   4000,
				Count:       3,
				SystemPrompt: "You are an expert creative writer. Generate high-quality content " +
					"for the given section. Write in a clear, engaging style, match the tone of " +
					"existing content, and keep a strong narrative flow.",
			},
			"critic": {
				Provider:    "anthropic",
				Temperature: 0.3,
				MaxTokens:   1000,
				Count:       1,
				SystemPrompt: "You are an expert editor and writing critic. Evaluate content for " +
					"clarity, engagement, grammar, consistency, and originality.",
			},
			"selector": {
				Provider:    "anthropic",
				Temperature: 0.0,
				MaxTokens:   300,
				Count:       1,
			},
		},
		Tuning: TuningConfig{
			ConcurrencyLimit: 4,
			MaxIterations:    3,
			CriticThreshold:  7,
			EnableCritic:     true,
		},
	}
}
