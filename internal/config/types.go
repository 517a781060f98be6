package config

// ProviderConfig defines an LLM provider connection. Providers are
// separate from roles -- multiple roles can share one provider.
type ProviderConfig struct {
	Kind    string `json:"kind"`               // "anthropic", "openai", or "ollama"
	Model   string `json:"model,omitempty"`    // Default model for this provider
	BaseURL string `json:"base_url,omitempty"` // Override endpoint (ollama, proxies)
}

// RoleConfig defines a worker role bound to a provider and model.
type RoleConfig struct {
	Provider     string  `json:"provider"`                // Key into Providers map
	Model        string  `json:"model,omitempty"`         // Model override for this role
	SystemPrompt string  `json:"system_prompt,omitempty"` // Role-specific system prompt
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Count        int     `json:"count,omitempty"` // Pool size for this role (default 1)
}

// TuningConfig holds scheduler and refinement knobs.
type TuningConfig struct {
	ConcurrencyLimit   int  `json:"concurrency_limit,omitempty"`  // Max in-flight dispatches per batch
	MaxIterations      int  `json:"max_iterations,omitempty"`     // Refine loop bound
	CriticThreshold    int  `json:"critic_threshold,omitempty"`   // Minimum approving score (1-10)
	EnableCritic       bool `json:"enable_critic"`                // Refine mode available at all
	StrictDependencies bool `json:"strict_dependencies"`          // Reject unknown dependency ids at build
	InstanceKeyed      bool `json:"instance_keyed_sequencing"`    // Sequencer improvement mode
	UseModelSelector   bool `json:"use_model_selector,omitempty"` // LLM-driven strategy selection
}

// Config is the top-level configuration.
type Config struct {
	Providers map[string]ProviderConfig `json:"providers"`
	Roles     map[string]RoleConfig     `json:"roles"`
	Tuning    TuningConfig              `json:"tuning"`
}
