package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadDefaults tests loading with no files present.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(
		filepath.Join(t.TempDir(), "nope.json"),
		filepath.Join(t.TempDir(), "nope.json"),
	)
	if err != nil {
		t.Fatalf("Load with missing files: %v", err)
	}

	if _, ok := cfg.Providers["anthropic"]; !ok {
		t.Error("default anthropic provider missing")
	}
	if cfg.Roles["writer"].Count != 3 {
		t.Errorf("writer count = %d, want 3", cfg.Roles["writer"].Count)
	}
	if !cfg.Tuning.EnableCritic {
		t.Error("critic should be enabled by default")
	}
	if cfg.Tuning.CriticThreshold != 7 {
		t.Errorf("CriticThreshold = %d, want 7", cfg.Tuning.CriticThreshold)
	}
}

// TestLoadMergePrecedence tests project config overriding global, which
// overrides defaults.
func TestLoadMergePrecedence(t *testing.T) {
	dir := t.TempDir()

	globalPath := filepath.Join(dir, "global.json")
	writeFile(t, globalPath, `{
		"providers": {"ollama": {"kind": "ollama", "model": "mistral"}},
		"roles": {"writer": {"provider": "ollama", "temperature": 0.9}}
	}`)

	projectPath := filepath.Join(dir, "project.json")
	writeFile(t, projectPath, `{
		"roles": {"writer": {"provider": "ollama", "temperature": 0.5}}
	}`)

	cfg, err := Load(globalPath, projectPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Providers["ollama"].Model != "mistral" {
		t.Errorf("ollama model = %q, want mistral from global", cfg.Providers["ollama"].Model)
	}
	if cfg.Roles["writer"].Temperature != 0.5 {
		t.Errorf("writer temperature = %v, want 0.5 from project", cfg.Roles["writer"].Temperature)
	}
	// Untouched defaults survive the merge.
	if _, ok := cfg.Providers["anthropic"]; !ok {
		t.Error("default providers lost during merge")
	}
	if _, ok := cfg.Roles["critic"]; !ok {
		t.Error("default roles lost during merge")
	}
}

// TestLoadTuningPreserved tests that a file without a tuning section
// does not zero the tuning defaults.
func TestLoadTuningPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"providers": {"openai": {"kind": "openai"}}}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Tuning.EnableCritic || cfg.Tuning.ConcurrencyLimit != 4 {
		t.Errorf("tuning defaults clobbered by providers-only file: %+v", cfg.Tuning)
	}
}

// TestLoadTuningOverride tests an explicit tuning section replaces the
// defaults wholesale.
func TestLoadTuningOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"tuning": {"concurrency_limit": 8, "enable_critic": false}}`)

	cfg, err := Load(path, "")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Tuning.ConcurrencyLimit != 8 {
		t.Errorf("ConcurrencyLimit = %d, want 8", cfg.Tuning.ConcurrencyLimit)
	}
	if cfg.Tuning.EnableCritic {
		t.Error("EnableCritic should be off per the file")
	}
}

// TestLoadMalformed tests malformed JSON is an error, not a silent skip.
func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{not json`)

	if _, err := Load(path, ""); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

// TestSaveRoundtrip tests Save followed by Load preserves the config.
func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")

	cfg := DefaultConfig()
	cfg.Tuning.MaxIterations = 5
	cfg.Providers["custom"] = ProviderConfig{Kind: "openai", BaseURL: "http://proxy:8080"}

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Tuning.MaxIterations != 5 {
		t.Errorf("MaxIterations = %d, want 5", loaded.Tuning.MaxIterations)
	}
	if loaded.Providers["custom"].BaseURL != "http://proxy:8080" {
		t.Errorf("custom provider lost: %+v", loaded.Providers["custom"])
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
