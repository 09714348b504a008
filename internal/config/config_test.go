package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"agentctx/internal/fragment"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "agentctx" {
		t.Errorf("expected Name=agentctx, got %s", cfg.Name)
	}
	if !cfg.PromptOptimization.Enabled {
		t.Error("expected prompt optimization enabled by default")
	}
	if cfg.PromptOptimization.MaxTokens != 8000 {
		t.Errorf("expected MaxTokens=8000, got %d", cfg.PromptOptimization.MaxTokens)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	t.Setenv("AGENTCTX_MAX_TOKENS", "")
	t.Setenv("AGENTCTX_STYLE_GUIDE", "")

	path := filepath.Join(t.TempDir(), "nested", "agentctx.yaml")

	cfg := DefaultConfig()
	cfg.PromptOptimization.MaxTokens = 1234
	cfg.PromptOptimization.IncludeThreshold.Source = 0.5
	cfg.StyleGuidePath = "STYLE.md"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.PromptOptimization.MaxTokens != 1234 {
		t.Errorf("expected MaxTokens=1234, got %d", loaded.PromptOptimization.MaxTokens)
	}
	if loaded.PromptOptimization.IncludeThreshold.Source != 0.5 {
		t.Errorf("expected source threshold 0.5, got %g", loaded.PromptOptimization.IncludeThreshold.Source)
	}
	if loaded.StyleGuidePath != "STYLE.md" {
		t.Errorf("expected StyleGuidePath=STYLE.md, got %s", loaded.StyleGuidePath)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("AGENTCTX_MAX_TOKENS", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PromptOptimization.MaxTokens != DefaultConfig().PromptOptimization.MaxTokens {
		t.Errorf("expected default max tokens, got %d", cfg.PromptOptimization.MaxTokens)
	}
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	t.Setenv("AGENTCTX_MAX_TOKENS", "")
	path := filepath.Join(t.TempDir(), "agentctx.yaml")
	content := "prompt_optimization:\n  max_tokens: 2000\n  include_threshold:\n    templates: 0.6\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	po := cfg.PromptOptimization
	if po.MaxTokens != 2000 || po.IncludeThreshold.Templates != 0.6 {
		t.Errorf("yaml values not applied: %+v", po)
	}
	if !po.Enabled || po.IncludeThreshold.StyleGuide != 0.3 {
		t.Errorf("defaults lost for unspecified keys: %+v", po)
	}
	if cfg.TemplatesDir != "templates" {
		t.Errorf("expected default templates dir, got %s", cfg.TemplatesDir)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("prompt_optimization: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("AGENTCTX_MAX_TOKENS", "4096")
	t.Setenv("AGENTCTX_STYLE_GUIDE", "guides/ruby.md")
	t.Setenv("AGENTCTX_TEMPLATES_DIR", "prompts")
	t.Setenv("AGENTCTX_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.PromptOptimization.MaxTokens != 4096 {
		t.Errorf("expected MaxTokens=4096, got %d", cfg.PromptOptimization.MaxTokens)
	}
	if cfg.StyleGuidePath != "guides/ruby.md" {
		t.Errorf("expected style guide override, got %s", cfg.StyleGuidePath)
	}
	if cfg.TemplatesDir != "prompts" {
		t.Errorf("expected templates override, got %s", cfg.TemplatesDir)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level override, got %s", cfg.Logging.Level)
	}
}

func TestConfig_EnvOverrideIgnoresGarbage(t *testing.T) {
	t.Setenv("AGENTCTX_MAX_TOKENS", "lots")
	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if cfg.PromptOptimization.MaxTokens != 8000 {
		t.Errorf("expected MaxTokens unchanged, got %d", cfg.PromptOptimization.MaxTokens)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero budget", func(c *Config) { c.PromptOptimization.MaxTokens = 0 }},
		{"threshold above one", func(c *Config) { c.PromptOptimization.IncludeThreshold.Source = 1.5 }},
		{"negative threshold", func(c *Config) { c.PromptOptimization.IncludeThreshold.StyleGuide = -0.1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestThresholds(t *testing.T) {
	th := DefaultPromptOptimizationConfig().Thresholds()
	if th[fragment.CategoryStyleGuide] != 0.3 || th[fragment.CategoryTemplate] != 0.3 || th[fragment.CategoryCode] != 0.2 {
		t.Errorf("unexpected thresholds: %v", th)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/ws", "docs/STYLE.md"); got != filepath.Join("/ws", "docs/STYLE.md") {
		t.Errorf("unexpected %s", got)
	}
	if got := ResolvePath("/ws", "/abs/STYLE.md"); got != "/abs/STYLE.md" {
		t.Errorf("absolute path should be kept, got %s", got)
	}
	if got := ResolvePath("", "rel"); got != "rel" {
		t.Errorf("empty workspace should keep path, got %s", got)
	}
}
