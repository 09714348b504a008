package config

import (
	"fmt"

	"agentctx/internal/fragment"
)

// PromptOptimizationConfig configures the prompt context optimizer.
type PromptOptimizationConfig struct {
	// Enabled controls whether fragments are selected at all (default: true).
	// When false, prompts carry only the task section.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// MaxTokens is the default context budget (default: 8000).
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// IncludeThreshold is the minimum score per source for non-critical fragments.
	IncludeThreshold IncludeThreshold `yaml:"include_threshold" json:"include_threshold"`

	// DynamicAdjustment measures the task-section reservation from the rendered
	// section instead of using a fixed reservation (default: true).
	DynamicAdjustment bool `yaml:"dynamic_adjustment" json:"dynamic_adjustment"`

	// LogSelectedFragments logs every selected fragment id and score.
	LogSelectedFragments bool `yaml:"log_selected_fragments" json:"log_selected_fragments"`
}

// IncludeThreshold holds per-source inclusion thresholds in [0,1].
type IncludeThreshold struct {
	StyleGuide float64 `yaml:"style_guide" json:"style_guide"`
	Templates  float64 `yaml:"templates" json:"templates"`
	Source     float64 `yaml:"source" json:"source"`
}

// DefaultPromptOptimizationConfig returns sensible defaults.
func DefaultPromptOptimizationConfig() PromptOptimizationConfig {
	return PromptOptimizationConfig{
		Enabled:   true,
		MaxTokens: 8000,
		IncludeThreshold: IncludeThreshold{
			StyleGuide: 0.3,
			Templates:  0.3,
			Source:     0.2,
		},
		DynamicAdjustment:    true,
		LogSelectedFragments: false,
	}
}

// Thresholds maps the per-source thresholds onto fragment categories.
func (c PromptOptimizationConfig) Thresholds() map[fragment.Category]float64 {
	return map[fragment.Category]float64{
		fragment.CategoryStyleGuide: c.IncludeThreshold.StyleGuide,
		fragment.CategoryTemplate:   c.IncludeThreshold.Templates,
		fragment.CategoryCode:       c.IncludeThreshold.Source,
	}
}

// Validate checks budget and threshold ranges.
func (c PromptOptimizationConfig) Validate() error {
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidConfig, c.MaxTokens)
	}
	for name, v := range map[string]float64{
		"style_guide": c.IncludeThreshold.StyleGuide,
		"templates":   c.IncludeThreshold.Templates,
		"source":      c.IncludeThreshold.Source,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: include_threshold.%s must be within [0,1], got %g", ErrInvalidConfig, name, v)
		}
	}
	return nil
}
