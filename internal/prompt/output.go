package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"agentctx/internal/fragment"
)

// PromptOutput is a built prompt together with the inputs that produced it.
type PromptOutput struct {
	// Content is the prompt text handed to the model.
	Content string

	Composition *CompositionResult
	Task        *TaskContext

	// Metadata carries the selection statistics and generation time, plus
	// run_id when produced by an Optimizer.
	Metadata map[string]interface{}

	GeneratedAt time.Time
}

// Size is the character length of Content.
func (o *PromptOutput) Size() int {
	return utf8.RuneCountInString(o.Content)
}

// EstimatedTokens estimates the token count of Content.
func (o *PromptOutput) EstimatedTokens() int {
	return fragment.EstimateTokens(o.Content)
}

// WriteToFile writes Content to path, replacing any existing file.
func (o *PromptOutput) WriteToFile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(o.Content), 0644); err != nil {
		return fmt.Errorf("failed to write prompt: %w", err)
	}
	return nil
}

// SelectionReport describes what was selected and why, as markdown. It is
// separate from the prompt itself.
func (o *PromptOutput) SelectionReport() string {
	r := o.Composition
	if r == nil {
		r = &CompositionResult{}
	}
	var sb strings.Builder

	sb.WriteString("# Prompt Selection Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n", o.GeneratedAt.Format(time.RFC3339))
	if id, ok := o.Metadata["run_id"]; ok {
		fmt.Fprintf(&sb, "Run: %v\n", id)
	}

	if tc := o.Task; tc != nil {
		sb.WriteString("\n## Task\n\n")
		fmt.Fprintf(&sb, "- Type: %s\n", tc.TaskType)
		fmt.Fprintf(&sb, "- Description: %s\n", strings.TrimSpace(tc.Description))
		if tc.StepName != "" {
			fmt.Fprintf(&sb, "- Step: %s\n", tc.StepName)
		}
		if len(tc.Tags) > 0 {
			fmt.Fprintf(&sb, "- Tags: %s\n", strings.Join(tc.Tags, ", "))
		}
		if len(tc.AffectedFiles) > 0 {
			fmt.Fprintf(&sb, "- Affected files: %s\n", strings.Join(tc.AffectedFiles, ", "))
		}
	}

	s := r.Summary()
	sb.WriteString("\n## Composition\n\n")
	fmt.Fprintf(&sb, "- Selected: %d\n", s.SelectedCount)
	fmt.Fprintf(&sb, "- Excluded: %d\n", s.ExcludedCount)
	fmt.Fprintf(&sb, "- Tokens: %d / %d (%.1f%%)\n", s.TotalTokens, s.Budget, s.BudgetUtilization)
	fmt.Fprintf(&sb, "- Average score: %s\n", percent(s.AverageScore))

	sb.WriteString("\n| Category | Count | Tokens |\n|---|---|---|\n")
	cats := make([]string, 0, len(s.ByCategory))
	for c := range s.ByCategory {
		cats = append(cats, string(c))
	}
	sort.Strings(cats)
	for _, c := range cats {
		u := s.ByCategory[fragment.Category(c)]
		fmt.Fprintf(&sb, "| %s | %d | %d |\n", c, u.Count, u.Tokens)
	}

	sb.WriteString("\n## Selected Fragments\n\n")
	if len(r.Selected) == 0 {
		sb.WriteString("_none_\n")
	}
	for i, it := range r.Selected {
		marker := ""
		if IsCritical(it.Score) {
			marker = " (critical)"
		}
		fmt.Fprintf(&sb, "%d. `%s` [%s] %s, %d tokens%s\n",
			i+1, it.Fragment.ID(), it.Fragment.Category(), percent(it.Score),
			it.Fragment.EstimatedTokens(), marker)
	}
	return sb.String()
}
