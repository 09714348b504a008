package prompt

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// SectionDivider separates the top-level sections of a built prompt.
const SectionDivider = "\n\n---\n\n"

// Section headings of a built prompt.
const (
	HeadingTask       = "# Task"
	HeadingStyleGuide = "# Relevant Style Guidelines"
	HeadingTemplates  = "# Template Guidance"
	HeadingCode       = "# Code Context"
	HeadingMetadata   = "# Metadata"
)

// PromptBuilder renders a composition into the final prompt text.
type PromptBuilder struct {
	projectRoot string
	now         func() time.Time
}

// NewPromptBuilder creates a builder that prints code paths relative to
// projectRoot.
func NewPromptBuilder(projectRoot string) *PromptBuilder {
	return &PromptBuilder{
		projectRoot: projectRoot,
		now:         time.Now,
	}
}

// WithClock replaces the builder's time source.
func (b *PromptBuilder) WithClock(now func() time.Time) *PromptBuilder {
	b.now = now
	return b
}

// Build renders task and result. Sections without content are omitted; the
// task section is always present and the metadata section only when
// includeMetadata is set. A nil result renders the task alone.
func (b *PromptBuilder) Build(task *TaskContext, result *CompositionResult, includeMetadata bool) *PromptOutput {
	timer := logging.StartTimer(logging.CategoryBuild, "Build")
	defer timer.Stop()

	if result == nil {
		result = &CompositionResult{}
	}
	generated := b.now().UTC()

	sections := []string{b.RenderTaskSection(task)}
	if s := b.renderStyleGuide(result.FragmentsByType(fragment.CategoryStyleGuide)); s != "" {
		sections = append(sections, s)
	}
	if s := b.renderTemplates(result.FragmentsByType(fragment.CategoryTemplate)); s != "" {
		sections = append(sections, s)
	}
	if s := b.renderCode(result.FragmentsByType(fragment.CategoryCode)); s != "" {
		sections = append(sections, s)
	}
	if includeMetadata {
		sections = append(sections, renderMetadata(result, generated))
	}

	out := &PromptOutput{
		Content:     strings.Join(sections, SectionDivider),
		Composition: result,
		Task:        task,
		GeneratedAt: generated,
		Metadata: map[string]interface{}{
			"selected_count":     result.SelectedCount(),
			"excluded_count":     result.ExcludedCount,
			"total_tokens":       result.TotalTokens,
			"budget":             result.Budget,
			"budget_utilization": result.BudgetUtilization(),
			"average_score":      result.AverageScore,
			"generated_at":       generated.Format(time.RFC3339),
		},
	}

	logging.BuildDebug("built prompt: %d sections, %d chars", len(sections), out.Size())
	return out
}

// RenderTaskSection renders the task description block.
func (b *PromptBuilder) RenderTaskSection(task *TaskContext) string {
	var sb strings.Builder
	sb.WriteString(HeadingTask)
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "**Type:** %s\n", task.TaskType)
	fmt.Fprintf(&sb, "**Description:** %s", strings.TrimSpace(task.Description))

	if len(task.AffectedFiles) > 0 {
		sb.WriteString("\n\n**Affected Files:**\n")
		for i, f := range task.AffectedFiles {
			if i > 0 {
				sb.WriteString("\n")
			}
			fmt.Fprintf(&sb, "- %s", f)
		}
	}
	if step := strings.TrimSpace(task.StepName); step != "" {
		fmt.Fprintf(&sb, "\n\n**Current Step:** %s", step)
	}
	return sb.String()
}

func (b *PromptBuilder) renderStyleGuide(items []ScoredItem) string {
	if len(items) == 0 {
		return ""
	}
	blocks := []string{HeadingStyleGuide}
	for _, it := range items {
		heading := it.Fragment.ID()
		if s, ok := it.Fragment.(*fragment.Section); ok {
			heading = s.Heading
		}
		block := "## " + heading
		if IsCritical(it.Score) {
			block += "\n\n" + fmt.Sprintf("*(critical: relevance score %s)*", percent(it.Score))
		}
		if body := it.Fragment.Content(); body != "" {
			block += "\n\n" + body
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

func (b *PromptBuilder) renderTemplates(items []ScoredItem) string {
	if len(items) == 0 {
		return ""
	}
	blocks := []string{HeadingTemplates}
	for _, it := range items {
		title := it.Fragment.ID()
		if t, ok := it.Fragment.(*fragment.Template); ok {
			title = fmt.Sprintf("%s (%s)", t.Name, t.Group)
		}
		block := "## " + title
		if body := it.Fragment.Content(); body != "" {
			block += "\n\n" + body
		}
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n\n")
}

// renderCode groups code fragments by file. Files appear in order of their
// best-scoring fragment; fragments within a file appear in line order.
func (b *PromptBuilder) renderCode(items []ScoredItem) string {
	var files []string
	byFile := make(map[string][]*fragment.Code)
	for _, it := range items {
		c, ok := it.Fragment.(*fragment.Code)
		if !ok {
			continue
		}
		rel := c.RelativePath(b.projectRoot)
		if _, seen := byFile[rel]; !seen {
			files = append(files, rel)
		}
		byFile[rel] = append(byFile[rel], c)
	}
	if len(files) == 0 {
		return ""
	}

	blocks := []string{HeadingCode}
	for _, file := range files {
		codes := byFile[file]
		sort.SliceStable(codes, func(i, j int) bool { return codes[i].LineStart < codes[j].LineStart })

		parts := []string{"## " + file}
		for _, c := range codes {
			fence := codeFence(c.Content())
			parts = append(parts, fmt.Sprintf("### %s: %s (lines %d-%d)\n\n%s%s\n%s\n%s",
				c.Type, c.Name, c.LineStart, c.LineEnd, fence, c.Language, c.Content(), fence))
		}
		blocks = append(blocks, strings.Join(parts, "\n\n"))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMetadata(r *CompositionResult, generated time.Time) string {
	lines := []string{
		HeadingMetadata,
		"",
		fmt.Sprintf("- Fragments selected: %d (excluded: %d)", r.SelectedCount(), r.ExcludedCount),
		fmt.Sprintf("- Tokens used: %d / %d (%.1f%%)", r.TotalTokens, r.Budget, r.BudgetUtilization()),
		fmt.Sprintf("- Average relevance: %s", percent(r.AverageScore)),
		fmt.Sprintf("- Generated at: %s", generated.Format(time.RFC3339)),
	}
	return strings.Join(lines, "\n")
}

// codeFence returns a backtick fence longer than any run inside content.
func codeFence(content string) string {
	longest, run := 0, 0
	for _, r := range content {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}

func percent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}
