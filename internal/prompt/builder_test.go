package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentctx/internal/fragment"
	"agentctx/internal/index"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func TestRenderTaskSection(t *testing.T) {
	b := NewPromptBuilder("/repo")

	t.Run("full", func(t *testing.T) {
		tc := NewTaskContext(TaskFeature, "Add login", []string{"lib/a.rb", "lib/b.rb"}, "implement", nil)
		want := "# Task\n\n" +
			"**Type:** feature\n" +
			"**Description:** Add login\n\n" +
			"**Affected Files:**\n- lib/a.rb\n- lib/b.rb\n\n" +
			"**Current Step:** implement"
		assert.Equal(t, want, b.RenderTaskSection(tc))
	})

	t.Run("minimal", func(t *testing.T) {
		tc := NewTaskContext(TaskBugfix, "Fix crash", nil, "", nil)
		assert.Equal(t, "# Task\n\n**Type:** bugfix\n**Description:** Fix crash", b.RenderTaskSection(tc))
	})
}

func TestBuild_TaskOnly(t *testing.T) {
	b := NewPromptBuilder("/repo").WithClock(fixedClock)
	tc := NewTaskContext(TaskFeature, "Add login", nil, "", nil)

	out := b.Build(tc, &CompositionResult{Budget: 100}, false)
	assert.Equal(t, b.RenderTaskSection(tc), out.Content)
	assert.NotContains(t, out.Content, SectionDivider)
	assert.Equal(t, fixedTime, out.GeneratedAt)
	assert.Equal(t, "2026-01-02T03:04:05Z", out.Metadata["generated_at"])

	nilResult := b.Build(tc, nil, false)
	assert.Equal(t, out.Content, nilResult.Content)
}

func TestBuild_SecurityGuidelinesScenario(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "STYLE_GUIDE.md")
	guide := "# Style Guide\n\n## Naming\n\nUse snake_case.\n\n## Security Guidelines\n\nAlways validate user input\n"
	require.NoError(t, os.WriteFile(path, []byte(guide), 0644))

	sections, err := index.NewStyleGuideIndexer(path).Index()
	require.NoError(t, err)

	var frags []fragment.Scorable
	for _, s := range sections {
		frags = append(frags, s)
	}

	tc := NewTaskContext(TaskFeature, "Harden the signup form", nil, "", []string{"security"})
	items := NewRelevanceScorer(DefaultWeights()).ScoreFragments(frags, tc)
	result := NewContextComposer(1000).Compose(items, 0, nil)
	out := NewPromptBuilder(dir).Build(tc, result, false)

	heading := strings.Index(out.Content, HeadingStyleGuide)
	body := strings.Index(out.Content, "Always validate user input")
	require.NotEqual(t, -1, heading, "missing style guideline section:\n%s", out.Content)
	require.NotEqual(t, -1, body, "missing guideline text:\n%s", out.Content)
	assert.Less(t, heading, body)
	assert.Contains(t, out.Content, "## Security Guidelines")
}

func TestBuild_AllSections(t *testing.T) {
	guide := fragment.NewSection("testing", "Testing", 2, "Write specs first.", []string{"testing"})
	tmpl := fragment.NewTemplate("feature/endpoint", "Add Endpoint", "feature", "templates/feature/endpoint.md", "Describe the route.", nil)
	user := fragment.NewCode("lib/user.rb#class:User:1", "/repo/lib/user.rb", fragment.CodeClass, "User", 1, 3, "ruby", "class User\nend", nil)
	save := fragment.NewCode("lib/user.rb#method:save:5", "/repo/lib/user.rb", fragment.CodeMethod, "save", 5, 7, "ruby", "def save\nend", nil)
	order := fragment.NewCode("lib/order.rb#class:Order:1", "/repo/lib/order.rb", fragment.CodeClass, "Order", 1, 2, "ruby", "class Order\nend", nil)

	result := &CompositionResult{
		Selected: []ScoredItem{
			{Fragment: guide, Score: 0.95},
			{Fragment: save, Score: 0.8},
			{Fragment: order, Score: 0.7},
			{Fragment: tmpl, Score: 0.6},
			{Fragment: user, Score: 0.5},
		},
		TotalTokens:  40,
		Budget:       400,
		AverageScore: 0.71,
	}
	tc := NewTaskContext(TaskFeature, "Add save", []string{"lib/user.rb"}, "", nil)
	out := NewPromptBuilder("/repo").WithClock(fixedClock).Build(tc, result, true)

	sections := strings.Split(out.Content, SectionDivider)
	require.Len(t, sections, 5)
	assert.True(t, strings.HasPrefix(sections[0], HeadingTask))
	assert.True(t, strings.HasPrefix(sections[1], HeadingStyleGuide))
	assert.True(t, strings.HasPrefix(sections[2], HeadingTemplates))
	assert.True(t, strings.HasPrefix(sections[3], HeadingCode))
	assert.True(t, strings.HasPrefix(sections[4], HeadingMetadata))

	assert.Contains(t, sections[1], "## Testing\n\n*(critical: relevance score 95%)*\n\nWrite specs first.")
	assert.Contains(t, sections[2], "## Add Endpoint (feature)\n\nDescribe the route.")

	code := sections[3]
	assert.Contains(t, code, "## lib/user.rb")
	assert.Contains(t, code, "### class: User (lines 1-3)\n\n```ruby\nclass User\nend\n```")
	assert.Less(t, strings.Index(code, "## lib/user.rb"), strings.Index(code, "## lib/order.rb"),
		"files ordered by their best fragment")
	assert.Less(t, strings.Index(code, "class: User"), strings.Index(code, "method: save"),
		"fragments within a file ordered by line")

	meta := sections[4]
	assert.Contains(t, meta, "- Fragments selected: 5 (excluded: 0)")
	assert.Contains(t, meta, "- Tokens used: 40 / 400 (10.0%)")
	assert.Contains(t, meta, "- Average relevance: 71%")
	assert.Contains(t, meta, "- Generated at: 2026-01-02T03:04:05Z")
}

func TestBuild_NonCriticalHasNoMarker(t *testing.T) {
	guide := fragment.NewSection("naming", "Naming", 2, "Use snake_case.", nil)
	result := &CompositionResult{Selected: []ScoredItem{{Fragment: guide, Score: 0.89}}, Budget: 100}
	out := NewPromptBuilder("").Build(NewTaskContext(TaskReview, "Review", nil, "", nil), result, false)
	assert.NotContains(t, out.Content, "critical")
	assert.NotContains(t, out.Content, HeadingMetadata)
}

func TestCodeFence(t *testing.T) {
	assert.Equal(t, "```", codeFence("plain"))
	assert.Equal(t, "````", codeFence("has ``` inside"))
	assert.Equal(t, "``````", codeFence("`````"))
}

func TestPromptOutput(t *testing.T) {
	guide := fragment.NewSection("security", "Security", 2, "Validate input.", []string{"security"})
	result := NewContextComposer(100).Compose([]ScoredItem{{Fragment: guide, Score: 0.92}}, 0, nil)
	tc := NewTaskContext(TaskSecurity, "Audit the login flow", []string{"lib/auth.rb"}, "review", nil)
	out := NewPromptBuilder("").WithClock(fixedClock).Build(tc, result, false)
	out.Metadata["run_id"] = "run-1"

	assert.Equal(t, len([]rune(out.Content)), out.Size())
	assert.Equal(t, fragment.EstimateTokens(out.Content), out.EstimatedTokens())

	path := filepath.Join(t.TempDir(), "out", "prompt.md")
	require.NoError(t, out.WriteToFile(path))
	require.NoError(t, out.WriteToFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out.Content, string(data))

	report := out.SelectionReport()
	assert.NotEqual(t, out.Content, report)
	assert.Contains(t, report, "# Prompt Selection Report")
	assert.Contains(t, report, "Generated: 2026-01-02T03:04:05Z")
	assert.Contains(t, report, "Run: run-1")
	assert.Contains(t, report, "- Type: security")
	assert.Contains(t, report, "- Selected: 1")
	assert.Contains(t, report, "| style_guide | 1 | 4 |")
	assert.Contains(t, report, "1. `security` [style_guide] 92%, 4 tokens (critical)")
}

func TestPromptOutput_EmptyReport(t *testing.T) {
	out := &PromptOutput{GeneratedAt: fixedTime, Metadata: map[string]interface{}{}}
	report := out.SelectionReport()
	assert.Contains(t, report, "_none_")
	assert.Contains(t, report, "- Average score: 0%")
}
