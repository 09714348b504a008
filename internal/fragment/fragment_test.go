package fragment

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		content  string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
		{strings.Repeat("x", 401), 101},
		{"héllo", 2}, // 5 runes, 6 bytes
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, EstimateTokens(tt.content), "content %q", tt.content)
	}
}

func TestEstimateTokens_NonEmptyIsPositive(t *testing.T) {
	for n := 1; n <= 64; n++ {
		content := strings.Repeat("z", n)
		got := EstimateTokens(content)
		assert.GreaterOrEqual(t, got, 1)
		assert.Equal(t, (n+3)/4, got)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"1. Core Rules":              "1-core-rules",
		"Testing Best Practices":     "testing-best-practices",
		"  Security -- Guidelines! ": "security-guidelines",
		"API / HTTP":                 "api-http",
		"***":                        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestUniqueID(t *testing.T) {
	seen := make(map[string]int)
	got := []string{
		UniqueID("intro", seen),
		UniqueID("intro", seen),
		UniqueID("intro", seen),
		UniqueID("other", seen),
	}
	if diff := cmp.Diff([]string{"intro", "intro-2", "intro-3", "other"}, got); diff != "" {
		t.Errorf("UniqueID mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"Testing", " security", "testing", "", "API"})
	assert.Equal(t, []string{"api", "security", "testing"}, got)
	assert.Empty(t, NormalizeTags(nil))
}

func TestScorableVariants(t *testing.T) {
	section := NewSection("security", "Security", 2, "Always validate user input", []string{"Security"})
	tmpl := NewTemplate("feature/plan", "Plan", "feature", "templates/feature/plan.md", "# Plan", []string{"feature"})
	code := NewCode("lib/user.rb#class:User:1", "lib/user.rb", CodeClass, "User", 1, 3, "ruby", "class User\nend", []string{"ruby"})

	items := []Scorable{section, tmpl, code}
	assert.Equal(t, []Category{CategoryStyleGuide, CategoryTemplate, CategoryCode},
		[]Category{items[0].Category(), items[1].Category(), items[2].Category()})

	assert.True(t, section.HasTag("SECURITY"))
	assert.False(t, section.HasTag("testing"))
	assert.Equal(t, EstimateTokens("Always validate user input"), section.EstimatedTokens())

	tags := section.Tags()
	tags[0] = "mutated"
	assert.Equal(t, []string{"security"}, section.Tags(), "Tags must return a copy")
}

func TestCode_Paths(t *testing.T) {
	code := NewCode("id", "/work/app/lib/user.rb", CodeClass, "User", 3, 10, "ruby", "class User", nil)

	assert.Equal(t, 8, code.LineCount())
	assert.Equal(t, "lib/user.rb", code.RelativePath("/work/app"))
	assert.Equal(t, "/work/app/lib/user.rb", code.RelativePath("/elsewhere"))
	assert.True(t, code.MatchesPath("lib/user.rb"))
	assert.True(t, code.MatchesPath("./lib/user.rb"))
	assert.True(t, code.MatchesPath("/work/app/lib/user.rb"))
	assert.False(t, code.MatchesPath("user.rb.bak"))
	assert.False(t, code.MatchesPath("lib/admin_user.rb"))
	assert.False(t, code.MatchesPath(""))
}

func TestIsTestPath(t *testing.T) {
	positives := []string{
		"spec/models/user_spec.rb",
		"test/user_test.rb",
		"internal/prompt/scorer_test.go",
		"tests/test_user.py",
		"pkg/test_user.py",
		"src/user.test.ts",
		"src/__tests__/user.js",
	}
	negatives := []string{
		"lib/user.rb",
		"app/models/contest.rb",
		"internal/prompt/scorer.go",
		"src/latest.ts",
	}
	for _, p := range positives {
		assert.True(t, IsTestPath(p), p)
	}
	for _, p := range negatives {
		assert.False(t, IsTestPath(p), p)
	}
}

func TestExtractTags(t *testing.T) {
	t.Run("matches stems and whole words", func(t *testing.T) {
		got := ExtractTags("Add tests for the login endpoint and validate passwords")
		require.NotEmpty(t, got)
		assert.Contains(t, got, "testing")
		assert.Contains(t, got, "security")
		assert.Contains(t, got, "api")
	})

	t.Run("does not match inside other words", func(t *testing.T) {
		got := ExtractTags("A capital idea about contests")
		assert.NotContains(t, got, "api")
		assert.NotContains(t, got, "testing")
	})

	t.Run("is case-insensitive", func(t *testing.T) {
		assert.Equal(t, []string{"security"}, ExtractTags("SECURITY"))
	})

	t.Run("analysis vocabulary", func(t *testing.T) {
		assert.Equal(t, []string{"analysis"}, ExtractTags("analysis of the data"))
		assert.Equal(t, []string{"analysis"}, ExtractTags("Diagnose the root cause before patching"))
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		assert.Empty(t, ExtractTags("   "))
	})
}

func TestKnownTags_CoverTable(t *testing.T) {
	known := KnownTags()
	assert.Len(t, known, len(keywordTable))
	for _, tag := range []string{"testing", "security", "performance", "database", "api", "ui", "naming", "style", "analysis"} {
		assert.Contains(t, known, tag)
	}
}
