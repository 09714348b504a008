package fragment

import (
	"regexp"
	"strings"
)

// keywordRule maps one tag to the words that imply it.
// A keyword ending in '*' is a stem that matches any word starting with it;
// other keywords must match a whole word.
type keywordRule struct {
	Tag      string
	Keywords []string
}

// keywordTable is the one tag vocabulary shared by every indexer and by
// task-context auto-tagging.
var keywordTable = []keywordRule{
	{Tag: "testing", Keywords: []string{"test*", "spec", "specs", "rspec", "minitest", "assert*", "coverage", "tdd", "fixture*", "mock*"}},
	{Tag: "security", Keywords: []string{"secur*", "auth*", "password*", "encrypt*", "vulnerab*", "sanitiz*", "validat*", "xss", "csrf", "injection", "secret*", "permission*"}},
	{Tag: "performance", Keywords: []string{"performan*", "optimi*", "cach*", "latency", "benchmark*", "slow", "memory", "n+1"}},
	{Tag: "database", Keywords: []string{"database*", "sql", "query", "queries", "migration*", "schema*", "activerecord", "postgres*", "mysql", "sqlite", "transaction*"}},
	{Tag: "api", Keywords: []string{"api", "apis", "endpoint*", "rest", "restful", "graphql", "http", "request*", "response*", "webhook*"}},
	{Tag: "ui", Keywords: []string{"ui", "view*", "component*", "css", "html", "frontend", "layout*", "stylesheet*"}},
	{Tag: "naming", Keywords: []string{"naming", "convention*", "identifier*", "camelcase", "snake_case"}},
	{Tag: "style", Keywords: []string{"style*", "format*", "lint*", "rubocop", "indent*", "whitespace"}},
	{Tag: "error", Keywords: []string{"error*", "exception*", "rescue", "raise*", "panic*", "failure*", "crash*", "bug", "bugs"}},
	{Tag: "refactor", Keywords: []string{"refactor*", "cleanup", "restructur*", "simplif*", "extract*", "duplicat*"}},
	{Tag: "documentation", Keywords: []string{"document*", "docs", "comment*", "readme", "docstring*", "yard"}},
	{Tag: "implementation", Keywords: []string{"implement*", "feature*", "build*"}},
	{Tag: "planning", Keywords: []string{"plan", "plans", "planning", "design*", "architect*", "roadmap"}},
	{Tag: "review", Keywords: []string{"review*", "feedback", "approv*"}},
	{Tag: "analysis", Keywords: []string{"analy*", "investigat*", "diagnos*", "root cause", "triag*", "inspect*"}},
	{Tag: "git", Keywords: []string{"git", "commit*", "branch*", "merge*", "rebase"}},
	{Tag: "ci", Keywords: []string{"ci", "pipeline*", "workflow*", "github actions"}},
	{Tag: "logging", Keywords: []string{"log", "logs", "logging", "logger*", "monitor*", "metric*", "observab*"}},
	{Tag: "concurrency", Keywords: []string{"thread*", "concurren*", "async*", "mutex*", "goroutine*", "parallel*", "race"}},
	{Tag: "dependencies", Keywords: []string{"dependenc*", "gem", "gems", "gemfile", "bundler", "package*", "module*"}},
}

type compiledRule struct {
	tag     string
	pattern *regexp.Regexp
}

var compiledTable = compileKeywordTable(keywordTable)

func compileKeywordTable(rules []keywordRule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		alts := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if stem, ok := strings.CutSuffix(kw, "*"); ok {
				alts = append(alts, regexp.QuoteMeta(stem)+`\w*`)
			} else {
				alts = append(alts, regexp.QuoteMeta(kw))
			}
		}
		out = append(out, compiledRule{
			tag:     r.Tag,
			pattern: regexp.MustCompile(`(?i)(?:^|[^\w])(?:` + strings.Join(alts, "|") + `)(?:$|[^\w])`),
		})
	}
	return out
}

// ExtractTags returns the tags whose keywords occur in text, in table order.
func ExtractTags(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var tags []string
	for _, r := range compiledTable {
		if r.pattern.MatchString(text) {
			tags = append(tags, r.tag)
		}
	}
	return tags
}

// KnownTags lists every tag the keyword table can produce.
func KnownTags() []string {
	out := make([]string, 0, len(keywordTable))
	for _, r := range keywordTable {
		out = append(out, r.Tag)
	}
	return out
}
