// Package fragment defines the scorable units that compete for space in a
// prompt's context window.
//
// Three kinds of fragment share one contract:
//  1. Section - a heading-delimited part of the project style guide
//  2. Template - a categorized task template
//  3. Code - an entity extracted from a source file (requires, class, method)
//
// Every kind implements Scorable so the scorer and composer never need to
// know which kind they are handling.
package fragment

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category discriminates the three fragment kinds.
type Category string

const (
	// CategoryStyleGuide marks a style-guide Section.
	CategoryStyleGuide Category = "style_guide"

	// CategoryTemplate marks a task Template.
	CategoryTemplate Category = "template"

	// CategoryCode marks a source Code entity.
	CategoryCode Category = "code"
)

// AllCategories returns the fragment categories in prompt order.
func AllCategories() []Category {
	return []Category{CategoryStyleGuide, CategoryTemplate, CategoryCode}
}

// Scorable is the common contract of all fragment kinds.
type Scorable interface {
	// ID is unique within one index.
	ID() string

	// Content is the text that enters the prompt.
	Content() string

	// EstimatedTokens is ceil(chars/4) of Content.
	EstimatedTokens() int

	// Tags are lowercase, sorted and unique.
	Tags() []string

	// HasTag matches case-insensitively.
	HasTag(tag string) bool

	// Category tells which kind of fragment this is.
	Category() Category
}

// base carries the fields shared by every fragment kind.
type base struct {
	id      string
	content string
	tags    []string
	tokens  int
}

func newBase(id, content string, tags []string) base {
	return base{
		id:      id,
		content: content,
		tags:    NormalizeTags(tags),
		tokens:  EstimateTokens(content),
	}
}

// ID returns the fragment id.
func (b *base) ID() string { return b.id }

// Content returns the fragment text.
func (b *base) Content() string { return b.content }

// EstimatedTokens returns the cached token estimate of the content.
func (b *base) EstimatedTokens() int { return b.tokens }

// Tags returns a copy of the fragment tags.
func (b *base) Tags() []string {
	out := make([]string, len(b.tags))
	copy(out, b.tags)
	return out
}

// HasTag reports whether tag is present, ignoring case.
func (b *base) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	i := sort.SearchStrings(b.tags, tag)
	return i < len(b.tags) && b.tags[i] == tag
}

// EstimateTokens estimates the token count of content as ceil(chars/4).
// Characters are counted as runes, so multi-byte text is not over-counted.
func EstimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (utf8.RuneCountInString(content) + 3) / 4
}

// NormalizeTags lowercases, trims, dedupes and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Slugify turns heading text into an id: lowercased, every run of
// non-alphanumeric characters collapsed to one hyphen, hyphens trimmed.
func Slugify(text string) string {
	var sb strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			pendingHyphen = false
			sb.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}
	return sb.String()
}

// UniqueID returns id, or id suffixed with -2, -3, ... when already taken.
// The chosen id is recorded in seen.
func UniqueID(id string, seen map[string]int) string {
	n := seen[id]
	seen[id] = n + 1
	if n == 0 {
		return id
	}
	for {
		n++
		candidate := id + "-" + strconv.Itoa(n)
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = 1
			return candidate
		}
	}
}

// Section is a heading-delimited part of the style guide.
type Section struct {
	base

	// Heading is the heading text without the leading #'s.
	Heading string

	// Level is the markdown heading depth (1-6).
	Level int
}

// NewSection creates a style-guide fragment.
func NewSection(id, heading string, level int, content string, tags []string) *Section {
	return &Section{
		base:    newBase(id, content, tags),
		Heading: heading,
		Level:   level,
	}
}

// Category returns CategoryStyleGuide.
func (s *Section) Category() Category { return CategoryStyleGuide }

// Template is a task template read from templates/<group>/<name>.md.
type Template struct {
	base

	// Name is the first H1 heading, or the title-cased file name.
	Name string

	// Group is the template category: the directory the file lives in.
	Group string

	// FilePath is where the template was read from.
	FilePath string
}

// NewTemplate creates a template fragment.
func NewTemplate(id, name, group, filePath, content string, tags []string) *Template {
	return &Template{
		base:     newBase(id, content, tags),
		Name:     name,
		Group:    group,
		FilePath: filePath,
	}
}

// Category returns CategoryTemplate.
func (t *Template) Category() Category { return CategoryTemplate }
