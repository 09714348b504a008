// Package index turns project documentation into scorable fragments.
//
// StyleGuideIndexer splits one markdown style guide into heading-delimited
// sections. TemplateIndexer reads a templates/<category>/*.md tree.
// Both treat a missing source as empty and cache what they read until Reset.
package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// SectionQuery filters style-guide sections. Zero-valued fields are ignored;
// every set field must match.
type SectionQuery struct {
	// Tags matches sections carrying at least one of the tags.
	Tags []string

	// Heading matches against the heading text.
	Heading *regexp.Regexp

	// MinLevel and MaxLevel bound the heading depth (0 = unbounded).
	MinLevel int
	MaxLevel int
}

// StyleGuideIndexer indexes a markdown style guide.
type StyleGuideIndexer struct {
	path     string
	sections []*fragment.Section
	byID     map[string]*fragment.Section
	indexed  bool
}

// NewStyleGuideIndexer creates an indexer for the style guide at path.
func NewStyleGuideIndexer(path string) *StyleGuideIndexer {
	return &StyleGuideIndexer{path: path}
}

// Path returns the style guide location.
func (x *StyleGuideIndexer) Path() string { return x.path }

// Indexed reports whether Index has run since the last Reset.
func (x *StyleGuideIndexer) Indexed() bool { return x.indexed }

// Index reads and splits the style guide.
// A missing file yields no sections and no error. Any other read error is
// returned; the indexer is still marked indexed with no sections so a bad
// source is not re-read on every call.
func (x *StyleGuideIndexer) Index() ([]*fragment.Section, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "StyleGuideIndexer.Index")
	defer timer.Stop()

	x.sections = nil
	x.byID = make(map[string]*fragment.Section)
	x.indexed = true

	src, err := os.ReadFile(x.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.IndexDebug("style guide not found at %s", x.path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read style guide %s: %w", x.path, err)
	}

	x.sections = ParseStyleGuide(src)
	for _, s := range x.sections {
		x.byID[s.ID()] = s
	}

	logging.Index("indexed %d style guide sections from %s", len(x.sections), x.path)
	return x.sections, nil
}

// ParseStyleGuide splits markdown into one section per heading.
// A section spans until the next heading of equal or shallower depth; deeper
// headings inside it become sections of their own, so every section's
// content is the text between its heading and the next heading.
func ParseStyleGuide(src []byte) []*fragment.Section {
	headings := parseHeadings(src)
	lines := splitLines(src)
	seen := make(map[string]int)

	sections := make([]*fragment.Section, 0, len(headings))
	for i, h := range headings {
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].Line
		}
		content := bodyBetween(lines, h.BodyLine, end)

		slug := fragment.Slugify(h.Text)
		if slug == "" {
			slug = "section"
		}
		id := fragment.UniqueID(slug, seen)
		tags := fragment.ExtractTags(h.Text + "\n" + content)

		sections = append(sections, fragment.NewSection(id, h.Text, h.Level, content, tags))
	}
	return sections
}

// Fragments returns the sections from the last Index call.
func (x *StyleGuideIndexer) Fragments() []*fragment.Section {
	return x.sections
}

// FindFragments returns the sections matching every criterion of q.
func (x *StyleGuideIndexer) FindFragments(q SectionQuery) []*fragment.Section {
	var out []*fragment.Section
	for _, s := range x.sections {
		if len(q.Tags) > 0 && !hasAnyTag(s, q.Tags) {
			continue
		}
		if q.Heading != nil && !q.Heading.MatchString(s.Heading) {
			continue
		}
		if q.MinLevel > 0 && s.Level < q.MinLevel {
			continue
		}
		if q.MaxLevel > 0 && s.Level > q.MaxLevel {
			continue
		}
		out = append(out, s)
	}
	return out
}

// AllTags returns the sorted unique tags across all sections.
func (x *StyleGuideIndexer) AllTags() []string {
	items := make([]fragment.Scorable, 0, len(x.sections))
	for _, s := range x.sections {
		items = append(items, s)
	}
	return collectTags(items)
}

// FindByID returns the section with exactly this id.
func (x *StyleGuideIndexer) FindByID(id string) (*fragment.Section, bool) {
	s, ok := x.byID[id]
	return s, ok
}

// Reset drops the cached sections.
func (x *StyleGuideIndexer) Reset() {
	x.sections = nil
	x.byID = nil
	x.indexed = false
}

func hasAnyTag(f fragment.Scorable, tags []string) bool {
	for _, t := range tags {
		if f.HasTag(t) {
			return true
		}
	}
	return false
}

func collectTags(items []fragment.Scorable) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		for _, t := range it.Tags() {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
