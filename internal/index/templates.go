package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// TemplateQuery filters templates. Zero-valued fields are ignored.
type TemplateQuery struct {
	// Category matches the template group exactly.
	Category string

	// Tags matches templates carrying at least one of the tags.
	Tags []string

	// Name matches against the template name.
	Name *regexp.Regexp
}

// TemplateIndexer indexes a templates/<category>/*.md tree.
type TemplateIndexer struct {
	dir       string
	templates []*fragment.Template
	byID      map[string]*fragment.Template
	indexed   bool
}

// NewTemplateIndexer creates an indexer rooted at dir.
func NewTemplateIndexer(dir string) *TemplateIndexer {
	return &TemplateIndexer{dir: dir}
}

// Dir returns the templates root.
func (x *TemplateIndexer) Dir() string { return x.dir }

// Indexed reports whether Index has run since the last Reset.
func (x *TemplateIndexer) Indexed() bool { return x.indexed }

// Index walks <dir>/<category>/*.md. Files directly under dir and deeper
// directories are ignored. A missing or empty dir yields no templates.
func (x *TemplateIndexer) Index() ([]*fragment.Template, error) {
	timer := logging.StartTimer(logging.CategoryIndex, "TemplateIndexer.Index")
	defer timer.Stop()

	x.templates = nil
	x.byID = make(map[string]*fragment.Template)
	x.indexed = true

	groups, err := os.ReadDir(x.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.IndexDebug("templates dir not found at %s", x.dir)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read templates dir %s: %w", x.dir, err)
	}

	var failures []error
	seen := make(map[string]int)
	for _, g := range groups {
		if !g.IsDir() {
			continue
		}
		group := g.Name()
		groupDir := filepath.Join(x.dir, group)

		entries, err := os.ReadDir(groupDir)
		if err != nil {
			failures = append(failures, fmt.Errorf("failed to read template category %s: %w", group, err))
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
				continue
			}
			path := filepath.Join(groupDir, e.Name())
			data, err := os.ReadFile(path)
			if err != nil {
				failures = append(failures, fmt.Errorf("failed to read template %s: %w", path, err))
				continue
			}
			t := ParseTemplate(group, e.Name(), path, data)
			if id := fragment.UniqueID(t.ID(), seen); id != t.ID() {
				logging.IndexWarn("duplicate template id %s, indexing %s as %s", t.ID(), path, id)
				t = fragment.NewTemplate(id, t.Name, t.Group, t.FilePath, t.Content(), t.Tags())
			}
			x.templates = append(x.templates, t)
			x.byID[t.ID()] = t
		}
	}

	logging.Index("indexed %d templates from %s", len(x.templates), x.dir)
	return x.templates, errors.Join(failures...)
}

// ParseTemplate builds a template fragment from one file.
func ParseTemplate(group, fileName, path string, data []byte) *fragment.Template {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))

	name := ""
	for _, h := range parseHeadings(data) {
		if h.Level == 1 {
			name = h.Text
			break
		}
	}
	if name == "" {
		name = cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(stem))
	}

	content := strings.TrimSpace(string(data))
	tags := append([]string{group}, fragment.ExtractTags(stem+"\n"+content)...)

	return fragment.NewTemplate(group+"/"+stem, name, group, path, content, tags)
}

// Fragments returns the templates from the last Index call.
func (x *TemplateIndexer) Fragments() []*fragment.Template {
	return x.templates
}

// FindTemplates returns the templates matching every criterion of q.
func (x *TemplateIndexer) FindTemplates(q TemplateQuery) []*fragment.Template {
	var out []*fragment.Template
	for _, t := range x.templates {
		if q.Category != "" && t.Group != q.Category {
			continue
		}
		if len(q.Tags) > 0 && !hasAnyTag(t, q.Tags) {
			continue
		}
		if q.Name != nil && !q.Name.MatchString(t.Name) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Categories returns the sorted unique template groups.
func (x *TemplateIndexer) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range x.templates {
		if _, ok := seen[t.Group]; ok {
			continue
		}
		seen[t.Group] = struct{}{}
		out = append(out, t.Group)
	}
	sort.Strings(out)
	return out
}

// AllTags returns the sorted unique tags across all templates.
func (x *TemplateIndexer) AllTags() []string {
	items := make([]fragment.Scorable, 0, len(x.templates))
	for _, t := range x.templates {
		items = append(items, t)
	}
	return collectTags(items)
}

// FindByID returns the template with exactly this id.
func (x *TemplateIndexer) FindByID(id string) (*fragment.Template, bool) {
	t, ok := x.byID[id]
	return t, ok
}

// Reset drops the cached templates.
func (x *TemplateIndexer) Reset() {
	x.templates = nil
	x.byID = nil
	x.indexed = false
}
