// Package world reads the project's source files and cuts them into Code
// fragments with tree-sitter.
package world

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	sitter "github.com/smacker/go-tree-sitter"

	"agentctx/internal/fragment"
	"agentctx/internal/logging"
)

// Fragmenter splits source files into requires, class and method fragments.
type Fragmenter struct {
	projectRoot string
}

// NewFragmenter creates a fragmenter whose relative paths and ids are
// computed against projectRoot.
func NewFragmenter(projectRoot string) *Fragmenter {
	return &Fragmenter{projectRoot: projectRoot}
}

// ProjectRoot returns the root used for relative paths.
func (f *Fragmenter) ProjectRoot() string { return f.projectRoot }

// Supported reports whether path has an extension the fragmenter can parse.
func Supported(path string) bool {
	_, ok := languageFor(path)
	return ok
}

// SupportedExtensions lists every recognized source extension, sorted.
func SupportedExtensions() []string {
	out := make([]string, 0, len(extensionLanguages))
	for ext := range extensionLanguages {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// FragmentFile parses one source file. Relative paths are resolved against
// the project root. A missing file or an unrecognized extension yields no
// fragments and no error.
func (f *Fragmenter) FragmentFile(path string) ([]*fragment.Code, error) {
	abs := path
	if !filepath.IsAbs(abs) && f.projectRoot != "" {
		abs = filepath.Join(f.projectRoot, path)
	}

	lang, ok := languageFor(abs)
	if !ok {
		logging.WorldDebug("skipping unsupported file %s", path)
		return nil, nil
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.WorldDebug("source file not found: %s", abs)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", abs, err)
	}

	return f.fragmentSource(abs, lang, src)
}

// FragmentFiles concatenates FragmentFile over paths, logging and skipping
// files that fail.
func (f *Fragmenter) FragmentFiles(paths []string) []*fragment.Code {
	var out []*fragment.Code
	for _, p := range paths {
		codes, err := f.FragmentFile(p)
		if err != nil {
			logging.WorldWarn("skipping %s: %v", p, err)
			continue
		}
		out = append(out, codes...)
	}
	logging.World("fragmented %d files into %d code fragments", len(paths), len(out))
	return out
}

// FragmentSource parses src as if it were read from path.
func (f *Fragmenter) FragmentSource(path string, src []byte) ([]*fragment.Code, error) {
	lang, ok := languageFor(path)
	if !ok {
		return nil, nil
	}
	return f.fragmentSource(path, lang, src)
}

func (f *Fragmenter) fragmentSource(path string, lang *language, src []byte) ([]*fragment.Code, error) {
	start := time.Now()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar(path))

	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		logging.Get(logging.CategoryWorld).Error("%s parse failed: %s - %v", lang.name, path, err)
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	c := &collector{
		fragmenter: f,
		lang:       lang,
		path:       path,
		rel:        f.relativePath(path),
		src:        src,
	}
	lang.extract(c, tree.RootNode())
	codes := c.finish()

	logging.WorldDebug("fragmented %s (%s) - %d fragments in %v",
		c.rel, lang.name, len(codes), time.Since(start))
	return codes, nil
}

func (f *Fragmenter) relativePath(path string) string {
	if f.projectRoot == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(f.projectRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// collector accumulates the fragments of one file while a language walker
// visits its syntax tree.
type collector struct {
	fragmenter *Fragmenter
	lang       *language
	path       string
	rel        string
	src        []byte
	lines      []string

	requires []*sitter.Node
	entities []*fragment.Code
}

func (c *collector) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// sourceLines returns the whole source lines start..end (1-indexed,
// inclusive), so the first line keeps its indentation.
func (c *collector) sourceLines(start, end int) string {
	if c.lines == nil {
		c.lines = strings.Split(strings.ReplaceAll(string(c.src), "\r\n", "\n"), "\n")
	}
	if start < 1 {
		start = 1
	}
	if end > len(c.lines) {
		end = len(c.lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(c.lines[start-1:end], "\n")
}

// fieldText returns the text of a named field, or "".
func (c *collector) fieldText(n *sitter.Node, field string) string {
	child := n.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return c.text(child)
}

func (c *collector) addRequire(n *sitter.Node) {
	c.requires = append(c.requires, n)
}

func (c *collector) addClass(n *sitter.Node, name string) {
	c.add(n, fragment.CodeClass, name)
}

func (c *collector) addMethod(n *sitter.Node, name string) {
	c.add(n, fragment.CodeMethod, name)
}

func (c *collector) add(n *sitter.Node, typ fragment.CodeType, name string) {
	if name == "" {
		return
	}
	start, end := lineRange(n)
	id := c.rel + "#" + string(typ) + ":" + name + ":" + strconv.Itoa(start)
	content := c.sourceLines(start, end)
	c.entities = append(c.entities, fragment.NewCode(id, c.path, typ, name, start, end,
		c.lang.name, content, c.tags(name, content)))
}

func (c *collector) tags(name, content string) []string {
	tags := []string{c.lang.name}
	tags = append(tags, fragment.ExtractTags(name+"\n"+content)...)
	if fragment.IsTestPath(c.rel) {
		tags = append(tags, "testing")
	}
	return tags
}

// finish returns the requires fragment, if any, followed by the entities in
// source order.
func (c *collector) finish() []*fragment.Code {
	out := make([]*fragment.Code, 0, len(c.entities)+1)
	if len(c.requires) > 0 {
		lines := make([]string, 0, len(c.requires))
		for _, n := range c.requires {
			lines = append(lines, strings.TrimSpace(c.text(n)))
		}
		content := strings.Join(lines, "\n")
		start, _ := lineRange(c.requires[0])
		_, end := lineRange(c.requires[len(c.requires)-1])
		out = append(out, fragment.NewCode(c.rel+"#requires", c.path, fragment.CodeRequires,
			"requires", start, end, c.lang.name, content, c.tags("requires", content)))
	}
	sort.SliceStable(c.entities, func(i, j int) bool {
		return c.entities[i].LineStart < c.entities[j].LineStart
	})
	return append(out, c.entities...)
}

// lineRange returns the 1-indexed inclusive lines n spans. A node that ends
// at column 0 does not claim that final line.
func lineRange(n *sitter.Node) (int, int) {
	start := int(n.StartPoint().Row) + 1
	end := int(n.EndPoint().Row) + 1
	if n.EndPoint().Column == 0 && end > start {
		end--
	}
	return start, end
}

// namedChildren returns n's named children in order.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}
