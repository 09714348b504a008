package index

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// heading is a top-level markdown heading with its position in the source.
type heading struct {
	Level int
	Text  string

	// Line is the 0-based line the heading starts on.
	Line int

	// BodyLine is the first line after the heading (after the underline
	// for setext headings).
	BodyLine int
}

var markdown = goldmark.New()

// emptyATX matches a heading line with no text, such as "#" or "## ##".
var emptyATX = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]+#*)?[ \t]*$`)

// parseHeadings returns the document-level headings of src in order.
// Headings inside code fences, block quotes or lists are not returned.
// A heading without text is returned with an empty Text.
func parseHeadings(src []byte) []heading {
	lineStarts := lineOffsets(src)
	srcLines := splitLines(src)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out []heading
	// cursor is the first line not yet claimed by an earlier block
	cursor := 0
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			if end := lastLine(n, lineStarts); end >= cursor {
				cursor = end + 1
			}
			continue
		}

		lines := h.Lines()
		if lines.Len() == 0 {
			line := cursor
			for line < len(srcLines) && !emptyATX.MatchString(srcLines[line]) {
				line++
			}
			if line == len(srcLines) {
				continue
			}
			out = append(out, heading{Level: h.Level, Line: line, BodyLine: line + 1})
			cursor = line + 1
			continue
		}

		parts := make([]string, 0, lines.Len())
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			parts = append(parts, strings.TrimSpace(string(seg.Value(src))))
		}

		first := lineOf(lineStarts, lines.At(0).Start)
		last := lineOf(lineStarts, lines.At(lines.Len()-1).Start)
		body := last + 1
		if !isATX(src[lineStarts[first]:]) {
			// setext: skip the === / --- underline
			body++
		}

		out = append(out, heading{
			Level:    h.Level,
			Text:     strings.Join(parts, " "),
			Line:     first,
			BodyLine: body,
		})
		cursor = body
	}
	return out
}

// lastLine returns the last source line covered by block n or its
// descendants, or -1 when none carry lines.
func lastLine(n ast.Node, lineStarts []int) int {
	end := -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || c.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := c.Lines(); lines.Len() > 0 {
			if l := lineOf(lineStarts, lines.At(lines.Len()-1).Start); l > end {
				end = l
			}
		}
		return ast.WalkContinue, nil
	})
	return end
}

// splitLines splits src into lines without their terminators.
func splitLines(src []byte) []string {
	s := strings.ReplaceAll(string(src), "\r\n", "\n")
	return strings.Split(s, "\n")
}

// bodyBetween joins lines[from:to] and trims surrounding blank lines.
func bodyBetween(lines []string, from, to int) string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return ""
	}
	for from < to && strings.TrimSpace(lines[from]) == "" {
		from++
	}
	for to > from && strings.TrimSpace(lines[to-1]) == "" {
		to--
	}
	return strings.Join(lines[from:to], "\n")
}

func lineOffsets(src []byte) []int {
	offsets := []int{0}
	for i, b := range src {
		if b == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}

func lineOf(offsets []int, pos int) int {
	return sort.Search(len(offsets), func(i int) bool { return offsets[i] > pos }) - 1
}

func isATX(line []byte) bool {
	trimmed := strings.TrimLeft(string(firstLine(line)), " ")
	return strings.HasPrefix(trimmed, "#")
}

func firstLine(b []byte) []byte {
	for i, c := range b {
		if c == '\n' {
			return b[:i]
		}
	}
	return b
}
