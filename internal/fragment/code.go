package fragment

import (
	"path/filepath"
	"regexp"
	"strings"
)

// CodeType is the kind of source entity a Code fragment covers.
type CodeType string

const (
	// CodeRequires aggregates every import-equivalent line of a file.
	CodeRequires CodeType = "requires"

	// CodeClass covers a class, module, struct, trait or other type definition.
	CodeClass CodeType = "class"

	// CodeMethod covers a top-level method or function.
	CodeMethod CodeType = "method"
)

// Code is an entity extracted from a source file.
type Code struct {
	base

	// FilePath is the path the file was read from.
	FilePath string

	// Type is requires, class or method.
	Type CodeType

	// Name is the entity name ("requires" for the aggregate import fragment).
	Name string

	// LineStart and LineEnd are 1-indexed and inclusive.
	LineStart int
	LineEnd   int

	// Language is the source language (ruby, go, python, ...).
	Language string
}

// NewCode creates a code fragment.
func NewCode(id, filePath string, typ CodeType, name string, lineStart, lineEnd int, language, content string, tags []string) *Code {
	return &Code{
		base:      newBase(id, content, tags),
		FilePath:  filePath,
		Type:      typ,
		Name:      name,
		LineStart: lineStart,
		LineEnd:   lineEnd,
		Language:  language,
	}
}

// Category returns CategoryCode.
func (c *Code) Category() Category { return CategoryCode }

// LineCount is the number of lines the fragment spans.
func (c *Code) LineCount() int {
	return c.LineEnd - c.LineStart + 1
}

// RelativePath strips projectRoot from FilePath.
// Paths outside the root are returned unchanged.
func (c *Code) RelativePath(projectRoot string) string {
	if projectRoot == "" {
		return filepath.ToSlash(c.FilePath)
	}
	rel, err := filepath.Rel(projectRoot, c.FilePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(c.FilePath)
	}
	return filepath.ToSlash(rel)
}

// IsTestFile reports whether the fragment comes from a test or spec file.
func (c *Code) IsTestFile() bool {
	return IsTestPath(c.FilePath)
}

// MatchesPath reports whether the fragment's file is path, comparing
// slash-separated forms and accepting a relative path that suffixes FilePath.
func (c *Code) MatchesPath(path string) bool {
	if path == "" {
		return false
	}
	own := filepath.ToSlash(filepath.Clean(c.FilePath))
	want := filepath.ToSlash(filepath.Clean(path))
	if own == want {
		return true
	}
	return strings.HasSuffix(own, "/"+strings.TrimPrefix(want, "./"))
}

var testPathPattern = regexp.MustCompile(
	`(^|/)(test|tests|spec|specs|__tests__)/` +
		`|_(test|spec)\.[a-z]+$` +
		`|(^|/)test_[^/]+\.py$` +
		`|\.(test|spec)\.[jt]sx?$`)

// IsTestPath reports whether path follows a test or spec naming convention.
func IsTestPath(path string) bool {
	return testPathPattern.MatchString(filepath.ToSlash(path))
}
