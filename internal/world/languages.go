package world

import (
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// language binds a tree-sitter grammar to the walker that extracts
// fragments from its syntax tree.
type language struct {
	name    string
	grammar func(path string) *sitter.Language
	extract func(c *collector, root *sitter.Node)
}

var (
	rubyLanguage = &language{
		name:    "ruby",
		grammar: func(string) *sitter.Language { return ruby.GetLanguage() },
		extract: extractRuby,
	}
	goLanguage = &language{
		name:    "go",
		grammar: func(string) *sitter.Language { return golang.GetLanguage() },
		extract: extractGo,
	}
	pythonLanguage = &language{
		name:    "python",
		grammar: func(string) *sitter.Language { return python.GetLanguage() },
		extract: extractPython,
	}
	javascriptLanguage = &language{
		name:    "javascript",
		grammar: func(string) *sitter.Language { return javascript.GetLanguage() },
		extract: extractJS,
	}
	typescriptLanguage = &language{
		name: "typescript",
		grammar: func(path string) *sitter.Language {
			if strings.EqualFold(filepath.Ext(path), ".tsx") {
				return tsx.GetLanguage()
			}
			return typescript.GetLanguage()
		},
		extract: extractJS,
	}
	rustLanguage = &language{
		name:    "rust",
		grammar: func(string) *sitter.Language { return rust.GetLanguage() },
		extract: extractRust,
	}
)

var extensionLanguages = map[string]*language{
	".rb":      rubyLanguage,
	".rake":    rubyLanguage,
	".gemspec": rubyLanguage,
	".go":      goLanguage,
	".py":      pythonLanguage,
	".js":      javascriptLanguage,
	".jsx":     javascriptLanguage,
	".mjs":     javascriptLanguage,
	".cjs":     javascriptLanguage,
	".ts":      typescriptLanguage,
	".tsx":     typescriptLanguage,
	".rs":      rustLanguage,
}

func languageFor(path string) (*language, bool) {
	lang, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

func qualify(owner, sep, name string) string {
	if owner == "" {
		return name
	}
	return owner + sep + name
}

// Ruby

var rubyRequirePattern = regexp.MustCompile(`^\s*(require|require_relative|load|autoload)\b`)

func extractRuby(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		if rubyRequirePattern.MatchString(c.text(n)) {
			c.addRequire(n)
		}
	}
	walkRuby(c, root, "", false)
}

// rubyBody returns the statements of a program, class or module, looking
// through body_statement wrappers.
func rubyBody(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range namedChildren(n) {
		if child.Type() == "body_statement" {
			out = append(out, namedChildren(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func walkRuby(c *collector, node *sitter.Node, owner string, singleton bool) {
	for _, n := range rubyBody(node) {
		switch n.Type() {
		case "class", "module":
			name := qualify(owner, "::", c.fieldText(n, "name"))
			c.addClass(n, name)
			walkRuby(c, n, name, false)

		case "singleton_class":
			walkRuby(c, n, owner, true)

		case "method":
			sep := "#"
			if singleton {
				sep = "."
			}
			c.addMethod(n, qualify(owner, sep, c.fieldText(n, "name")))

		case "singleton_method":
			c.addMethod(n, qualify(owner, ".", c.fieldText(n, "name")))
		}
	}
}

// Go

func extractGo(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "import_declaration":
			c.addRequire(n)

		case "type_declaration":
			specs := namedChildren(n)
			for _, spec := range specs {
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				span := spec
				if len(specs) == 1 {
					span = n
				}
				c.addClass(span, c.fieldText(spec, "name"))
			}

		case "function_declaration":
			c.addMethod(n, c.fieldText(n, "name"))

		case "method_declaration":
			c.addMethod(n, qualify(goReceiverType(c, n), ".", c.fieldText(n, "name")))
		}
	}
}

// goReceiverType returns the bare receiver type name of a method.
func goReceiverType(c *collector, n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	for _, param := range namedChildren(recv) {
		if param.Type() != "parameter_declaration" {
			continue
		}
		typ := strings.TrimLeft(c.fieldText(param, "type"), "*")
		if i := strings.IndexByte(typ, '['); i >= 0 {
			typ = typ[:i]
		}
		return strings.TrimSpace(typ)
	}
	return ""
}

// Python

func extractPython(c *collector, root *sitter.Node) {
	walkPython(c, root, "")
}

func walkPython(c *collector, node *sitter.Node, owner string) {
	for _, n := range namedChildren(node) {
		span := n
		def := n
		if n.Type() == "decorated_definition" {
			def = n.ChildByFieldName("definition")
			if def == nil {
				continue
			}
		}

		switch def.Type() {
		case "import_statement", "import_from_statement", "future_import_statement":
			if owner == "" {
				c.addRequire(n)
			}

		case "class_definition":
			name := qualify(owner, ".", c.fieldText(def, "name"))
			c.addClass(span, name)
			walkPython(c, def.ChildByFieldName("body"), name)

		case "function_definition":
			c.addMethod(span, qualify(owner, ".", c.fieldText(def, "name")))
		}
	}
}

// JavaScript and TypeScript

var jsRequirePattern = regexp.MustCompile(`\brequire\s*\(`)

func extractJS(c *collector, root *sitter.Node) {
	for _, n := range namedChildren(root) {
		switch n.Type() {
		case "import_statement":
			c.addRequire(n)

		case "export_statement":
			if decl := n.ChildByFieldName("declaration"); decl != nil {
				jsDeclaration(c, decl, n)
			}

		case "expression_statement":
			if jsRequirePattern.MatchString(c.text(n)) {
				c.addRequire(n)
			}

		default:
			jsDeclaration(c, n, n)
		}
	}
}

// jsDeclaration records decl; span is the node whose lines the fragment
// covers (the export statement for exported declarations).
func jsDeclaration(c *collector, decl, span *sitter.Node) {
	switch decl.Type() {
	case "class_declaration", "abstract_class_declaration":
		name := c.fieldText(decl, "name")
		c.addClass(span, name)
		for _, member := range namedChildren(decl.ChildByFieldName("body")) {
			if member.Type() == "method_definition" {
				c.addMethod(member, qualify(name, ".", c.fieldText(member, "name")))
			}
		}

	case "interface_declaration", "type_alias_declaration", "enum_declaration":
		c.addClass(span, c.fieldText(decl, "name"))

	case "function_declaration", "generator_function_declaration":
		c.addMethod(span, c.fieldText(decl, "name"))

	case "lexical_declaration", "variable_declaration":
		if jsRequirePattern.MatchString(c.text(decl)) {
			c.addRequire(span)
			return
		}
		for _, d := range namedChildren(decl) {
			if d.Type() != "variable_declarator" {
				continue
			}
			value := d.ChildByFieldName("value")
			if value == nil {
				continue
			}
			switch value.Type() {
			case "arrow_function", "function", "function_expression", "generator_function":
				c.addMethod(span, c.fieldText(d, "name"))
			}
		}
	}
}

// Rust

func extractRust(c *collector, root *sitter.Node) {
	walkRust(c, root, "")
}

func walkRust(c *collector, node *sitter.Node, owner string) {
	for _, n := range namedChildren(node) {
		switch n.Type() {
		case "use_declaration", "extern_crate_declaration":
			if owner == "" {
				c.addRequire(n)
			}

		case "struct_item", "enum_item", "type_item", "union_item":
			c.addClass(n, qualify(owner, "::", c.fieldText(n, "name")))

		case "trait_item":
			name := qualify(owner, "::", c.fieldText(n, "name"))
			c.addClass(n, name)
			rustMethods(c, n.ChildByFieldName("body"), name)

		case "mod_item":
			name := qualify(owner, "::", c.fieldText(n, "name"))
			c.addClass(n, name)
			if body := n.ChildByFieldName("body"); body != nil {
				walkRust(c, body, name)
			}

		case "impl_item":
			typ := c.fieldText(n, "type")
			if i := strings.IndexByte(typ, '<'); i >= 0 {
				typ = typ[:i]
			}
			rustMethods(c, n.ChildByFieldName("body"), qualify(owner, "::", typ))

		case "function_item":
			c.addMethod(n, qualify(owner, "::", c.fieldText(n, "name")))
		}
	}
}

func rustMethods(c *collector, body *sitter.Node, owner string) {
	for _, n := range namedChildren(body) {
		if n.Type() == "function_item" {
			c.addMethod(n, qualify(owner, "::", c.fieldText(n, "name")))
		}
	}
}
