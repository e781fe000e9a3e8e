// Package imports extracts raw import specifiers from source files. The
// output is lexical: specifiers are reported exactly as written (dotted
// names, relative paths, string-literal module references) with no resolution
// attempted.
package imports

import (
	"context"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"repocontext/internal/treesitter"
)

// Extractor pulls import specifiers out of one file's syntax tree.
type Extractor struct{}

// NewExtractor creates a new import extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// List reads a file and returns its import specifiers in source appearance
// order, duplicates preserved. Files with unsupported extensions yield an
// empty list so bulk scans across mixed-language trees compose safely.
func (e *Extractor) List(ctx context.Context, filePath string) ([]string, error) {
	lang := treesitter.LanguageForFile(filePath)
	if lang == "" {
		return nil, nil
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return e.FromSource(ctx, source, lang), nil
}

// FromSource extracts import specifiers from already-read source text.
func (e *Extractor) FromSource(ctx context.Context, source []byte, lang treesitter.Language) []string {
	root := treesitter.Parse(ctx, source, lang)
	if root == nil {
		return nil
	}

	var specs []string
	switch lang {
	case treesitter.LangPython:
		collectPythonImports(root, source, &specs)
	case treesitter.LangJavaScript, treesitter.LangTypeScript, treesitter.LangTSX:
		collectScriptImports(root, source, &specs)
	case treesitter.LangGo:
		collectGoImports(root, source, &specs)
	}
	return specs
}

// collectPythonImports handles the two declarative forms:
//
//	import pkg.sub, other
//	from pkg.sub import x
//
// Aliased imports report the qualified name, not the alias.
func collectPythonImports(node *sitter.Node, source []byte, specs *[]string) {
	switch node.Type() {
	case "import_statement":
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child == nil {
				continue
			}
			switch child.Type() {
			case "dotted_name":
				*specs = append(*specs, treesitter.NodeText(child, source))
			case "aliased_import":
				if name := child.ChildByFieldName("name"); name != nil {
					*specs = append(*specs, treesitter.NodeText(name, source))
				}
			}
		}
	case "import_from_statement":
		if module := node.ChildByFieldName("module_name"); module != nil {
			*specs = append(*specs, treesitter.NodeText(module, source))
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			collectPythonImports(child, source, specs)
		}
	}
}

// collectScriptImports handles ES import statements and require() calls for
// JavaScript and TypeScript grammars.
func collectScriptImports(node *sitter.Node, source []byte, specs *[]string) {
	switch node.Type() {
	case "import_statement":
		if src := node.ChildByFieldName("source"); src != nil {
			*specs = append(*specs, stripQuotes(treesitter.NodeText(src, source)))
		}
	case "call_expression":
		if fn := node.ChildByFieldName("function"); fn != nil && treesitter.NodeText(fn, source) == "require" {
			if args := node.ChildByFieldName("arguments"); args != nil {
				for i := 0; i < int(args.ChildCount()); i++ {
					child := args.Child(i)
					if child != nil && child.Type() == "string" {
						*specs = append(*specs, stripQuotes(treesitter.NodeText(child, source)))
						break
					}
				}
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			collectScriptImports(child, source, specs)
		}
	}
}

func collectGoImports(node *sitter.Node, source []byte, specs *[]string) {
	if node.Type() == "import_spec" {
		if path := node.ChildByFieldName("path"); path != nil {
			*specs = append(*specs, stripQuotes(treesitter.NodeText(path, source)))
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			collectGoImports(child, source, specs)
		}
	}
}

func stripQuotes(s string) string {
	return strings.Trim(s, "'\"`")
}
