// Package treesitter wraps tree-sitter parsing behind a fixed grammar table.
// Unsupported language tags and unparseable input both yield a nil root so
// callers can treat "no structural information" uniformly.
package treesitter

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Language identifies a supported grammar.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

func grammar(lang Language) *sitter.Language {
	switch lang {
	case LangGo:
		return golang.GetLanguage()
	case LangPython:
		return python.GetLanguage()
	case LangJavaScript:
		return javascript.GetLanguage()
	case LangTypeScript:
		return typescript.GetLanguage()
	case LangTSX:
		return tsx.GetLanguage()
	default:
		return nil
	}
}

// LanguageForFile maps a file path to a language tag by extension. Returns ""
// for unsupported extensions.
func LanguageForFile(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo
	case ".py":
		return LangPython
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript
	case ".ts":
		return LangTypeScript
	case ".tsx":
		return LangTSX
	default:
		return ""
	}
}

// SupportedExtensions returns all file extensions the grammar table covers.
func SupportedExtensions() []string {
	return []string{".go", ".py", ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}
}

// Parse parses source into a concrete syntax tree and returns its root node.
// The tree is call-scoped: each invocation builds a fresh parser and the
// caller is expected to traverse and discard the result. A nil root means the
// language is unsupported or the grammar could not build a tree; it is never
// an error.
func Parse(ctx context.Context, source []byte, lang Language) *sitter.Node {
	g := grammar(lang)
	if g == nil {
		return nil
	}

	parser := sitter.NewParser()
	parser.SetLanguage(g)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil || tree == nil {
		return nil
	}
	return tree.RootNode()
}

// NodeText returns the source text covered by a node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(source) || start > end {
		return ""
	}
	return string(source[start:end])
}
