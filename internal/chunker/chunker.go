// Package chunker splits source files into named structural units (function,
// method and class bodies) suitable for independent downstream indexing.
package chunker

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"repocontext/internal/models"
	"repocontext/internal/treesitter"
)

// Chunk kinds.
const (
	KindFunc   = "func"
	KindMethod = "method"
	KindClass  = "class"
)

// Chunks shorter than two lines are degenerate one-line declarations and are
// dropped.
const minLineSpan = 1

// Chunk parses source text and emits chunks in document (pre-order) order.
// Nested definitions are emitted as separate chunks and may overlap their
// enclosing chunk's span. Unsupported languages and unparseable input yield
// an empty result.
func Chunk(ctx context.Context, source []byte, lang treesitter.Language) []models.CodeChunk {
	root := treesitter.Parse(ctx, source, lang)
	if root == nil {
		return nil
	}

	var chunks []models.CodeChunk
	walk(root, source, lang, "", &chunks)
	return chunks
}

// ChunkFile reads and chunks one file, selecting the grammar by extension.
func ChunkFile(ctx context.Context, filePath string, source []byte) []models.CodeChunk {
	lang := treesitter.LanguageForFile(filePath)
	if lang == "" {
		return nil
	}
	return Chunk(ctx, source, lang)
}

// walk performs a pre-order traversal. enclosingClass is a read-down context
// value: it is updated only when entering a class-like node and inherited
// unchanged otherwise. Traversal continues into children whether or not the
// current node was emitted.
func walk(node *sitter.Node, source []byte, lang treesitter.Language, enclosingClass string, out *[]models.CodeChunk) {
	kind := classify(lang, node.Type(), enclosingClass)
	name := nodeName(node, source)

	if kind != "" {
		startLine := int(node.StartPoint().Row) + 1
		endLine := int(node.EndPoint().Row) + 1
		if endLine-startLine >= minLineSpan {
			*out = append(*out, models.CodeChunk{
				Kind:      kind,
				Name:      name,
				Parent:    enclosingClass,
				StartLine: startLine,
				EndLine:   endLine,
				Content:   treesitter.NodeText(node, source),
			})
		}
	}

	childClass := enclosingClass
	if kind == KindClass && name != "" {
		childClass = name
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		if child := node.Child(i); child != nil {
			walk(child, source, lang, childClass, out)
		}
	}
}

// classify maps a tree-sitter node type to a chunk kind, or "" for nodes that
// are not chunkable. Function-like nodes nested under a class are methods.
func classify(lang treesitter.Language, nodeType, enclosingClass string) string {
	switch lang {
	case treesitter.LangPython:
		switch nodeType {
		case "class_definition":
			return KindClass
		case "function_definition":
			if enclosingClass != "" {
				return KindMethod
			}
			return KindFunc
		}
	case treesitter.LangJavaScript, treesitter.LangTypeScript, treesitter.LangTSX:
		switch nodeType {
		case "class_declaration":
			return KindClass
		case "method_definition":
			return KindMethod
		case "function_declaration", "generator_function_declaration":
			if enclosingClass != "" {
				return KindMethod
			}
			return KindFunc
		}
	case treesitter.LangGo:
		switch nodeType {
		case "function_declaration":
			return KindFunc
		case "method_declaration":
			return KindMethod
		}
	}
	return ""
}

// nodeName extracts a definition name from the "name" field, falling back to
// "key" for grammars that label members that way.
func nodeName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return treesitter.NodeText(name, source)
	}
	if key := node.ChildByFieldName("key"); key != nil {
		return treesitter.NodeText(key, source)
	}
	return ""
}
