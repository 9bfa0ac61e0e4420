// Package codegraph parses source files with tree-sitter and extracts
// code chunks, graph nodes, and graph edges for the index.
package codegraph

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrUnsupportedLanguage is returned for files whose extension maps to no
// grammar.
var ErrUnsupportedLanguage = fmt.Errorf("codegraph: unsupported language")

// LanguageForPath maps a file extension to a language name and grammar.
// Returns ("", nil) for unsupported files.
func LanguageForPath(path string) (string, *sitter.Language) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return "python", python.GetLanguage()
	case ".go":
		return "go", golang.GetLanguage()
	case ".js", ".jsx", ".mjs":
		return "javascript", javascript.GetLanguage()
	case ".ts", ".tsx":
		return "typescript", typescript.GetLanguage()
	}
	return "", nil
}

// ParsedFile is one source file with its syntax tree.
type ParsedFile struct {
	Path     string
	Language string
	Source   []byte
	Tree     *sitter.Tree
}

// Parse parses a single source file. The caller owns the tree and must
// Close it.
func Parse(ctx context.Context, path string, source []byte) (*ParsedFile, error) {
	lang, grammar := LanguageForPath(path)
	if grammar == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("codegraph: parse %s: %w", path, err)
	}
	return &ParsedFile{Path: path, Language: lang, Source: source, Tree: tree}, nil
}

// Close releases the underlying syntax tree.
func (f *ParsedFile) Close() {
	if f.Tree != nil {
		f.Tree.Close()
	}
}

func (f *ParsedFile) text(n *sitter.Node) string {
	return string(f.Source[n.StartByte():n.EndByte()])
}

// ModuleName converts a file path into a dotted module name: extension
// dropped, path separators replaced with dots.
func ModuleName(path string) string {
	p := strings.TrimSuffix(path, filepath.Ext(path))
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.Trim(p, "/")
	return strings.ReplaceAll(p, "/", ".")
}

type nodeSet map[string]bool

// langSpec names the AST node types each grammar uses for the constructs
// the graph cares about.
type langSpec struct {
	functions nodeSet
	classes   nodeSet
	imports   nodeSet
	calls     nodeSet
}

var specs = map[string]langSpec{
	"python": {
		functions: nodeSet{"function_definition": true},
		classes:   nodeSet{"class_definition": true},
		imports:   nodeSet{"import_statement": true, "import_from_statement": true},
		calls:     nodeSet{"call": true},
	},
	"go": {
		functions: nodeSet{"function_declaration": true, "method_declaration": true},
		classes:   nodeSet{"type_spec": true},
		imports:   nodeSet{"import_spec": true},
		calls:     nodeSet{"call_expression": true},
	},
	"javascript": {
		functions: nodeSet{"function_declaration": true, "generator_function_declaration": true, "method_definition": true},
		classes:   nodeSet{"class_declaration": true},
		imports:   nodeSet{"import_statement": true},
		calls:     nodeSet{"call_expression": true},
	},
	"typescript": {
		functions: nodeSet{"function_declaration": true, "generator_function_declaration": true, "method_definition": true},
		classes:   nodeSet{"class_declaration": true, "interface_declaration": true},
		imports:   nodeSet{"import_statement": true},
		calls:     nodeSet{"call_expression": true},
	},
}

// importTarget extracts the dotted module name an import node refers to.
func importTarget(f *ParsedFile, n *sitter.Node) string {
	switch f.Language {
	case "python":
		if mod := n.ChildByFieldName("module_name"); mod != nil {
			return f.text(mod)
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.Type() == "dotted_name" || c.Type() == "aliased_import" {
				if c.Type() == "aliased_import" {
					if name := c.ChildByFieldName("name"); name != nil {
						return f.text(name)
					}
				}
				return f.text(c)
			}
		}
	case "go":
		if path := n.ChildByFieldName("path"); path != nil {
			return strings.ReplaceAll(strings.Trim(f.text(path), `"`), "/", ".")
		}
	case "javascript", "typescript":
		if src := n.ChildByFieldName("source"); src != nil {
			raw := strings.Trim(f.text(src), `"'`)
			raw = strings.TrimPrefix(raw, "./")
			return strings.ReplaceAll(raw, "/", ".")
		}
	}
	return ""
}

// superclasses extracts the base types a class node inherits from.
func superclasses(f *ParsedFile, n *sitter.Node) []string {
	var bases []string
	switch f.Language {
	case "python":
		if args := n.ChildByFieldName("superclasses"); args != nil {
			for i := 0; i < int(args.NamedChildCount()); i++ {
				c := args.NamedChild(i)
				if c.Type() == "identifier" || c.Type() == "attribute" {
					bases = append(bases, f.text(c))
				}
			}
		}
	case "javascript", "typescript":
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c.Type() != "class_heritage" {
				continue
			}
			for j := 0; j < int(c.NamedChildCount()); j++ {
				h := c.NamedChild(j)
				if h.Type() == "identifier" || h.Type() == "member_expression" {
					bases = append(bases, f.text(h))
				}
			}
		}
	}
	return bases
}
