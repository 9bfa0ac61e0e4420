package codegraph

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"vlt/internal/store"
)

// Chunk splits a parsed file into code chunks: one per function, class,
// and method, or a single module chunk when the file defines none.
func Chunk(f *ParsedFile) []store.CodeChunk {
	spec, ok := specs[f.Language]
	if !ok {
		return nil
	}

	module := ModuleName(f.Path)
	imports := collectImports(f, spec)

	var chunks []store.CodeChunk
	var walk func(n *sitter.Node, classStack []string)
	walk = func(n *sitter.Node, classStack []string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch {
			case spec.classes[c.Type()]:
				if chunk := chunkFor(f, c, module, classStack, imports, store.ChunkClass); chunk != nil {
					chunks = append(chunks, *chunk)
					walk(c, append(classStack, chunk.Name))
					continue
				}
				walk(c, classStack)
			case spec.functions[c.Type()]:
				kind := store.ChunkFunction
				if len(classStack) > 0 {
					kind = store.ChunkMethod
				}
				if chunk := chunkFor(f, c, module, classStack, imports, kind); chunk != nil {
					chunks = append(chunks, *chunk)
				}
				walk(c, classStack)
			default:
				walk(c, classStack)
			}
		}
	}
	walk(f.Tree.RootNode(), nil)

	if len(chunks) == 0 {
		// Files with no definitions still index as a whole-module chunk.
		chunks = append(chunks, store.CodeChunk{
			FilePath:      f.Path,
			Kind:          store.ChunkModule,
			Name:          lastSegment(module),
			QualifiedName: module,
			Language:      f.Language,
			StartLine:     1,
			EndLine:       int(f.Tree.RootNode().EndPoint().Row) + 1,
			Imports:       imports,
			Body:          string(f.Source),
		})
	}
	return chunks
}

func chunkFor(f *ParsedFile, n *sitter.Node, module string, classStack []string, imports []string, kind store.ChunkKind) *store.CodeChunk {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return nil
	}
	name := f.text(nameNode)

	qualified := module + "." + name
	var classCtx *string
	if len(classStack) > 0 {
		ctx := strings.Join(classStack, ".")
		classCtx = &ctx
		qualified = module + "." + ctx + "." + name
	}

	chunk := &store.CodeChunk{
		FilePath:      f.Path,
		Kind:          kind,
		Name:          name,
		QualifiedName: qualified,
		Language:      f.Language,
		StartLine:     int(n.StartPoint().Row) + 1,
		EndLine:       int(n.EndPoint().Row) + 1,
		Imports:       imports,
		ClassContext:  classCtx,
		Body:          f.text(n),
	}
	if sig := signature(f, n); sig != "" {
		chunk.Signature = &sig
	}
	if doc := docstring(f, n); doc != "" {
		chunk.Docstring = &doc
	}
	if decs := decorators(f, n); len(decs) > 0 {
		chunk.Decorators = decs
	}
	return chunk
}

// signature is the literal header text of a definition: everything up to
// the first newline of the node.
func signature(f *ParsedFile, n *sitter.Node) string {
	text := f.text(n)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimRight(strings.TrimSpace(text), "{:")
}

// docstring extracts the first string-literal expression of a Python
// definition body, or the JSDoc block immediately preceding a JS/TS one.
func docstring(f *ParsedFile, n *sitter.Node) string {
	switch f.Language {
	case "python":
		body := n.ChildByFieldName("body")
		if body == nil || body.NamedChildCount() == 0 {
			return ""
		}
		first := body.NamedChild(0)
		if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
			return ""
		}
		str := first.NamedChild(0)
		if str.Type() != "string" {
			return ""
		}
		return strings.Trim(f.text(str), `"' `)
	case "javascript", "typescript":
		prev := n.PrevNamedSibling()
		if prev == nil && n.Parent() != nil {
			prev = n.Parent().PrevNamedSibling()
		}
		if prev != nil && prev.Type() == "comment" {
			text := f.text(prev)
			if strings.HasPrefix(text, "/**") {
				return text
			}
		}
	}
	return ""
}

// decorators lists Python decorator texts when the definition sits under a
// decorated_definition wrapper.
func decorators(f *ParsedFile, n *sitter.Node) []string {
	parent := n.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return nil
	}
	var decs []string
	for i := 0; i < int(parent.NamedChildCount()); i++ {
		c := parent.NamedChild(i)
		if c.Type() == "decorator" {
			decs = append(decs, f.text(c))
		}
	}
	return decs
}

func collectImports(f *ParsedFile, spec langSpec) []string {
	var imports []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if spec.imports[c.Type()] {
				imports = append(imports, strings.TrimSpace(f.text(c)))
				continue
			}
			// Import nodes sit near the top of the tree; only descend
			// through container statements.
			switch c.Type() {
			case "import_declaration", "import_spec_list", "module", "program", "source_file":
				walk(c)
			}
		}
	}
	walk(f.Tree.RootNode())
	return imports
}

func lastSegment(module string) string {
	if idx := strings.LastIndexByte(module, '.'); idx >= 0 {
		return module[idx+1:]
	}
	return module
}
