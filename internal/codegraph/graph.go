package codegraph

import (
	sitter "github.com/smacker/go-tree-sitter"

	"vlt/internal/store"
)

// NodesFromChunks derives graph nodes from the chunks of a file. Module
// chunks carry no graph node; only classes, functions, and methods do.
func NodesFromChunks(chunks []store.CodeChunk) []store.CodeNode {
	var nodes []store.CodeNode
	for _, c := range chunks {
		if c.Kind == store.ChunkModule {
			continue
		}
		line := c.StartLine
		nodes = append(nodes, store.CodeNode{
			ID:        c.QualifiedName,
			FilePath:  c.FilePath,
			Kind:      string(c.Kind),
			Name:      c.Name,
			Signature: c.Signature,
			Line:      &line,
			Docstring: c.Docstring,
		})
	}
	return nodes
}

type edgeKey struct {
	source string
	target string
	kind   store.EdgeKind
}

// Edges walks the syntax tree and emits import, call, and inheritance
// edges. Repeated (source, target, kind) triples collapse into one edge
// with a count.
func Edges(f *ParsedFile) []store.CodeEdge {
	spec, ok := specs[f.Language]
	if !ok {
		return nil
	}

	module := ModuleName(f.Path)
	counts := make(map[edgeKey]int)
	lines := make(map[edgeKey]int)
	var order []edgeKey

	record := func(source, target string, kind store.EdgeKind, line int) {
		if target == "" || source == target {
			return
		}
		key := edgeKey{source, target, kind}
		if counts[key] == 0 {
			order = append(order, key)
			lines[key] = line
		}
		counts[key]++
	}

	var walk func(n *sitter.Node, scope string, classStack []string)
	walk = func(n *sitter.Node, scope string, classStack []string) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			line := int(c.StartPoint().Row) + 1

			switch {
			case spec.imports[c.Type()]:
				record(module, importTarget(f, c), store.EdgeImports, line)
				walk(c, scope, classStack)

			case spec.classes[c.Type()]:
				name := c.ChildByFieldName("name")
				if name == nil {
					walk(c, scope, classStack)
					continue
				}
				qualified := qualify(module, classStack, f.text(name))
				for _, base := range superclasses(f, c) {
					record(qualified, base, store.EdgeInherits, line)
				}
				walk(c, qualified, append(classStack, f.text(name)))

			case spec.functions[c.Type()]:
				name := c.ChildByFieldName("name")
				if name == nil {
					walk(c, scope, classStack)
					continue
				}
				walk(c, qualify(module, classStack, f.text(name)), classStack)

			case spec.calls[c.Type()]:
				if callee := c.ChildByFieldName("function"); callee != nil {
					record(scope, f.text(callee), store.EdgeCalls, line)
				}
				walk(c, scope, classStack)

			default:
				walk(c, scope, classStack)
			}
		}
	}
	walk(f.Tree.RootNode(), module, nil)

	edges := make([]store.CodeEdge, 0, len(order))
	for _, key := range order {
		line := lines[key]
		edges = append(edges, store.CodeEdge{
			SourceID: key.source,
			TargetID: key.target,
			Kind:     key.kind,
			Line:     &line,
			Count:    counts[key],
		})
	}
	return edges
}

func qualify(module string, classStack []string, name string) string {
	qualified := module
	for _, c := range classStack {
		qualified += "." + c
	}
	return qualified + "." + name
}
