package codegraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlt/internal/store"
)

const pythonSource = `import os
from auth import helpers

class AuthService(BaseService):
    """Handles user authentication."""

    def login(self, token):
        """Validate a bearer token."""
        return helpers.validate(token)

def make_service():
    return AuthService()
`

func parseTestFile(t *testing.T, path, source string) *ParsedFile {
	t.Helper()
	f, err := Parse(context.Background(), path, []byte(source))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestLanguageForPath(t *testing.T) {
	lang, grammar := LanguageForPath("src/auth.py")
	assert.Equal(t, "python", lang)
	assert.NotNil(t, grammar)

	lang, grammar = LanguageForPath("readme.txt")
	assert.Empty(t, lang)
	assert.Nil(t, grammar)
}

func TestModuleName(t *testing.T) {
	assert.Equal(t, "src.auth", ModuleName("src/auth.py"))
	assert.Equal(t, "main", ModuleName("main.go"))
	assert.Equal(t, "a.b.c", ModuleName("/a/b/c.ts"))
}

func TestChunkPython(t *testing.T) {
	f := parseTestFile(t, "src/auth.py", pythonSource)
	chunks := Chunk(f)
	require.Len(t, chunks, 3)

	byName := map[string]store.CodeChunk{}
	for _, c := range chunks {
		byName[c.Name] = c
	}

	class := byName["AuthService"]
	assert.Equal(t, store.ChunkClass, class.Kind)
	assert.Equal(t, "src.auth.AuthService", class.QualifiedName)
	require.NotNil(t, class.Docstring)
	assert.Contains(t, *class.Docstring, "Handles user authentication")
	require.NotNil(t, class.Signature)
	assert.Equal(t, "class AuthService(BaseService)", *class.Signature)

	method := byName["login"]
	assert.Equal(t, store.ChunkMethod, method.Kind)
	assert.Equal(t, "src.auth.AuthService.login", method.QualifiedName)
	require.NotNil(t, method.ClassContext)
	assert.Equal(t, "AuthService", *method.ClassContext)

	fn := byName["make_service"]
	assert.Equal(t, store.ChunkFunction, fn.Kind)
	assert.Nil(t, fn.ClassContext)
	assert.Contains(t, fn.Imports, "import os")
}

func TestChunkModuleFallback(t *testing.T) {
	f := parseTestFile(t, "src/settings.py", "DEBUG = True\nPORT = 8080\n")
	chunks := Chunk(f)
	require.Len(t, chunks, 1)
	assert.Equal(t, store.ChunkModule, chunks[0].Kind)
	assert.Equal(t, "settings", chunks[0].Name)
	assert.Equal(t, "src.settings", chunks[0].QualifiedName)
	assert.Contains(t, chunks[0].Body, "DEBUG = True")
}

func TestEdgesPython(t *testing.T) {
	f := parseTestFile(t, "src/auth.py", pythonSource)
	edges := Edges(f)

	find := func(kind store.EdgeKind, target string) *store.CodeEdge {
		for i := range edges {
			if edges[i].Kind == kind && edges[i].TargetID == target {
				return &edges[i]
			}
		}
		return nil
	}

	imp := find(store.EdgeImports, "os")
	require.NotNil(t, imp)
	assert.Equal(t, "src.auth", imp.SourceID)

	inh := find(store.EdgeInherits, "BaseService")
	require.NotNil(t, inh)
	assert.Equal(t, "src.auth.AuthService", inh.SourceID)

	call := find(store.EdgeCalls, "helpers.validate")
	require.NotNil(t, call)
	assert.Equal(t, "src.auth.AuthService.login", call.SourceID)

	ctor := find(store.EdgeCalls, "AuthService")
	require.NotNil(t, ctor)
	assert.Equal(t, "src.auth.make_service", ctor.SourceID)
}

func TestNodesFromChunks(t *testing.T) {
	f := parseTestFile(t, "src/auth.py", pythonSource)
	nodes := NodesFromChunks(Chunk(f))
	require.Len(t, nodes, 3)

	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	assert.Contains(t, ids, "src.auth.AuthService")
	assert.Contains(t, ids, "src.auth.AuthService.login")
	assert.Contains(t, ids, "src.auth.make_service")
}

func TestBuilderUnsupportedLanguage(t *testing.T) {
	b := NewBuilder(nil)
	idx, err := b.BuildFile(context.Background(), "notes.md", []byte("# notes"))
	require.NoError(t, err)
	assert.Empty(t, idx.Chunks)
	assert.Empty(t, idx.Nodes)
	assert.Empty(t, idx.Edges)
}

func TestBuilderGo(t *testing.T) {
	src := `package auth

import "fmt"

func Login(token string) error {
	fmt.Println(token)
	return nil
}
`
	b := NewBuilder(nil)
	idx, err := b.BuildFile(context.Background(), "auth/auth.go", []byte(src))
	require.NoError(t, err)
	require.NotEmpty(t, idx.Chunks)
	assert.Equal(t, "auth.auth.Login", idx.Chunks[0].QualifiedName)
	assert.Equal(t, "go", idx.Chunks[0].Language)
}
