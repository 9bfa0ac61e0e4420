package ctags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `{"_type": "ptag", "name": "JSON_OUTPUT_VERSION", "path": "1.0"}
{"_type": "tag", "name": "authenticate_user", "path": "src/auth.py", "line": 42, "kind": "function", "signature": "(token)", "language": "Python"}
{"_type": "tag", "name": "AuthService", "path": "src/auth.py", "line": 10, "kind": "class", "language": "Python"}
{"_type": "tag", "name": "login", "path": "src/auth.py", "line": 15, "kind": "member", "scope": "AuthService", "scopeKind": "class", "language": "Python"}
not json at all
{"_type": "tag", "name": "", "path": "src/empty.py", "line": 1, "kind": "function"}
`

func TestLoadParsesTags(t *testing.T) {
	symbols, err := Load(strings.NewReader(sampleIndex), nil)
	require.NoError(t, err)
	require.Len(t, symbols, 3)

	assert.Equal(t, "authenticate_user", symbols[0].Name)
	assert.Equal(t, "src/auth.py", symbols[0].FilePath)
	assert.Equal(t, 42, symbols[0].Line)
	assert.Equal(t, "function", symbols[0].Kind)
	require.NotNil(t, symbols[0].Signature)
	assert.Equal(t, "(token)", *symbols[0].Signature)
	assert.Nil(t, symbols[0].Scope)

	require.NotNil(t, symbols[2].Scope)
	assert.Equal(t, "AuthService", *symbols[2].Scope)
}

func TestLoadEmptyStream(t *testing.T) {
	symbols, err := Load(strings.NewReader(""), nil)
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestIndexLookup(t *testing.T) {
	symbols, err := Load(strings.NewReader(sampleIndex), nil)
	require.NoError(t, err)

	idx := NewIndex(symbols)
	assert.Equal(t, 3, idx.Len())

	hits := idx.Lookup("authenticate_user")
	require.Len(t, hits, 1)
	assert.Equal(t, 42, hits[0].Line)

	assert.Empty(t, idx.Lookup("missing_symbol"))
}
