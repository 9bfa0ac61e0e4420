package codegraph

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"vlt/internal/store"
)

// FileIndex is everything the index derives from one source file.
type FileIndex struct {
	Path   string
	Chunks []store.CodeChunk
	Nodes  []store.CodeNode
	Edges  []store.CodeEdge
}

// Builder turns source files into index material. Zero value is unusable;
// construct with NewBuilder.
type Builder struct {
	log *zap.Logger
}

func NewBuilder(log *zap.Logger) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{log: log}
}

// BuildFile parses one file and extracts its chunks, nodes, and edges.
// Unsupported languages yield an empty index, not an error.
func (b *Builder) BuildFile(ctx context.Context, path string, source []byte) (*FileIndex, error) {
	parsed, err := Parse(ctx, path, source)
	if errors.Is(err, ErrUnsupportedLanguage) {
		return &FileIndex{Path: path}, nil
	}
	if err != nil {
		return nil, err
	}
	defer parsed.Close()

	if parsed.Tree.RootNode().HasError() {
		b.log.Debug("syntax errors in file, indexing best-effort", zap.String("path", path))
	}

	chunks := Chunk(parsed)
	idx := &FileIndex{
		Path:   path,
		Chunks: chunks,
		Nodes:  NodesFromChunks(chunks),
		Edges:  Edges(parsed),
	}
	b.log.Debug("built file index",
		zap.String("path", path),
		zap.Int("chunks", len(idx.Chunks)),
		zap.Int("nodes", len(idx.Nodes)),
		zap.Int("edges", len(idx.Edges)))
	return idx, nil
}
