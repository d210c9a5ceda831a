package port

import (
	"context"

	"rlm/internal/domain"
)

// Chunker splits flat text into bounded, overlapping chunks.
type Chunker interface {
	Chunk(source string, content string) ([]domain.Chunk, error)
}

// Splitter splits source code along syntax unit boundaries, falling back
// to plain chunking when no syntax tree is available.
type Splitter interface {
	Split(ctx context.Context, source, lang string, content []byte) ([]domain.Chunk, error)
}
