package index

import (
	"fmt"

	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
)

// FromManifest rebuilds an index from a manifest and the chunk files
// stored under dir.
func FromManifest(m *manifest.Manifest, dir string) (*Index, error) {
	chunks := make([]domain.Chunk, 0, len(m.Chunks))
	for _, e := range m.Chunks {
		text, err := manifest.ReadChunk(dir, e)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %s: %w", e.ChunkID, err)
		}
		chunks = append(chunks, e.Chunk(text))
	}
	return Build(chunks)
}
