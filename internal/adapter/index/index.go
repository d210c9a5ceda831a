package index

import (
	"encoding/json"
	"fmt"
	"sync"

	"rlm/internal/domain"
)

// Index maps chunk ids to chunks and tracks which ids have already been
// dispatched. The id mapping is fixed at Build time; only the seen set
// changes afterwards.
type Index struct {
	order  []string
	chunks map[string]domain.Chunk

	mu   sync.RWMutex
	seen map[string]struct{}
}

// Build indexes chunks in order. A repeated id with identical text is
// collapsed; a repeated id with different text is an ErrIndexConflict.
func Build(chunks []domain.Chunk) (*Index, error) {
	idx := &Index{
		order:  make([]string, 0, len(chunks)),
		chunks: make(map[string]domain.Chunk, len(chunks)),
		seen:   make(map[string]struct{}),
	}

	for _, c := range chunks {
		if prev, exists := idx.chunks[c.ID]; exists {
			if prev.Text != c.Text {
				return nil, fmt.Errorf("%w: chunk %s maps to two texts (%s and %s)",
					domain.ErrIndexConflict, c.ID, prev.Source, c.Source)
			}
			continue
		}
		idx.chunks[c.ID] = c
		idx.order = append(idx.order, c.ID)
	}

	return idx, nil
}

func (idx *Index) Lookup(id string) (domain.Chunk, bool) {
	c, ok := idx.chunks[id]
	return c, ok
}

func (idx *Index) Len() int {
	return len(idx.order)
}

// IDs returns chunk ids in build order.
func (idx *Index) IDs() []string {
	ids := make([]string, len(idx.order))
	copy(ids, idx.order)
	return ids
}

// Entries returns one entry per chunk, in build order.
func (idx *Index) Entries() []domain.ChunkIndexEntry {
	entries := make([]domain.ChunkIndexEntry, 0, len(idx.order))
	for _, id := range idx.order {
		c := idx.chunks[id]
		entries = append(entries, domain.ChunkIndexEntry{
			ChunkID:    c.ID,
			SourcePath: c.Source,
			CharRange:  domain.CharRange{Start: c.StartOffset, End: c.EndOffset},
			Size:       c.Size(),
		})
	}
	return entries
}

// MarshalJSON encodes the entries. Identical chunk sequences encode to
// identical bytes.
func (idx *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(idx.Entries())
}

func (idx *Index) Seen(id string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.seen[id]
	return ok
}

func (idx *Index) MarkSeen(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.seen[id] = struct{}{}
}

// MarkSeenIfNew marks id seen and reports whether it was unseen before.
// Concurrent dispatchers use it to claim a chunk exactly once.
func (idx *Index) MarkSeenIfNew(id string) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, ok := idx.seen[id]; ok {
		return false
	}
	idx.seen[id] = struct{}{}
	return true
}

// Pending returns the ids not yet seen, in build order.
func (idx *Index) Pending() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var pending []string
	for _, id := range idx.order {
		if _, ok := idx.seen[id]; !ok {
			pending = append(pending, id)
		}
	}
	return pending
}
