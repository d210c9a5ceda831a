package memstore

import (
	"sort"
	"sync"

	"rlm/internal/domain"
	"rlm/internal/port"
)

// MemoryStore is a LedgerStore that lives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]domain.ChunkResult // by ChunkResult.Key
	seen    map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		results: make(map[string]domain.ChunkResult),
		seen:    make(map[string]struct{}),
	}
}

func (s *MemoryStore) PutResult(result domain.ChunkResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[result.Key()] = result
	s.seen[result.ChunkID] = struct{}{}
	return nil
}

func (s *MemoryStore) ListResults() ([]domain.ChunkResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.results))
	for k := range s.results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	results := make([]domain.ChunkResult, len(keys))
	for i, k := range keys {
		results[i] = s.results[k]
	}
	return results, nil
}

func (s *MemoryStore) SeenIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[string]domain.ChunkResult)
	s.seen = make(map[string]struct{})
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

var _ port.LedgerStore = (*MemoryStore)(nil)
