package port

import "rlm/internal/domain"

// LedgerStore persists per-chunk analysis results and the set of chunk
// ids already processed. A chunk may hold several results.
type LedgerStore interface {
	// PutResult stores a result and marks its chunk seen atomically.
	// Storing an identical result again changes nothing.
	PutResult(result domain.ChunkResult) error

	// ListResults returns all stored results ordered by chunk id.
	ListResults() ([]domain.ChunkResult, error)

	SeenIDs() ([]string, error)

	Clear() error

	Close() error
}
