package usecase

import (
	"fmt"

	"go.uber.org/zap"

	"rlm/internal/adapter/ledger"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
	"rlm/internal/port"
)

// LedgerUseCase persists per-chunk results and builds the merged evidence
// ledger from everything stored so far.
type LedgerUseCase struct {
	store  port.LedgerStore
	norm   port.Normalizer
	logger *zap.Logger
}

// NewLedgerUseCase creates a new ledger use case.
func NewLedgerUseCase(store port.LedgerStore, norm port.Normalizer, logger *zap.Logger) *LedgerUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerUseCase{store: store, norm: norm, logger: logger}
}

// Ingest validates and stores results in order. It stops at the first
// invalid record; the records before it stay committed. A second result
// for a chunk is stored next to the first and both are merged on Finalize.
func (u *LedgerUseCase) Ingest(results ...domain.ChunkResult) (int, error) {
	for i, r := range results {
		// A scratch ledger validates without touching stored state.
		if err := ledger.New(u.norm).Ingest(r); err != nil {
			return i, fmt.Errorf("result %d: %w", i, err)
		}
		if err := u.store.PutResult(r); err != nil {
			return i, fmt.Errorf("failed to store result for %s: %w", r.ChunkID, err)
		}
		u.logger.Debug("ingested result",
			zap.String("chunk_id", r.ChunkID),
			zap.Int("answers", len(r.Answers)))
	}
	return len(results), nil
}

// Finalize replays every stored result, in chunk id order, into a fresh
// ledger and returns its report. Follow-up results for a chunk are all
// replayed.
func (u *LedgerUseCase) Finalize() (domain.LedgerReport, error) {
	results, err := u.store.ListResults()
	if err != nil {
		return domain.LedgerReport{}, fmt.Errorf("failed to list results: %w", err)
	}

	lg := ledger.New(u.norm)
	for _, r := range results {
		if err := lg.Ingest(r); err != nil {
			return domain.LedgerReport{}, fmt.Errorf("stored result is invalid: %w", err)
		}
	}
	return lg.Finalize(), nil
}

// Pending returns the chunk ids of m that have no stored result, in
// manifest order.
func (u *LedgerUseCase) Pending(m *manifest.Manifest) ([]string, error) {
	ids, err := u.store.SeenIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load seen chunks: %w", err)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}

	var pending []string
	for _, e := range m.Chunks {
		if _, ok := seen[e.ChunkID]; !ok {
			pending = append(pending, e.ChunkID)
		}
	}
	return pending, nil
}
