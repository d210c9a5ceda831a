package port

import (
	"context"

	"rlm/internal/domain"
)

// Analyzer answers questions about one chunk. Implementations run outside
// this process; the result is consumed by the evidence ledger.
type Analyzer interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error)

	Name() string
}
