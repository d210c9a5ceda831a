package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rlm/internal/adapter/index"
	"rlm/internal/adapter/ledger"
	"rlm/internal/domain"
	"rlm/internal/port"
)

// DispatchOptions bound a dispatch run.
type DispatchOptions struct {
	Workers   int
	Timeout   time.Duration // Per chunk; zero means no limit
	Questions []string
}

// DispatchReport summarizes a dispatch run.
type DispatchReport struct {
	Dispatched int
	Skipped    int
	Failed     int
	Errors     []string
}

// DispatchUseCase sends every pending chunk of an index to an analyzer and
// stores each result as it arrives.
type DispatchUseCase struct {
	analyzer port.Analyzer
	store    port.LedgerStore
	norm     port.Normalizer
	opts     DispatchOptions
	logger   *zap.Logger
}

// NewDispatchUseCase creates a new dispatch use case.
func NewDispatchUseCase(
	analyzer port.Analyzer,
	store port.LedgerStore,
	norm port.Normalizer,
	opts DispatchOptions,
	logger *zap.Logger,
) *DispatchUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DispatchUseCase{
		analyzer: analyzer,
		store:    store,
		norm:     norm,
		opts:     opts,
		logger:   logger,
	}
}

// Dispatch analyzes the chunks of idx that have no stored result. Chunks
// already stored are marked seen and skipped. A failed analysis is counted
// and the chunk stays pending for the next run. Cancelling ctx stops new
// work; results stored before that remain.
func (u *DispatchUseCase) Dispatch(ctx context.Context, idx *index.Index, progress ProgressFunc) (*DispatchReport, error) {
	report := &DispatchReport{}

	seen, err := u.store.SeenIDs()
	if err != nil {
		return nil, fmt.Errorf("failed to load seen chunks: %w", err)
	}
	for _, id := range seen {
		if _, ok := idx.Lookup(id); ok {
			idx.MarkSeen(id)
		}
	}
	pending := idx.Pending()
	report.Skipped = idx.Len() - len(pending)

	var (
		mu        sync.Mutex
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)

	for _, id := range pending {
		if gctx.Err() != nil {
			break
		}
		if !idx.MarkSeenIfNew(id) {
			continue
		}
		g.Go(func() error {
			err := u.dispatchOne(gctx, idx, id)

			mu.Lock()
			defer mu.Unlock()
			processed++
			if progress != nil {
				progress(processed, len(pending), id)
			}

			switch {
			case err == nil:
				report.Dispatched++
				return nil
			case gctx.Err() != nil:
				return gctx.Err()
			case errors.Is(err, errStore):
				return err
			default:
				report.Failed++
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", id, err))
				u.logger.Warn("chunk analysis failed",
					zap.String("chunk_id", id),
					zap.String("analyzer", u.analyzer.Name()),
					zap.Error(err))
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, ctx.Err()
}

var errStore = errors.New("result store failed")

func (u *DispatchUseCase) dispatchOne(ctx context.Context, idx *index.Index, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunk, ok := idx.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, id)
	}

	taskCtx := ctx
	if u.opts.Timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, u.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := u.analyzer.Analyze(taskCtx, domain.AnalysisRequest{
		ChunkID:   id,
		Text:      chunk.Text,
		Questions: u.opts.Questions,
	})
	if err != nil {
		return err
	}
	if result.ChunkID == "" {
		result.ChunkID = id
	}
	if result.ChunkID != id {
		return fmt.Errorf("%w: analyzer answered for %q", domain.ErrInvalidResult, result.ChunkID)
	}
	if err := ledger.New(u.norm).Ingest(result); err != nil {
		return err
	}
	if err := u.store.PutResult(result); err != nil {
		return fmt.Errorf("%w: %w", errStore, err)
	}

	u.logger.Debug("chunk analyzed",
		zap.String("chunk_id", id),
		zap.Int("answers", len(result.Answers)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
