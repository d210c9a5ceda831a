package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/index"
	"rlm/internal/adapter/memstore"
	"rlm/internal/domain"
)

type fakeAnalyzer struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error)
}

func newFakeAnalyzer(respond func(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error)) *fakeAnalyzer {
	return &fakeAnalyzer{calls: map[string]int{}, respond: respond}
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
	f.mu.Lock()
	f.calls[req.ChunkID]++
	f.mu.Unlock()
	return f.respond(ctx, req)
}

func (f *fakeAnalyzer) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func answerFor(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
	return domain.ChunkResult{
		Answers: []domain.Answer{{
			Claim:      fmt.Sprintf("%s says %s", req.ChunkID, req.Text),
			Evidence:   []domain.Evidence{{Source: "notes.txt", Location: "1"}},
			Confidence: domain.ConfidenceLow,
		}},
	}, nil
}

func testIndex(t *testing.T, n int) *index.Index {
	t.Helper()
	chunks := make([]domain.Chunk, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{
			ID:          fmt.Sprintf("c-%04d", i+1),
			Source:      "notes.txt",
			StartOffset: i * 10,
			EndOffset:   i*10 + 10,
			Text:        fmt.Sprintf("text %d", i),
		}
	}
	idx, err := index.Build(chunks)
	require.NoError(t, err)
	return idx
}

func TestDispatchSkipsStoredChunks(t *testing.T) {
	st := memstore.NewMemoryStore()
	require.NoError(t, st.PutResult(domain.ChunkResult{ChunkID: "c-0001"}))

	fa := newFakeAnalyzer(answerFor)
	uc := NewDispatchUseCase(fa, st, analyzer.NewTokenizer(), DispatchOptions{Workers: 3, Questions: []string{"what?"}}, nil)

	var progressCalls int
	report, err := uc.Dispatch(context.Background(), testIndex(t, 5), func(processed, total int, current string) {
		progressCalls++
		assert.Equal(t, 4, total)
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Dispatched)
	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 4, progressCalls)
	assert.Zero(t, fa.callCount("c-0001"))
	for _, id := range []string{"c-0002", "c-0003", "c-0004", "c-0005"} {
		assert.Equal(t, 1, fa.callCount(id), id)
	}

	stored, err := st.ListResults()
	require.NoError(t, err)
	require.Len(t, stored, 5)
	assert.Equal(t, "c-0003", stored[2].ChunkID)
	assert.Equal(t, "c-0003 says text 2", stored[2].Answers[0].Claim)
}

func TestDispatchRecordsFailures(t *testing.T) {
	st := memstore.NewMemoryStore()
	fa := newFakeAnalyzer(func(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
		switch req.ChunkID {
		case "c-0001":
			return domain.ChunkResult{}, errors.New("analyzer crashed")
		case "c-0002":
			return domain.ChunkResult{ChunkID: "c-0099"}, nil
		case "c-0003":
			return domain.ChunkResult{Answers: []domain.Answer{{Claim: "   "}}}, nil
		}
		return answerFor(ctx, req)
	})
	uc := NewDispatchUseCase(fa, st, analyzer.NewTokenizer(), DispatchOptions{Workers: 2}, nil)

	report, err := uc.Dispatch(context.Background(), testIndex(t, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatched)
	assert.Equal(t, 3, report.Failed)
	assert.Len(t, report.Errors, 3)

	ids, err := st.SeenIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0004"}, ids)

	// Failed chunks are retried on the next run.
	retry := NewDispatchUseCase(newFakeAnalyzer(answerFor), st, analyzer.NewTokenizer(), DispatchOptions{Workers: 2}, nil)
	report, err = retry.Dispatch(context.Background(), testIndex(t, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Dispatched)
	assert.Equal(t, 1, report.Skipped)
}

func TestDispatchTimeout(t *testing.T) {
	st := memstore.NewMemoryStore()
	fa := newFakeAnalyzer(func(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
		if req.ChunkID == "c-0002" {
			<-ctx.Done()
			return domain.ChunkResult{}, ctx.Err()
		}
		return answerFor(ctx, req)
	})
	uc := NewDispatchUseCase(fa, st, analyzer.NewTokenizer(), DispatchOptions{Workers: 2, Timeout: 20 * time.Millisecond}, nil)

	report, err := uc.Dispatch(context.Background(), testIndex(t, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Dispatched)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors[0], "deadline exceeded")
}

func TestDispatchCancelKeepsPrefix(t *testing.T) {
	st := memstore.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fa := newFakeAnalyzer(func(taskCtx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
		if req.ChunkID == "c-0002" {
			cancel()
			return domain.ChunkResult{}, taskCtx.Err()
		}
		return answerFor(taskCtx, req)
	})
	uc := NewDispatchUseCase(fa, st, analyzer.NewTokenizer(), DispatchOptions{Workers: 1}, nil)

	report, err := uc.Dispatch(ctx, testIndex(t, 6), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Dispatched)

	ids, err := st.SeenIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0001"}, ids)
	for _, id := range []string{"c-0003", "c-0004", "c-0005", "c-0006"} {
		assert.Zero(t, fa.callCount(id), id)
	}
}
