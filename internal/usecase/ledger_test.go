package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/manifest"
	"rlm/internal/adapter/memstore"
	"rlm/internal/domain"
)

func result(chunkID, claim, location string) domain.ChunkResult {
	return domain.ChunkResult{
		ChunkID: chunkID,
		Answers: []domain.Answer{{
			Claim:      claim,
			Evidence:   []domain.Evidence{{Source: "auth.go", Location: location}},
			Confidence: domain.ConfidenceMedium,
		}},
	}
}

func TestLedgerUseCaseIngestAndFinalize(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc := NewLedgerUseCase(st, analyzer.NewTokenizer(), nil)

	n, err := uc.Ingest(
		result("c-0002", "Tokens expire after one hour", "10-14"),
		result("c-0001", "tokens expire after ONE hour.", "12-20"),
	)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	report, err := uc.Finalize()
	require.NoError(t, err)
	require.Len(t, report.Claims, 1)
	assert.Len(t, report.Claims[0].Evidence, 2)
	assert.Empty(t, report.Contradictions)
}

func TestLedgerUseCaseIngestStopsAtInvalid(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc := NewLedgerUseCase(st, analyzer.NewTokenizer(), nil)

	bad := result("c-0002", "  ", "1")
	n, err := uc.Ingest(result("c-0001", "A holds", "1"), bad, result("c-0003", "C holds", "3"))
	assert.ErrorIs(t, err, domain.ErrInvalidResult)
	assert.Equal(t, 1, n)

	ids, err := st.SeenIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0001"}, ids)
}

func TestLedgerUseCaseMergesFollowUpResults(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc := NewLedgerUseCase(st, analyzer.NewTokenizer(), nil)

	first := result("c-0001", "X causes Y", "1")
	first.Contradictions = []domain.Contradiction{{
		ClaimA:   "A holds",
		ClaimB:   "A fails",
		Evidence: []domain.Evidence{{Source: "auth.go", Location: "4"}},
	}}
	_, err := uc.Ingest(first)
	require.NoError(t, err)
	_, err = uc.Ingest(result("c-0001", "Z is configured in main", "9"))
	require.NoError(t, err)

	report, err := uc.Finalize()
	require.NoError(t, err)
	var claims []string
	for _, c := range report.Claims {
		claims = append(claims, c.Text)
	}
	assert.ElementsMatch(t, []string{"X causes Y", "Z is configured in main"}, claims)
	require.Len(t, report.Contradictions, 1)
	assert.Equal(t, "A holds", report.Contradictions[0].ClaimA)
}

func TestLedgerUseCaseIngestSameResultTwice(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc := NewLedgerUseCase(st, analyzer.NewTokenizer(), nil)

	r := result("c-0001", "first answer", "1")
	_, err := uc.Ingest(r)
	require.NoError(t, err)
	_, err = uc.Ingest(r)
	require.NoError(t, err)

	stored, err := st.ListResults()
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	report, err := uc.Finalize()
	require.NoError(t, err)
	require.Len(t, report.Claims, 1)
	assert.Len(t, report.Claims[0].Evidence, 1)
}

func TestLedgerUseCasePending(t *testing.T) {
	st := memstore.NewMemoryStore()
	uc := NewLedgerUseCase(st, analyzer.NewTokenizer(), nil)
	_, err := uc.Ingest(result("c-0002", "B holds", "1"))
	require.NoError(t, err)

	m := &manifest.Manifest{Chunks: []manifest.Entry{
		{ChunkID: "c-0001"}, {ChunkID: "c-0002"}, {ChunkID: "c-0003"},
	}}
	pending, err := uc.Pending(m)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-0001", "c-0003"}, pending)
}
