package memstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.PutResult(domain.ChunkResult{ChunkID: "b"}))
	require.NoError(t, s.PutResult(domain.ChunkResult{ChunkID: "a"}))

	results, err := s.ListResults()
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ChunkID)

	ids, err := s.SeenIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	require.NoError(t, s.Clear())
	results, err = s.ListResults()
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreKeepsEveryResultPerChunk(t *testing.T) {
	s := NewMemoryStore()
	first := domain.ChunkResult{ChunkID: "a", Answers: []domain.Answer{{Claim: "X causes Y"}}}
	followUp := domain.ChunkResult{ChunkID: "a", Answers: []domain.Answer{{Claim: "Z is configured in main"}}}

	require.NoError(t, s.PutResult(first))
	require.NoError(t, s.PutResult(followUp))
	require.NoError(t, s.PutResult(first))

	results, err := s.ListResults()
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.ChunkResult{first, followUp}, results)

	ids, err := s.SeenIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}
