package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/domain"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadResults(t *testing.T) {
	tests := []struct {
		name    string
		content string
		ids     []string
	}{
		{"object", `{"chunk_id": "a", "answers": []}`, []string{"a"}},
		{"array", `[{"chunk_id": "a"}, {"chunk_id": "b"}]`, []string{"a", "b"}},
		{"json lines", "{\"chunk_id\": \"a\"}\n{\"chunk_id\": \"b\"}\n[{\"chunk_id\": \"c\"}]\n", []string{"a", "b", "c"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := readResults(writeFile(t, tt.content))
			require.NoError(t, err)
			var ids []string
			for _, r := range results {
				ids = append(ids, r.ChunkID)
			}
			assert.Equal(t, tt.ids, ids)
		})
	}
}

func TestReadResultsErrors(t *testing.T) {
	_, err := readResults(writeFile(t, `{"chunk_id": `))
	assert.ErrorIs(t, err, domain.ErrInvalidResult)

	_, err = readResults(writeFile(t, `{"chunk_id": 7}`))
	assert.ErrorIs(t, err, domain.ErrInvalidResult)

	_, err = readResults(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, domain.ErrUnreadableSource)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "<1s", formatDuration(0))
	assert.Equal(t, "42s", formatDuration(42e9))
	assert.Equal(t, "2m5s", formatDuration(125e9))
	assert.Equal(t, "1h1m", formatDuration(3660e9))
}
