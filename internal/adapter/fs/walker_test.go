package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/domain"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "pkg/util.py", "x = 1")
	writeFile(t, root, "pkg/gen.min.js", "x")
	writeFile(t, root, "vendor/dep/dep.go", "package dep")
	writeFile(t, root, ".git/config", "[core]")
	writeFile(t, root, "README.md", "# hi")

	w := NewWalker([]string{"**/*.go", "**/*.py", "**/*.js"}, []string{"**/*.min.js"}, []string{"vendor"})
	files, err := w.Walk(root)
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		rel = append(rel, f.RelPath)
		assert.True(t, filepath.IsAbs(f.Path))
	}
	assert.Equal(t, []string{"main.go", "pkg/util.py"}, rel)
}

func TestWalkSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "notes.txt", "hello")

	files, err := NewWalker(nil, nil, nil).Walk(filepath.Join(root, "notes.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].RelPath)
	assert.Equal(t, int64(5), files[0].Size)
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := NewWalker(nil, nil, nil).Walk(filepath.Join(t.TempDir(), "absent"))
	assert.ErrorIs(t, err, domain.ErrUnreadableSource)
}

func TestReadSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "bom.txt", "\xef\xbb\xbfhello")
	writeFile(t, root, "bad.txt", "ok\xffok")
	writeFile(t, root, "latin.txt", "caf\xe9")

	utf8Reader, err := NewReader("utf-8")
	require.NoError(t, err)

	got, err := utf8Reader.ReadSource(filepath.Join(root, "bom.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = utf8Reader.ReadSource(filepath.Join(root, "bad.txt"))
	require.NoError(t, err)
	assert.Equal(t, "ok�ok", got)

	latin, err := NewReader("latin1")
	require.NoError(t, err)
	got, err = latin.ReadSource(filepath.Join(root, "latin.txt"))
	require.NoError(t, err)
	assert.Equal(t, "café", got)

	_, err = utf8Reader.ReadSource(filepath.Join(root, "absent.txt"))
	assert.ErrorIs(t, err, domain.ErrUnreadableSource)
}

func TestNewReaderUnknownEncoding(t *testing.T) {
	_, err := NewReader("klingon-8")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
