package fs

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"rlm/internal/domain"
	"rlm/internal/port"
)

// Walker lists source files under a root. Directories named in skipDirs
// and hidden directories are never descended into.
type Walker struct {
	includes []string
	excludes []string
	skipDirs map[string]bool
}

func NewWalker(includes, excludes, skipDirs []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
		skipDirs: skip,
	}
}

// Walk returns matching files sorted by relative path. A root that is a
// single file yields just that file.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, &domain.SourceError{Path: root, Err: fmt.Errorf("%w: %w", domain.ErrUnreadableSource, err)}
	}
	if !info.IsDir() {
		return []port.FileInfo{{
			Path:    root,
			RelPath: filepath.Base(root),
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		}}, nil
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if path == root {
				return nil
			}
			name := info.Name()
			if w.skipDirs[name] || strings.HasPrefix(name, ".") || w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, port.FileInfo{
				Path:    path,
				RelPath: relPath,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
		}

		return nil
	})

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, err
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// Reader decodes source files from a named encoding to UTF-8. Bytes that
// are invalid in that encoding become U+FFFD.
type Reader struct {
	name string
	enc  encoding.Encoding
}

// NewReader looks up an encoding by its WHATWG name or label ("utf-8",
// "latin1", "shift_jis", ...).
func NewReader(name string) (*Reader, error) {
	if name == "" {
		name = "utf-8"
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, domain.InvalidConfig("encoding", name, "unknown encoding")
	}
	return &Reader{name: name, enc: enc}, nil
}

func (r *Reader) ReadSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.SourceError{Path: path, Err: fmt.Errorf("%w: %w", domain.ErrUnreadableSource, err)}
	}

	if r.enc == unicode.UTF8 {
		data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
		if utf8.Valid(data) {
			return string(data), nil
		}
		return strings.ToValidUTF8(string(data), "\uFFFD"), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), r.enc.NewDecoder()))
	if err != nil {
		return "", &domain.SourceError{Path: path, Err: fmt.Errorf("%w: decode %s: %w", domain.ErrUnreadableSource, r.name, err)}
	}
	return string(decoded), nil
}

var _ port.SourceReader = (*Reader)(nil)
