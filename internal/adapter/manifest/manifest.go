package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"rlm/internal/domain"
	"rlm/internal/port"
)

// FileName is the manifest written next to the chunk files.
const FileName = "index.json"

const (
	ModeText   = "text"
	ModeSyntax = "syntax"
)

// Manifest describes one chunking run: its parameters, every chunk it
// produced and the sources it could not read.
type Manifest struct {
	Source        string      `json:"source"`
	Mode          string      `json:"mode"`
	MaxChars      int         `json:"max_chars"`
	OverlapChars  int         `json:"overlap_chars"`
	LookbackChars int         `json:"lookback_chars"`
	Chunks        []Entry     `json:"chunks"`
	Errors        []FileError `json:"errors,omitempty"`
}

type Entry struct {
	ChunkID         string   `json:"chunk_id"`
	SourcePath      string   `json:"source_path"`
	StartOffset     int      `json:"start_offset"`
	EndOffset       int      `json:"end_offset"`
	StartLine       int      `json:"start_line"`
	EndLine         int      `json:"end_line"`
	Size            int      `json:"size"`
	ApproxTokens    int      `json:"approx_tokens"`
	OverlapWithPrev int      `json:"overlap_with_prev"`
	OverlapWithNext int      `json:"overlap_with_next"`
	SyntaxAware     bool     `json:"syntax_aware"`
	Oversized       bool     `json:"oversized"`
	Language        string   `json:"language"`
	Kind            string   `json:"kind"`
	Names           []string `json:"names"`
	OutputFile      string   `json:"output_file"`
	SHA256          string   `json:"sha256"`
}

type FileError struct {
	SourcePath string `json:"source_path"`
	Error      string `json:"error"`
}

// Chunk rebuilds the chunk an entry describes around its text.
func (e Entry) Chunk(text string) domain.Chunk {
	return domain.Chunk{
		ID:              e.ChunkID,
		Source:          e.SourcePath,
		StartOffset:     e.StartOffset,
		EndOffset:       e.EndOffset,
		StartLine:       e.StartLine,
		EndLine:         e.EndLine,
		Text:            text,
		OverlapWithPrev: e.OverlapWithPrev,
		OverlapWithNext: e.OverlapWithNext,
		SyntaxAware:     e.SyntaxAware,
		Oversized:       e.Oversized,
		Language:        e.Language,
		Kind:            e.Kind,
		Names:           e.Names,
		SHA256:          e.SHA256,
	}
}

// Writer writes chunk files and the manifest under one output directory.
type Writer struct {
	dir       string
	force     bool
	tokenizer port.Tokenizer
}

func NewWriter(dir string, force bool, tokenizer port.Tokenizer) *Writer {
	return &Writer{dir: dir, force: force, tokenizer: tokenizer}
}

// Prepare creates the output directory. Existing chunk files make it fail
// with ErrChunksExist unless the writer was created with force, in which
// case they are removed together with every stale manifest.
func (w *Writer) Prepare() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	existing, err := doublestar.Glob(os.DirFS(w.dir), "**/chunk_*.txt")
	if err != nil {
		return fmt.Errorf("failed to scan output directory: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}
	if !w.force {
		return fmt.Errorf("%w: %d chunk files in %s (use --force to overwrite)", domain.ErrChunksExist, len(existing), w.dir)
	}

	manifests, err := doublestar.Glob(os.DirFS(w.dir), "**/"+FileName)
	if err != nil {
		return fmt.Errorf("failed to scan output directory: %w", err)
	}
	for _, rel := range append(existing, manifests...) {
		if err := os.Remove(filepath.Join(w.dir, filepath.FromSlash(rel))); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
	}
	return nil
}

// WriteChunks writes chunk_NNNN.txt files into subdir (relative to the
// output directory, "" for the top level) and returns their entries.
// Different subdirs may be written concurrently.
func (w *Writer) WriteChunks(subdir string, chunks []domain.Chunk) ([]Entry, error) {
	target := filepath.Join(w.dir, filepath.FromSlash(subdir))
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", subdir, err)
	}

	width := len(fmt.Sprint(len(chunks)))
	if width < 4 {
		width = 4
	}

	entries := make([]Entry, 0, len(chunks))
	for i, c := range chunks {
		name := fmt.Sprintf("chunk_%0*d.txt", width, i+1)
		if err := os.WriteFile(filepath.Join(target, name), []byte(c.Text), 0644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		entries = append(entries, w.entry(c, filepath.ToSlash(filepath.Join(subdir, name))))
	}
	return entries, nil
}

func (w *Writer) entry(c domain.Chunk, outputFile string) Entry {
	names := c.Names
	if names == nil {
		names = []string{}
	}
	tokens := 0
	if w.tokenizer != nil {
		tokens = w.tokenizer.CountTokens(c.Text)
	}
	return Entry{
		ChunkID:         c.ID,
		SourcePath:      c.Source,
		StartOffset:     c.StartOffset,
		EndOffset:       c.EndOffset,
		StartLine:       c.StartLine,
		EndLine:         c.EndLine,
		Size:            c.Size(),
		ApproxTokens:    tokens,
		OverlapWithPrev: c.OverlapWithPrev,
		OverlapWithNext: c.OverlapWithNext,
		SyntaxAware:     c.SyntaxAware,
		Oversized:       c.Oversized,
		Language:        c.Language,
		Kind:            c.Kind,
		Names:           names,
		OutputFile:      outputFile,
		SHA256:          c.SHA256,
	}
}

// WriteManifest writes m as index.json. Errors are sorted by source so
// parallel runs produce identical files.
func (w *Writer) WriteManifest(m *Manifest) error {
	return w.WriteManifestAt("", m)
}

// WriteManifestAt writes m as index.json in subdir of the output directory.
func (w *Writer) WriteManifestAt(subdir string, m *Manifest) error {
	sort.Slice(m.Errors, func(i, j int) bool {
		return m.Errors[i].SourcePath < m.Errors[j].SourcePath
	})
	if m.Chunks == nil {
		m.Chunks = []Entry{}
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filepath.Join(w.dir, filepath.FromSlash(subdir), FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// Read loads a manifest from path, or from path/index.json when path is a
// directory.
func Read(path string) (*Manifest, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, FileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.SourceError{Path: path, Err: fmt.Errorf("%w: %v", domain.ErrUnreadableSource, err)}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// ReadChunk returns the text of one entry's chunk file under dir.
func ReadChunk(dir string, e Entry) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(e.OutputFile))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &domain.SourceError{Path: path, Err: fmt.Errorf("%w: %w", domain.ErrUnreadableSource, err)}
	}
	return string(data), nil
}

// Problem is a chunk file that no longer matches its manifest entry.
type Problem struct {
	ChunkID    string
	OutputFile string
	Reason     string
}

// Verify recomputes every chunk file digest and size under dir.
func Verify(m *Manifest, dir string) []Problem {
	var problems []Problem
	for _, e := range m.Chunks {
		text, err := ReadChunk(dir, e)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				problems = append(problems, Problem{e.ChunkID, e.OutputFile, "missing"})
				continue
			}
			problems = append(problems, Problem{e.ChunkID, e.OutputFile, err.Error()})
			continue
		}
		sum := sha256.Sum256([]byte(text))
		if got := hex.EncodeToString(sum[:]); got != e.SHA256 {
			problems = append(problems, Problem{e.ChunkID, e.OutputFile, "sha256 mismatch"})
			continue
		}
		if size := len([]rune(text)); size != e.Size {
			problems = append(problems, Problem{e.ChunkID, e.OutputFile, fmt.Sprintf("size %d, manifest says %d", size, e.Size)})
		}
	}
	return problems
}
