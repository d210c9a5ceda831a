package usecase

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rlm/internal/adapter/chunker"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
	"rlm/internal/port"
)

// ProgressFunc is called after each unit of work with the number done so
// far. Calls are serialized.
type ProgressFunc func(processed, total int, current string)

// SplitOptions are recorded in the manifest of a split run. Overlap and
// lookback belong to the text chunker used for fallback.
type SplitOptions struct {
	MaxChars      int
	OverlapChars  int
	LookbackChars int
	Workers       int
	// Language overrides detection for every file when set.
	Language string
}

// SplitUseCase splits every source file under a root along syntax
// boundaries and writes one <file>.chunks directory per source.
type SplitUseCase struct {
	walker   port.FileWalker
	reader   port.SourceReader
	splitter port.Splitter
	writer   *manifest.Writer
	opts     SplitOptions
	logger   *zap.Logger
}

// NewSplitUseCase creates a new split use case.
func NewSplitUseCase(
	walker port.FileWalker,
	reader port.SourceReader,
	splitter port.Splitter,
	writer *manifest.Writer,
	opts SplitOptions,
	logger *zap.Logger,
) *SplitUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SplitUseCase{
		walker:   walker,
		reader:   reader,
		splitter: splitter,
		writer:   writer,
		opts:     opts,
		logger:   logger,
	}
}

// Split walks root and splits the files it finds in parallel. A file that
// cannot be read is recorded in the manifest errors and the rest of the
// batch continues. Any other failure stops the run. Nothing under the
// output directory is touched until every file has been split.
func (u *SplitUseCase) Split(ctx context.Context, root string, progress ProgressFunc) (*manifest.Manifest, error) {
	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, err
	}

	var (
		perFile   = make([][]domain.Chunk, len(files))
		fileErrs  []manifest.FileError
		mu        sync.Mutex
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.opts.Workers)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			chunks, err := u.splitFile(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if !errors.Is(err, domain.ErrUnreadableSource) {
					return fmt.Errorf("%s: %w", file.RelPath, err)
				}
				u.logger.Warn("skipping unreadable source",
					zap.String("source", file.RelPath),
					zap.Error(err))
				fileErrs = append(fileErrs, manifest.FileError{SourcePath: file.RelPath, Error: err.Error()})
			}
			perFile[i] = chunks
			processed++
			if progress != nil {
				progress(processed, len(files), file.RelPath)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := u.writer.Prepare(); err != nil {
		return nil, err
	}

	m := u.newManifest(root)
	m.Chunks = []manifest.Entry{}
	m.Errors = fileErrs
	for i, chunks := range perFile {
		if len(chunks) == 0 {
			continue
		}
		subdir := files[i].RelPath + ".chunks"
		entries, err := u.writer.WriteChunks(subdir, chunks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", files[i].RelPath, err)
		}
		if err := u.writeFileManifest(files[i].RelPath, subdir, entries); err != nil {
			return nil, err
		}
		m.Chunks = append(m.Chunks, entries...)
	}
	if err := u.writer.WriteManifest(m); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}
	return m, nil
}

func (u *SplitUseCase) newManifest(source string) *manifest.Manifest {
	return &manifest.Manifest{
		Source:        source,
		Mode:          manifest.ModeSyntax,
		MaxChars:      u.opts.MaxChars,
		OverlapChars:  u.opts.OverlapChars,
		LookbackChars: u.opts.LookbackChars,
	}
}

// writeFileManifest writes index.json into one <file>.chunks directory,
// with output files relative to that directory.
func (u *SplitUseCase) writeFileManifest(rel, subdir string, entries []manifest.Entry) error {
	m := u.newManifest(rel)
	m.Chunks = make([]manifest.Entry, len(entries))
	for i, e := range entries {
		e.OutputFile = path.Base(e.OutputFile)
		m.Chunks[i] = e
	}
	if err := u.writer.WriteManifestAt(subdir, m); err != nil {
		return fmt.Errorf("failed to write manifest for %s: %w", rel, err)
	}
	return nil
}

func (u *SplitUseCase) splitFile(ctx context.Context, file port.FileInfo) ([]domain.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, err := u.reader.ReadSource(file.Path)
	if err != nil {
		return nil, err
	}

	lang := u.opts.Language
	if lang == "" {
		lang = chunker.DetectLanguage(file.Path)
	}

	return u.splitter.Split(ctx, file.RelPath, lang, []byte(text))
}
