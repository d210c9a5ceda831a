package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"rlm/internal/adapter/chunker"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
	"rlm/internal/port"
)

// ChunkUseCase splits one flat text source into overlapping chunks and
// writes them with their manifest.
type ChunkUseCase struct {
	reader  port.SourceReader
	chunker *chunker.TextChunker
	writer  *manifest.Writer
	logger  *zap.Logger
}

// NewChunkUseCase creates a new chunk use case.
func NewChunkUseCase(
	reader port.SourceReader,
	chunker *chunker.TextChunker,
	writer *manifest.Writer,
	logger *zap.Logger,
) *ChunkUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkUseCase{
		reader:  reader,
		chunker: chunker,
		writer:  writer,
		logger:  logger,
	}
}

// Chunk reads path, chunks it and writes the chunk files and index.json.
// source is the name recorded in chunk ids and the manifest. The output
// directory is left alone when the source cannot be read or chunked.
func (u *ChunkUseCase) Chunk(ctx context.Context, path, source string) (*manifest.Manifest, []domain.Chunk, error) {
	text, err := u.reader.ReadSource(path)
	if err != nil {
		return nil, nil, err
	}

	chunks, err := u.chunker.Chunk(source, text)
	if err != nil {
		return nil, nil, err
	}

	if err := u.writer.Prepare(); err != nil {
		return nil, nil, err
	}
	chunker.RecordChunks(ctx, manifest.ModeText, "text", chunks)

	entries, err := u.writer.WriteChunks("", chunks)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write chunks: %w", err)
	}

	opts := u.chunker.Options()
	m := &manifest.Manifest{
		Source:        source,
		Mode:          manifest.ModeText,
		MaxChars:      opts.MaxChars,
		OverlapChars:  opts.OverlapChars,
		LookbackChars: opts.LookbackChars,
		Chunks:        entries,
	}
	if err := u.writer.WriteManifest(m); err != nil {
		return nil, nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	u.logger.Debug("chunked source",
		zap.String("source", source),
		zap.Int("chars", len([]rune(text))),
		zap.Int("chunks", len(chunks)))
	return m, chunks, nil
}
