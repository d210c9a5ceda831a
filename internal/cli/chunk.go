package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/chunker"
	"rlm/internal/adapter/fs"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
	"rlm/internal/usecase"
)

var (
	chunkMaxChars int
	chunkOverlap  int
	chunkLookback int
	chunkEncoding string
	chunkOut      string
	chunkForce    bool
	chunkJSON     bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk <file>",
	Short: "Split a text file into overlapping chunks",
	Long: `Split one text file into chunks of at most --max-chars characters, each
overlapping the previous one by --overlap-chars. Chunks end at a newline or
space near the limit when one exists. Chunk files and an index.json manifest
are written to the output directory (default: <dir of file>/chunks/<name>).

Examples:
  rlm chunk transcript.txt
  rlm chunk big.log --max-chars 8000 --overlap-chars 400 --out /tmp/log-chunks
  rlm chunk legacy.txt --encoding latin1 --force`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

func init() {
	rootCmd.AddCommand(chunkCmd)
	chunkCmd.Flags().IntVar(&chunkMaxChars, "max-chars", 0, "maximum characters per chunk (default from config)")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap-chars", -1, "characters shared with the previous chunk (default from config)")
	chunkCmd.Flags().IntVar(&chunkLookback, "lookback-chars", -1, "window searched for a line or word break (default from config)")
	chunkCmd.Flags().StringVar(&chunkEncoding, "encoding", "", "source encoding (default from config)")
	chunkCmd.Flags().StringVarP(&chunkOut, "out", "o", "", "output directory")
	chunkCmd.Flags().BoolVar(&chunkForce, "force", false, "overwrite existing chunk files")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "print the manifest as JSON")
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return &domain.SourceError{Path: args[0], Err: fmt.Errorf("%w: %w", domain.ErrUnreadableSource, err)}
	}
	if info.IsDir() {
		return &domain.SourceError{Path: args[0], Err: fmt.Errorf("%w: is a directory (use rlm split)", domain.ErrUnreadableSource)}
	}

	opts := chunker.TextOptions{
		MaxChars:      cfg.Chunk.MaxChars,
		OverlapChars:  cfg.Chunk.OverlapChars,
		LookbackChars: cfg.Chunk.LookbackChars,
	}
	if chunkMaxChars != 0 {
		opts.MaxChars = chunkMaxChars
	}
	if cmd.Flags().Changed("overlap-chars") {
		opts.OverlapChars = chunkOverlap
	}
	if cmd.Flags().Changed("lookback-chars") {
		opts.LookbackChars = chunkLookback
	}
	tc, err := chunker.NewTextChunker(opts)
	if err != nil {
		return err
	}

	encoding := cfg.Chunk.Encoding
	if chunkEncoding != "" {
		encoding = chunkEncoding
	}
	reader, err := fs.NewReader(encoding)
	if err != nil {
		return err
	}

	outDir := chunkOut
	if outDir == "" {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		outDir = filepath.Join(filepath.Dir(path), cfg.Chunk.OutDir, stem)
	}
	writer := manifest.NewWriter(outDir, chunkForce, analyzer.NewTokenizer())

	chunkUC := usecase.NewChunkUseCase(reader, tc, writer, GetLogger())
	m, chunks, err := chunkUC.Chunk(cmd.Context(), path, args[0])
	if err != nil {
		return err
	}

	if chunkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	fmt.Printf("Wrote %d chunks to: %s\n", len(chunks), outDir)
	return nil
}
