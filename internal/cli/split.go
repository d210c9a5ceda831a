package cli

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/chunker"
	"rlm/internal/adapter/fs"
	"rlm/internal/adapter/manifest"
	"rlm/internal/usecase"
)

var (
	splitMaxChars int
	splitOut      string
	splitForce    bool
	splitWorkers  int
	splitLanguage string
	splitIncludes []string
	splitExcludes []string
)

var splitCmd = &cobra.Command{
	Use:   "split [path]",
	Short: "Split source code into chunks along function and class boundaries",
	Long: `Split a source file or every matching file under a directory into chunks
that never cut through a function, class or other top-level declaration.
Declarations are packed greedily up to --max-chars; a declaration larger than
that becomes its own oversized chunk. Files in a language without a parser,
or that fail to parse, fall back to plain text chunking.

Each source gets a <path>.chunks directory under the output directory, and
one index.json lists every chunk.

Examples:
  rlm split .                       # Split the project directory
  rlm split src --out /tmp/chunks   # Split one subtree
  rlm split build.script --language python`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSplit,
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().IntVar(&splitMaxChars, "max-chars", 0, "target characters per chunk (default from config)")
	splitCmd.Flags().StringVarP(&splitOut, "out", "o", "", "output directory (default from config)")
	splitCmd.Flags().BoolVar(&splitForce, "force", false, "overwrite existing chunk files")
	splitCmd.Flags().IntVarP(&splitWorkers, "workers", "w", 0, "files split in parallel (default from config)")
	splitCmd.Flags().StringVar(&splitLanguage, "language", "", "language for every file instead of detecting it by extension")
	splitCmd.Flags().StringSliceVar(&splitIncludes, "include", nil, "glob of files to split (repeatable, default from config)")
	splitCmd.Flags().StringSliceVar(&splitExcludes, "exclude", nil, "glob of files to skip (repeatable, added to config)")
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	maxChars := cfg.Split.MaxChars
	if splitMaxChars != 0 {
		maxChars = splitMaxChars
	}
	workers := cfg.Split.Workers
	if splitWorkers > 0 {
		workers = splitWorkers
	}
	outDir := projectPath(cfg.Split.OutDir)
	if splitOut != "" {
		outDir = splitOut
	}
	outDir, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	includes := cfg.Split.Includes
	if len(splitIncludes) > 0 {
		includes = splitIncludes
	}
	if len(includes) == 0 {
		includes = chunker.SourceExtensions()
	}
	excludes := append(append([]string{}, cfg.Split.Excludes...), splitExcludes...)
	if rel, err := filepath.Rel(path, outDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		excludes = append(excludes, filepath.ToSlash(rel)+"/**")
	}

	fallback, err := chunker.NewTextChunker(chunker.TextOptions{
		MaxChars:      maxChars,
		OverlapChars:  min(cfg.Chunk.OverlapChars, maxChars-1),
		LookbackChars: cfg.Chunk.LookbackChars,
	})
	if err != nil {
		return err
	}
	splitter, err := chunker.NewSyntaxSplitter(maxChars, chunker.DefaultRegistry(), fallback, GetLogger())
	if err != nil {
		return err
	}
	reader, err := fs.NewReader(cfg.Chunk.Encoding)
	if err != nil {
		return err
	}

	fallbackOpts := fallback.Options()
	splitUC := usecase.NewSplitUseCase(
		fs.NewWalker(includes, excludes, chunker.SkipDirs),
		reader,
		splitter,
		manifest.NewWriter(outDir, splitForce, analyzer.NewTokenizer()),
		usecase.SplitOptions{
			MaxChars:      maxChars,
			OverlapChars:  fallbackOpts.OverlapChars,
			LookbackChars: fallbackOpts.LookbackChars,
			Workers:       workers,
			Language:      splitLanguage,
		},
		GetLogger(),
	)

	fmt.Printf("Scanning %s...\n", path)

	m, err := splitUC.Split(cmd.Context(), path, newProgress("Splitting"))
	if err != nil {
		return fmt.Errorf("split failed: %w", err)
	}

	sources := make(map[string]struct{})
	var fallbacks, oversized int
	for _, e := range m.Chunks {
		sources[e.SourcePath] = struct{}{}
		if !e.SyntaxAware {
			fallbacks++
		}
		if e.Oversized {
			oversized++
		}
	}

	fmt.Printf("\nSplit complete:\n")
	fmt.Printf("  Files split:      %d\n", len(sources))
	fmt.Printf("  Chunks written:   %d\n", len(m.Chunks))
	fmt.Printf("  Text fallback:    %d chunks\n", fallbacks)
	fmt.Printf("  Oversized:        %d chunks\n", oversized)

	if len(m.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range m.Errors {
			fmt.Printf("  - %s: %s\n", e.SourcePath, e.Error)
		}
	}

	fmt.Printf("\nWrote %d chunks to: %s\n", len(m.Chunks), outDir)
	return nil
}

// newProgress returns a progress callback that draws a bar once the total
// is known.
func newProgress(label string) usecase.ProgressFunc {
	var (
		bar         *progressbar.ProgressBar
		mu          sync.Mutex
		startTime   time.Time
		initialized bool
	)

	return func(processed, total int, current string) {
		mu.Lock()
		defer mu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+label+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		_ = bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", label, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}
