package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rlm/internal/adapter/chunker"
	"rlm/internal/adapter/fs"
	"rlm/internal/adapter/index"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
)

var (
	indexChunksDir string
	indexJSON      bool
)

var errVerifyFailed = errors.New("chunk files do not match the manifest")

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect a chunk index",
	Long: `Inspect the index.json manifest written by chunk or split.

Examples:
  rlm index entries -c chunks/src
  rlm index lookup 3f2a9c0d11be-0007 -c chunks/src
  rlm index verify -c chunks/transcript`,
}

var indexLookupCmd = &cobra.Command{
	Use:   "lookup <chunk-id>",
	Short: "Print the text of one chunk",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndexLookup,
}

var indexEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "List chunk ids with their source and character range",
	Args:  cobra.NoArgs,
	RunE:  runIndexEntries,
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check chunk files against their recorded digests",
	Long: `Check every chunk file against the size and SHA-256 recorded in the manifest.
For text chunks whose source is still readable, also check that the chunks
reassemble into the source exactly.`,
	Args: cobra.NoArgs,
	RunE: runIndexVerify,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexLookupCmd, indexEntriesCmd, indexVerifyCmd)
	indexCmd.PersistentFlags().StringVarP(&indexChunksDir, "chunks", "c", "", "directory holding index.json (default from config)")
	indexLookupCmd.Flags().BoolVar(&indexJSON, "json", false, "print the chunk with its metadata as JSON")
}

// chunksDir is the manifest directory named by --chunks or the split
// output directory from config.
func chunksDir() string {
	if indexChunksDir != "" {
		return indexChunksDir
	}
	return projectPath(GetConfig().Split.OutDir)
}

func loadIndex() (*index.Index, *manifest.Manifest, error) {
	dir := chunksDir()
	m, err := manifest.Read(dir)
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.FromManifest(m, dir)
	if err != nil {
		return nil, nil, err
	}
	return idx, m, nil
}

func runIndexLookup(cmd *cobra.Command, args []string) error {
	idx, _, err := loadIndex()
	if err != nil {
		return err
	}

	chunk, ok := idx.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: chunk %s", domain.ErrNotFound, args[0])
	}

	if indexJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(chunk)
	}
	fmt.Print(chunk.Text)
	return nil
}

func runIndexEntries(cmd *cobra.Command, args []string) error {
	idx, _, err := loadIndex()
	if err != nil {
		return err
	}
	data, err := idx.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runIndexVerify(cmd *cobra.Command, args []string) error {
	dir := chunksDir()
	m, err := manifest.Read(dir)
	if err != nil {
		return err
	}

	problems := manifest.Verify(m, dir)
	for _, p := range problems {
		fmt.Printf("  %s (%s): %s\n", p.ChunkID, p.OutputFile, p.Reason)
	}

	if len(problems) == 0 && m.Mode == manifest.ModeText {
		same, checked, err := reassemblesSource(m, dir)
		if err != nil {
			return err
		}
		if checked && !same {
			fmt.Printf("  reassembled chunks differ from %s\n", m.Source)
			problems = append(problems, manifest.Problem{Reason: "reassembly mismatch"})
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %d problems", errVerifyFailed, len(problems))
	}
	fmt.Printf("%d chunks verified in %s\n", len(m.Chunks), dir)
	return nil
}

// reassemblesSource compares the chunks with their source. checked is
// false when the source can no longer be read.
func reassemblesSource(m *manifest.Manifest, dir string) (same, checked bool, err error) {
	reader, err := fs.NewReader(GetConfig().Chunk.Encoding)
	if err != nil {
		return false, false, err
	}
	text, err := reader.ReadSource(m.Source)
	if err != nil {
		GetLogger().Sugar().Infof("skipping reassembly check: %v", err)
		return false, false, nil
	}

	idx, err := index.FromManifest(m, dir)
	if err != nil {
		return false, false, err
	}
	chunks := make([]domain.Chunk, 0, idx.Len())
	for _, id := range idx.IDs() {
		c, _ := idx.Lookup(id)
		chunks = append(chunks, c)
	}
	return chunker.Reassemble(chunks) == text, true, nil
}
