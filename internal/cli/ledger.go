package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/manifest"
	"rlm/internal/domain"
	"rlm/internal/usecase"
)

var ledgerNoDB bool

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Merge per-chunk answers into an evidence ledger",
	Long: `Store per-chunk analysis results and merge them into one ledger of claims,
contradictions and open questions. Results are kept in .rlm/ledger.db.

A result is a JSON object:
  {"chunk_id": "...", "answers": [{"claim": "...", "evidence": [{"source": "...",
   "location": "10-12", "quote": "..."}], "confidence": "high"}],
   "contradictions": [...], "missing": [{"question": "...", "suggested_search": "..."}]}

Examples:
  rlm ledger ingest results/*.json
  rlm ledger pending -c chunks/src
  rlm ledger finalize > ledger.json
  rlm ledger finalize --no-db results/*.json`,
}

var ledgerIngestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Validate and store result files (\"-\" reads stdin)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLedgerIngest,
}

var ledgerFinalizeCmd = &cobra.Command{
	Use:   "finalize [file]...",
	Short: "Print the merged ledger as JSON, ingesting any files given first",
	RunE:  runLedgerFinalize,
}

var ledgerPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List chunk ids of a manifest that have no stored result",
	Args:  cobra.NoArgs,
	RunE:  runLedgerPending,
}

var ledgerResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all stored results",
	Args:  cobra.NoArgs,
	RunE:  runLedgerReset,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerIngestCmd, ledgerFinalizeCmd, ledgerPendingCmd, ledgerResetCmd)
	ledgerCmd.PersistentFlags().BoolVar(&ledgerNoDB, "no-db", false, "keep results in memory for this run only")
	ledgerPendingCmd.Flags().StringVarP(&indexChunksDir, "chunks", "c", "", "directory holding index.json (default from config)")
}

func newLedgerUseCase() (*usecase.LedgerUseCase, func(), error) {
	st, err := openLedgerStore(ledgerNoDB)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() { _ = st.Close() }
	return usecase.NewLedgerUseCase(st, analyzer.NewTokenizer(), GetLogger()), closeFn, nil
}

func runLedgerIngest(cmd *cobra.Command, args []string) error {
	ledgerUC, closeFn, err := newLedgerUseCase()
	if err != nil {
		return err
	}
	defer closeFn()

	total, err := ingestFiles(ledgerUC, args)
	if err != nil {
		return err
	}
	fmt.Printf("Stored %d results\n", total)
	return nil
}

func runLedgerFinalize(cmd *cobra.Command, args []string) error {
	ledgerUC, closeFn, err := newLedgerUseCase()
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := ingestFiles(ledgerUC, args); err != nil {
		return err
	}

	report, err := ledgerUC.Finalize()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runLedgerPending(cmd *cobra.Command, args []string) error {
	m, err := manifest.Read(chunksDir())
	if err != nil {
		return err
	}

	ledgerUC, closeFn, err := newLedgerUseCase()
	if err != nil {
		return err
	}
	defer closeFn()

	pending, err := ledgerUC.Pending(m)
	if err != nil {
		return err
	}
	for _, id := range pending {
		fmt.Println(id)
	}
	GetLogger().Sugar().Infof("%d of %d chunks pending", len(pending), len(m.Chunks))
	return nil
}

func runLedgerReset(cmd *cobra.Command, args []string) error {
	st, err := openLedgerStore(ledgerNoDB)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Clear(); err != nil {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	fmt.Println("Ledger cleared")
	return nil
}

func ingestFiles(ledgerUC *usecase.LedgerUseCase, paths []string) (int, error) {
	total := 0
	for _, path := range paths {
		results, err := readResults(path)
		if err != nil {
			return total, err
		}
		n, err := ledgerUC.Ingest(results...)
		total += n
		if err != nil {
			return total, fmt.Errorf("%s: %w", path, err)
		}
	}
	return total, nil
}

// readResults decodes a stream of results from path. Each top-level value
// is a single result or an array of results, so plain JSON files and JSON
// Lines both work.
func readResults(path string) ([]domain.ChunkResult, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, &domain.SourceError{Path: path, Err: fmt.Errorf("%w: %w", domain.ErrUnreadableSource, err)}
		}
		defer f.Close()
		r = f
	}

	var results []domain.ChunkResult
	dec := json.NewDecoder(bufio.NewReader(r))
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidResult, path, err)
		}

		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var batch []domain.ChunkResult
			if err := json.Unmarshal(raw, &batch); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidResult, path, err)
			}
			results = append(results, batch...)
			continue
		}

		var one domain.ChunkResult
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidResult, path, err)
		}
		results = append(results, one)
	}
	return results, nil
}
