package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"rlm/internal/adapter/analyzer"
	"rlm/internal/adapter/dispatch"
	"rlm/internal/usecase"
)

var (
	dispatchCommand   string
	dispatchWorkers   int
	dispatchTimeout   time.Duration
	dispatchQuestions []string
	dispatchNoDB      bool
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run the analyzer command on every chunk without a stored result",
	Long: `Run an external analyzer once per pending chunk and store each result in the
ledger as it arrives. The command runs through sh -c with the chunk id in
RLM_CHUNK_ID; it reads {"chunk_id", "text", "questions"} as JSON on stdin
and writes one result object (see rlm ledger --help) on stdout.

Chunks that already have a result are skipped, so an interrupted or partly
failed run can simply be started again.

Examples:
  rlm dispatch -c chunks/src --command ./analyze.sh -q "Where are sessions created?"
  rlm dispatch -c chunks/log --workers 8 --timeout 2m`,
	Args: cobra.NoArgs,
	RunE: runDispatch,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)
	dispatchCmd.Flags().StringVarP(&indexChunksDir, "chunks", "c", "", "directory holding index.json (default from config)")
	dispatchCmd.Flags().StringVar(&dispatchCommand, "command", "", "analyzer command (default from config)")
	dispatchCmd.Flags().IntVarP(&dispatchWorkers, "workers", "w", 0, "chunks analyzed in parallel (default from config)")
	dispatchCmd.Flags().DurationVar(&dispatchTimeout, "timeout", 0, "time limit per chunk (default from config)")
	dispatchCmd.Flags().StringArrayVarP(&dispatchQuestions, "question", "q", nil, "question sent with every chunk (repeatable, default from config)")
	dispatchCmd.Flags().BoolVar(&dispatchNoDB, "no-db", false, "keep results in memory for this run only")
}

func runDispatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	command := cfg.Dispatch.Command
	if dispatchCommand != "" {
		command = dispatchCommand
	}
	workers := cfg.Dispatch.Workers
	if dispatchWorkers > 0 {
		workers = dispatchWorkers
	}
	timeout := cfg.Dispatch.Timeout
	if dispatchTimeout > 0 {
		timeout = dispatchTimeout
	}
	questions := cfg.Dispatch.Questions
	if len(dispatchQuestions) > 0 {
		questions = dispatchQuestions
	}

	// The use case owns the per-chunk deadline.
	an, err := dispatch.NewCommandAnalyzer(command, GetRootDir(), 0)
	if err != nil {
		return err
	}

	idx, _, err := loadIndex()
	if err != nil {
		return err
	}

	st, err := openLedgerStore(dispatchNoDB)
	if err != nil {
		return err
	}
	defer st.Close()

	dispatchUC := usecase.NewDispatchUseCase(an, st, analyzer.NewTokenizer(), usecase.DispatchOptions{
		Workers:   workers,
		Timeout:   timeout,
		Questions: questions,
	}, GetLogger())

	report, err := dispatchUC.Dispatch(cmd.Context(), idx, newProgress("Analyzing"))
	if report != nil {
		fmt.Printf("\nDispatch %s:\n", dispatchStatus(err))
		fmt.Printf("  Analyzed: %d\n", report.Dispatched)
		fmt.Printf("  Skipped:  %d (already stored)\n", report.Skipped)
		fmt.Printf("  Failed:   %d\n", report.Failed)
		if len(report.Errors) > 0 {
			fmt.Printf("\nWarnings:\n")
			for _, e := range report.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("dispatch stopped: %w", err)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%w: %d chunks failed, run dispatch again to retry", dispatch.ErrAnalyzerFailed, report.Failed)
	}
	return nil
}

func dispatchStatus(err error) string {
	switch {
	case err == nil:
		return "complete"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "failed"
	}
}
