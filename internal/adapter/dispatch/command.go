package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"rlm/internal/domain"
	"rlm/internal/port"
)

// ErrAnalyzerFailed marks a per-chunk analysis process that exited badly
// or printed something that is not a result.
var ErrAnalyzerFailed = errors.New("analyzer failed")

// CommandAnalyzer runs a shell command once per chunk. The request is
// written to stdin as JSON and a ChunkResult is read back from stdout.
type CommandAnalyzer struct {
	command string
	dir     string
	timeout time.Duration
}

func NewCommandAnalyzer(command, dir string, timeout time.Duration) (*CommandAnalyzer, error) {
	if strings.TrimSpace(command) == "" {
		return nil, domain.InvalidConfig("dispatch.command", `""`, "must name a command")
	}
	return &CommandAnalyzer{command: command, dir: dir, timeout: timeout}, nil
}

func (a *CommandAnalyzer) Name() string {
	return a.command
}

func (a *CommandAnalyzer) Analyze(ctx context.Context, req domain.AnalysisRequest) (domain.ChunkResult, error) {
	input, err := json.Marshal(req)
	if err != nil {
		return domain.ChunkResult{}, fmt.Errorf("failed to encode request: %w", err)
	}

	cmdCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(cmdCtx, "sh", "-c", a.command)
	cmd.Dir = a.dir
	cmd.Env = append(cmd.Environ(), "RLM_CHUNK_ID="+req.ChunkID)
	cmd.Stdin = bytes.NewReader(input)
	// Children of sh may outlive it and hold stdout open.
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		return domain.ChunkResult{}, ctx.Err()
	}
	if cmdCtx.Err() == context.DeadlineExceeded {
		return domain.ChunkResult{}, fmt.Errorf("%w: chunk %s: timed out after %s", ErrAnalyzerFailed, req.ChunkID, a.timeout)
	}
	if runErr != nil {
		return domain.ChunkResult{}, fmt.Errorf("%w: chunk %s: %v: %s", ErrAnalyzerFailed, req.ChunkID, runErr, tail(stderr.String()))
	}

	var result domain.ChunkResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return domain.ChunkResult{}, fmt.Errorf("%w: chunk %s: output is not a result: %v", ErrAnalyzerFailed, req.ChunkID, err)
	}
	if result.ChunkID == "" {
		result.ChunkID = req.ChunkID
	}
	if result.ChunkID != req.ChunkID {
		return domain.ChunkResult{}, fmt.Errorf("%w: asked for chunk %s, got a result for %s", domain.ErrInvalidResult, req.ChunkID, result.ChunkID)
	}
	return result, nil
}

// tail keeps the end of stderr, where the cause usually is.
func tail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}

var _ port.Analyzer = (*CommandAnalyzer)(nil)
