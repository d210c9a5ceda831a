package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration: bad size/overlap parameters. Fatal, nothing is processed.
	ErrInvalidConfiguration = errors.New("invalid configuration")
	// ErrUnreadableSource: I/O failure on one source. Fatal for that source only.
	ErrUnreadableSource = errors.New("unreadable source")
	// ErrParse: no syntax tree could be built. Recovered by falling back to text chunking.
	ErrParse = errors.New("parse error")
	// ErrLedgerConflict: another writer holds the ledger.
	ErrLedgerConflict = errors.New("ledger conflict")
	// ErrInvalidResult: a per-chunk result record failed validation.
	ErrInvalidResult = errors.New("invalid result")
	// ErrIndexConflict: one chunk id maps to two different texts.
	ErrIndexConflict = errors.New("index conflict")
	// ErrChunksExist: the output directory already holds chunk files.
	ErrChunksExist = errors.New("chunk files already exist")
	ErrNotFound    = errors.New("not found")
)

// SourceError ties an error to the source that caused it.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// InvalidConfig builds an ErrInvalidConfiguration naming the offending parameter.
func InvalidConfig(param string, value any, rule string) error {
	return fmt.Errorf("%w: %s=%v (%s)", ErrInvalidConfiguration, param, value, rule)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrInvalidConfiguration), errors.Is(err, ErrUnreadableSource):
		return 2
	default:
		return 1
	}
}
