package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"invalid config", InvalidConfig("max_chars", 0, "must be > 0"), 2},
		{"unreadable", &SourceError{Path: "a.txt", Err: fmt.Errorf("%w: boom", ErrUnreadableSource)}, 2},
		{"other", errors.New("boom"), 1},
		{"parse", fmt.Errorf("wrap: %w", ErrParse), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestSourceError_Unwrap(t *testing.T) {
	err := &SourceError{Path: "x.go", Err: fmt.Errorf("%w: denied", ErrUnreadableSource)}
	assert.ErrorIs(t, err, ErrUnreadableSource)
	assert.Contains(t, err.Error(), "x.go")
}

func TestInvalidConfig_NamesParameter(t *testing.T) {
	err := InvalidConfig("overlap_chars", 10, "must be < max_chars")
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Contains(t, err.Error(), "overlap_chars=10")
}

func TestConfidenceRank(t *testing.T) {
	assert.Greater(t, ConfidenceHigh.Rank(), ConfidenceMedium.Rank())
	assert.Greater(t, ConfidenceMedium.Rank(), ConfidenceLow.Rank())
	assert.False(t, Confidence("certain").Valid())
	assert.True(t, ConfidenceLow.Valid())
}
