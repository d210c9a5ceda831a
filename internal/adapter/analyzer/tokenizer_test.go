package analyzer

import (
	"testing"
)

func TestTokenizer_Normalize(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		input string
		want  string
	}{
		{"X causes Y", "x causes y"},
		{"  X   causes\tY.  ", "x causes y"},
		{"X, causes; Y!", "x causes y"},
		{"The handler is NOT safe", "the handler is not safe"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := tok.Normalize(tt.input); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTokenizer_Polarity(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		input       string
		wantText    string
		wantNegated bool
	}{
		{"The cache is thread safe", "the cache is thread safe", false},
		{"The cache is not thread safe", "the cache is thread safe", true},
		{"The cache isn't thread safe", "the cache is thread safe", true},
		{"It is never not called", "it is called", false},
		{"The job can run", "the job can run", false},
		{"The job can't run", "the job can run", true},
		{"The job cannot run", "the job can run", true},
		{"The job won't run", "the job will run", true},
		{"The job will run", "the job will run", false},
		{"The team won the race", "the team won the race", false},
	}

	for _, tt := range tests {
		text, negated := tok.Polarity(tt.input)
		if text != tt.wantText || negated != tt.wantNegated {
			t.Errorf("Polarity(%q) = (%q, %v), want (%q, %v)", tt.input, text, negated, tt.wantText, tt.wantNegated)
		}
	}
}

func TestTokenizer_CountTokens(t *testing.T) {
	tok := NewTokenizer()

	count := tok.CountTokens("hello world this is a test")
	if count == 0 {
		t.Error("expected non-zero token count")
	}
	if count < 6 {
		t.Errorf("expected count >= 6 words, got %d", count)
	}
}

func TestTokenizer_EmptyInput(t *testing.T) {
	tok := NewTokenizer()

	if got := tok.Normalize(""); got != "" {
		t.Errorf("expected empty normalisation, got %q", got)
	}

	count := tok.CountTokens("")
	if count != 0 {
		t.Errorf("expected 0 count for empty input, got %d", count)
	}
}

func TestSplitWords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"hello world", 2},
		{"hello_world", 1},
		{"hello-world", 2},
		{"func(x, y)", 3},
		{"CamelCase", 1},
		{"snake_case_name", 1},
		{"123numbers456", 1},
	}

	for _, tt := range tests {
		words := splitWords(tt.input)
		if len(words) != tt.expected {
			t.Errorf("splitWords(%q) = %d words, want %d: %v", tt.input, len(words), tt.expected, words)
		}
	}
}
