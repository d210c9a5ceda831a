package chunker

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"rlm/internal/domain"
)

func newTestChunker(t *testing.T, max, overlap, lookback int) *TextChunker {
	t.Helper()
	c, err := NewTextChunker(TextOptions{MaxChars: max, OverlapChars: overlap, LookbackChars: lookback})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func texts(chunks []domain.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func TestTextChunkerNoWhitespace(t *testing.T) {
	c := newTestChunker(t, 4, 1, 200)

	chunks, err := c.Chunk("letters.txt", "ABCDEFGHIJ")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"ABCD", "DEFG", "GHIJ"}
	if diff := cmp.Diff(want, texts(chunks)); diff != "" {
		t.Fatalf("chunk texts mismatch (-want +got):\n%s", diff)
	}
	if chunks[0].OverlapWithPrev != 0 || chunks[0].OverlapWithNext != 1 {
		t.Errorf("first chunk overlaps = %d/%d, want 0/1", chunks[0].OverlapWithPrev, chunks[0].OverlapWithNext)
	}
	if chunks[2].OverlapWithPrev != 1 || chunks[2].OverlapWithNext != 0 {
		t.Errorf("last chunk overlaps = %d/%d, want 1/0", chunks[2].OverlapWithPrev, chunks[2].OverlapWithNext)
	}
}

func TestTextOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts TextOptions
	}{
		{"zero max", TextOptions{MaxChars: 0}},
		{"negative max", TextOptions{MaxChars: -5}},
		{"negative overlap", TextOptions{MaxChars: 10, OverlapChars: -1}},
		{"overlap equals max", TextOptions{MaxChars: 10, OverlapChars: 10}},
		{"overlap above max", TextOptions{MaxChars: 10, OverlapChars: 11}},
		{"negative lookback", TextOptions{MaxChars: 10, LookbackChars: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTextChunker(tt.opts)
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}

func TestTextChunkerEmptyInput(t *testing.T) {
	c := newTestChunker(t, 10, 2, 5)

	chunks, err := c.Chunk("empty.txt", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}

func TestTextChunkerSnapsToWhitespace(t *testing.T) {
	c := newTestChunker(t, 7, 0, 5)

	chunks, err := c.Chunk("words.txt", "aaaa bbbb cccc")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"aaaa ", "bbbb ", "cccc"}
	if diff := cmp.Diff(want, texts(chunks)); diff != "" {
		t.Fatalf("chunk texts mismatch (-want +got):\n%s", diff)
	}
}

func TestTextChunkerPrefersNewline(t *testing.T) {
	c := newTestChunker(t, 8, 0, 8)

	chunks, err := c.Chunk("lines.txt", "ab\ncd ef gh")
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0].Text != "ab\n" {
		t.Errorf("first chunk = %q, want %q", chunks[0].Text, "ab\n")
	}
}

func TestTextChunkerHardSplitOutsideLookback(t *testing.T) {
	c := newTestChunker(t, 10, 0, 2)

	// The only space lies outside the look-back window.
	chunks, err := c.Chunk("far.txt", "ab cdefghijklmnop")
	if err != nil {
		t.Fatal(err)
	}
	if chunks[0].Text != "ab cdefghi" {
		t.Errorf("first chunk = %q, want hard split", chunks[0].Text)
	}
}

func TestTextChunkerLookbackWindowSize(t *testing.T) {
	tests := []struct {
		maxChars int
		lookback int
		text     string
		want     string
	}{
		// The space sits one character before the window.
		{10, 2, "abcdefg hijklmnop", "abcdefg hi"},
		{5, 1, "abc defgh", "abc d"},
		{5, 0, "abc defgh", "abc d"},
		// Inside the window it is used.
		{10, 3, "abcdefg hijklmnop", "abcdefg "},
	}

	for _, tt := range tests {
		c := newTestChunker(t, tt.maxChars, 0, tt.lookback)
		chunks, err := c.Chunk("window.txt", tt.text)
		if err != nil {
			t.Fatal(err)
		}
		if chunks[0].Text != tt.want {
			t.Errorf("lookback %d: first chunk = %q, want %q", tt.lookback, chunks[0].Text, tt.want)
		}
	}
}

func TestTextChunkerLines(t *testing.T) {
	c := newTestChunker(t, 6, 0, 6)

	chunks, err := c.Chunk("lines.txt", "one\ntwo\nthree\n")
	if err != nil {
		t.Fatal(err)
	}

	type lines struct{ Start, End int }
	var got []lines
	for _, ch := range chunks {
		got = append(got, lines{ch.StartLine, ch.EndLine})
	}
	want := []lines{{1, 1}, {2, 2}, {3, 3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("line ranges mismatch (-want +got):\n%s", diff)
	}
}

// sampleText builds a deterministic document with mixed line lengths.
func sampleText() string {
	var b strings.Builder
	words := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i := 0; i < 400; i++ {
		b.WriteString(words[i%len(words)])
		switch {
		case i%13 == 0:
			b.WriteString("\n\n")
		case i%5 == 0:
			b.WriteString("\n")
		default:
			b.WriteString(" ")
		}
	}
	return b.String()
}

func TestTextChunkerProperties(t *testing.T) {
	inputs := map[string]string{
		"sample":     sampleText(),
		"no spaces":  strings.Repeat("x", 1000),
		"unicode":    strings.Repeat("héllo wörld ✓ 日本語\n", 40),
		"one char":   "z",
		"whitespace": strings.Repeat(" \n", 300),
	}
	params := []TextOptions{
		{MaxChars: 50, OverlapChars: 10, LookbackChars: 20},
		{MaxChars: 7, OverlapChars: 6, LookbackChars: 7},
		{MaxChars: 100, OverlapChars: 0, LookbackChars: 0},
		{MaxChars: 1, OverlapChars: 0, LookbackChars: 3},
	}

	for name, input := range inputs {
		for _, opts := range params {
			c, err := NewTextChunker(opts)
			if err != nil {
				t.Fatal(err)
			}
			chunks, err := c.Chunk(name, input)
			if err != nil {
				t.Fatal(err)
			}

			if got := Reassemble(chunks); got != input {
				t.Fatalf("%s %+v: reassembled text differs from input", name, opts)
			}

			runes := []rune(input)
			for i, ch := range chunks {
				if ch.Size() > opts.MaxChars {
					t.Errorf("%s %+v: chunk %d has %d chars, max %d", name, opts, i, ch.Size(), opts.MaxChars)
				}
				if ch.Text != string(runes[ch.StartOffset:ch.EndOffset]) {
					t.Errorf("%s %+v: chunk %d text does not match its offsets", name, opts, i)
				}
				if i > 0 && ch.StartOffset <= chunks[i-1].StartOffset {
					t.Errorf("%s %+v: chunk %d does not advance", name, opts, i)
				}
				if i >= 2 && chunks[i-2].EndOffset > ch.StartOffset {
					t.Errorf("%s %+v: chunk %d overlaps chunk %d", name, opts, i, i-2)
				}
			}
		}
	}
}

func TestTextChunkerDeterministic(t *testing.T) {
	c := newTestChunker(t, 64, 8, 16)
	input := sampleText()

	first, err := c.Chunk("doc.txt", input)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Chunk("doc.txt", input)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("chunking is not deterministic (-first +second):\n%s", diff)
	}
}

func TestTextChunkerIDs(t *testing.T) {
	c := newTestChunker(t, 64, 8, 16)
	input := sampleText()

	chunks, err := c.Chunk("doc.txt", input)
	if err != nil {
		t.Fatal(err)
	}
	idPattern := regexp.MustCompile(`^[0-9a-f]{12}-\d{4,}$`)
	seen := make(map[string]bool)
	for _, ch := range chunks {
		if !idPattern.MatchString(ch.ID) {
			t.Errorf("unexpected id format %q", ch.ID)
		}
		if seen[ch.ID] {
			t.Errorf("duplicate id %q", ch.ID)
		}
		seen[ch.ID] = true
		if ch.SHA256 != textDigest(ch.Text) {
			t.Errorf("chunk %s has a wrong digest", ch.ID)
		}
	}

	other, err := c.Chunk("other.txt", input)
	if err != nil {
		t.Fatal(err)
	}
	if other[0].ID == chunks[0].ID {
		t.Error("identical content in different sources produced the same id")
	}

	wider := newTestChunker(t, 65, 8, 16)
	changed, err := wider.Chunk("doc.txt", input)
	if err != nil {
		t.Fatal(err)
	}
	if changed[0].ID == chunks[0].ID {
		t.Error("different parameters produced the same id")
	}
}

func TestIDWidth(t *testing.T) {
	tests := map[int]int{1: 4, 9999: 4, 10000: 5, 123456: 6}
	for count, want := range tests {
		if got := idWidth(count); got != want {
			t.Errorf("idWidth(%d) = %d, want %d", count, got, want)
		}
	}
}
