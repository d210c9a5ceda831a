package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"rlm/internal/domain"
)

// TextOptions configures the text chunker. Sizes are in characters.
type TextOptions struct {
	MaxChars      int
	OverlapChars  int
	LookbackChars int
}

// Validate checks 0 <= overlap < max and a non-negative look-back window.
func (o TextOptions) Validate() error {
	if o.MaxChars <= 0 {
		return domain.InvalidConfig("max_chars", o.MaxChars, "must be > 0")
	}
	if o.OverlapChars < 0 {
		return domain.InvalidConfig("overlap_chars", o.OverlapChars, "must be >= 0")
	}
	if o.OverlapChars >= o.MaxChars {
		return domain.InvalidConfig("overlap_chars", o.OverlapChars, fmt.Sprintf("must be < max_chars (%d)", o.MaxChars))
	}
	if o.LookbackChars < 0 {
		return domain.InvalidConfig("lookback_chars", o.LookbackChars, "must be >= 0")
	}
	return nil
}

// TextChunker splits flat text into bounded, overlapping chunks. It holds
// no mutable state and is safe for concurrent use.
type TextChunker struct {
	maxChars int
	overlap  int
	lookback int
}

func NewTextChunker(opts TextOptions) (*TextChunker, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &TextChunker{
		maxChars: opts.MaxChars,
		overlap:  opts.OverlapChars,
		lookback: opts.LookbackChars,
	}, nil
}

func (c *TextChunker) Options() TextOptions {
	return TextOptions{MaxChars: c.maxChars, OverlapChars: c.overlap, LookbackChars: c.lookback}
}

// Chunk splits content into chunks attributed to source. Empty content
// yields no chunks.
func (c *TextChunker) Chunk(source string, content string) ([]domain.Chunk, error) {
	runes := []rune(content)
	spans := c.spans(runes)
	digest := sourceDigest(fmt.Sprintf("text:%d:%d:%d:%s", c.maxChars, c.overlap, c.lookback, source), content)
	return assemble(source, runes, spans, digest), nil
}

type span struct {
	start int
	end   int
}

func (c *TextChunker) spans(runes []rune) []span {
	n := len(runes)
	var spans []span
	start, prevEnd := 0, 0

	for start < n {
		hardEnd := start + c.maxChars
		if hardEnd > n {
			hardEnd = n
		}
		end := hardEnd
		if hardEnd < n {
			end = c.chooseEnd(runes, start, hardEnd, prevEnd)
		}
		spans = append(spans, span{start: start, end: end})
		if end >= n {
			break
		}

		// The next chunk may reach back into this one but never past the
		// end of the chunk before it.
		next := end - c.overlap
		if next < prevEnd {
			next = prevEnd
		}
		if next <= start {
			next = start + 1
		}
		prevEnd = end
		start = next
	}

	return spans
}

// chooseEnd picks a break inside the look-back window, preferring a
// newline, then any whitespace. The break character stays in the chunk.
// The window holds the last lookback characters before hardEnd. The
// result is always past prevEnd so every chunk adds new text.
func (c *TextChunker) chooseEnd(runes []rune, start, hardEnd, prevEnd int) int {
	floor := max(hardEnd-c.lookback, start, prevEnd)

	for i := hardEnd - 1; i >= floor; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	for i := hardEnd - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return hardEnd
}

// assemble turns spans into chunks with ids, lines, digests and declared
// overlaps.
func assemble(source string, runes []rune, spans []span, digest string) []domain.Chunk {
	if len(spans) == 0 {
		return nil
	}

	newlines := newlinePositions(runes)
	width := idWidth(len(spans))
	chunks := make([]domain.Chunk, len(spans))

	for i, sp := range spans {
		text := string(runes[sp.start:sp.end])
		lastChar := sp.end - 1
		if lastChar < sp.start {
			lastChar = sp.start
		}
		chunks[i] = domain.Chunk{
			ID:          chunkID(digest, i+1, width),
			Source:      source,
			StartOffset: sp.start,
			EndOffset:   sp.end,
			StartLine:   lineAt(newlines, sp.start),
			EndLine:     lineAt(newlines, lastChar),
			Text:        text,
			SHA256:      textDigest(text),
		}
		if i > 0 && spans[i-1].end > sp.start {
			shared := spans[i-1].end - sp.start
			chunks[i].OverlapWithPrev = shared
			chunks[i-1].OverlapWithNext = shared
		}
	}

	return chunks
}

// Reassemble concatenates chunk texts after dropping declared overlaps.
// For chunks of one source it reproduces the source exactly.
func Reassemble(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		r := []rune(c.Text)
		if c.OverlapWithPrev > 0 && c.OverlapWithPrev <= len(r) {
			r = r[c.OverlapWithPrev:]
		}
		b.WriteString(string(r))
	}
	return b.String()
}

func newlinePositions(runes []rune) []int {
	var pos []int
	for i, r := range runes {
		if r == '\n' {
			pos = append(pos, i)
		}
	}
	return pos
}

// lineAt returns the 1-based line of character offset pos.
func lineAt(newlines []int, pos int) int {
	return sort.SearchInts(newlines, pos) + 1
}

func idWidth(count int) int {
	w := len(strconv.Itoa(count))
	if w < 4 {
		w = 4
	}
	return w
}

func chunkID(digest string, seq, width int) string {
	return fmt.Sprintf("%s-%0*d", digest, width, seq)
}

// sourceDigest covers the chunking parameters, the source name and the
// content, so one id always names one text.
func sourceDigest(params, content string) string {
	h := sha256.New()
	h.Write([]byte(params))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))[:12]
}

func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
