package chunker

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"rlm/internal/domain"
)

// SyntaxSplitter packs top-level syntax units into chunks of at most
// maxChars characters. Units are never split: a unit larger than maxChars
// becomes its own oversized chunk. Sources without a usable parse fall
// back to the text chunker.
type SyntaxSplitter struct {
	maxChars int
	registry *Registry
	fallback *TextChunker
	logger   *zap.Logger
}

func NewSyntaxSplitter(maxChars int, registry *Registry, fallback *TextChunker, logger *zap.Logger) (*SyntaxSplitter, error) {
	if maxChars <= 0 {
		return nil, domain.InvalidConfig("max_chars", maxChars, "must be > 0")
	}
	if fallback == nil {
		return nil, fmt.Errorf("%w: splitter needs a fallback text chunker", domain.ErrInvalidConfiguration)
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyntaxSplitter{
		maxChars: maxChars,
		registry: registry,
		fallback: fallback,
		logger:   logger,
	}, nil
}

// Split chunks content from source written in lang. Parse failures are
// not errors: they degrade to text chunking with SyntaxAware=false.
func (s *SyntaxSplitter) Split(ctx context.Context, source, lang string, content []byte) ([]domain.Chunk, error) {
	parser, ok := s.registry.Parser(lang)
	if !ok {
		return s.degrade(ctx, source, lang, content, fmt.Sprintf("no parser for language %q", lang))
	}

	tree, err := parser.Parse(ctx, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return s.degrade(ctx, source, lang, content, err.Error())
	}
	if len(tree.Units) == 0 {
		return s.degrade(ctx, source, lang, content, "no syntax units")
	}

	chunks := s.pack(source, lang, content, tree.Units)
	RecordChunks(ctx, "syntax", lang, chunks)
	return chunks, nil
}

func (s *SyntaxSplitter) degrade(ctx context.Context, source, lang string, content []byte, reason string) ([]domain.Chunk, error) {
	s.logger.Warn("degraded to text chunking",
		zap.String("source", source),
		zap.String("language", lang),
		zap.String("reason", reason))
	recordFallback(ctx, lang)

	chunks, err := s.fallback.Chunk(source, string(content))
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		chunks[i].SyntaxAware = false
		chunks[i].Language = lang
	}
	RecordChunks(ctx, "text", lang, chunks)
	return chunks, nil
}

// segment is a top-level unit together with the gap before it. Segments
// tile the whole file.
type segment struct {
	startByte int
	endByte   int
	chars     int
	units     []domain.SyntaxUnit
}

func (s *SyntaxSplitter) pack(source, lang string, content []byte, units []domain.SyntaxUnit) []domain.Chunk {
	segments := tile(content, units)

	var groups [][]segment
	var current []segment
	size := 0
	for _, seg := range segments {
		if len(current) > 0 && size+seg.chars > s.maxChars {
			groups = append(groups, current)
			current, size = nil, 0
		}
		current = append(current, seg)
		size += seg.chars
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	runes := []rune(string(content))
	conv := &runeOffsets{content: content}
	spans := make([]span, len(groups))
	for i, g := range groups {
		spans[i] = span{
			start: conv.at(g[0].startByte),
			end:   conv.at(g[len(g)-1].endByte),
		}
	}

	digest := sourceDigest(fmt.Sprintf("syntax:%d:%s", s.maxChars, source), string(content))
	chunks := assemble(source, runes, spans, digest)
	for i, g := range groups {
		chunks[i].SyntaxAware = true
		chunks[i].Language = lang
		chunks[i].Oversized = chunks[i].Size() > s.maxChars
		chunks[i].Kind, chunks[i].Names = describe(g)
	}
	return chunks
}

// tile turns sorted, non-overlapping top-level units into segments that
// cover content from the first byte to the last. Leading gaps attach to
// the following unit, the trailing gap to the last one.
func tile(content []byte, units []domain.SyntaxUnit) []segment {
	var segments []segment
	prevEnd := 0

	for _, u := range units {
		end := u.EndByte
		if end > len(content) {
			end = len(content)
		}
		if len(segments) > 0 && u.StartByte < prevEnd {
			// Overlapping units stay in one segment.
			last := &segments[len(segments)-1]
			if end > last.endByte {
				last.endByte = end
				prevEnd = end
			}
			last.units = append(last.units, u)
			continue
		}
		segments = append(segments, segment{startByte: prevEnd, endByte: end, units: []domain.SyntaxUnit{u}})
		prevEnd = end
	}
	if len(segments) > 0 && prevEnd < len(content) {
		segments[len(segments)-1].endByte = len(content)
	}

	for i := range segments {
		segments[i].chars = utf8.RuneCount(content[segments[i].startByte:segments[i].endByte])
	}
	return segments
}

// describe returns the shared kind of the grouped units ("mixed" when they
// differ) and their names.
func describe(group []segment) (string, []string) {
	kind := ""
	var names []string
	for _, seg := range group {
		for _, u := range seg.units {
			switch {
			case kind == "":
				kind = string(u.Kind)
			case kind != string(u.Kind):
				kind = "mixed"
			}
			if u.Name != "" {
				names = append(names, u.Name)
			}
		}
	}
	return kind, names
}

// runeOffsets converts increasing byte offsets into character offsets
// without rescanning from the start each time.
type runeOffsets struct {
	content  []byte
	lastByte int
	lastRune int
}

func (r *runeOffsets) at(b int) int {
	if b < r.lastByte {
		r.lastByte, r.lastRune = 0, 0
	}
	r.lastRune += utf8.RuneCount(r.content[r.lastByte:b])
	r.lastByte = b
	return r.lastRune
}
