package port

// Normalizer reduces claim text to a canonical form for deduplication.
type Normalizer interface {
	Normalize(text string) string

	// Polarity returns the text with negations removed and whether it was
	// negated.
	Polarity(text string) (string, bool)
}

type Tokenizer interface {
	CountTokens(text string) int
}
