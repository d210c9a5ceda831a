package analyzer

import (
	"strings"
	"unicode"
)

// negations flip the polarity of a claim. Contractions are split by
// splitWords ("isn't" -> "isn", "t"), so "t" marks them.
var negations = map[string]struct{}{
	"not":    {},
	"no":     {},
	"never": {},
	"t":     {},
	"nor":   {},
	"none":  {},
}

// negatedForms are single words that carry a negation and a verb, mapped
// to the verb.
var negatedForms = map[string]string{
	"cannot": "can",
}

// Tokenizer normalises claim text and estimates token counts.
type Tokenizer struct{}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{}
}

// Normalize lowercases text and collapses it to single-space separated
// words. Stopwords are kept so negations survive.
func (t *Tokenizer) Normalize(text string) string {
	words := splitWords(text)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, " ")
}

// Polarity returns the normalised text with negation words removed and
// whether the text was negated an odd number of times.
func (t *Tokenizer) Polarity(text string) (string, bool) {
	words := splitWords(text)
	kept := make([]string, 0, len(words))
	negated := false
	for i, w := range words {
		lw := strings.ToLower(w)
		if _, ok := negations[lw]; ok {
			negated = !negated
			continue
		}
		if verb, ok := negatedForms[lw]; ok {
			negated = !negated
			kept = append(kept, verb)
			continue
		}
		switch {
		case lw == "won" && i+1 < len(words) && strings.ToLower(words[i+1]) == "t":
			lw = "will"
		case strings.HasSuffix(lw, "n") && isContractionStem(lw):
			lw = strings.TrimSuffix(lw, "n")
		}
		kept = append(kept, lw)
	}
	return strings.Join(kept, " "), negated
}

// CountTokens returns an approximate token count for LLM budget estimation.
func (t *Tokenizer) CountTokens(text string) int {
	words := splitWords(text)
	if len(words) == 0 {
		return 0
	}
	// Rough estimate: average word is about 1.3 tokens
	return int(float64(len(words)) * 1.3)
}

// isContractionStem reports stems left over from "isn't", "doesn't" and friends.
func isContractionStem(w string) bool {
	switch w {
	case "isn", "aren", "wasn", "weren", "doesn", "don", "didn", "hasn", "haven", "hadn",
		"wouldn", "couldn", "shouldn", "mustn", "needn":
		return true
	}
	return false
}

// splitWords splits text into words using unicode word boundaries.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}
