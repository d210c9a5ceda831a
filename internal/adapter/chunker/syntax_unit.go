package chunker

import (
	"context"

	"rlm/internal/domain"
)

// SyntaxTree is the parse of one source file: the top-level units in
// source order, each possibly carrying nested children.
type SyntaxTree struct {
	Language string
	Units    []domain.SyntaxUnit
}

// LanguageParser produces a SyntaxTree for a single language. A parser
// that cannot build a tree returns an error wrapping domain.ErrParse.
type LanguageParser interface {
	Parse(ctx context.Context, content []byte) (*SyntaxTree, error)

	Language() string
}

// Registry maps language names to parsers. Looking up a language with no
// parser is the explicit "no parser available" variant.
type Registry struct {
	parsers map[string]LanguageParser
}

func NewRegistry(parsers ...LanguageParser) *Registry {
	r := &Registry{parsers: make(map[string]LanguageParser)}
	for _, p := range parsers {
		r.parsers[p.Language()] = p
	}
	return r
}

// DefaultRegistry wires the Go parser and every tree-sitter grammar.
func DefaultRegistry() *Registry {
	parsers := []LanguageParser{NewGoParser()}
	for _, lang := range TreeSitterLanguages() {
		parsers = append(parsers, NewTreeSitterParser(lang))
	}
	return NewRegistry(parsers...)
}

func (r *Registry) Parser(lang string) (LanguageParser, bool) {
	p, ok := r.parsers[lang]
	return p, ok
}

// walkUnits visits every unit of the tree depth-first.
func walkUnits(units []domain.SyntaxUnit, fn func(domain.SyntaxUnit)) {
	for _, u := range units {
		fn(u)
		walkUnits(u.Children, fn)
	}
}
