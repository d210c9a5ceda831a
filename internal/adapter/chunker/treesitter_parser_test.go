package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rlm/internal/domain"
)

const pythonSource = `"""Module docstring."""
import os

CONSTANT = 3


@decorator
def decorated(x):
    return x


class Greeter:
    def hello(self):
        return "hi"

    def bye(self):
        return "bye"


# trailing comment
def last():
    pass
`

func TestTreeSitterPythonUnits(t *testing.T) {
	tree, err := NewTreeSitterParser("python").Parse(context.Background(), []byte(pythonSource))
	require.NoError(t, err)

	var names []string
	var kinds []domain.UnitKind
	for _, u := range tree.Units {
		names = append(names, u.Name)
		kinds = append(kinds, u.Kind)
	}
	assert.Equal(t, []string{"", "", "", "decorated", "Greeter", "last"}, names)
	assert.Equal(t, []domain.UnitKind{
		domain.UnitBlock, domain.UnitBlock, domain.UnitBlock,
		domain.UnitFunction, domain.UnitClass, domain.UnitFunction,
	}, kinds)

	decorated := tree.Units[3]
	assert.True(t, strings.HasPrefix(pythonSource[decorated.StartByte:], "@decorator"),
		"decorator belongs to the function")

	greeter := tree.Units[4]
	require.Len(t, greeter.Children, 2)
	assert.Equal(t, "hello", greeter.Children[0].Name)
	assert.Equal(t, "bye", greeter.Children[1].Name)
}

func TestTreeSitterSyntaxError(t *testing.T) {
	_, err := NewTreeSitterParser("python").Parse(context.Background(), []byte("def broken(:\n"))
	assert.True(t, errors.Is(err, domain.ErrParse), "got %v", err)
}

func TestTreeSitterJavaScriptExports(t *testing.T) {
	src := "export function a() {}\n\nexport class B {\n  m() {}\n}\n"
	tree, err := NewTreeSitterParser("javascript").Parse(context.Background(), []byte(src))
	require.NoError(t, err)
	require.Len(t, tree.Units, 2)

	assert.Equal(t, "a", tree.Units[0].Name)
	assert.Equal(t, domain.UnitFunction, tree.Units[0].Kind)
	assert.Equal(t, 0, tree.Units[0].StartByte, "export keyword belongs to the unit")
	assert.Equal(t, domain.UnitClass, tree.Units[1].Kind)
}

func TestTreeSitterSplitterCoherence(t *testing.T) {
	fallback := newTestChunker(t, 60, 0, 0)
	s, err := NewSyntaxSplitter(60, DefaultRegistry(), fallback, nil)
	require.NoError(t, err)

	chunks, err := s.Split(context.Background(), "greet.py", "python", []byte(pythonSource))
	require.NoError(t, err)
	assert.Equal(t, pythonSource, Reassemble(chunks))

	tree, err := NewTreeSitterParser("python").Parse(context.Background(), []byte(pythonSource))
	require.NoError(t, err)
	walkUnits(tree.Units, func(u domain.SyntaxUnit) {
		for _, c := range chunks {
			assert.False(t, c.StartOffset > u.StartByte && c.StartOffset < u.EndByte,
				"boundary %d inside %q", c.StartOffset, u.Name)
		}
	})
	for _, c := range chunks {
		assert.True(t, c.SyntaxAware)
	}
}

func TestDefaultRegistryCoversDetectedLanguages(t *testing.T) {
	r := DefaultRegistry()
	for _, lang := range extLanguages {
		_, ok := r.Parser(lang)
		assert.True(t, ok, "no parser for %s", lang)
	}
	_, ok := r.Parser("text")
	assert.False(t, ok)
}

func TestNewTreeSitterParserUnknownLanguage(t *testing.T) {
	assert.Panics(t, func() { NewTreeSitterParser("cobol") })
}
