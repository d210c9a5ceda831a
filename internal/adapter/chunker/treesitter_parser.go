package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"rlm/internal/domain"
)

// grammar describes which tree-sitter node types are syntax units for one
// language. Wrappers (decorators, exports) are kept around the declaration
// they wrap.
type grammar struct {
	language    func() *sitter.Language
	declaration map[string]domain.UnitKind
	wrappers    map[string]bool
}

var (
	jsDecls = map[string]domain.UnitKind{
		"function_declaration":           domain.UnitFunction,
		"generator_function_declaration": domain.UnitFunction,
		"class_declaration":              domain.UnitClass,
		"method_definition":              domain.UnitFunction,
	}
	tsDecls = map[string]domain.UnitKind{
		"function_declaration":       domain.UnitFunction,
		"class_declaration":          domain.UnitClass,
		"abstract_class_declaration": domain.UnitClass,
		"interface_declaration":      domain.UnitClass,
		"enum_declaration":           domain.UnitClass,
		"type_alias_declaration":     domain.UnitClass,
		"module":                     domain.UnitModule,
		"internal_module":            domain.UnitModule,
		"method_definition":          domain.UnitFunction,
	}
	jsWrappers = map[string]bool{"export_statement": true, "export_default_declaration": true}
)

var grammars = map[string]grammar{
	"python": {
		language: python.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_definition": domain.UnitFunction,
			"class_definition":    domain.UnitClass,
		},
		wrappers: map[string]bool{"decorated_definition": true},
	},
	"javascript": {language: javascript.GetLanguage, declaration: jsDecls, wrappers: jsWrappers},
	"jsx":        {language: javascript.GetLanguage, declaration: jsDecls, wrappers: jsWrappers},
	"typescript": {language: typescript.GetLanguage, declaration: tsDecls, wrappers: jsWrappers},
	"tsx":        {language: tsx.GetLanguage, declaration: tsDecls, wrappers: jsWrappers},
	"rust": {
		language: rust.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_item": domain.UnitFunction,
			"struct_item":   domain.UnitClass,
			"enum_item":     domain.UnitClass,
			"impl_item":     domain.UnitClass,
			"trait_item":    domain.UnitClass,
			"mod_item":      domain.UnitModule,
		},
	},
	"java": {
		language: java.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"class_declaration":       domain.UnitClass,
			"interface_declaration":   domain.UnitClass,
			"enum_declaration":        domain.UnitClass,
			"method_declaration":      domain.UnitFunction,
			"constructor_declaration": domain.UnitFunction,
		},
	},
	"c": {
		language: c.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_definition": domain.UnitFunction,
			"struct_specifier":    domain.UnitClass,
			"enum_specifier":      domain.UnitClass,
			"union_specifier":     domain.UnitClass,
		},
	},
	"cpp": {
		language: cpp.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_definition":  domain.UnitFunction,
			"class_specifier":      domain.UnitClass,
			"struct_specifier":     domain.UnitClass,
			"enum_specifier":       domain.UnitClass,
			"namespace_definition": domain.UnitModule,
		},
	},
	"ruby": {
		language: ruby.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"method":           domain.UnitFunction,
			"singleton_method": domain.UnitFunction,
			"class":            domain.UnitClass,
			"module":           domain.UnitModule,
		},
	},
	"php": {
		language: php.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_definition":   domain.UnitFunction,
			"method_declaration":    domain.UnitFunction,
			"class_declaration":     domain.UnitClass,
			"interface_declaration": domain.UnitClass,
			"trait_declaration":     domain.UnitClass,
		},
	},
	"bash": {
		language: bash.GetLanguage,
		declaration: map[string]domain.UnitKind{
			"function_definition": domain.UnitFunction,
		},
	},
}

// maxChildDepth bounds the search for nested declarations inside a unit.
const maxChildDepth = 4

// TreeSitterLanguages lists the languages backed by a tree-sitter grammar.
func TreeSitterLanguages() []string {
	langs := make([]string, 0, len(grammars))
	for lang := range grammars {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// TreeSitterParser parses one language with tree-sitter. Each Parse call
// creates its own sitter.Parser, so one TreeSitterParser may be shared
// between goroutines.
type TreeSitterParser struct {
	lang    string
	grammar grammar
}

// NewTreeSitterParser returns a parser for lang. It panics for languages
// not listed by TreeSitterLanguages.
func NewTreeSitterParser(lang string) *TreeSitterParser {
	g, ok := grammars[lang]
	if !ok {
		panic(fmt.Sprintf("chunker: no tree-sitter grammar for %q", lang))
	}
	return &TreeSitterParser{lang: lang, grammar: g}
}

func (p *TreeSitterParser) Language() string {
	return p.lang
}

// Parse builds the unit tree. Every top-level named node becomes a unit:
// declarations keep their kind, anything else is a block. Comments are not
// units; they fall into the gap before the next unit.
func (p *TreeSitterParser) Parse(ctx context.Context, content []byte) (*SyntaxTree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.grammar.language())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrParse, p.lang, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s: syntax errors in source", domain.ErrParse, p.lang)
	}

	result := &SyntaxTree{Language: p.lang}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if isComment(child.Type()) {
			continue
		}
		result.Units = append(result.Units, p.topLevelUnit(child, content))
	}

	return result, nil
}

func (p *TreeSitterParser) topLevelUnit(node *sitter.Node, content []byte) domain.SyntaxUnit {
	if kind, ok := p.grammar.declaration[node.Type()]; ok {
		return p.declUnit(node, node, kind, content)
	}
	if p.grammar.wrappers[node.Type()] {
		if inner := p.findDeclaration(node, 2); inner != nil {
			return p.declUnit(node, inner, p.grammar.declaration[inner.Type()], content)
		}
	}
	u := nodeUnit(node, domain.UnitBlock)
	u.Children = p.children(node, content, 1)
	return u
}

// declUnit spans outer (which may be a wrapper) and takes its name and
// kind from decl.
func (p *TreeSitterParser) declUnit(outer, decl *sitter.Node, kind domain.UnitKind, content []byte) domain.SyntaxUnit {
	u := nodeUnit(outer, kind)
	u.NodeType = decl.Type()
	u.Name = nodeName(decl, content)
	u.Children = p.children(decl, content, 1)
	return u
}

// children collects declarations nested anywhere below node, skipping
// intermediate bodies and blocks.
func (p *TreeSitterParser) children(node *sitter.Node, content []byte, depth int) []domain.SyntaxUnit {
	if depth > maxChildDepth {
		return nil
	}
	var units []domain.SyntaxUnit
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if kind, ok := p.grammar.declaration[child.Type()]; ok {
			units = append(units, p.declUnit(child, child, kind, content))
			continue
		}
		if p.grammar.wrappers[child.Type()] {
			if inner := p.findDeclaration(child, 2); inner != nil {
				units = append(units, p.declUnit(child, inner, p.grammar.declaration[inner.Type()], content))
				continue
			}
		}
		units = append(units, p.children(child, content, depth+1)...)
	}
	return units
}

// findDeclaration does a shallow search below a wrapper node.
func (p *TreeSitterParser) findDeclaration(node *sitter.Node, depth int) *sitter.Node {
	if depth == 0 {
		return nil
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if _, ok := p.grammar.declaration[child.Type()]; ok {
			return child
		}
		if found := p.findDeclaration(child, depth-1); found != nil {
			return found
		}
	}
	return nil
}

func nodeUnit(node *sitter.Node, kind domain.UnitKind) domain.SyntaxUnit {
	return domain.SyntaxUnit{
		Kind:      kind,
		NodeType:  node.Type(),
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}
}

func nodeName(node *sitter.Node, content []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(content)
	}
	// C and C++ functions keep the name inside the declarator chain.
	if decl := node.ChildByFieldName("declarator"); decl != nil {
		for decl.ChildByFieldName("declarator") != nil {
			decl = decl.ChildByFieldName("declarator")
		}
		return decl.Content(content)
	}
	return ""
}

func isComment(nodeType string) bool {
	return strings.HasSuffix(nodeType, "comment")
}
