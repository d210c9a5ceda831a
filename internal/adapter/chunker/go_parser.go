package chunker

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	"rlm/internal/domain"
)

// GoParser parses Go source code into SyntaxUnits.
type GoParser struct{}

// NewGoParser creates a new Go parser.
func NewGoParser() *GoParser {
	return &GoParser{}
}

// Language returns the language this parser handles.
func (p *GoParser) Language() string {
	return "go"
}

// Parse parses Go source code and returns its top-level declarations as
// units. Doc comments belong to the declaration they document.
func (p *GoParser) Parse(ctx context.Context, content []byte) (*SyntaxTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: go: %v", domain.ErrParse, err)
	}

	tree := &SyntaxTree{Language: p.Language()}
	tree.Units = append(tree.Units, p.unit(fset, domain.UnitModule, "package "+f.Name.Name, "package_clause", docStart(f.Doc, f.Package), f.Name.End(), nil))

	for _, decl := range f.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			tree.Units = append(tree.Units, p.unit(fset, domain.UnitFunction, funcName(d), "function_declaration", docStart(d.Doc, d.Pos()), d.End(), nil))

		case *ast.GenDecl:
			tree.Units = append(tree.Units, p.extractGenDecl(fset, d))
		}
	}

	return tree, nil
}

// extractGenDecl turns a type, const, var, or import declaration into a
// unit. Grouped type declarations keep one child per spec.
func (p *GoParser) extractGenDecl(fset *token.FileSet, decl *ast.GenDecl) domain.SyntaxUnit {
	start := docStart(decl.Doc, decl.Pos())

	switch decl.Tok {
	case token.TYPE:
		var children []domain.SyntaxUnit
		var names []string
		for _, spec := range decl.Specs {
			ts := spec.(*ast.TypeSpec)
			names = append(names, ts.Name.Name)
			children = append(children, p.unit(fset, domain.UnitClass, ts.Name.Name, typeNodeType(ts), docStart(ts.Doc, ts.Pos()), ts.End(), nil))
		}
		if decl.Lparen == 0 && len(children) == 1 {
			u := children[0]
			u.StartByte = offset(fset, start)
			u.StartLine = fset.Position(start).Line
			u.EndByte = offset(fset, decl.End())
			u.EndLine = fset.Position(decl.End()).Line
			return u
		}
		return p.unit(fset, domain.UnitClass, strings.Join(names, ", "), "type_declaration", start, decl.End(), children)

	case token.IMPORT:
		return p.unit(fset, domain.UnitModule, "imports", "import_declaration", start, decl.End(), nil)

	default:
		var names []string
		for _, spec := range decl.Specs {
			if vs, ok := spec.(*ast.ValueSpec); ok {
				for _, name := range vs.Names {
					names = append(names, name.Name)
				}
			}
		}
		return p.unit(fset, domain.UnitBlock, strings.Join(names, ", "), strings.ToLower(decl.Tok.String())+"_declaration", start, decl.End(), nil)
	}
}

func (p *GoParser) unit(fset *token.FileSet, kind domain.UnitKind, name, nodeType string, start, end token.Pos, children []domain.SyntaxUnit) domain.SyntaxUnit {
	return domain.SyntaxUnit{
		Kind:      kind,
		Name:      name,
		NodeType:  nodeType,
		StartByte: offset(fset, start),
		EndByte:   offset(fset, end),
		StartLine: fset.Position(start).Line,
		EndLine:   fset.Position(end).Line,
		Children:  children,
	}
}

// funcName renders methods as Recv.Name.
func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	recv := formatExpr(fn.Recv.List[0].Type)
	recv = strings.TrimPrefix(recv, "*")
	if i := strings.Index(recv, "["); i > 0 {
		recv = recv[:i]
	}
	return recv + "." + fn.Name.Name
}

func typeNodeType(ts *ast.TypeSpec) string {
	switch ts.Type.(type) {
	case *ast.StructType:
		return "struct_type"
	case *ast.InterfaceType:
		return "interface_type"
	default:
		return "type_spec"
	}
}

// formatExpr formats an expression to string.
func formatExpr(expr ast.Expr) string {
	var buf bytes.Buffer
	format.Node(&buf, token.NewFileSet(), expr)
	return buf.String()
}

func docStart(doc *ast.CommentGroup, pos token.Pos) token.Pos {
	if doc != nil && doc.Pos() < pos {
		return doc.Pos()
	}
	return pos
}

func offset(fset *token.FileSet, pos token.Pos) int {
	return fset.Position(pos).Offset
}
