// Package parse extracts declarations, imports, and call sites from source
// files using tree-sitter.
package parse

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

// ErrSyntax is returned when the source does not parse cleanly.
var ErrSyntax = errors.New("syntax error")

// ImportKind distinguishes declarative imports from call-style requires.
type ImportKind string

const (
	KindImport  ImportKind = "import"
	KindRequire ImportKind = "require"
)

// Import is a module reference found in a file.
type Import struct {
	Specifier string
	Kind      ImportKind
	// RootRelative marks specifiers anchored at the project root rather than
	// the importing file (Python dotted imports).
	RootRelative bool
	Line         int
}

// Call is a call site whose callee is a plain identifier.
type Call struct {
	Callee string
	// Caller is the nearest named enclosing function, or "Class.method" when
	// Method is set. Empty for calls outside any named function.
	Caller string
	Method bool
	Line   int
}

// Result holds everything extracted from one file.
type Result struct {
	Functions []model.FunctionEntry
	Classes   []model.ClassEntry
	Imports   []Import
	Calls     []Call
}

type extractor interface {
	declarations(root *sitter.Node, res *Result)
	references(root *sitter.Node, res *Result)
}

// Extract parses source and extracts its top-level declarations, imports, and
// call sites. The parser must be created for l. path is recorded as the
// FilePath of every declaration and should be the root-relative path.
func Extract(ctx context.Context, l *lang.Language, parser *sitter.Parser, source []byte, path string) (*Result, error) {
	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%s:%d: %w", path, firstErrorLine(root), ErrSyntax)
	}

	var ex extractor
	switch l.Family {
	case lang.Python:
		ex = &pythonExtractor{source: source, path: path}
	default:
		ex = &ecmaExtractor{source: source, path: path}
	}

	res := &Result{}
	ex.declarations(root, res)
	ex.references(root, res)
	return res, nil
}

// Parsers holds one parser per language. It is not safe for concurrent use;
// each goroutine keeps its own.
type Parsers struct {
	byLang map[string]*sitter.Parser
}

// Extract parses source with the cached parser for l.
func (p *Parsers) Extract(ctx context.Context, l *lang.Language, source []byte, path string) (*Result, error) {
	if p.byLang == nil {
		p.byLang = make(map[string]*sitter.Parser)
	}
	parser, ok := p.byLang[l.Name]
	if !ok {
		parser = l.NewParser()
		p.byLang[l.Name] = parser
	}
	return Extract(ctx, l, parser, source, path)
}

// Close releases every cached parser.
func (p *Parsers) Close() {
	for name, parser := range p.byLang {
		parser.Close()
		delete(p.byLang, name)
	}
}

// scope is an entry of the named-function stack maintained while walking.
type scope struct {
	name   string
	method bool
}

func top(stack []scope) (scope, bool) {
	if len(stack) == 0 {
		return scope{}, false
	}
	return stack[len(stack)-1], true
}

func push(stack []scope, s scope) []scope {
	// Copy so sibling subtrees never observe each other's scopes.
	out := make([]scope, len(stack), len(stack)+1)
	copy(out, stack)
	return append(out, s)
}

func callAt(node *sitter.Node, callee string, stack []scope) Call {
	c := Call{Callee: callee, Line: line(node)}
	if s, ok := top(stack); ok {
		c.Caller = s.name
		c.Method = s.method
	}
	return c
}

func location(node *sitter.Node) model.Location {
	return model.Location{
		Start: int(node.StartPoint().Row) + 1,
		End:   int(node.EndPoint().Row) + 1,
	}
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func firstErrorLine(root *sitter.Node) int {
	if n := findError(root); n != nil {
		return line(n)
	}
	return line(root)
}

func findError(node *sitter.Node) *sitter.Node {
	if node.Type() == "ERROR" || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil || !child.HasError() {
			continue
		}
		if n := findError(child); n != nil {
			return n
		}
	}
	return nil
}

func nameOr(node *sitter.Node, source []byte) string {
	if node == nil {
		return model.AnonymousName
	}
	if name := lang.NodeText(node, source); name != "" {
		return name
	}
	return model.AnonymousName
}
