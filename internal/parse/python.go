package parse

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

type pythonExtractor struct {
	source []byte
	path   string
}

func (p *pythonExtractor) declarations(root *sitter.Node, res *Result) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		node := unwrapDecorated(root.NamedChild(i))
		switch node.Type() {
		case "function_definition":
			res.Functions = append(res.Functions, model.FunctionEntry{
				Name:     nameOr(node.ChildByFieldName("name"), p.source),
				Params:   p.params(node.ChildByFieldName("parameters")),
				Location: location(node),
				Code:     lang.NodeText(node, p.source),
				FilePath: p.path,
			})
		case "class_definition":
			res.Classes = append(res.Classes, p.class(node))
		}
	}
}

func (p *pythonExtractor) class(node *sitter.Node) model.ClassEntry {
	cls := model.ClassEntry{
		Name:     nameOr(node.ChildByFieldName("name"), p.source),
		Location: location(node),
		Code:     lang.NodeText(node, p.source),
		FilePath: p.path,
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := unwrapDecorated(body.NamedChild(i))
		if member.Type() != "function_definition" {
			continue
		}
		cls.Methods = append(cls.Methods, model.MethodEntry{
			Name:     nameOr(member.ChildByFieldName("name"), p.source),
			Params:   p.params(member.ChildByFieldName("parameters")),
			Location: location(member),
		})
	}
	return cls
}

func (p *pythonExtractor) params(list *sitter.Node) []string {
	if list == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		param := list.NamedChild(i)
		var name string
		switch param.Type() {
		case "identifier":
			name = lang.NodeText(param, p.source)
		case "default_parameter", "typed_default_parameter":
			if n := param.ChildByFieldName("name"); n != nil {
				name = lang.NodeText(n, p.source)
			}
		case "typed_parameter", "list_splat_pattern", "dictionary_splat_pattern":
			if param.NamedChildCount() > 0 {
				name = lang.NodeText(param.NamedChild(0), p.source)
			}
		}
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (p *pythonExtractor) references(root *sitter.Node, res *Result) {
	p.walk(root, nil, "", res)
}

func (p *pythonExtractor) walk(node *sitter.Node, stack []scope, class string, res *Result) {
	switch node.Type() {
	case "class_definition":
		class = nameOr(node.ChildByFieldName("name"), p.source)
		if body := node.ChildByFieldName("body"); body != nil {
			p.walkChildren(body, stack, class, res)
		}
		return

	case "function_definition":
		name := nameOr(node.ChildByFieldName("name"), p.source)
		if class != "" {
			stack = push(stack, scope{name: class + "." + name, method: true})
		} else {
			stack = push(stack, scope{name: name})
		}
		class = ""

	case "import_statement":
		p.imports(node, res)
		return

	case "import_from_statement":
		p.fromImport(node, res)
		return

	case "call":
		if fn := node.ChildByFieldName("function"); fn != nil && fn.Type() == "identifier" {
			res.Calls = append(res.Calls, callAt(node, lang.NodeText(fn, p.source), stack))
		}
	}

	if node.Type() != "decorated_definition" {
		class = ""
	}
	p.walkChildren(node, stack, class, res)
}

func (p *pythonExtractor) walkChildren(node *sitter.Node, stack []scope, class string, res *Result) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil {
			p.walk(child, stack, class, res)
		}
	}
}

// imports handles `import a.b` and `import a.b as c`.
func (p *pythonExtractor) imports(node *sitter.Node, res *Result) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "aliased_import" {
			child = child.ChildByFieldName("name")
		}
		if child == nil || child.Type() != "dotted_name" {
			continue
		}
		res.Imports = append(res.Imports, Import{
			Specifier:    dottedPath(lang.NodeText(child, p.source)),
			Kind:         KindImport,
			RootRelative: true,
			Line:         line(child),
		})
	}
}

// fromImport handles `from x import y`. Relative modules become "./" or
// "../" specifiers; `from . import y` names sibling modules.
func (p *pythonExtractor) fromImport(node *sitter.Node, res *Result) {
	module := node.ChildByFieldName("module_name")
	if module == nil {
		return
	}
	if module.Type() == "dotted_name" {
		res.Imports = append(res.Imports, Import{
			Specifier:    dottedPath(lang.NodeText(module, p.source)),
			Kind:         KindImport,
			RootRelative: true,
			Line:         line(module),
		})
		return
	}

	// relative_import: import_prefix followed by an optional dotted_name.
	var dots int
	var rest string
	for i := 0; i < int(module.NamedChildCount()); i++ {
		child := module.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			dots = strings.Count(lang.NodeText(child, p.source), ".")
		case "dotted_name":
			rest = dottedPath(lang.NodeText(child, p.source))
		}
	}
	prefix := relativePrefix(dots)

	if rest != "" {
		res.Imports = append(res.Imports, Import{Specifier: prefix + rest, Kind: KindImport, Line: line(module)})
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "name" {
			continue
		}
		name := node.Child(i)
		if name.Type() == "aliased_import" {
			name = name.ChildByFieldName("name")
		}
		if name == nil {
			continue
		}
		res.Imports = append(res.Imports, Import{
			Specifier: prefix + dottedPath(lang.NodeText(name, p.source)),
			Kind:      KindImport,
			Line:      line(name),
		})
	}
}

func relativePrefix(dots int) string {
	if dots <= 1 {
		return "./"
	}
	return strings.Repeat("../", dots-1)
}

func dottedPath(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}

func unwrapDecorated(node *sitter.Node) *sitter.Node {
	if node.Type() == "decorated_definition" {
		if def := node.ChildByFieldName("definition"); def != nil {
			return def
		}
	}
	return node
}
