package parse

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/codemap/internal/lang"
	"github.com/phobologic/codemap/internal/model"
)

var ecmaFunctionExprs = map[string]struct{}{
	"arrow_function":                {},
	"function":                      {},
	"function_expression":           {},
	"generator_function":            {},
	"generator_function_expression": {},
}

var ecmaClassDecls = map[string]struct{}{
	"class_declaration":          {},
	"abstract_class_declaration": {},
	"class":                      {},
}

// ecmaExtractor handles JavaScript, JSX, TypeScript, and TSX trees.
type ecmaExtractor struct {
	source []byte
	path   string
}

func (e *ecmaExtractor) declarations(root *sitter.Node, res *Result) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		e.declaration(root.NamedChild(i), res)
	}
}

func (e *ecmaExtractor) declaration(node *sitter.Node, res *Result) {
	if node == nil {
		return
	}
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		res.Functions = append(res.Functions, e.function(node, node.ChildByFieldName("name"), node))

	case "class_declaration", "abstract_class_declaration":
		res.Classes = append(res.Classes, e.class(node))

	case "lexical_declaration", "variable_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			decl := node.NamedChild(i)
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := decl.ChildByFieldName("name")
			value := decl.ChildByFieldName("value")
			if name == nil || name.Type() != "identifier" || !isFunctionExpr(value) {
				continue
			}
			fn := e.function(value, name, node)
			res.Functions = append(res.Functions, fn)
		}

	case "export_statement":
		if decl := node.ChildByFieldName("declaration"); decl != nil {
			e.declaration(decl, res)
			return
		}
		// export default function () {} / export default class {}
		value := node.ChildByFieldName("value")
		switch {
		case isFunctionExpr(value):
			res.Functions = append(res.Functions, e.function(value, value.ChildByFieldName("name"), value))
		case value != nil && isClass(value):
			res.Classes = append(res.Classes, e.class(value))
		}
	}
}

// function builds an entry for fn, named by nameNode and spanning span.
func (e *ecmaExtractor) function(fn, nameNode, span *sitter.Node) model.FunctionEntry {
	return model.FunctionEntry{
		Name:     nameOr(nameNode, e.source),
		Params:   e.functionParams(fn),
		Location: location(span),
		Code:     lang.NodeText(span, e.source),
		FilePath: e.path,
	}
}

func (e *ecmaExtractor) class(node *sitter.Node) model.ClassEntry {
	cls := model.ClassEntry{
		Name:     nameOr(node.ChildByFieldName("name"), e.source),
		Location: location(node),
		Code:     lang.NodeText(node, e.source),
		FilePath: e.path,
	}
	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		member := body.NamedChild(i)
		name, fn := e.classMember(member)
		if fn == nil {
			continue
		}
		cls.Methods = append(cls.Methods, model.MethodEntry{
			Name:     name,
			Params:   e.functionParams(fn),
			Location: location(member),
		})
	}
	return cls
}

// classMember returns the name and function node of a method-like class
// member: a method definition, or a field initialized with a function.
func (e *ecmaExtractor) classMember(member *sitter.Node) (string, *sitter.Node) {
	switch member.Type() {
	case "method_definition":
		return nameOr(member.ChildByFieldName("name"), e.source), member
	case "field_definition":
		if value := member.ChildByFieldName("value"); isFunctionExpr(value) {
			return nameOr(member.ChildByFieldName("property"), e.source), value
		}
	case "public_field_definition":
		if value := member.ChildByFieldName("value"); isFunctionExpr(value) {
			return nameOr(member.ChildByFieldName("name"), e.source), value
		}
	}
	return "", nil
}

func (e *ecmaExtractor) functionParams(fn *sitter.Node) []string {
	if p := fn.ChildByFieldName("parameters"); p != nil {
		return e.params(p)
	}
	// Single unparenthesized arrow parameter: x => x
	if p := fn.ChildByFieldName("parameter"); p != nil {
		if name := e.paramName(p); name != "" {
			return []string{name}
		}
	}
	return nil
}

func (e *ecmaExtractor) params(list *sitter.Node) []string {
	var names []string
	for i := 0; i < int(list.NamedChildCount()); i++ {
		if name := e.paramName(list.NamedChild(i)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (e *ecmaExtractor) paramName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	switch node.Type() {
	case "comment", "decorator":
		return ""
	case "identifier", "shorthand_property_identifier_pattern", "this":
		return lang.NodeText(node, e.source)
	case "assignment_pattern":
		return e.paramName(node.ChildByFieldName("left"))
	case "required_parameter", "optional_parameter":
		return e.paramName(node.ChildByFieldName("pattern"))
	case "rest_pattern":
		if node.NamedChildCount() > 0 {
			return e.paramName(node.NamedChild(0))
		}
	}
	return lang.CollapseWhitespace(lang.NodeText(node, e.source))
}

func (e *ecmaExtractor) references(root *sitter.Node, res *Result) {
	e.walk(root, nil, "", res)
}

// walk visits node keeping a stack of named enclosing functions. class is
// the name of the class whose body is being visited, if any.
func (e *ecmaExtractor) walk(node *sitter.Node, stack []scope, class string, res *Result) {
	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		if name := node.ChildByFieldName("name"); name != nil {
			stack = push(stack, scope{name: lang.NodeText(name, e.source)})
		}

	case "class_declaration", "abstract_class_declaration", "class":
		class = nameOr(node.ChildByFieldName("name"), e.source)
		e.walkChildren(node, stack, class, res)
		return

	case "method_definition", "field_definition", "public_field_definition":
		parent := node.Parent()
		if parent != nil && parent.Type() == "class_body" {
			if name, fn := e.classMember(node); fn != nil {
				stack = push(stack, scope{name: class + "." + name, method: true})
			}
		}

	case "variable_declarator":
		name := node.ChildByFieldName("name")
		value := node.ChildByFieldName("value")
		if name != nil && name.Type() == "identifier" && isFunctionExpr(value) {
			e.walk(value, push(stack, scope{name: lang.NodeText(name, e.source)}), "", res)
			return
		}

	case "import_statement":
		if src := node.ChildByFieldName("source"); src != nil {
			e.addImport(res, src, KindImport)
			return
		}
		// TypeScript: import fs = require('fs')
		for i := 0; i < int(node.NamedChildCount()); i++ {
			clause := node.NamedChild(i)
			if clause.Type() != "import_require_clause" {
				continue
			}
			if src := firstString(clause); src != nil {
				e.addImport(res, src, KindRequire)
			}
		}
		return

	case "export_statement":
		// Re-export: export { x } from './y'
		if src := node.ChildByFieldName("source"); src != nil {
			e.addImport(res, src, KindImport)
		}

	case "call_expression":
		e.call(node, stack, res)
	}

	if node.Type() != "class_body" {
		class = ""
	}
	e.walkChildren(node, stack, class, res)
}

func (e *ecmaExtractor) walkChildren(node *sitter.Node, stack []scope, class string, res *Result) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child != nil {
			e.walk(child, stack, class, res)
		}
	}
}

func (e *ecmaExtractor) call(node *sitter.Node, stack []scope, res *Result) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "import":
		// Dynamic import('./x')
		if arg := firstStringArg(node); arg != nil {
			e.addImport(res, arg, KindImport)
		}
	case "identifier":
		name := lang.NodeText(fn, e.source)
		if name == "require" {
			if arg := firstStringArg(node); arg != nil {
				e.addImport(res, arg, KindRequire)
			}
			return
		}
		res.Calls = append(res.Calls, callAt(node, name, stack))
	}
}

func (e *ecmaExtractor) addImport(res *Result, str *sitter.Node, kind ImportKind) {
	spec := stringContent(str, e.source)
	if spec == "" {
		return
	}
	res.Imports = append(res.Imports, Import{Specifier: spec, Kind: kind, Line: line(str)})
}

func firstStringArg(call *sitter.Node) *sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	return firstString(args)
}

func firstString(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if child := node.NamedChild(i); child.Type() == "string" {
			return child
		}
	}
	return nil
}

// stringContent returns a string literal's content without quotes.
func stringContent(node *sitter.Node, source []byte) string {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "string_fragment" {
			return lang.NodeText(child, source)
		}
	}
	text := lang.NodeText(node, source)
	if len(text) >= 2 {
		return text[1 : len(text)-1]
	}
	return ""
}

func isFunctionExpr(node *sitter.Node) bool {
	if node == nil {
		return false
	}
	_, ok := ecmaFunctionExprs[node.Type()]
	return ok
}

func isClass(node *sitter.Node) bool {
	_, ok := ecmaClassDecls[node.Type()]
	return ok
}
