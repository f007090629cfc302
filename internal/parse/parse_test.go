package parse

import (
	"context"
	"errors"
	"testing"

	"github.com/phobologic/codemap/internal/lang"
)

func setup(t *testing.T, langName string) func(source string) (*Result, error) {
	t.Helper()
	l := lang.Languages[langName]
	if l == nil {
		t.Fatalf("language %q not registered", langName)
	}
	ext := l.Extensions[0]
	return func(source string) (*Result, error) {
		p := l.NewParser()
		defer p.Close()
		return Extract(context.Background(), l, p, []byte(source), "test"+ext)
	}
}

func mustExtract(t *testing.T, langName, source string) *Result {
	t.Helper()
	res, err := setup(t, langName)(source)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return res
}

func hasImport(res *Result, spec string, kind ImportKind) bool {
	for _, imp := range res.Imports {
		if imp.Specifier == spec && imp.Kind == kind {
			return true
		}
	}
	return false
}

func hasCall(res *Result, caller, callee string) bool {
	for _, c := range res.Calls {
		if c.Caller == caller && c.Callee == callee {
			return true
		}
	}
	return false
}

// --- JavaScript ---

func TestJSFunctionDeclaration(t *testing.T) {
	t.Parallel()

	src := "function hello(name, greeting = 'hi', ...rest) {\n  return name;\n}\n"
	res := mustExtract(t, "javascript", src)

	if len(res.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(res.Functions))
	}
	fn := res.Functions[0]
	if fn.Name != "hello" {
		t.Errorf("name = %q, want hello", fn.Name)
	}
	want := []string{"name", "greeting", "rest"}
	if len(fn.Params) != len(want) {
		t.Fatalf("params = %v, want %v", fn.Params, want)
	}
	for i := range want {
		if fn.Params[i] != want[i] {
			t.Errorf("param %d = %q, want %q", i, fn.Params[i], want[i])
		}
	}
	if fn.Location.Start != 1 || fn.Location.End != 3 {
		t.Errorf("location = %+v, want 1-3", fn.Location)
	}
	if fn.Code != src[:len(src)-1] {
		t.Errorf("code = %q", fn.Code)
	}
	if fn.FilePath != "test.js" {
		t.Errorf("filePath = %q", fn.FilePath)
	}
}

func TestJSVariableBoundFunctions(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", `
const add = (a, b) => a + b;
let square = x => x * x;
var legacy = function (v) { return v; };
const notAFunction = 42;
`)
	names := map[string][]string{}
	for _, fn := range res.Functions {
		names[fn.Name] = fn.Params
	}
	if len(names) != 3 {
		t.Fatalf("functions = %v, want add, square, legacy", names)
	}
	if p := names["square"]; len(p) != 1 || p[0] != "x" {
		t.Errorf("square params = %v, want [x]", p)
	}
	if _, ok := names["notAFunction"]; ok {
		t.Error("non-function binding indexed")
	}
}

func TestJSNestedFunctionsNotIndexed(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", "function outer() {\n  function inner() {}\n  inner();\n}\n")
	if len(res.Functions) != 1 || res.Functions[0].Name != "outer" {
		t.Fatalf("functions = %+v, want only outer", res.Functions)
	}
	if !hasCall(res, "inner", "inner") && !hasCall(res, "outer", "inner") {
		t.Errorf("call to inner not recorded: %+v", res.Calls)
	}
}

func TestJSClassWithMethods(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", `class UserService extends Base {
  constructor(db) { super(); this.db = db; }
  login(user, password) { return check(user); }
  logout = () => {};
  count = 0;
}
`)
	if len(res.Classes) != 1 {
		t.Fatalf("expected 1 class, got %d", len(res.Classes))
	}
	cls := res.Classes[0]
	if cls.Name != "UserService" {
		t.Errorf("name = %q", cls.Name)
	}
	if cls.Location.Start != 1 || cls.Location.End != 6 {
		t.Errorf("location = %+v", cls.Location)
	}
	var methods []string
	for _, m := range cls.Methods {
		methods = append(methods, m.Name)
	}
	want := []string{"constructor", "login", "logout"}
	if len(methods) != len(want) {
		t.Fatalf("methods = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Errorf("method %d = %q, want %q", i, methods[i], want[i])
		}
	}
	if p := cls.Methods[1].Params; len(p) != 2 || p[0] != "user" || p[1] != "password" {
		t.Errorf("login params = %v", p)
	}
	if !hasCall(res, "UserService.login", "check") {
		t.Errorf("method call not attributed: %+v", res.Calls)
	}
	for _, c := range res.Calls {
		if c.Caller == "UserService.login" && !c.Method {
			t.Error("method caller not flagged")
		}
	}
}

func TestJSExports(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", `
export function named() {}
export const arrow = () => {};
export default function () {}
export class Widget {}
`)
	got := map[string]bool{}
	for _, fn := range res.Functions {
		got[fn.Name] = true
	}
	for _, name := range []string{"named", "arrow", "anonymous"} {
		if !got[name] {
			t.Errorf("missing function %q in %v", name, got)
		}
	}
	if len(res.Classes) != 1 || res.Classes[0].Name != "Widget" {
		t.Errorf("classes = %+v", res.Classes)
	}
}

func TestJSImports(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", `
import React from 'react';
import { helper } from "./util";
const { bar } = require('./b');
export { thing } from './things';
async function load() { return import('./lazy'); }
`)
	cases := []struct {
		spec string
		kind ImportKind
	}{
		{"react", KindImport},
		{"./util", KindImport},
		{"./b", KindRequire},
		{"./things", KindImport},
		{"./lazy", KindImport},
	}
	for _, c := range cases {
		if !hasImport(res, c.spec, c.kind) {
			t.Errorf("missing %s %q in %+v", c.kind, c.spec, res.Imports)
		}
	}
	for _, call := range res.Calls {
		if call.Callee == "require" {
			t.Error("require recorded as a call")
		}
	}
}

func TestJSCallAttribution(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", `
function foo() { bar(); }
const viaArrow = () => { baz(); };
setup();
[1, 2].forEach(function () { qux(); });
obj.method();
`)
	if !hasCall(res, "foo", "bar") {
		t.Error("foo -> bar missing")
	}
	if !hasCall(res, "viaArrow", "baz") {
		t.Error("viaArrow -> baz missing")
	}
	if !hasCall(res, "", "setup") {
		t.Error("top-level call should have empty caller")
	}
	if !hasCall(res, "", "qux") {
		t.Error("call in anonymous callback should have empty caller")
	}
	for _, c := range res.Calls {
		if c.Callee == "method" {
			t.Error("member call recorded")
		}
	}
}

func TestJSXParses(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", "function App() {\n  return <div className=\"x\">{render()}</div>;\n}\n")
	if len(res.Functions) != 1 || res.Functions[0].Name != "App" {
		t.Fatalf("functions = %+v", res.Functions)
	}
	if !hasCall(res, "App", "render") {
		t.Error("App -> render missing")
	}
}

func TestSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := setup(t, "javascript")("function broken( {\n")
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
}

func TestEmptySource(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "javascript", "")
	if len(res.Functions) != 0 || len(res.Classes) != 0 || len(res.Imports) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

// --- TypeScript ---

func TestTypeScriptDeclarations(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "typescript", `
import { Db } from './db';
import fs = require('fs');

export function connect(url: string, retries?: number): Db {
  return open(url);
}

export abstract class Repo<T> {
  constructor(private readonly db: Db) {}
  find(id: string): T | undefined { return undefined; }
}
`)
	if len(res.Functions) != 1 || res.Functions[0].Name != "connect" {
		t.Fatalf("functions = %+v", res.Functions)
	}
	if p := res.Functions[0].Params; len(p) != 2 || p[0] != "url" || p[1] != "retries" {
		t.Errorf("params = %v", p)
	}
	if len(res.Classes) != 1 || res.Classes[0].Name != "Repo" {
		t.Fatalf("classes = %+v", res.Classes)
	}
	if len(res.Classes[0].Methods) != 2 {
		t.Errorf("methods = %+v", res.Classes[0].Methods)
	}
	if !hasImport(res, "./db", KindImport) {
		t.Errorf("missing ./db import: %+v", res.Imports)
	}
	if !hasImport(res, "fs", KindRequire) {
		t.Errorf("missing fs require: %+v", res.Imports)
	}
	if !hasCall(res, "connect", "open") {
		t.Error("connect -> open missing")
	}
}

func TestTSX(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "tsx", "export const Button = (props: Props) => <button>{props.label}</button>;\n")
	if len(res.Functions) != 1 || res.Functions[0].Name != "Button" {
		t.Fatalf("functions = %+v", res.Functions)
	}
}

// --- Python ---

func TestPythonDeclarations(t *testing.T) {
	t.Parallel()

	res := mustExtract(t, "python", `import os
from .models import User
from ..core.auth import check
from . import helpers

def login_user(name: str, password, retries=3, *args, **kwargs):
    return check(name)

@dataclass
class Session(Base):
    def __init__(self, user):
        self.user = user

    @property
    def active(self):
        return validate(self)
`)
	if len(res.Functions) != 1 {
		t.Fatalf("functions = %+v", res.Functions)
	}
	fn := res.Functions[0]
	want := []string{"name", "password", "retries", "args", "kwargs"}
	if len(fn.Params) != len(want) {
		t.Fatalf("params = %v, want %v", fn.Params, want)
	}
	for i := range want {
		if fn.Params[i] != want[i] {
			t.Errorf("param %d = %q, want %q", i, fn.Params[i], want[i])
		}
	}

	if len(res.Classes) != 1 || res.Classes[0].Name != "Session" {
		t.Fatalf("classes = %+v", res.Classes)
	}
	if m := res.Classes[0].Methods; len(m) != 2 || m[0].Name != "__init__" || m[1].Name != "active" {
		t.Errorf("methods = %+v", m)
	}

	imports := []struct {
		spec string
		root bool
	}{
		{"os", true},
		{"./models", false},
		{"../core/auth", false},
		{"./helpers", false},
	}
	for _, want := range imports {
		found := false
		for _, imp := range res.Imports {
			if imp.Specifier == want.spec && imp.RootRelative == want.root {
				found = true
			}
		}
		if !found {
			t.Errorf("missing import %q (rootRelative=%v) in %+v", want.spec, want.root, res.Imports)
		}
	}

	if !hasCall(res, "login_user", "check") {
		t.Error("login_user -> check missing")
	}
	if !hasCall(res, "Session.active", "validate") {
		t.Errorf("Session.active -> validate missing: %+v", res.Calls)
	}
}

func TestParsersReuse(t *testing.T) {
	t.Parallel()

	var p Parsers
	defer p.Close()

	js := lang.Languages["javascript"]
	py := lang.Languages["python"]
	for i := 0; i < 3; i++ {
		res, err := p.Extract(context.Background(), js, []byte("function f() {}"), "a.js")
		if err != nil || len(res.Functions) != 1 {
			t.Fatalf("js extract %d: %v %+v", i, err, res)
		}
		res, err = p.Extract(context.Background(), py, []byte("def g():\n    pass\n"), "b.py")
		if err != nil || len(res.Functions) != 1 {
			t.Fatalf("py extract %d: %v %+v", i, err, res)
		}
	}
	if len(p.byLang) != 2 {
		t.Errorf("cached parsers = %d, want 2", len(p.byLang))
	}
}
