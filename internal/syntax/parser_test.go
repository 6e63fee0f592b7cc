package syntax

import (
	"strings"
	"testing"
)

func parseOk(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(src, "test.rsc")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return f
}

func TestParseModuleHeader(t *testing.T) {
	f := parseOk(t, "module a::b::M\n")
	if got := f.Header.Name.String(); got != "a::b::M" {
		t.Errorf("expected module name 'a::b::M', got %q", got)
	}
	if got := f.Header.Name.Last().Name; got != "M" {
		t.Errorf("expected last segment 'M', got %q", got)
	}
}

func TestParseVarAndFunc(t *testing.T) {
	f := parseOk(t, `module M
int a = 1;
int f(int a) {
  return a;
}
`)
	if len(f.Decls) != 2 {
		t.Fatalf("expected 2 declarations, got %d", len(f.Decls))
	}
	v, ok := f.Decls[0].(*VarDecl)
	if !ok {
		t.Fatalf("expected VarDecl, got %T", f.Decls[0])
	}
	if v.Name.Name != "a" {
		t.Errorf("expected var 'a', got %q", v.Name.Name)
	}

	fn, ok := f.Decls[1].(*FuncDecl)
	if !ok {
		t.Fatalf("expected FuncDecl, got %T", f.Decls[1])
	}
	if fn.Name.Name != "f" {
		t.Errorf("expected func 'f', got %q", fn.Name.Name)
	}
	if len(fn.Formals) != 1 || fn.Formals[0].Name.Name != "a" {
		t.Errorf("expected one formal 'a', got %v", fn.Formals)
	}
	if fn.Body == nil || len(fn.Body.Stmts) != 1 {
		t.Fatalf("expected one body statement")
	}
}

func TestParseDataDecl(t *testing.T) {
	f := parseOk(t, `module M
data D(int common = 1) = d(int foo, int baz = 0) | e(str s);
`)
	d, ok := f.Decls[0].(*DataDecl)
	if !ok {
		t.Fatalf("expected DataDecl, got %T", f.Decls[0])
	}
	if d.Name.Name != "D" {
		t.Errorf("expected data 'D', got %q", d.Name.Name)
	}
	if len(d.CommonKw) != 1 || d.CommonKw[0].Name.Name != "common" {
		t.Errorf("expected common keyword field 'common'")
	}
	if len(d.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(d.Variants))
	}
	first := d.Variants[0]
	if first.Name.Name != "d" || len(first.Fields) != 2 {
		t.Fatalf("expected variant d with 2 fields")
	}
	if first.Fields[0].Default != nil {
		t.Errorf("expected 'foo' to be positional")
	}
	if first.Fields[1].Default == nil {
		t.Errorf("expected 'baz' to be a keyword field")
	}
}

func TestParseDataWithTypeParams(t *testing.T) {
	f := parseOk(t, `module M
data Box[&T] = box(&T content);
`)
	d := f.Decls[0].(*DataDecl)
	if len(d.TypeParams) != 1 || d.TypeParams[0].Name != "T" {
		t.Fatalf("expected type parameter &T")
	}
}

func TestParseAliasAndSyntax(t *testing.T) {
	f := parseOk(t, `module M
alias Pairs = rel[int from, int to];
syntax Exp = add: Exp "+" Exp | lit: Num ! add;
`)
	a, ok := f.Decls[0].(*AliasDecl)
	if !ok || a.Name.Name != "Pairs" {
		t.Fatalf("expected alias 'Pairs'")
	}
	rel, ok := a.Aliased.(*RelType)
	if !ok || len(rel.Fields) != 2 {
		t.Fatalf("expected rel type with 2 fields")
	}
	if rel.Fields[0].Label.Name != "from" {
		t.Errorf("expected label 'from', got %q", rel.Fields[0].Label.Name)
	}

	s, ok := f.Decls[1].(*SyntaxDecl)
	if !ok || s.Name.Name != "Exp" {
		t.Fatalf("expected syntax 'Exp'")
	}
	if len(s.Prods) != 2 {
		t.Fatalf("expected 2 productions, got %d", len(s.Prods))
	}
	if s.Prods[0].Label.Name != "add" {
		t.Errorf("expected label 'add'")
	}
	if len(s.Prods[1].Excepts) != 1 || s.Prods[1].Excepts[0].Name != "add" {
		t.Errorf("expected except clause '! add'")
	}
}

func TestParseQualifiedAndKeywordArgs(t *testing.T) {
	f := parseOk(t, `module Main
import a::M;
int g() = a::M::f(1, depth=2);
`)
	fn := f.Decls[1].(*FuncDecl)
	call, ok := fn.ExprBody.(*Call)
	if !ok {
		t.Fatalf("expected call body, got %T", fn.ExprBody)
	}
	if call.Fun.String() != "a::M::f" {
		t.Errorf("expected callee 'a::M::f', got %q", call.Fun.String())
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 arguments")
	}
	if call.Args[0].Name != nil {
		t.Errorf("expected first argument positional")
	}
	if call.Args[1].Name == nil || call.Args[1].Name.Name != "depth" {
		t.Errorf("expected keyword argument 'depth'")
	}
}

func TestParseEscapedIdent(t *testing.T) {
	f := parseOk(t, "module M\nint \\data = 1;\n")
	v := f.Decls[0].(*VarDecl)
	if v.Name.Name != "data" {
		t.Errorf("expected stripped name 'data', got %q", v.Name.Name)
	}
	if !v.Name.Escaped {
		t.Errorf("expected escaped flag")
	}
}

func TestParseFieldAccessChain(t *testing.T) {
	f := parseOk(t, `module M
data D = d(int foo);
int g(D x) = x.foo;
`)
	fn := f.Decls[1].(*FuncDecl)
	fa, ok := fn.ExprBody.(*FieldAccess)
	if !ok {
		t.Fatalf("expected field access, got %T", fn.ExprBody)
	}
	if fa.Field.Name != "foo" {
		t.Errorf("expected field 'foo', got %q", fa.Field.Name)
	}
}

func TestParseErrorHasLocation(t *testing.T) {
	_, err := Parse("module M\nint = 1;\n", "bad.rsc")
	if err == nil {
		t.Fatal("expected a parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Rng.Start.Line != 2 {
		t.Errorf("expected error on line 2, got %d", pe.Rng.Start.Line)
	}
}

func TestSpansAreByteAccurate(t *testing.T) {
	src := "module M\nint abc = 1;\n"
	f := parseOk(t, src)
	v := f.Decls[0].(*VarDecl)
	sp := v.Name.Span()
	if got := src[sp.Offset:sp.End()]; got != "abc" {
		t.Errorf("name span covers %q, expected 'abc'", got)
	}
	if !strings.HasPrefix(src[v.Span().Offset:], "int abc") {
		t.Errorf("decl span starts at %q", src[v.Span().Offset:])
	}
}
