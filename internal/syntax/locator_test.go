package syntax

import (
	"strings"
	"testing"

	"github.com/skarsol/rscd/internal/loc"
)

func spanOf(t *testing.T, src, needle string) loc.Location {
	t.Helper()
	i := strings.Index(src, needle)
	if i < 0 {
		t.Fatalf("needle %q not in source", needle)
	}
	return loc.Location{File: "test.rsc", Offset: i, Length: len(needle)}
}

func TestNamedSubLocationPerKind(t *testing.T) {
	src := `module M
int a = 1;
int f(int p) {
  return p;
}
data D = d(int foo);
alias A = int;
syntax Exp = add: Exp "+" Exp;
`
	f := parseOk(t, src)

	var fn *FuncDecl
	var v *VarDecl
	var d *DataDecl
	var a *AliasDecl
	var s *SyntaxDecl
	Walk(f, func(n Node) bool {
		switch n := n.(type) {
		case *FuncDecl:
			fn = n
		case *VarDecl:
			if v == nil {
				v = n
			}
		case *DataDecl:
			d = n
		case *AliasDecl:
			a = n
		case *SyntaxDecl:
			s = n
		}
		return true
	})

	cases := []struct {
		node Node
		want string
	}{
		{f.Header, "M"},
		{v, "a"},
		{fn, "f"},
		{d, "D"},
		{a, "A"},
		{s, "Exp"},
	}
	for _, tt := range cases {
		sub, ok := NamedSubLocation(tt.node)
		if !ok {
			t.Fatalf("%T: expected a named sub-location", tt.node)
		}
		if got := src[sub.Offset:sub.End()]; got != tt.want {
			t.Errorf("%T: sub-location covers %q, expected %q", tt.node, got, tt.want)
		}
	}
}

func TestNamedSubLocationQualifiedName(t *testing.T) {
	src := "module Main\nimport a::M;\n"
	f := parseOk(t, src)
	im := f.Decls[0].(*Import)
	sub, ok := NamedSubLocation(im.Module)
	if !ok {
		t.Fatal("expected a sub-location for the qualified name")
	}
	if got := src[sub.Offset:sub.End()]; got != "M" {
		t.Errorf("expected last segment 'M', got %q", got)
	}
}

func TestSubLocationsReportsMissing(t *testing.T) {
	src := "module M\nint a = 1;\n"
	f := parseOk(t, src)

	good := spanOf(t, src, "a")
	// a span wider than every node of the tree has nothing to map to
	bogus := loc.Location{File: "test.rsc", Offset: 0, Length: len(src)}

	subs, missing := SubLocations(f, []loc.Location{good, bogus})
	if _, ok := subs[good]; !ok {
		t.Errorf("expected a sub-location for the variable name")
	}
	if len(missing) != 1 || missing[0] != bogus {
		t.Errorf("expected the over-wide span to be reported missing, got %v", missing)
	}
}

func TestIdentAt(t *testing.T) {
	src := "module M\nint abc = 1;\n"
	f := parseOk(t, src)
	id := IdentAt(f, strings.Index(src, "abc")+1)
	if id == nil || id.Name != "abc" {
		t.Fatalf("expected ident 'abc', got %v", id)
	}
}

func TestEnclosingQName(t *testing.T) {
	src := "module Main\nimport a::M;\n"
	f := parseOk(t, src)
	at := spanOf(t, src, "a::M")
	at.Length = 1 // cursor on the prefix
	q := EnclosingQName(f, at)
	if q == nil || q.String() != "a::M" {
		t.Fatalf("expected qualified name 'a::M', got %v", q)
	}
}

func TestValidName(t *testing.T) {
	cases := []struct {
		name string
		cat  NameCategory
		want bool
	}{
		{"abc", CatIdent, true},
		{"_x1", CatIdent, true},
		{"1abc", CatIdent, false},
		{"", CatIdent, false},
		{"a b", CatIdent, false},
		{"data", CatIdent, false},    // reserved, unescaped
		{"\\data", CatIdent, true},   // escaped reserved
		{"Exp", CatNonterminal, true},
		{"exp", CatNonterminal, false},
		{"add", CatNonterminalLabel, true},
	}
	for _, tt := range cases {
		if got := ValidName(tt.name, tt.cat); got != tt.want {
			t.Errorf("ValidName(%q, %v) = %v, expected %v", tt.name, tt.cat, got, tt.want)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	if got := Escape("data"); got != "\\data" {
		t.Errorf("expected escaped reserved word, got %q", got)
	}
	if got := Escape("x"); got != "x" {
		t.Errorf("expected plain name unchanged, got %q", got)
	}
	if got := Unescape(Escape("data")); got != "data" {
		t.Errorf("round trip failed: %q", got)
	}
}
