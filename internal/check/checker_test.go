package check

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
)

// memChecker builds a checker over an in-memory file set keyed by path.
func memChecker(files map[string]string) *Checker {
	c := New(func(file string) (string, error) {
		src, ok := files[file]
		if !ok {
			return "", fmt.Errorf("no such file: %s", file)
		}
		return src, nil
	})
	c.Locate = func(module string) (string, bool) {
		path := "/ws/" + strings.ReplaceAll(module, "::", "/") + ".rsc"
		_, ok := files[path]
		return path, ok
	}
	return c
}

func modelFor(t *testing.T, files map[string]string, roots ...string) *oracle.Model {
	t.Helper()
	m, err := memChecker(files).ModelFor(context.Background(), roots)
	if err != nil {
		t.Fatalf("ModelFor failed: %v", err)
	}
	return m
}

func span(files map[string]string, file, needle string, occurrence int) loc.Location {
	src := files[file]
	offset := -1
	for i := 0; i <= occurrence; i++ {
		next := strings.Index(src[offset+1:], needle)
		if next < 0 {
			panic("needle not found: " + needle)
		}
		offset += 1 + next
	}
	l := loc.Location{File: file, Offset: offset, Length: len(needle)}
	l.Rng.Start = posAt(src, l.Offset)
	l.Rng.End = posAt(src, l.End())
	return l
}

// posAt recomputes the 1-based line/codepoint-column position the scanner
// assigns to a byte offset.
func posAt(src string, offset int) loc.Pos {
	line, col := uint(1), uint(1)
	for _, r := range src[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return loc.Pos{Line: line, Col: col}
}

func defNamed(t *testing.T, m *oracle.Model, name string, role oracle.Role) oracle.Define {
	t.Helper()
	for _, d := range m.Defines {
		if d.Name == name && d.Role == role {
			return d
		}
	}
	t.Fatalf("no define %q with role %v", name, role)
	return oracle.Define{}
}

func TestModuleLevelDefines(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
int a = 1;
int f(int p) {
  return p;
}
data D = d(int foo);
`,
	}
	m := modelFor(t, files, "/ws/M.rsc")

	if len(m.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", m.Errors)
	}

	wantRoles := map[string]oracle.Role{
		"M":   oracle.RoleModuleName,
		"a":   oracle.RoleVariable,
		"f":   oracle.RoleFunction,
		"p":   oracle.RoleParameter,
		"D":   oracle.RoleDataType,
		"d":   oracle.RoleConstructor,
		"foo": oracle.RoleConstructorField,
	}
	for name, role := range wantRoles {
		defNamed(t, m, name, role)
	}

	// module-scope defines span the whole file
	a := defNamed(t, m, "a", oracle.RoleVariable)
	if diff := cmp.Diff(m.Files["/ws/M.rsc"], a.Scope); diff != "" {
		t.Errorf("variable scope mismatch (-want +got):\n%s", diff)
	}
}

func TestUseDefWithinFunction(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
int f(int p) {
  return p;
}
`,
	}
	m := modelFor(t, files, "/ws/M.rsc")

	use := span(files, "/ws/M.rsc", "p", 1)
	def := span(files, "/ws/M.rsc", "p", 0)
	got, ok := m.UseDef[use]
	if !ok {
		t.Fatalf("no use-def edge for the body use of p")
	}
	if diff := cmp.Diff([]loc.Location{def}, got); diff != "" {
		t.Errorf("use-def mismatch (-want +got):\n%s", diff)
	}
}

func TestCrossModuleResolution(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
data D = d(int foo, int baz);
`,
		"/ws/Main.rsc": `module Main
import M;
int g(D x) = x.foo;
`,
	}
	m := modelFor(t, files, "/ws/Main.rsc")

	if len(m.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", m.Errors)
	}

	// the import pulled M in transitively
	if _, ok := m.Files["/ws/M.rsc"]; !ok {
		t.Fatal("expected M to be loaded through its import")
	}

	fieldUse := span(files, "/ws/Main.rsc", "foo", 0)
	fieldDef := span(files, "/ws/M.rsc", "foo", 0)
	got := m.UseDef[fieldUse]
	if diff := cmp.Diff([]loc.Location{fieldDef}, got); diff != "" {
		t.Errorf("field access resolution (-want +got):\n%s", diff)
	}
	if m.FieldOwner[fieldDef] != span(files, "/ws/M.rsc", "D", 0) {
		t.Errorf("field owner should be the ADT name location")
	}
}

func TestOverloadedFunctionsShareUses(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
int size(int x) {
  return x;
}
int size(str s) {
  return 0;
}
int g() = size(1);
`,
	}
	m := modelFor(t, files, "/ws/M.rsc")

	callUse := span(files, "/ws/M.rsc", "size", 2)
	got := m.UseDef[callUse]
	if len(got) != 2 {
		t.Fatalf("expected the call to resolve to both overloads, got %d", len(got))
	}
}

func TestImplicitDefinition(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
int f() {
  x = 1;
  return x;
}
`,
	}
	m := modelFor(t, files, "/ws/M.rsc")

	x := defNamed(t, m, "x", oracle.RoleVariable)
	if !x.Implicit {
		t.Errorf("expected x to be an implicit definition")
	}

	use := span(files, "/ws/M.rsc", "x", 1)
	if diff := cmp.Diff([]loc.Location{x.DefinedAt}, m.UseDef[use]); diff != "" {
		t.Errorf("implicit define use (-want +got):\n%s", diff)
	}
}

func TestQualifiedPrefixIsModuleUse(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
int a = 1;
`,
		"/ws/Main.rsc": `module Main
import M;
int g() = M::a;
`,
	}
	m := modelFor(t, files, "/ws/Main.rsc")

	headerDef := span(files, "/ws/M.rsc", "M", 0)
	prefix := span(files, "/ws/Main.rsc", "M", 2) // the prefix covers just "M"

	got, ok := m.UseDef[prefix]
	if !ok {
		t.Fatal("expected a use-def edge for the qualified-name prefix")
	}
	if diff := cmp.Diff([]loc.Location{headerDef}, got); diff != "" {
		t.Errorf("prefix resolution (-want +got):\n%s", diff)
	}
	if fact, ok := m.Facts[prefix]; !ok || !fact.IsModule() {
		t.Errorf("expected a module fact on the prefix")
	}
}

func TestUnresolvedNameIsError(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": "module M\nint a = nope;\n",
	}
	m := modelFor(t, files, "/ws/M.rsc")
	if len(m.ErrorsIn("/ws/M.rsc")) == 0 {
		t.Fatal("expected an error for the undeclared name")
	}
}

func TestTypeParameterFacts(t *testing.T) {
	files := map[string]string{
		"/ws/M.rsc": `module M
&T id(&T x) {
  return x;
}
`,
	}
	m := modelFor(t, files, "/ws/M.rsc")

	tp := defNamed(t, m, "T", oracle.RoleTypeParameter)
	fact, ok := m.Facts[tp.DefinedAt]
	if !ok || !fact.IsTypeVar() {
		t.Fatalf("expected a type-variable fact at the defining occurrence")
	}

	// second occurrence is a use of the first
	second := span(files, "/ws/M.rsc", "&T", 1)
	if diff := cmp.Diff([]loc.Location{tp.DefinedAt}, m.UseDef[second]); diff != "" {
		t.Errorf("signature type variable use (-want +got):\n%s", diff)
	}
}
