// Package oracle declares the contract between the rename engine and the
// type checker. The engine only ever consumes a Model; how it was computed
// is the checker's business.
package oracle

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/skarsol/rscd/internal/loc"
)

type Role int

const (
	RoleVariable Role = iota
	RolePatternVariable
	RoleParameter
	RoleKeywordParameter
	RoleFunction
	RoleAnnotationOnValue
	RoleAnnotationOnFunction
	RoleModuleName
	RoleAlias
	RoleDataType
	RoleConstructor
	RoleConstructorField
	RoleCollectionField
	RoleTypeParameter
	RoleNonterminal
	RoleNonterminalLabel
)

var roleNames = map[Role]string{
	RoleVariable:             "variable",
	RolePatternVariable:      "pattern variable",
	RoleParameter:            "parameter",
	RoleKeywordParameter:     "keyword parameter",
	RoleFunction:             "function",
	RoleAnnotationOnValue:    "annotation",
	RoleAnnotationOnFunction: "annotation on function",
	RoleModuleName:           "module name",
	RoleAlias:                "alias",
	RoleDataType:             "data type",
	RoleConstructor:          "constructor",
	RoleConstructorField:     "constructor field",
	RoleCollectionField:      "collection field",
	RoleTypeParameter:        "type parameter",
	RoleNonterminal:          "nonterminal",
	RoleNonterminalLabel:     "nonterminal label",
}

func (r Role) String() string { return roleNames[r] }

type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindInt
	KindStr
	KindBool
	KindReal
	KindVoid
	KindList
	KindSet
	KindRel
	KindTuple
	KindFunc
	KindADT
	KindAlias
	KindModule
	KindTypeVar
	KindNonterminal
	KindExcept
)

// Type is the checker's static type value. Def points at the defining name
// occurrence for named kinds (ADT, alias, module, nonterminal).
type Type struct {
	Kind      TypeKind
	Name      string
	Def       loc.Location
	Elem      []Type
	Labels    []string
	LabelLocs []loc.Location
	Params    []Type
	Ret       *Type
}

// IsCollection covers sets, lists, relations and labelled tuples, the types
// whose field names are structural rather than declared on an ADT.
func (t Type) IsCollection() bool {
	switch t.Kind {
	case KindList, KindSet, KindRel, KindTuple:
		return true
	}
	return false
}

func (t Type) IsModule() bool  { return t.Kind == KindModule }
func (t Type) IsTypeVar() bool { return t.Kind == KindTypeVar }
func (t Type) IsFunc() bool    { return t.Kind == KindFunc }

// LabelLoc returns the defining location of a collection field label.
func (t Type) LabelLoc(label string) (loc.Location, bool) {
	for i, l := range t.Labels {
		if l == label && i < len(t.LabelLocs) {
			return t.LabelLocs[i], true
		}
	}
	return loc.Location{}, false
}

// Define records one declaration of one name at one source location.
// DefinedAt always lies inside Scope; module-scope defines have the whole
// file as their scope.
type Define struct {
	Scope     loc.Location
	Name      string
	ID        string // qualified form, e.g. "a::M::f"
	Role      Role
	DefinedAt loc.Location
	Type      Type
	Implicit  bool // promoted from a first unguarded use
}

type CheckError struct {
	At  loc.Location
	Msg string
}

func (e CheckError) Error() string { return fmt.Sprintf("%s: %s", e.At, e.Msg) }

// Model is the relational output of the checker for a set of files.
// Everything is immutable after ModelFor returns; readers may share it across
// goroutines.
type Model struct {
	Defines []Define
	UseDef  map[loc.Location][]loc.Location
	Facts   map[loc.Location]Type
	Scopes  map[loc.Location]loc.Location // inner -> outer
	Modules map[string]loc.Location       // qualified name -> header name
	Imports map[string][]string           // file -> imported module names
	Files   map[string]loc.Location       // file -> whole-file span

	// FieldOwner maps a constructor-field define to the name location of
	// the ADT that declares it.
	FieldOwner map[loc.Location]loc.Location

	Errors []CheckError
}

// DefineAt returns the define whose DefinedAt equals l.
func (m *Model) DefineAt(l loc.Location) (Define, bool) {
	for _, d := range m.Defines {
		if d.DefinedAt == l {
			return d, true
		}
	}
	return Define{}, false
}

// ErrorsIn returns the checker messages for one file.
func (m *Model) ErrorsIn(file string) []CheckError {
	var out []CheckError
	for _, e := range m.Errors {
		if e.At.File == file {
			out = append(out, e)
		}
	}
	return out
}

// Oracle produces models. Implementations must be idempotent and
// side-effect-free; models for files with type errors may still be returned
// and then carry the messages in Errors.
type Oracle interface {
	ModelFor(ctx context.Context, files []string) (*Model, error)
}

// PathForModule maps a qualified module name to its file under a source
// root; the loader and module renames share this convention.
func PathForModule(srcRoot, qualified string) string {
	parts := strings.Split(qualified, "::")
	return filepath.Join(append([]string{srcRoot}, parts...)...) + ".rsc"
}

// ModuleForPath is the inverse of PathForModule.
func ModuleForPath(srcRoot, path string) (string, bool) {
	rel, err := filepath.Rel(srcRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	rel = strings.TrimSuffix(rel, ".rsc")
	return strings.Join(strings.Split(rel, string(filepath.Separator)), "::"), true
}
