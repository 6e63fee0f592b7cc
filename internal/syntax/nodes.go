package syntax

import (
	"github.com/skarsol/rscd/internal/loc"
)

// Node is implemented by every tree node. Spans are byte-accurate.
type Node interface {
	Span() loc.Location
}

type span struct {
	location loc.Location
}

func (s span) Span() loc.Location { return s.location }

// File is the root of one parsed module.
type File struct {
	span
	Header *ModuleHeader
	Decls  []Node
}

type ModuleHeader struct {
	span
	Name *QName
}

type Import struct {
	span
	Module *QName
}

// Ident is a simple name. Escaped marks a leading backslash in the source;
// Name carries the stripped form, comparison always works on that.
type Ident struct {
	span
	Name    string
	Escaped bool
}

// QName is a qualified name a::b::c. Prefix spans cover everything up to,
// but excluding, the last separator.
type QName struct {
	span
	Parts []*Ident
}

func (q *QName) Last() *Ident { return q.Parts[len(q.Parts)-1] }

func (q *QName) String() string {
	s := ""
	for i, p := range q.Parts {
		if i > 0 {
			s += "::"
		}
		s += p.Name
	}
	return s
}

// PrefixSpan is the span of the first n parts.
func (q *QName) PrefixSpan(n int) loc.Location {
	first := q.Parts[0].Span()
	last := q.Parts[n-1].Span()
	first.Length = last.End() - first.Offset
	first.Rng.End = last.Rng.End
	return first
}

type VarDecl struct {
	span
	Type  Node
	Name  *Ident
	Value Node
}

type FuncDecl struct {
	span
	RetType  Node
	Name     *Ident
	Formals  []*Formal
	Body     *Block // nil for expression bodies
	ExprBody Node   // nil for block bodies
}

// Formal is one parameter. A non-nil Default makes it a keyword formal.
type Formal struct {
	span
	Type    Node
	Name    *Ident
	Default Node
}

type DataDecl struct {
	span
	Name       *Ident
	TypeParams []*TypeVar
	CommonKw   []*Field
	Variants   []*Variant
}

type Variant struct {
	span
	Name   *Ident
	Fields []*Field
}

// Field is a positional field, or a keyword field when Default is set.
type Field struct {
	span
	Type    Node
	Name    *Ident
	Default Node
}

type AliasDecl struct {
	span
	Name       *Ident
	TypeParams []*TypeVar
	Aliased    Node
}

type SyntaxDecl struct {
	span
	Name  *Nonterminal
	Prods []*Prod
}

type Prod struct {
	span
	Label   *Ident // optional
	Syms    []Node
	Excepts []*Ident
}

type Nonterminal struct {
	span
	Name string
}

// TypeVar is &T, both in type-parameter position and in type expressions.
type TypeVar struct {
	span
	Name string
}

type Block struct {
	span
	Stmts []Node
}

type Return struct {
	span
	Value Node
}

type If struct {
	span
	Cond Node
	Then *Block
	Else *Block
}

// Assign is `name = expr;`. When name is not yet declared this is the
// implicit-definition position of the host language.
type Assign struct {
	span
	Target *Ident
	Value  Node
}

type ExprStmt struct {
	span
	X Node
}

type Call struct {
	span
	Fun  *QName
	Args []*Arg
}

// Arg is a call argument; a non-nil Name makes it a keyword argument.
type Arg struct {
	span
	Name  *Ident
	Value Node
}

type FieldAccess struct {
	span
	X     Node
	Field *Ident
}

type Binary struct {
	span
	Op string
	L  Node
	R  Node
}

type Lit struct {
	span
	Kind string // "int", "real", "str", "bool"
	Text string
}

// Type expressions.

type BasicType struct {
	span
	Kind string // "int", "str", "bool", "real", "void"
}

type ListType struct {
	span
	Elem Node
}

type SetType struct {
	span
	Elem Node
}

// TypeField is one component of a rel or tuple type; Label is optional.
type TypeField struct {
	span
	Type  Node
	Label *Ident
}

type RelType struct {
	span
	Fields []*TypeField
}

type TupleType struct {
	span
	Fields []*TypeField
}

type NamedType struct {
	span
	Name *QName
	Args []Node
}
