package check

import (
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

// typeFromNode evaluates a type expression against the already-collected
// type declarations. Labelled rel and tuple components double as
// collection-field defines; they are registered here, once per label
// occurrence, with the enclosing declaration as their scope.
func (b *binder) typeFromNode(file string, n syntax.Node, scope loc.Location) oracle.Type {
	module := b.moduleOf[file]
	switch n := n.(type) {
	case *syntax.BasicType:
		return basicType(n.Kind)

	case *syntax.ListType:
		return oracle.Type{Kind: oracle.KindList, Elem: []oracle.Type{b.typeFromNode(file, n.Elem, scope)}}

	case *syntax.SetType:
		return oracle.Type{Kind: oracle.KindSet, Elem: []oracle.Type{b.typeFromNode(file, n.Elem, scope)}}

	case *syntax.RelType:
		return b.collectionType(file, oracle.KindRel, n.Fields, scope)

	case *syntax.TupleType:
		return b.collectionType(file, oracle.KindTuple, n.Fields, scope)

	case *syntax.TypeVar:
		return oracle.Type{Kind: oracle.KindTypeVar, Name: n.Name}

	case *syntax.NamedType:
		defs := b.resolveTypeName(module, n.Name)
		if len(defs) == 0 {
			return oracle.Type{Kind: oracle.KindUnknown, Name: n.Name.String()}
		}
		t := defs[0].Type
		for _, a := range n.Args {
			t.Elem = append(t.Elem, b.typeFromNode(file, a, scope))
		}
		return t
	}
	return oracle.Type{}
}

func basicType(kind string) oracle.Type {
	switch kind {
	case "int":
		return oracle.Type{Kind: oracle.KindInt}
	case "str":
		return oracle.Type{Kind: oracle.KindStr}
	case "bool":
		return oracle.Type{Kind: oracle.KindBool}
	case "real":
		return oracle.Type{Kind: oracle.KindReal}
	case "void":
		return oracle.Type{Kind: oracle.KindVoid}
	}
	return oracle.Type{}
}

func (b *binder) collectionType(file string, kind oracle.TypeKind, fields []*syntax.TypeField, scope loc.Location) oracle.Type {
	module := b.moduleOf[file]
	t := oracle.Type{Kind: kind}
	for _, f := range fields {
		ft := b.typeFromNode(file, f.Type, scope)
		t.Elem = append(t.Elem, ft)
		if f.Label == nil {
			continue
		}
		t.Labels = append(t.Labels, f.Label.Name)
		t.LabelLocs = append(t.LabelLocs, f.Label.Span())
		if !b.seenLabels[f.Label.Span()] {
			b.seenLabels[f.Label.Span()] = true
			b.define(module, oracle.Define{
				Scope: scope, Name: f.Label.Name,
				ID:   module + "::" + f.Label.Name,
				Role: oracle.RoleCollectionField, DefinedAt: f.Label.Span(), Type: ft,
			})
			b.fact(f.Label.Span(), ft)
		}
	}
	return t
}

// resolveTypeName looks a type name up among this module's and its imports'
// type declarations; qualified names go straight to the named module.
func (b *binder) resolveTypeName(module string, q *syntax.QName) []oracle.Define {
	isType := func(d oracle.Define) bool {
		switch d.Role {
		case oracle.RoleDataType, oracle.RoleAlias, oracle.RoleNonterminal:
			return true
		}
		return false
	}
	if len(q.Parts) > 1 {
		target := joinParts(q.Parts[:len(q.Parts)-1])
		var out []oracle.Define
		for _, d := range b.resolveModuleMember(target, q.Last().Name) {
			if isType(d) {
				out = append(out, d)
			}
		}
		return out
	}
	file, ok := b.fileOf[module]
	if !ok {
		return nil
	}
	modules := append([]string{module}, b.importsOf(file)...)
	var out []oracle.Define
	for _, m := range modules {
		for _, d := range b.resolveModuleMember(m, q.Last().Name) {
			if isType(d) {
				out = append(out, d)
			}
		}
	}
	return out
}
