package syntax

import "reflect"

// Walk calls f for n and, when f returns true, for all of n's children in
// source order.
func Walk(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range children(n) {
		Walk(c, f)
	}
}

func children(n Node) []Node {
	var out []Node
	add := func(ns ...Node) {
		for _, c := range ns {
			if c == nil {
				continue
			}
			// an absent optional child (nil *Block, nil *Ident) arrives as a
			// typed nil inside the interface
			if v := reflect.ValueOf(c); v.Kind() == reflect.Pointer && v.IsNil() {
				continue
			}
			out = append(out, c)
		}
	}
	switch n := n.(type) {
	case *File:
		add(n.Header)
		add(n.Decls...)
	case *ModuleHeader:
		add(n.Name)
	case *Import:
		add(n.Module)
	case *QName:
		for _, p := range n.Parts {
			add(p)
		}
	case *VarDecl:
		add(n.Type, n.Name, n.Value)
	case *FuncDecl:
		add(n.RetType, n.Name)
		for _, f := range n.Formals {
			add(f)
		}
		add(n.Body, n.ExprBody)
	case *Formal:
		add(n.Type, n.Name, n.Default)
	case *DataDecl:
		add(n.Name)
		for _, tp := range n.TypeParams {
			add(tp)
		}
		for _, f := range n.CommonKw {
			add(f)
		}
		for _, v := range n.Variants {
			add(v)
		}
	case *Variant:
		add(n.Name)
		for _, f := range n.Fields {
			add(f)
		}
	case *Field:
		add(n.Type, n.Name, n.Default)
	case *AliasDecl:
		add(n.Name)
		for _, tp := range n.TypeParams {
			add(tp)
		}
		add(n.Aliased)
	case *SyntaxDecl:
		add(n.Name)
		for _, p := range n.Prods {
			add(p)
		}
	case *Prod:
		add(n.Label)
		add(n.Syms...)
		for _, e := range n.Excepts {
			add(e)
		}
	case *Block:
		add(n.Stmts...)
	case *Return:
		add(n.Value)
	case *If:
		add(n.Cond, n.Then, n.Else)
	case *Assign:
		add(n.Target, n.Value)
	case *ExprStmt:
		add(n.X)
	case *Call:
		add(n.Fun)
		for _, a := range n.Args {
			add(a)
		}
	case *Arg:
		add(n.Name, n.Value)
	case *FieldAccess:
		add(n.X, n.Field)
	case *Binary:
		add(n.L, n.R)
	case *ListType:
		add(n.Elem)
	case *SetType:
		add(n.Elem)
	case *RelType:
		for _, f := range n.Fields {
			add(f)
		}
	case *TupleType:
		for _, f := range n.Fields {
			add(f)
		}
	case *TypeField:
		add(n.Type, n.Label)
	case *NamedType:
		add(n.Name)
		add(n.Args...)
	}
	return out
}
