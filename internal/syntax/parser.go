package syntax

import (
	"fmt"

	"github.com/skarsol/rscd/internal/loc"
)

// Parse turns one source file into its module tree.
func Parse(src, file string) (*File, error) {
	toks, err := newScanner(src, file).scanAll()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks, file: file}
	return p.parseFile()
}

type parser struct {
	toks []token
	pos  int
	file string
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) at(kind tokKind, text string) bool {
	return p.cur().is(kind, text)
}

func (p *parser) atPunct(text string) bool { return p.at(tokPunct, text) }

func (p *parser) atKeyword(text string) bool { return p.at(tokKeyword, text) }

func (p *parser) bump() token {
	t := p.cur()
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...any) error {
	t := p.cur()
	return &ParseError{File: p.file, Rng: t.rng, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expectPunct(text string) (token, error) {
	if !p.atPunct(text) {
		return token{}, p.errf("expected %q, found %q", text, p.cur().text)
	}
	return p.bump(), nil
}

func (p *parser) expectKeyword(text string) (token, error) {
	if !p.atKeyword(text) {
		return token{}, p.errf("expected %q, found %q", text, p.cur().text)
	}
	return p.bump(), nil
}

// spanBetween builds a byte-accurate location from the first to the last
// token of a node.
func (p *parser) spanBetween(start, end token) span {
	return span{location: loc.Location{
		File:   p.file,
		Offset: start.offset,
		Length: end.offset + end.length - start.offset,
		Rng:    loc.Range{Start: start.rng.Start, End: end.rng.End},
	}}
}

func (p *parser) prev() token { return p.toks[p.pos-1] }

func (p *parser) spanFrom(start token) span { return p.spanBetween(start, p.prev()) }

func tokenSpan(file string, t token) span {
	return span{location: loc.Location{File: file, Offset: t.offset, Length: t.length, Rng: t.rng}}
}

func (p *parser) parseFile() (*File, error) {
	start := p.cur()
	header, err := p.parseModuleHeader()
	if err != nil {
		return nil, err
	}
	var decls []Node
	for !p.at(tokEOF, "") && p.cur().kind != tokEOF {
		d, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	f := &File{Header: header, Decls: decls}
	f.span = p.spanFrom(start)
	if f.span.location.Length == 0 {
		f.span.location.Length = 1
	}
	return f, nil
}

func (p *parser) parseModuleHeader() (*ModuleHeader, error) {
	start, err := p.expectKeyword("module")
	if err != nil {
		return nil, err
	}
	name, err := p.parseQName()
	if err != nil {
		return nil, err
	}
	h := &ModuleHeader{Name: name}
	h.span = p.spanFrom(start)
	return h, nil
}

func (p *parser) parseTopDecl() (Node, error) {
	switch {
	case p.atKeyword("import"):
		return p.parseImport()
	case p.atKeyword("data"):
		return p.parseDataDecl()
	case p.atKeyword("alias"):
		return p.parseAliasDecl()
	case p.atKeyword("syntax"):
		return p.parseSyntaxDecl()
	default:
		return p.parseVarOrFuncDecl()
	}
}

func (p *parser) parseImport() (*Import, error) {
	start := p.bump()
	name, err := p.parseQName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	im := &Import{Module: name}
	im.span = p.spanFrom(start)
	return im, nil
}

func (p *parser) parseIdent() (*Ident, error) {
	if p.cur().kind != tokIdent {
		return nil, p.errf("expected identifier, found %q", p.cur().text)
	}
	t := p.bump()
	id := &Ident{Name: t.text, Escaped: t.escaped}
	id.span = tokenSpan(p.file, t)
	return id, nil
}

func (p *parser) parseQName() (*QName, error) {
	start := p.cur()
	first, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	q := &QName{Parts: []*Ident{first}}
	for p.atPunct("::") {
		p.bump()
		next, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		q.Parts = append(q.Parts, next)
	}
	q.span = p.spanFrom(start)
	return q, nil
}

// Declarations start with a type; `name (` after it means a function.
func (p *parser) parseVarOrFuncDecl() (Node, error) {
	start := p.cur()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if p.atPunct("(") {
		return p.parseFuncRest(start, typ, name)
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	v := &VarDecl{Type: typ, Name: name, Value: value}
	v.span = p.spanFrom(start)
	return v, nil
}

func (p *parser) parseFuncRest(start token, typ Node, name *Ident) (Node, error) {
	p.bump() // (
	var formals []*Formal
	for !p.atPunct(")") {
		f, err := p.parseFormal()
		if err != nil {
			return nil, err
		}
		formals = append(formals, f)
		if p.atPunct(",") {
			p.bump()
		}
	}
	p.bump() // )

	fn := &FuncDecl{RetType: typ, Name: name, Formals: formals}
	switch {
	case p.atPunct("{"):
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		fn.Body = body
	case p.atPunct("="):
		p.bump()
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		fn.ExprBody = body
	default:
		return nil, p.errf("expected function body")
	}
	fn.span = p.spanFrom(start)
	return fn, nil
}

func (p *parser) parseFormal() (*Formal, error) {
	start := p.cur()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	f := &Formal{Type: typ, Name: name}
	if p.atPunct("=") {
		p.bump()
		def, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		f.Default = def
	}
	f.span = p.spanFrom(start)
	return f, nil
}

func (p *parser) parseDataDecl() (*DataDecl, error) {
	start := p.bump()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	d := &DataDecl{Name: name}
	if p.atPunct("[") {
		params, err := p.parseTypeParams()
		if err != nil {
			return nil, err
		}
		d.TypeParams = params
	}
	if p.atPunct("(") {
		p.bump()
		for !p.atPunct(")") {
			f, err := p.parseField()
			if err != nil {
				return nil, err
			}
			if f.Default == nil {
				return nil, p.errf("common field %q needs a default", f.Name.Name)
			}
			d.CommonKw = append(d.CommonKw, f)
			if p.atPunct(",") {
				p.bump()
			}
		}
		p.bump()
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	for {
		v, err := p.parseVariant()
		if err != nil {
			return nil, err
		}
		d.Variants = append(d.Variants, v)
		if !p.atPunct("|") {
			break
		}
		p.bump()
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	d.span = p.spanFrom(start)
	return d, nil
}

func (p *parser) parseVariant() (*Variant, error) {
	start := p.cur()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	v := &Variant{Name: name}
	for !p.atPunct(")") {
		f, err := p.parseField()
		if err != nil {
			return nil, err
		}
		v.Fields = append(v.Fields, f)
		if p.atPunct(",") {
			p.bump()
		}
	}
	p.bump()
	v.span = p.spanFrom(start)
	return v, nil
}

func (p *parser) parseField() (*Field, error) {
	start := p.cur()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	f := &Field{Type: typ, Name: name}
	if p.atPunct("=") {
		p.bump()
		def, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		f.Default = def
	}
	f.span = p.spanFrom(start)
	return f, nil
}

func (p *parser) parseTypeParams() ([]*TypeVar, error) {
	p.bump() // [
	var params []*TypeVar
	for !p.atPunct("]") {
		tv, err := p.parseTypeVar()
		if err != nil {
			return nil, err
		}
		params = append(params, tv)
		if p.atPunct(",") {
			p.bump()
		}
	}
	p.bump()
	return params, nil
}

func (p *parser) parseTypeVar() (*TypeVar, error) {
	start, err := p.expectPunct("&")
	if err != nil {
		return nil, err
	}
	if p.cur().kind != tokIdent {
		return nil, p.errf("expected type variable name")
	}
	t := p.bump()
	tv := &TypeVar{Name: t.text}
	tv.span = p.spanBetween(start, t)
	return tv, nil
}

func (p *parser) parseAliasDecl() (*AliasDecl, error) {
	start := p.bump()
	name, err := p.parseIdent()
	if err != nil {
		return nil, err
	}
	a := &AliasDecl{Name: name}
	if p.atPunct("[") {
		params, err := p.parseTypeParams()
		if err != nil {
			return nil, err
		}
		a.TypeParams = params
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	a.Aliased = typ
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	a.span = p.spanFrom(start)
	return a, nil
}

func (p *parser) parseSyntaxDecl() (*SyntaxDecl, error) {
	start := p.bump()
	if p.cur().kind != tokIdent {
		return nil, p.errf("expected nonterminal name")
	}
	t := p.bump()
	nt := &Nonterminal{Name: t.text}
	nt.span = tokenSpan(p.file, t)

	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	d := &SyntaxDecl{Name: nt}
	for {
		prod, err := p.parseProd()
		if err != nil {
			return nil, err
		}
		d.Prods = append(d.Prods, prod)
		if !p.atPunct("|") {
			break
		}
		p.bump()
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	d.span = p.spanFrom(start)
	return d, nil
}

func (p *parser) parseProd() (*Prod, error) {
	start := p.cur()
	prod := &Prod{}

	// `label:` prefix
	if p.cur().kind == tokIdent && p.toks[p.pos+1].is(tokPunct, ":") {
		label, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		p.bump() // :
		prod.Label = label
	}

	for {
		switch {
		case p.cur().kind == tokIdent:
			t := p.bump()
			nt := &Nonterminal{Name: t.text}
			nt.span = tokenSpan(p.file, t)
			prod.Syms = append(prod.Syms, nt)
		case p.cur().kind == tokStr:
			t := p.bump()
			lit := &Lit{Kind: "str", Text: t.text}
			lit.span = tokenSpan(p.file, t)
			prod.Syms = append(prod.Syms, lit)
		default:
			goto symsDone
		}
	}
symsDone:
	if len(prod.Syms) == 0 {
		return nil, p.errf("expected production symbols")
	}

	for p.atPunct("!") {
		p.bump()
		except, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		prod.Excepts = append(prod.Excepts, except)
	}
	prod.span = p.spanFrom(start)
	return prod, nil
}

func (p *parser) parseBlock() (*Block, error) {
	start, err := p.expectPunct("{")
	if err != nil {
		return nil, err
	}
	b := &Block{}
	for !p.atPunct("}") {
		if p.cur().kind == tokEOF {
			return nil, p.errf("unterminated block")
		}
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	p.bump()
	b.span = p.spanFrom(start)
	return b, nil
}

func (p *parser) parseStmt() (Node, error) {
	switch {
	case p.atKeyword("return"):
		start := p.bump()
		r := &Return{}
		if !p.atPunct(";") {
			v, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			r.Value = v
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		r.span = p.spanFrom(start)
		return r, nil

	case p.atKeyword("if"):
		return p.parseIf()

	case p.startsType():
		return p.parseVarOrFuncDecl()

	case p.cur().kind == tokIdent && p.toks[p.pos+1].is(tokPunct, "="):
		start := p.cur()
		target, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		p.bump() // =
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		a := &Assign{Target: target, Value: value}
		a.span = p.spanFrom(start)
		return a, nil

	default:
		start := p.cur()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		s := &ExprStmt{X: x}
		s.span = p.spanFrom(start)
		return s, nil
	}
}

func (p *parser) parseIf() (Node, error) {
	start := p.bump()
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &If{Cond: cond, Then: then}
	if p.atKeyword("else") {
		p.bump()
		els, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		stmt.Else = els
	}
	stmt.span = p.spanFrom(start)
	return stmt, nil
}

// startsType decides whether the upcoming tokens begin a declaration. An
// identifier starts a type only when another identifier follows it, which
// distinguishes `int x = ...` and `D x = ...` from `x = ...` and `f(...)`.
func (p *parser) startsType() bool {
	t := p.cur()
	switch {
	case t.kind == tokKeyword:
		switch t.text {
		case "int", "str", "bool", "real", "void", "list", "set", "rel", "tuple":
			return true
		}
		return false
	case t.is(tokPunct, "&"):
		return true
	case t.kind == tokIdent:
		i := p.pos + 1
		for i+1 < len(p.toks) && p.toks[i].is(tokPunct, "::") && p.toks[i+1].kind == tokIdent {
			i += 2
		}
		if p.toks[i].is(tokPunct, "[") {
			// could be D[int] x; scan past the bracket group
			depth := 0
			for ; i < len(p.toks); i++ {
				if p.toks[i].is(tokPunct, "[") {
					depth++
				} else if p.toks[i].is(tokPunct, "]") {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
		}
		return i < len(p.toks) && p.toks[i].kind == tokIdent
	}
	return false
}

func (p *parser) parseType() (Node, error) {
	start := p.cur()
	switch {
	case p.atKeyword("int") || p.atKeyword("str") || p.atKeyword("bool") ||
		p.atKeyword("real") || p.atKeyword("void"):
		t := p.bump()
		b := &BasicType{Kind: t.text}
		b.span = tokenSpan(p.file, t)
		return b, nil

	case p.atKeyword("list"), p.atKeyword("set"):
		kw := p.bump()
		if _, err := p.expectPunct("["); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		if kw.text == "list" {
			n := &ListType{Elem: elem}
			n.span = p.spanFrom(start)
			return n, nil
		}
		n := &SetType{Elem: elem}
		n.span = p.spanFrom(start)
		return n, nil

	case p.atKeyword("rel"), p.atKeyword("tuple"):
		kw := p.bump()
		if _, err := p.expectPunct("["); err != nil {
			return nil, err
		}
		var fields []*TypeField
		for !p.atPunct("]") {
			f, err := p.parseTypeField()
			if err != nil {
				return nil, err
			}
			fields = append(fields, f)
			if p.atPunct(",") {
				p.bump()
			}
		}
		p.bump()
		if kw.text == "rel" {
			n := &RelType{Fields: fields}
			n.span = p.spanFrom(start)
			return n, nil
		}
		n := &TupleType{Fields: fields}
		n.span = p.spanFrom(start)
		return n, nil

	case p.atPunct("&"):
		return p.parseTypeVar()

	case p.cur().kind == tokIdent:
		q, err := p.parseQName()
		if err != nil {
			return nil, err
		}
		n := &NamedType{Name: q}
		if p.atPunct("[") {
			p.bump()
			for !p.atPunct("]") {
				arg, err := p.parseType()
				if err != nil {
					return nil, err
				}
				n.Args = append(n.Args, arg)
				if p.atPunct(",") {
					p.bump()
				}
			}
			p.bump()
		}
		n.span = p.spanFrom(start)
		return n, nil
	}
	return nil, p.errf("expected type, found %q", p.cur().text)
}

func (p *parser) parseTypeField() (*TypeField, error) {
	start := p.cur()
	typ, err := p.parseType()
	if err != nil {
		return nil, err
	}
	f := &TypeField{Type: typ}
	if p.cur().kind == tokIdent {
		label, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		f.Label = label
	}
	f.span = p.spanFrom(start)
	return f, nil
}

var binaryOps = map[string]int{
	"==": 1, "!=": 1, "<": 1, ">": 1, "<=": 1, ">=": 1,
	"+": 2, "-": 2,
	"*": 3, "/": 3,
}

func (p *parser) parseExpr() (Node, error) {
	return p.parseBinary(1)
}

func (p *parser) parseBinary(minPrec int) (Node, error) {
	start := p.cur()
	lhs, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	for {
		op := p.cur()
		prec, ok := binaryOps[op.text]
		if op.kind != tokPunct || !ok || prec < minPrec {
			return lhs, nil
		}
		p.bump()
		rhs, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		b := &Binary{Op: op.text, L: lhs, R: rhs}
		b.span = p.spanFrom(start)
		lhs = b
	}
}

func (p *parser) parsePostfix() (Node, error) {
	start := p.cur()
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.atPunct(".") {
		p.bump()
		field, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		fa := &FieldAccess{X: x, Field: field}
		fa.span = p.spanFrom(start)
		x = fa
	}
	return x, nil
}

func (p *parser) parsePrimary() (Node, error) {
	start := p.cur()
	switch {
	case p.cur().kind == tokInt, p.cur().kind == tokReal, p.cur().kind == tokStr:
		t := p.bump()
		kind := map[tokKind]string{tokInt: "int", tokReal: "real", tokStr: "str"}[t.kind]
		lit := &Lit{Kind: kind, Text: t.text}
		lit.span = tokenSpan(p.file, t)
		return lit, nil

	case p.atKeyword("true"), p.atKeyword("false"):
		t := p.bump()
		lit := &Lit{Kind: "bool", Text: t.text}
		lit.span = tokenSpan(p.file, t)
		return lit, nil

	case p.atPunct("("):
		p.bump()
		x, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return x, nil

	case p.cur().kind == tokIdent:
		q, err := p.parseQName()
		if err != nil {
			return nil, err
		}
		if p.atPunct("(") {
			p.bump()
			call := &Call{Fun: q}
			for !p.atPunct(")") {
				arg, err := p.parseArg()
				if err != nil {
					return nil, err
				}
				call.Args = append(call.Args, arg)
				if p.atPunct(",") {
					p.bump()
				}
			}
			p.bump()
			call.span = p.spanFrom(start)
			return call, nil
		}
		return q, nil
	}
	return nil, p.errf("expected expression, found %q", p.cur().text)
}

func (p *parser) parseArg() (*Arg, error) {
	start := p.cur()
	a := &Arg{}
	if p.cur().kind == tokIdent && p.toks[p.pos+1].is(tokPunct, "=") {
		name, err := p.parseIdent()
		if err != nil {
			return nil, err
		}
		p.bump() // =
		a.Name = name
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	a.Value = v
	a.span = p.spanFrom(start)
	return a, nil
}
