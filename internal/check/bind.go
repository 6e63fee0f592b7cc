package check

import (
	"strings"

	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

type frame struct {
	scope loc.Location
	names map[string][]oracle.Define
}

func (f *frame) add(d oracle.Define) {
	f.names[d.Name] = append(f.names[d.Name], d)
}

type fileBinder struct {
	*binder
	file    string
	fileLoc loc.Location
	module  string
	frames  []*frame
	fnBody  loc.Location // implicit defines land in the enclosing function body
	fnFrame *frame
}

func (b *binder) bindFile(file string, tree *syntax.File) {
	fb := &fileBinder{
		binder:  b,
		file:    file,
		fileLoc: b.fileLocs[file],
		module:  b.moduleOf[file],
	}

	base := &frame{scope: fb.fileLoc, names: map[string][]oracle.Define{}}
	for _, d := range b.topDefs[fb.module] {
		base.add(d)
	}
	for _, imported := range b.importsOf(file) {
		for _, d := range b.topDefs[imported] {
			base.add(d)
		}
	}
	fb.frames = []*frame{base}

	for _, decl := range tree.Decls {
		switch d := decl.(type) {
		case *syntax.Import:
			fb.bindImport(d)
		case *syntax.VarDecl:
			fb.bindTypeUses(d.Type, nil)
			fb.bindExpr(d.Value)
		case *syntax.FuncDecl:
			fb.bindFunc(d)
		case *syntax.DataDecl:
			fb.bindDataDecl(d)
		case *syntax.AliasDecl:
			fb.bindTypeUses(d.Aliased, typeParamSet(d.TypeParams))
		case *syntax.SyntaxDecl:
			fb.bindSyntaxDecl(d)
		}
	}
}

func typeParamSet(params []*syntax.TypeVar) map[string]loc.Location {
	if len(params) == 0 {
		return nil
	}
	set := make(map[string]loc.Location, len(params))
	for _, p := range params {
		set[p.Name] = p.Span()
	}
	return set
}

func (fb *fileBinder) bindImport(d *syntax.Import) {
	name := d.Module.String()
	headerLoc, ok := fb.model.Modules[name]
	if !ok {
		fb.errf(d.Module.Span(), "cannot find module %s", name)
		return
	}
	fb.use(d.Module.Span(), headerLoc)
	fb.fact(d.Module.Span(), oracle.Type{Kind: oracle.KindModule, Name: name, Def: headerLoc})
}

func (fb *fileBinder) bindDataDecl(d *syntax.DataDecl) {
	tps := typeParamSet(d.TypeParams)
	for _, f := range d.CommonKw {
		fb.bindTypeUses(f.Type, tps)
		if f.Default != nil {
			fb.bindExpr(f.Default)
		}
	}
	for _, v := range d.Variants {
		for _, f := range v.Fields {
			fb.bindTypeUses(f.Type, tps)
			if f.Default != nil {
				fb.bindExpr(f.Default)
			}
		}
	}
}

func (fb *fileBinder) bindSyntaxDecl(d *syntax.SyntaxDecl) {
	for _, p := range d.Prods {
		for _, sym := range p.Syms {
			nt, ok := sym.(*syntax.Nonterminal)
			if !ok {
				continue
			}
			defs := fb.lookup(nt.Name, isNonterminal)
			if len(defs) == 0 {
				fb.errf(nt.Span(), "undefined nonterminal %s", nt.Name)
				continue
			}
			fb.use(nt.Span(), definedAts(defs)...)
			fb.fact(nt.Span(), defs[0].Type)
		}
		for _, ex := range p.Excepts {
			labels := fb.lookupLabels(ex.Name)
			fb.fact(ex.Span(), oracle.Type{Kind: oracle.KindExcept, Name: ex.Name})
			if len(labels) == 0 {
				fb.errf(ex.Span(), "no production labelled %s", ex.Name)
				continue
			}
			fb.use(ex.Span(), definedAts(labels)...)
		}
	}
}

// lookupLabels finds nonterminal labels visible from this module.
func (fb *fileBinder) lookupLabels(name string) []oracle.Define {
	var out []oracle.Define
	modules := append([]string{fb.module}, fb.importsOf(fb.file)...)
	for _, m := range modules {
		for _, d := range fb.allModuleDefines(m) {
			if d.Name == name && d.Role == oracle.RoleNonterminalLabel {
				out = append(out, d)
			}
		}
	}
	return out
}

// allModuleDefines includes nested defines (labels, fields) of a module,
// which topDefs excludes.
func (fb *fileBinder) allModuleDefines(module string) []oracle.Define {
	file, ok := fb.fileOf[module]
	if !ok {
		return nil
	}
	var out []oracle.Define
	for _, d := range fb.model.Defines {
		if d.DefinedAt.File == file {
			out = append(out, d)
		}
	}
	return out
}

func (fb *fileBinder) bindFunc(d *syntax.FuncDecl) {
	fnFrame := &frame{scope: d.Span(), names: map[string][]oracle.Define{}}
	for _, def := range fb.model.Defines {
		if def.Scope == d.Span() {
			fnFrame.add(def)
		}
	}
	fb.frames = append(fb.frames, fnFrame)
	defer func() { fb.frames = fb.frames[:len(fb.frames)-1] }()

	sigTPs := map[string]loc.Location{}
	for _, defs := range fnFrame.names {
		for _, def := range defs {
			if def.Role == oracle.RoleTypeParameter {
				sigTPs[def.Name] = def.DefinedAt
			}
		}
	}
	fb.bindTypeUses(d.RetType, sigTPs)
	for _, f := range d.Formals {
		fb.bindTypeUses(f.Type, sigTPs)
		if f.Default != nil {
			fb.bindExpr(f.Default)
		}
	}

	prevBody, prevFrame := fb.fnBody, fb.fnFrame
	fb.fnFrame = fnFrame
	switch {
	case d.Body != nil:
		fb.fnBody = d.Body.Span()
		fb.scope(d.Body.Span(), d.Span())
		fb.bindBlock(d.Body, d.Span())
	case d.ExprBody != nil:
		fb.fnBody = d.Span()
		fb.bindExpr(d.ExprBody)
	}
	fb.fnBody, fb.fnFrame = prevBody, prevFrame
}

func (fb *fileBinder) bindBlock(blk *syntax.Block, parent loc.Location) {
	fr := &frame{scope: blk.Span(), names: map[string][]oracle.Define{}}
	fb.scope(blk.Span(), parent)
	fb.frames = append(fb.frames, fr)
	defer func() { fb.frames = fb.frames[:len(fb.frames)-1] }()

	for _, stmt := range blk.Stmts {
		fb.bindStmt(stmt, fr, blk)
	}
}

func (fb *fileBinder) bindStmt(stmt syntax.Node, fr *frame, blk *syntax.Block) {
	switch s := stmt.(type) {
	case *syntax.VarDecl:
		fb.bindTypeUses(s.Type, nil)
		fb.bindExpr(s.Value)
		t := fb.typeFromNode(fb.file, s.Type, blk.Span())
		def := oracle.Define{
			Scope: blk.Span(), Name: s.Name.Name,
			ID:   fb.module + "::" + s.Name.Name,
			Role: oracle.RoleVariable, DefinedAt: s.Name.Span(), Type: t,
		}
		fb.define(fb.module, def)
		fb.fact(s.Name.Span(), t)
		fr.add(def)

	case *syntax.Assign:
		valType := fb.bindExpr(s.Value)
		existing := fb.lookup(s.Target.Name, isAssignable)
		if len(existing) > 0 {
			fb.use(s.Target.Span(), definedAts(existing)...)
			fb.fact(s.Target.Span(), existing[0].Type)
			return
		}
		// first unguarded use promotes to a definition
		def := oracle.Define{
			Scope: fb.fnBody, Name: s.Target.Name,
			ID:       fb.module + "::" + s.Target.Name,
			Role:     oracle.RoleVariable, DefinedAt: s.Target.Span(),
			Type:     valType, Implicit: true,
		}
		fb.define(fb.module, def)
		fb.fact(s.Target.Span(), valType)
		if fb.fnFrame != nil {
			fb.fnFrame.add(def)
		} else {
			fr.add(def)
		}

	case *syntax.Return:
		if s.Value != nil {
			fb.bindExpr(s.Value)
		}

	case *syntax.If:
		fb.bindExpr(s.Cond)
		fb.bindBlock(s.Then, blk.Span())
		if s.Else != nil {
			fb.bindBlock(s.Else, blk.Span())
		}

	case *syntax.ExprStmt:
		fb.bindExpr(s.X)

	case *syntax.FuncDecl:
		def := oracle.Define{
			Scope: blk.Span(), Name: s.Name.Name,
			ID:   fb.module + "::" + s.Name.Name,
			Role: oracle.RoleFunction, DefinedAt: s.Name.Span(), Type: fb.funcType(fb.file, s),
		}
		fb.define(fb.module, def)
		fr.add(def)
		fb.collectSignature(fb.file, fb.module, s)
		fb.bindFunc(s)
	}
}

func definedAts(defs []oracle.Define) []loc.Location {
	out := make([]loc.Location, len(defs))
	for i, d := range defs {
		out[i] = d.DefinedAt
	}
	return out
}

func isAssignable(d oracle.Define) bool {
	switch d.Role {
	case oracle.RoleVariable, oracle.RoleParameter, oracle.RoleKeywordParameter, oracle.RolePatternVariable:
		return true
	}
	return false
}

func isValue(d oracle.Define) bool {
	switch d.Role {
	case oracle.RoleVariable, oracle.RolePatternVariable, oracle.RoleParameter,
		oracle.RoleKeywordParameter, oracle.RoleFunction, oracle.RoleConstructor:
		return true
	}
	return false
}

func isCallable(d oracle.Define) bool {
	return d.Role == oracle.RoleFunction || d.Role == oracle.RoleConstructor
}

func isTypeName(d oracle.Define) bool {
	switch d.Role {
	case oracle.RoleDataType, oracle.RoleAlias, oracle.RoleNonterminal, oracle.RoleTypeParameter:
		return true
	}
	return false
}

func isNonterminal(d oracle.Define) bool {
	return d.Role == oracle.RoleNonterminal
}

func isOverloadable(d oracle.Define) bool {
	return d.Role == oracle.RoleFunction || d.Role == oracle.RoleConstructor
}

// lookup searches the frame stack innermost first. When the innermost hit is
// a function or constructor the outer frames still contribute their
// overloads; anything else shadows.
func (fb *fileBinder) lookup(name string, want func(oracle.Define) bool) []oracle.Define {
	var out []oracle.Define
	overloading := false
	for i := len(fb.frames) - 1; i >= 0; i-- {
		var hits []oracle.Define
		for _, d := range fb.frames[i].names[name] {
			if want(d) {
				hits = append(hits, d)
			}
		}
		if len(hits) == 0 {
			continue
		}
		if len(out) == 0 {
			out = hits
			overloading = isOverloadable(hits[0])
			if !overloading {
				return out
			}
			continue
		}
		for _, h := range hits {
			if isOverloadable(h) {
				out = append(out, h)
			}
		}
	}
	return out
}

// bindExpr resolves every name in the expression, records use-def edges and
// facts, and returns the expression's static type.
func (fb *fileBinder) bindExpr(e syntax.Node) oracle.Type {
	switch e := e.(type) {
	case *syntax.Lit:
		t := litType(e)
		fb.fact(e.Span(), t)
		return t

	case *syntax.QName:
		return fb.bindNameUse(e, isValue)

	case *syntax.Call:
		return fb.bindCall(e)

	case *syntax.FieldAccess:
		return fb.bindFieldAccess(e)

	case *syntax.Binary:
		lt := fb.bindExpr(e.L)
		fb.bindExpr(e.R)
		t := lt
		if strings.ContainsAny(e.Op, "=<>!") {
			t = oracle.Type{Kind: oracle.KindBool}
		}
		fb.fact(e.Span(), t)
		return t
	}
	return oracle.Type{}
}

func litType(l *syntax.Lit) oracle.Type {
	switch l.Kind {
	case "int":
		return oracle.Type{Kind: oracle.KindInt}
	case "real":
		return oracle.Type{Kind: oracle.KindReal}
	case "str":
		return oracle.Type{Kind: oracle.KindStr}
	case "bool":
		return oracle.Type{Kind: oracle.KindBool}
	}
	return oracle.Type{}
}

// bindNameUse handles both plain and qualified names. For qualified names
// the prefix gets its own use-def edge to the module header, which is what
// lets the classifier tell a module prefix from a value use.
func (fb *fileBinder) bindNameUse(q *syntax.QName, want func(oracle.Define) bool) oracle.Type {
	var defs []oracle.Define
	if len(q.Parts) == 1 {
		defs = fb.lookup(q.Parts[0].Name, want)
	} else {
		n := len(q.Parts)
		moduleName := joinParts(q.Parts[:n-1])
		headerLoc, ok := fb.model.Modules[moduleName]
		if !ok {
			fb.errf(q.Span(), "cannot find module %s", moduleName)
			return oracle.Type{}
		}
		prefix := q.PrefixSpan(n - 1)
		fb.use(prefix, headerLoc)
		fb.fact(prefix, oracle.Type{Kind: oracle.KindModule, Name: moduleName, Def: headerLoc})
		for _, d := range fb.resolveModuleMember(moduleName, q.Last().Name) {
			if want(d) {
				defs = append(defs, d)
			}
		}
	}
	if len(defs) == 0 {
		fb.errf(q.Span(), "undeclared name %s", q.String())
		return oracle.Type{}
	}
	fb.use(q.Span(), definedAts(defs)...)
	fb.fact(q.Span(), defs[0].Type)
	return defs[0].Type
}

func joinParts(parts []*syntax.Ident) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = p.Name
	}
	return strings.Join(names, "::")
}

func (fb *fileBinder) bindCall(c *syntax.Call) oracle.Type {
	var callees []oracle.Define
	if len(c.Fun.Parts) == 1 {
		callees = fb.lookup(c.Fun.Parts[0].Name, isCallable)
	} else {
		n := len(c.Fun.Parts)
		moduleName := joinParts(c.Fun.Parts[:n-1])
		if headerLoc, ok := fb.model.Modules[moduleName]; ok {
			prefix := c.Fun.PrefixSpan(n - 1)
			fb.use(prefix, headerLoc)
			fb.fact(prefix, oracle.Type{Kind: oracle.KindModule, Name: moduleName, Def: headerLoc})
			for _, d := range fb.resolveModuleMember(moduleName, c.Fun.Last().Name) {
				if isCallable(d) {
					callees = append(callees, d)
				}
			}
		} else {
			fb.errf(c.Fun.Span(), "cannot find module %s", moduleName)
		}
	}

	var ret oracle.Type
	if len(callees) == 0 {
		fb.errf(c.Fun.Span(), "undeclared function %s", c.Fun.String())
	} else {
		fb.use(c.Fun.Span(), definedAts(callees)...)
		fb.fact(c.Fun.Span(), callees[0].Type)
		if callees[0].Type.Ret != nil {
			ret = *callees[0].Type.Ret
		}
	}

	for _, arg := range c.Args {
		fb.bindExpr(arg.Value)
		if arg.Name == nil {
			continue
		}
		target, targetType, ok := fb.keywordTarget(callees, arg.Name.Name)
		if !ok {
			fb.errf(arg.Name.Span(), "no keyword %s on %s", arg.Name.Name, c.Fun.String())
			continue
		}
		fb.use(arg.Name.Span(), target)
		fb.fact(arg.Name.Span(), targetType)
	}
	fb.fact(c.Span(), ret)
	return ret
}

// keywordTarget finds the keyword formal or keyword field an argument binds
// to, among any of the resolved callees.
func (fb *fileBinder) keywordTarget(callees []oracle.Define, name string) (loc.Location, oracle.Type, bool) {
	for _, callee := range callees {
		for _, d := range fb.model.Defines {
			if d.Name != name {
				continue
			}
			switch callee.Role {
			case oracle.RoleFunction:
				if d.Role == oracle.RoleKeywordParameter && strings.HasPrefix(d.ID, callee.ID+"::") {
					return d.DefinedAt, d.Type, true
				}
			case oracle.RoleConstructor:
				if d.Role == oracle.RoleConstructorField && strings.HasPrefix(d.ID, callee.ID+"::") {
					return d.DefinedAt, d.Type, true
				}
			}
		}
	}
	return loc.Location{}, oracle.Type{}, false
}

func (fb *fileBinder) bindFieldAccess(fa *syntax.FieldAccess) oracle.Type {
	containerType := fb.bindExpr(fa.X)
	containerType = fb.deref(containerType)
	name := fa.Field.Name

	switch {
	case containerType.Kind == oracle.KindADT:
		info, ok := fb.adts[containerType.Def]
		if !ok {
			fb.errf(fa.Field.Span(), "unknown data type %s", containerType.Name)
			return oracle.Type{}
		}
		fieldLoc, ok := findFieldDecl(info.decl, name)
		if !ok {
			fb.errf(fa.Field.Span(), "no field %s on %s", name, containerType.Name)
			return oracle.Type{}
		}
		fieldDef, _ := fb.model.DefineAt(fieldLoc)
		fb.use(fa.Field.Span(), fieldLoc)
		fb.fact(fa.Field.Span(), fieldDef.Type)
		fb.fact(fa.Span(), fieldDef.Type)
		return fieldDef.Type

	case containerType.IsCollection():
		labelLoc, ok := containerType.LabelLoc(name)
		if !ok {
			fb.errf(fa.Field.Span(), "no field %s on this %s", name, kindWord(containerType.Kind))
			return oracle.Type{}
		}
		labelDef, _ := fb.model.DefineAt(labelLoc)
		fb.use(fa.Field.Span(), labelLoc)
		fb.fact(fa.Field.Span(), labelDef.Type)
		fb.fact(fa.Span(), labelDef.Type)
		return labelDef.Type
	}

	fb.errf(fa.Field.Span(), "cannot access field %s", name)
	return oracle.Type{}
}

func kindWord(k oracle.TypeKind) string {
	switch k {
	case oracle.KindRel:
		return "relation"
	case oracle.KindTuple:
		return "tuple"
	case oracle.KindList:
		return "list"
	case oracle.KindSet:
		return "set"
	}
	return "value"
}

// findFieldDecl searches common keyword fields first, then each variant's
// keyword fields, then positional fields, mirroring field lookup order in
// the checker proper.
func findFieldDecl(d *syntax.DataDecl, name string) (loc.Location, bool) {
	for _, f := range d.CommonKw {
		if f.Name.Name == name {
			return f.Name.Span(), true
		}
	}
	for _, v := range d.Variants {
		for _, f := range v.Fields {
			if f.Default != nil && f.Name.Name == name {
				return f.Name.Span(), true
			}
		}
	}
	for _, v := range d.Variants {
		for _, f := range v.Fields {
			if f.Default == nil && f.Name.Name == name {
				return f.Name.Span(), true
			}
		}
	}
	return loc.Location{}, false
}

// deref follows aliases to the underlying type.
func (fb *fileBinder) deref(t oracle.Type) oracle.Type {
	for t.Kind == oracle.KindAlias {
		under, ok := fb.aliasUnder[t.Def]
		if !ok {
			return t
		}
		t = under
	}
	return t
}

// bindTypeUses records use-def edges for named types and bound type
// variables inside a type expression.
func (fb *fileBinder) bindTypeUses(n syntax.Node, tps map[string]loc.Location) {
	syntax.Walk(n, func(c syntax.Node) bool {
		switch c := c.(type) {
		case *syntax.NamedType:
			fb.bindNameUse(c.Name, isTypeName)
			return true
		case *syntax.TypeVar:
			fb.fact(c.Span(), oracle.Type{Kind: oracle.KindTypeVar, Name: c.Name})
			if def, ok := tps[c.Name]; ok && def != c.Span() {
				fb.use(c.Span(), def)
			}
			return true
		}
		return true
	})
}
