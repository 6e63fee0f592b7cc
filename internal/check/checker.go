// Package check is the reference type-checker oracle: it computes the
// defines, use-def edges, facts and scope relation the rename engine
// consumes. It resolves names across the files it is handed and, when
// Checker.Locate is set, the modules they import transitively; imports it
// cannot find stay unresolved and are reported as errors.
package check

import (
	"context"
	"fmt"
	"sort"

	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

type Checker struct {
	Read func(file string) (string, error)

	// Locate maps a qualified module name to its file. When set, ModelFor
	// follows imports transitively; a model for one file then covers its
	// whole import closure. When nil, unresolvable imports become checker
	// errors.
	Locate func(module string) (string, bool)
}

func New(read func(file string) (string, error)) *Checker {
	return &Checker{Read: read}
}

type adtInfo struct {
	decl   *syntax.DataDecl
	file   string
	module string
}

type binder struct {
	model       *oracle.Model
	trees       map[string]*syntax.File
	fileLocs    map[string]loc.Location
	moduleOf    map[string]string          // file -> module name
	fileOf      map[string]string          // module name -> file
	topDefs     map[string][]oracle.Define // module name -> module-level defines
	adts        map[loc.Location]*adtInfo  // ADT name loc -> info
	aliasUnder  map[loc.Location]oracle.Type
	seenLabels  map[loc.Location]bool
}

// ModelFor parses and binds the given files into one model. It is a pure
// function of the file contents; callers may run several concurrently.
func (c *Checker) ModelFor(ctx context.Context, files []string) (*oracle.Model, error) {
	b := &binder{
		model: &oracle.Model{
			UseDef:  map[loc.Location][]loc.Location{},
			Facts:   map[loc.Location]oracle.Type{},
			Scopes:  map[loc.Location]loc.Location{},
			Modules:    map[string]loc.Location{},
			Imports:    map[string][]string{},
			Files:      map[string]loc.Location{},
			FieldOwner: map[loc.Location]loc.Location{},
		},
		trees:       map[string]*syntax.File{},
		fileLocs:    map[string]loc.Location{},
		moduleOf:    map[string]string{},
		fileOf:      map[string]string{},
		topDefs:     map[string][]oracle.Define{},
		adts:        map[loc.Location]*adtInfo{},
		aliasUnder:  map[loc.Location]oracle.Type{},
		seenLabels:  map[loc.Location]bool{},
	}

	queue := make([]string, len(files))
	copy(queue, files)
	sort.Strings(queue)

	queued := map[string]bool{}
	for _, f := range queue {
		queued[f] = true
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := queue[0]
		queue = queue[1:]
		src, err := c.Read(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		tree, err := syntax.Parse(src, file)
		if err != nil {
			if pe, ok := err.(*syntax.ParseError); ok {
				b.model.Errors = append(b.model.Errors, oracle.CheckError{
					At:  loc.Location{File: file, Rng: pe.Rng},
					Msg: pe.Msg,
				})
				continue
			}
			return nil, err
		}
		b.trees[file] = tree
		fileLoc := wholeFileLoc(file, src)
		b.fileLocs[file] = fileLoc
		b.model.Files[file] = fileLoc

		if c.Locate == nil {
			continue
		}
		for _, decl := range tree.Decls {
			im, ok := decl.(*syntax.Import)
			if !ok {
				continue
			}
			dep, found := c.Locate(im.Module.String())
			if found && !queued[dep] {
				queued[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	var ordered []string
	for f := range b.trees {
		ordered = append(ordered, f)
	}
	sort.Strings(ordered)

	// declaration passes before any body is bound, so forward and
	// cross-module references resolve
	for _, file := range ordered {
		if tree, ok := b.trees[file]; ok {
			b.collectTypes(file, tree)
		}
	}
	for _, file := range ordered {
		if tree, ok := b.trees[file]; ok {
			b.collectValues(file, tree)
		}
	}
	for _, file := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if tree, ok := b.trees[file]; ok {
			b.bindFile(file, tree)
		}
	}
	return b.model, nil
}

func wholeFileLoc(file, src string) loc.Location {
	line := uint(1)
	col := uint(1)
	for _, r := range src {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return loc.Location{
		File:   file,
		Offset: 0,
		Length: len(src),
		Rng:    loc.Range{Start: loc.Pos{Line: 1, Col: 1}, End: loc.Pos{Line: line, Col: col}},
	}
}

func (b *binder) define(module string, d oracle.Define) {
	b.model.Defines = append(b.model.Defines, d)
	if d.Scope == b.fileLocs[d.DefinedAt.File] {
		b.topDefs[module] = append(b.topDefs[module], d)
	}
}

func (b *binder) errf(at loc.Location, format string, args ...any) {
	b.model.Errors = append(b.model.Errors, oracle.CheckError{
		At:  at,
		Msg: fmt.Sprintf(format, args...),
	})
}

func (b *binder) use(at loc.Location, targets ...loc.Location) {
	existing := b.model.UseDef[at]
	for _, t := range targets {
		dup := false
		for _, e := range existing {
			if e == t {
				dup = true
				break
			}
		}
		if !dup {
			existing = append(existing, t)
		}
	}
	sort.Slice(existing, func(i, j int) bool {
		if existing[i].File != existing[j].File {
			return existing[i].File < existing[j].File
		}
		return existing[i].Offset < existing[j].Offset
	})
	b.model.UseDef[at] = existing
}

func (b *binder) fact(at loc.Location, t oracle.Type) {
	b.model.Facts[at] = t
}

func (b *binder) scope(inner, outer loc.Location) {
	if inner != outer {
		b.model.Scopes[inner] = outer
	}
}

// collectTypes registers module headers, data types, aliases and grammar
// nonterminals so value declarations can mention them in any order.
func (b *binder) collectTypes(file string, tree *syntax.File) {
	fileLoc := b.fileLocs[file]
	moduleName := tree.Header.Name.String()
	headerLoc := tree.Header.Name.Last().Span()
	b.moduleOf[file] = moduleName
	if prev, dup := b.fileOf[moduleName]; dup {
		b.errf(headerLoc, "module %s already declared in %s", moduleName, prev)
	}
	b.fileOf[moduleName] = file
	b.model.Modules[moduleName] = headerLoc

	moduleType := oracle.Type{Kind: oracle.KindModule, Name: moduleName, Def: headerLoc}
	b.define(moduleName, oracle.Define{
		Scope: fileLoc, Name: tree.Header.Name.Last().Name, ID: moduleName,
		Role: oracle.RoleModuleName, DefinedAt: headerLoc, Type: moduleType,
	})
	b.fact(headerLoc, moduleType)

	for _, decl := range tree.Decls {
		switch d := decl.(type) {
		case *syntax.Import:
			b.model.Imports[file] = append(b.model.Imports[file], d.Module.String())

		case *syntax.DataDecl:
			nameLoc := d.Name.Span()
			adtType := oracle.Type{Kind: oracle.KindADT, Name: d.Name.Name, Def: nameLoc}
			b.define(moduleName, oracle.Define{
				Scope: fileLoc, Name: d.Name.Name, ID: moduleName + "::" + d.Name.Name,
				Role: oracle.RoleDataType, DefinedAt: nameLoc, Type: adtType,
			})
			b.fact(nameLoc, adtType)
			b.adts[nameLoc] = &adtInfo{decl: d, file: file, module: moduleName}
			b.scope(d.Span(), fileLoc)
			for _, tp := range d.TypeParams {
				tv := oracle.Type{Kind: oracle.KindTypeVar, Name: tp.Name}
				b.define(moduleName, oracle.Define{
					Scope: d.Span(), Name: tp.Name,
					ID:   moduleName + "::" + d.Name.Name + "::&" + tp.Name,
					Role: oracle.RoleTypeParameter, DefinedAt: tp.Span(), Type: tv,
				})
				b.fact(tp.Span(), tv)
			}

		case *syntax.AliasDecl:
			nameLoc := d.Name.Span()
			aliasType := oracle.Type{Kind: oracle.KindAlias, Name: d.Name.Name, Def: nameLoc}
			b.define(moduleName, oracle.Define{
				Scope: fileLoc, Name: d.Name.Name, ID: moduleName + "::" + d.Name.Name,
				Role: oracle.RoleAlias, DefinedAt: nameLoc, Type: aliasType,
			})
			b.fact(nameLoc, aliasType)
			b.scope(d.Span(), fileLoc)
			for _, tp := range d.TypeParams {
				tv := oracle.Type{Kind: oracle.KindTypeVar, Name: tp.Name}
				b.define(moduleName, oracle.Define{
					Scope: d.Span(), Name: tp.Name,
					ID:   moduleName + "::" + d.Name.Name + "::&" + tp.Name,
					Role: oracle.RoleTypeParameter, DefinedAt: tp.Span(), Type: tv,
				})
				b.fact(tp.Span(), tv)
			}

		case *syntax.SyntaxDecl:
			nameLoc := d.Name.Span()
			ntType := oracle.Type{Kind: oracle.KindNonterminal, Name: d.Name.Name, Def: nameLoc}
			b.define(moduleName, oracle.Define{
				Scope: fileLoc, Name: d.Name.Name, ID: moduleName + "::" + d.Name.Name,
				Role: oracle.RoleNonterminal, DefinedAt: nameLoc, Type: ntType,
			})
			b.fact(nameLoc, ntType)
			b.scope(d.Span(), fileLoc)
			for _, p := range d.Prods {
				if p.Label == nil {
					continue
				}
				b.define(moduleName, oracle.Define{
					Scope: d.Span(), Name: p.Label.Name,
					ID:   moduleName + "::" + d.Name.Name + "::" + p.Label.Name,
					Role: oracle.RoleNonterminalLabel, DefinedAt: p.Label.Span(), Type: ntType,
				})
				b.fact(p.Label.Span(), ntType)
			}
		}
	}
}

// collectValues registers module-level variables, functions, constructors
// and their fields, now that every named type is known.
func (b *binder) collectValues(file string, tree *syntax.File) {
	fileLoc := b.fileLocs[file]
	moduleName := b.moduleOf[file]

	for _, decl := range tree.Decls {
		switch d := decl.(type) {
		case *syntax.AliasDecl:
			b.aliasUnder[d.Name.Span()] = b.typeFromNode(file, d.Aliased, d.Span())

		case *syntax.VarDecl:
			t := b.typeFromNode(file, d.Type, fileLoc)
			b.define(moduleName, oracle.Define{
				Scope: fileLoc, Name: d.Name.Name, ID: moduleName + "::" + d.Name.Name,
				Role: oracle.RoleVariable, DefinedAt: d.Name.Span(), Type: t,
			})
			b.fact(d.Name.Span(), t)

		case *syntax.FuncDecl:
			fnType := b.funcType(file, d)
			b.define(moduleName, oracle.Define{
				Scope: fileLoc, Name: d.Name.Name, ID: moduleName + "::" + d.Name.Name,
				Role: oracle.RoleFunction, DefinedAt: d.Name.Span(), Type: fnType,
			})
			b.fact(d.Name.Span(), fnType)
			b.scope(d.Span(), fileLoc)
			b.collectSignature(file, moduleName, d)

		case *syntax.DataDecl:
			adtLoc := d.Name.Span()
			adtType := oracle.Type{Kind: oracle.KindADT, Name: d.Name.Name, Def: adtLoc}
			for _, f := range d.CommonKw {
				b.collectField(file, moduleName, d.Span(), adtLoc, d.Name.Name, "", f)
			}
			for _, v := range d.Variants {
				ctorType := oracle.Type{Kind: oracle.KindFunc, Name: v.Name.Name, Ret: &adtType}
				for _, f := range v.Fields {
					ctorType.Params = append(ctorType.Params, b.typeFromNode(file, f.Type, d.Span()))
				}
				b.define(moduleName, oracle.Define{
					Scope: fileLoc, Name: v.Name.Name,
					ID:   moduleName + "::" + d.Name.Name + "::" + v.Name.Name,
					Role: oracle.RoleConstructor, DefinedAt: v.Name.Span(), Type: ctorType,
				})
				b.fact(v.Name.Span(), ctorType)
				for _, f := range v.Fields {
					b.collectField(file, moduleName, d.Span(), adtLoc, d.Name.Name, v.Name.Name, f)
				}
			}
		}
	}
}

func (b *binder) collectField(file, moduleName string, declSpan, adtLoc loc.Location, adtName, ctorName string, f *syntax.Field) {
	t := b.typeFromNode(file, f.Type, declSpan)
	id := moduleName + "::" + adtName
	if ctorName != "" {
		id += "::" + ctorName
	}
	id += "::" + f.Name.Name
	b.define(moduleName, oracle.Define{
		Scope: declSpan, Name: f.Name.Name, ID: id,
		Role: oracle.RoleConstructorField, DefinedAt: f.Name.Span(), Type: t,
	})
	b.fact(f.Name.Span(), t)
	b.model.FieldOwner[f.Name.Span()] = adtLoc
}

// collectSignature registers the formals and the implicitly-bound signature
// type variables of a function, so keyword arguments and forward calls
// resolve before the body pass reaches the function itself.
func (b *binder) collectSignature(file, moduleName string, d *syntax.FuncDecl) {
	fnID := moduleName + "::" + d.Name.Name
	seen := map[string]loc.Location{}
	forTypeVars := func(n syntax.Node) {
		syntax.Walk(n, func(c syntax.Node) bool {
			tv, ok := c.(*syntax.TypeVar)
			if !ok {
				return true
			}
			t := oracle.Type{Kind: oracle.KindTypeVar, Name: tv.Name}
			b.fact(tv.Span(), t)
			if first, ok := seen[tv.Name]; ok {
				b.use(tv.Span(), first)
				return true
			}
			seen[tv.Name] = tv.Span()
			b.define(moduleName, oracle.Define{
				Scope: d.Span(), Name: tv.Name, ID: fnID + "::&" + tv.Name,
				Role: oracle.RoleTypeParameter, DefinedAt: tv.Span(), Type: t,
			})
			return true
		})
	}
	forTypeVars(d.RetType)
	for _, f := range d.Formals {
		forTypeVars(f.Type)
	}
	for _, f := range d.Formals {
		role := oracle.RoleParameter
		if f.Default != nil {
			role = oracle.RoleKeywordParameter
		}
		t := b.typeFromNode(file, f.Type, d.Span())
		b.define(moduleName, oracle.Define{
			Scope: d.Span(), Name: f.Name.Name, ID: fnID + "::" + f.Name.Name,
			Role: role, DefinedAt: f.Name.Span(), Type: t,
		})
		b.fact(f.Name.Span(), t)
	}
}

func (b *binder) funcType(file string, d *syntax.FuncDecl) oracle.Type {
	t := oracle.Type{Kind: oracle.KindFunc, Name: d.Name.Name}
	for _, f := range d.Formals {
		t.Params = append(t.Params, b.typeFromNode(file, f.Type, d.Span()))
	}
	ret := b.typeFromNode(file, d.RetType, d.Span())
	t.Ret = &ret
	return t
}

// resolveModuleMember finds a name among another module's top defines.
func (b *binder) resolveModuleMember(module, name string) []oracle.Define {
	var out []oracle.Define
	for _, d := range b.topDefs[module] {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

func (b *binder) importsOf(file string) []string {
	return b.model.Imports[file]
}
