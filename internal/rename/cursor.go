package rename

import (
	"github.com/skarsol/rscd/internal/index"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

type CursorKind int

const (
	KindUse CursorKind = iota
	KindDef
	KindTypeParameter
	KindCollectionField
	KindDataField
	KindDataKeywordField
	KindDataCommonKeywordField
	KindKeywordArgument
	KindModuleName
	KindExceptConstructor
)

func (k CursorKind) String() string {
	switch k {
	case KindUse:
		return "use"
	case KindDef:
		return "definition"
	case KindTypeParameter:
		return "type parameter"
	case KindCollectionField:
		return "collection field"
	case KindDataField:
		return "data field"
	case KindDataKeywordField:
		return "data keyword field"
	case KindDataCommonKeywordField:
		return "data common keyword field"
	case KindKeywordArgument:
		return "keyword argument"
	case KindModuleName:
		return "module name"
	case KindExceptConstructor:
		return "excepted constructor"
	}
	return "unknown"
}

// Cursor is the classified rename target: what kind of entity the position
// designates, the minimal location that carries it, and the textual name
// with any escape prefix stripped.
type Cursor struct {
	Kind CursorKind
	Loc  loc.Location
	Name string

	// ADT and FieldType are set for the data-field kinds.
	ADT       loc.Location
	FieldType oracle.Type
}

type candidate struct {
	kind CursorKind
	loc  loc.Location
}

// classify runs the candidate queries against the preloaded index and picks
// one kind by precedence.
func classify(w *index.WorkspaceInfo, tree *syntax.File, at loc.Location) (*Cursor, error) {
	ident := syntax.IdentAt(tree, at.Offset)
	name := ""
	if ident != nil {
		name = ident.Name
	} else if tv := typeVarAt(tree, at.Offset); tv != nil {
		name = tv.Name
	} else if nt := nonterminalAt(tree, at.Offset); nt != nil {
		name = nt.Name
	}
	if name == "" {
		return nil, unsupportedf(at, "no identifier under the cursor")
	}

	var cands []candidate

	if u, ok := smallestUse(w.Model, at); ok {
		cands = append(cands, candidate{KindUse, u})
	}
	if d, ok := smallestDef(w.Model, at, name); ok {
		cands = append(cands, candidate{KindDef, d})
	}
	if tp, ok := smallestFact(w.Model, at, func(t oracle.Type) bool {
		return t.Kind == oracle.KindTypeVar && t.Name == name
	}); ok {
		cands = append(cands, candidate{KindTypeParameter, tp})
	}
	if f, ok := fieldPosition(tree, at); ok {
		cands = append(cands, candidate{KindDataField, f})
	}
	if k, ok := keywordArgumentPosition(tree, at); ok {
		cands = append(cands, candidate{KindKeywordArgument, k})
	}
	if m, ok := moduleHeaderPosition(tree, at); ok {
		cands = append(cands, candidate{KindModuleName, m})
	}
	if e, ok := smallestFact(w.Model, at, func(t oracle.Type) bool {
		return t.Kind == oracle.KindExcept && t.Name == name
	}); ok {
		cands = append(cands, candidate{KindExceptConstructor, e})
	}

	if len(cands) == 0 {
		return nil, unsupportedf(at, "cannot rename this symbol")
	}

	has := func(k CursorKind) (loc.Location, bool) {
		for _, c := range cands {
			if c.kind == k {
				return c.loc, true
			}
		}
		return loc.Location{}, false
	}

	// precedence: first match wins
	if m, ok := has(KindModuleName); ok {
		return &Cursor{Kind: KindModuleName, Loc: m, Name: name}, nil
	}
	if k, ok := has(KindKeywordArgument); ok {
		return classifyField(w, tree, k, name, at)
	}
	if f, ok := has(KindDataField); ok {
		return classifyField(w, tree, f, name, at)
	}
	if d, ok := has(KindDef); ok {
		if def, found := w.Model.DefineAt(d); found && def.Role == oracle.RoleConstructorField {
			return classifyFieldDef(w, def, name)
		}
		return &Cursor{Kind: KindDef, Loc: d, Name: name}, nil
	}
	if u, ok := has(KindUse); ok {
		return classifyUse(w, tree, u, name, at)
	}
	if len(cands) == 1 {
		return &Cursor{Kind: cands[0].kind, Loc: cands[0].loc, Name: name}, nil
	}
	return nil, unsupportedf(at, "ambiguous rename target")
}

// classifyUse applies the use-disambiguation rules: module prefixes of
// qualified names are module renames, type-parameter facts stay type
// parameters, everything else is a plain use.
func classifyUse(w *index.WorkspaceInfo, tree *syntax.File, u loc.Location, name string, at loc.Location) (*Cursor, error) {
	defs := w.Model.UseDef[u]
	if len(defs) > 0 {
		if def, ok := w.Model.DefineAt(defs[0]); ok && def.Type.IsModule() {
			return &Cursor{Kind: KindModuleName, Loc: u, Name: name}, nil
		}
	}
	// a qualified name whose right part extends past the cursor means the
	// cursor sits on a module prefix, not on the value
	if q := syntax.EnclosingQName(tree, at); q != nil && len(q.Parts) > 1 {
		if q.Last().Span().Offset > at.End() && !allLocalVariables(w, defs) {
			return &Cursor{Kind: KindModuleName, Loc: u, Name: name}, nil
		}
	}
	if t, ok := w.Model.Facts[u]; ok && t.IsTypeVar() {
		return &Cursor{Kind: KindTypeParameter, Loc: u, Name: name}, nil
	}
	// uses of constructor fields escalate like field definitions do
	if len(defs) > 0 {
		if def, ok := w.Model.DefineAt(defs[0]); ok && def.Role == oracle.RoleConstructorField {
			return classifyFieldDef(w, def, name)
		}
		if def, ok := w.Model.DefineAt(defs[0]); ok && def.Role == oracle.RoleCollectionField {
			return &Cursor{Kind: KindCollectionField, Loc: u, Name: name}, nil
		}
	}
	return &Cursor{Kind: KindUse, Loc: u, Name: name}, nil
}

func allLocalVariables(w *index.WorkspaceInfo, defs []loc.Location) bool {
	if len(defs) == 0 {
		return false
	}
	for _, dl := range defs {
		d, ok := w.Model.DefineAt(dl)
		if !ok {
			return false
		}
		fileLoc := w.Model.Files[dl.File]
		if !(d.Role == oracle.RoleVariable && d.Scope != fileLoc) {
			return false
		}
	}
	return true
}

// classifyField is the data-field sub-classifier: given the field position,
// find the container and decide between collection fields and the three
// ADT field flavours.
func classifyField(w *index.WorkspaceInfo, tree *syntax.File, fieldLoc loc.Location, name string, at loc.Location) (*Cursor, error) {
	containerType, ok := containerTypeOf(w, tree, fieldLoc)
	if !ok || containerType.IsCollection() {
		return &Cursor{Kind: KindCollectionField, Loc: fieldLoc, Name: name}, nil
	}
	if containerType.Kind == oracle.KindADT {
		return adtFieldCursor(w, containerType.Def, fieldLoc, name)
	}
	if containerType.Kind == oracle.KindFunc {
		// keyword argument on a function call renames the keyword formal
		if defs := w.Model.UseDef[fieldLoc]; len(defs) > 0 {
			return &Cursor{Kind: KindDef, Loc: defs[0], Name: name}, nil
		}
	}
	return &Cursor{Kind: KindCollectionField, Loc: fieldLoc, Name: name}, nil
}

func classifyFieldDef(w *index.WorkspaceInfo, def oracle.Define, name string) (*Cursor, error) {
	adt, ok := w.Model.FieldOwner[def.DefinedAt]
	if !ok {
		return nil, &IllegalRenameError{Reasons: []Reason{{
			Kind: DefinitionsOutsideWorkspace, Witnesses: []loc.Location{def.DefinedAt},
		}}}
	}
	return adtFieldCursor(w, adt, def.DefinedAt, name)
}

// adtFieldCursor inspects the ADT declaration: common keyword fields first,
// then constructor keyword fields, then positional fields.
func adtFieldCursor(w *index.WorkspaceInfo, adtLoc, fieldLoc loc.Location, name string) (*Cursor, error) {
	adtTree, err := w.Tree(adtLoc.File)
	if err != nil {
		return nil, failf("no tree for %s: %v", adtLoc.File, err)
	}
	decl := dataDeclAt(adtTree, adtLoc)
	if decl == nil {
		return nil, &IllegalRenameError{Reasons: []Reason{{
			Kind: DefinitionsOutsideWorkspace, Witnesses: []loc.Location{adtLoc},
		}}}
	}
	mk := func(kind CursorKind, f *syntax.Field) (*Cursor, error) {
		t := w.Model.Facts[f.Name.Span()]
		return &Cursor{Kind: kind, Loc: fieldLoc, Name: name, ADT: adtLoc, FieldType: t}, nil
	}
	for _, f := range decl.CommonKw {
		if f.Name.Name == name {
			return mk(KindDataCommonKeywordField, f)
		}
	}
	for _, v := range decl.Variants {
		for _, f := range v.Fields {
			if f.Default != nil && f.Name.Name == name {
				return mk(KindDataKeywordField, f)
			}
		}
	}
	for _, v := range decl.Variants {
		for _, f := range v.Fields {
			if f.Default == nil && f.Name.Name == name {
				return mk(KindDataField, f)
			}
		}
	}
	return nil, &IllegalRenameError{Reasons: []Reason{{
		Kind: DefinitionsOutsideWorkspace, Witnesses: []loc.Location{fieldLoc},
	}}}
}

// containerTypeOf finds the static type of the container a field position
// is syntactically attached to.
func containerTypeOf(w *index.WorkspaceInfo, tree *syntax.File, fieldLoc loc.Location) (oracle.Type, bool) {
	var container oracle.Type
	found := false
	syntax.Walk(tree, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.FieldAccess:
			if n.Field.Span() == fieldLoc {
				if t, ok := w.Model.Facts[n.X.Span()]; ok {
					container, found = t, true
				}
			}
		case *syntax.Arg:
			if n.Name != nil && n.Name.Span() == fieldLoc {
				if call, ok := enclosingCall(tree, fieldLoc); ok {
					if t, hasFact := w.Model.Facts[call.Fun.Span()]; hasFact {
						if t.IsFunc() && t.Ret != nil && t.Ret.Kind == oracle.KindADT {
							container, found = *t.Ret, true
						} else {
							container, found = t, true
						}
					}
				}
			}
		case *syntax.Field:
			if n.Name.Span() == fieldLoc {
				if adt, ok := w.Model.FieldOwner[fieldLoc]; ok {
					if t, hasFact := w.Model.Facts[adt]; hasFact {
						container, found = t, true
					}
				}
			}
		case *syntax.TypeField:
			if n.Label != nil && n.Label.Span() == fieldLoc {
				// collection labels have no ADT container
				container, found = oracle.Type{Kind: oracle.KindTuple}, true
			}
		}
		return true
	})
	return container, found
}

func enclosingCall(tree *syntax.File, at loc.Location) (*syntax.Call, bool) {
	var best *syntax.Call
	syntax.Walk(tree, func(n syntax.Node) bool {
		if c, ok := n.(*syntax.Call); ok && at.In(c.Span()) {
			best = c
		}
		return true
	})
	return best, best != nil
}

func dataDeclAt(tree *syntax.File, adtLoc loc.Location) *syntax.DataDecl {
	var found *syntax.DataDecl
	syntax.Walk(tree, func(n syntax.Node) bool {
		if d, ok := n.(*syntax.DataDecl); ok && adtLoc.In(d.Span()) {
			found = d
		}
		return true
	})
	return found
}

// candidate queries, each a smallest-containment scan

func smallestUse(m *oracle.Model, at loc.Location) (loc.Location, bool) {
	var best loc.Location
	found := false
	for u := range m.UseDef {
		if !at.In(u) {
			continue
		}
		if !found || u.Length < best.Length {
			best, found = u, true
		}
	}
	return best, found
}

func smallestDef(m *oracle.Model, at loc.Location, name string) (loc.Location, bool) {
	var best loc.Location
	found := false
	for _, d := range m.Defines {
		if d.Name != name || !at.In(d.DefinedAt) {
			continue
		}
		if !found || d.DefinedAt.Length < best.Length {
			best, found = d.DefinedAt, true
		}
	}
	return best, found
}

func smallestFact(m *oracle.Model, at loc.Location, want func(oracle.Type) bool) (loc.Location, bool) {
	var best loc.Location
	found := false
	for l, t := range m.Facts {
		if !at.In(l) || !want(t) {
			continue
		}
		if !found || l.Length < best.Length {
			best, found = l, true
		}
	}
	return best, found
}

// syntactic queries on the cursor file's tree

func fieldPosition(tree *syntax.File, at loc.Location) (loc.Location, bool) {
	var best loc.Location
	found := false
	consider := func(l loc.Location) {
		if at.In(l) && (!found || l.Length < best.Length) {
			best, found = l, true
		}
	}
	syntax.Walk(tree, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.FieldAccess:
			consider(n.Field.Span())
		case *syntax.Field:
			consider(n.Name.Span())
		case *syntax.TypeField:
			if n.Label != nil {
				consider(n.Label.Span())
			}
		}
		return true
	})
	return best, found
}

func keywordArgumentPosition(tree *syntax.File, at loc.Location) (loc.Location, bool) {
	var best loc.Location
	found := false
	syntax.Walk(tree, func(n syntax.Node) bool {
		if a, ok := n.(*syntax.Arg); ok && a.Name != nil && at.In(a.Name.Span()) {
			if !found || a.Name.Span().Length < best.Length {
				best, found = a.Name.Span(), true
			}
		}
		return true
	})
	return best, found
}

func moduleHeaderPosition(tree *syntax.File, at loc.Location) (loc.Location, bool) {
	if tree.Header == nil {
		return loc.Location{}, false
	}
	if at.In(tree.Header.Name.Span()) {
		return tree.Header.Name.Last().Span(), true
	}
	return loc.Location{}, false
}

func typeVarAt(tree *syntax.File, offset int) *syntax.TypeVar {
	var found *syntax.TypeVar
	syntax.Walk(tree, func(n syntax.Node) bool {
		if tv, ok := n.(*syntax.TypeVar); ok && tv.Span().Covers(offset) {
			found = tv
		}
		return true
	})
	return found
}

func nonterminalAt(tree *syntax.File, offset int) *syntax.Nonterminal {
	var found *syntax.Nonterminal
	syntax.Walk(tree, func(n syntax.Node) bool {
		if nt, ok := n.(*syntax.Nonterminal); ok && nt.Span().Covers(offset) {
			found = nt
		}
		return true
	})
	return found
}
