package rename

import (
	"context"
	"sort"
	"strings"

	"github.com/skarsol/rscd/internal/index"
	"github.com/skarsol/rscd/internal/loc"
	"github.com/skarsol/rscd/internal/oracle"
	"github.com/skarsol/rscd/internal/syntax"
)

// Resolution is the full closure of a rename: every define that must move
// as a unit, every use that resolves to one of them, and the file renames a
// module rename implies.
type Resolution struct {
	Defs        []oracle.Define
	Uses        []loc.Location
	FileRenames [][2]string

	// FunctionLocal renames never need the full workspace load.
	FunctionLocal bool
}

func resolve(ctx context.Context, w *index.WorkspaceInfo, cursor *Cursor, newName string) (*Resolution, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	seeds, err := seedDefs(w, cursor)
	if err != nil {
		return nil, err
	}

	defSet := map[loc.Location]oracle.Define{}
	for _, d := range seeds {
		defSet[d.DefinedAt] = d
	}
	anchor := seeds[0]

	// worklist over the use relation: any use reaching a member pulls in
	// its compatible siblings. The scope graph is finite and acyclic, so
	// this converges.
	for changed := true; changed; {
		changed = false
		for _, targets := range w.Model.UseDef {
			hit := false
			for _, t := range targets {
				if _, ok := defSet[t]; ok {
					hit = true
					break
				}
			}
			if !hit {
				continue
			}
			for _, t := range targets {
				if _, ok := defSet[t]; ok {
					continue
				}
				d, ok := w.Model.DefineAt(t)
				if !ok {
					continue
				}
				if overloads(w, anchor, d) {
					defSet[t] = d
					changed = true
				}
			}
		}
	}

	res := &Resolution{}
	for _, d := range defSet {
		res.Defs = append(res.Defs, d)
	}
	sort.Slice(res.Defs, func(i, j int) bool {
		a, b := res.Defs[i].DefinedAt, res.Defs[j].DefinedAt
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Offset < b.Offset
	})

	for u, targets := range w.Model.UseDef {
		for _, t := range targets {
			if _, ok := defSet[t]; ok {
				res.Uses = append(res.Uses, u)
				break
			}
		}
	}
	sort.Slice(res.Uses, func(i, j int) bool {
		if res.Uses[i].File != res.Uses[j].File {
			return res.Uses[i].File < res.Uses[j].File
		}
		return res.Uses[i].Offset < res.Uses[j].Offset
	})

	res.FunctionLocal = functionLocal(w, cursor, res.Defs)

	if cursor.Kind == KindModuleName {
		renames, err := moduleFileRenames(w, res.Defs, newName)
		if err != nil {
			return nil, err
		}
		res.FileRenames = renames
	}
	return res, nil
}

// seedDefs maps the classified cursor to its initial define set.
func seedDefs(w *index.WorkspaceInfo, cursor *Cursor) ([]oracle.Define, error) {
	switch cursor.Kind {
	case KindDataField, KindDataKeywordField, KindDataCommonKeywordField:
		// all same-named fields of the owning ADT move together, whether
		// or not a use connects them
		var fieldLoc loc.Location
		if defs := w.Model.UseDef[cursor.Loc]; len(defs) > 0 {
			fieldLoc = defs[0]
		} else {
			fieldLoc = cursor.Loc
		}
		fieldDef, ok := w.Model.DefineAt(fieldLoc)
		if !ok {
			return nil, failf("no definition recorded at %s", fieldLoc)
		}
		var out []oracle.Define
		for _, d := range w.Model.Defines {
			if d.Role == oracle.RoleConstructorField && d.Name == fieldDef.Name &&
				w.Model.FieldOwner[d.DefinedAt] == cursor.ADT {
				out = append(out, d)
			}
		}
		if len(out) == 0 {
			out = []oracle.Define{fieldDef}
		}
		return out, nil
	}

	var out []oracle.Define
	for _, l := range w.GetDefs(cursor.Loc) {
		d, ok := w.Model.DefineAt(l)
		if !ok {
			return nil, failf("no definition recorded at %s", l)
		}
		out = append(out, d)
	}
	return out, nil
}

// overloads decides whether two defines are potentially overloaded and must
// be renamed together: same simple name, compatible role, and (for fields)
// the same owning ADT. Mutual reachability is established by the caller's
// worklist, which only ever follows shared use sites.
func overloads(w *index.WorkspaceInfo, a, b oracle.Define) bool {
	if a.Name != b.Name {
		return false
	}
	ga, gb := roleGroup(a.Role), roleGroup(b.Role)
	if ga != gb {
		return false
	}
	if a.Role == oracle.RoleConstructorField {
		return w.Model.FieldOwner[a.DefinedAt] == w.Model.FieldOwner[b.DefinedAt]
	}
	return true
}

func roleGroup(r oracle.Role) int {
	switch r {
	case oracle.RoleFunction:
		return 1
	case oracle.RoleConstructor:
		return 2
	case oracle.RoleDataType:
		return 3
	case oracle.RoleConstructorField:
		return 4
	case oracle.RoleCollectionField:
		return 5
	case oracle.RoleModuleName:
		return 6
	case oracle.RoleNonterminal:
		return 7
	case oracle.RoleNonterminalLabel:
		return 8
	}
	return 0
}

// functionLocal reports whether every resolved define lies strictly inside
// a function declaration. Module and collection-field renames are never
// function-local.
func functionLocal(w *index.WorkspaceInfo, cursor *Cursor, defs []oracle.Define) bool {
	switch cursor.Kind {
	case KindModuleName, KindCollectionField, KindDataField, KindDataKeywordField, KindDataCommonKeywordField:
		return false
	}
	fnSpans := map[string][]loc.Location{}
	for _, d := range defs {
		file := d.DefinedAt.File
		spans, ok := fnSpans[file]
		if !ok {
			tree, err := w.Tree(file)
			if err != nil {
				return false
			}
			syntax.Walk(tree, func(n syntax.Node) bool {
				if fn, isFn := n.(*syntax.FuncDecl); isFn {
					spans = append(spans, fn.Span())
				}
				return true
			})
			fnSpans[file] = spans
		}
		inside := false
		for _, span := range spans {
			if d.DefinedAt.StrictlyIn(span) && d.DefinedAt != span {
				// the function's own name does not count as inside it
				if fnNameSpan, ok := fnNameAt(w, file, span); !ok || fnNameSpan != d.DefinedAt {
					inside = true
					break
				}
			}
		}
		if !inside {
			return false
		}
	}
	return true
}

func fnNameAt(w *index.WorkspaceInfo, file string, fnSpan loc.Location) (loc.Location, bool) {
	tree, err := w.Tree(file)
	if err != nil {
		return loc.Location{}, false
	}
	var name loc.Location
	found := false
	syntax.Walk(tree, func(n syntax.Node) bool {
		if fn, ok := n.(*syntax.FuncDecl); ok && fn.Span() == fnSpan {
			name = fn.Name.Span()
			found = true
		}
		return true
	})
	return name, found
}

// moduleFileRenames derives the file moves a module rename implies from the
// same path convention the loader uses.
func moduleFileRenames(w *index.WorkspaceInfo, defs []oracle.Define, newName string) ([][2]string, error) {
	var out [][2]string
	for _, d := range defs {
		if d.Role != oracle.RoleModuleName {
			continue
		}
		oldPath := d.DefinedAt.File
		root, ok := w.SourceRootFor(oldPath)
		if !ok {
			return nil, failf("no source root contains %s", oldPath)
		}
		parts := strings.Split(d.ID, "::")
		parts[len(parts)-1] = syntax.Unescape(newName)
		newPath := oracle.PathForModule(root, strings.Join(parts, "::"))
		if newPath != oldPath {
			out = append(out, [2]string{oldPath, newPath})
		}
	}
	return out, nil
}
