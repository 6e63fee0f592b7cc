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

// checkLegality runs the four independent checks and unions their reasons.
// Reasons never abort: the driver aggregates them and fails once, so the
// user sees every blocker together.
func checkLegality(ctx context.Context, w *index.WorkspaceInfo, cursor *Cursor, res *Resolution, newName string) ([]Reason, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}
	var reasons []Reason

	if r, bad := checkName(cursor, res, newName); bad {
		reasons = append(reasons, r)
	}
	reasons = append(reasons, checkOutsideWorkspace(w, res)...)
	reasons = append(reasons, checkDoubleDeclarations(w, res, newName)...)
	reasons = append(reasons, checkModuleCollisions(w, res)...)
	reasons = append(reasons, checkCapture(w, res, newName)...)

	sort.Slice(reasons, func(i, j int) bool { return reasons[i].Kind < reasons[j].Kind })
	return reasons, nil
}

// checkName parses the escaped new name as the syntactic category the role
// set demands.
func checkName(cursor *Cursor, res *Resolution, newName string) (Reason, bool) {
	cat := syntax.CatIdent
	for _, d := range res.Defs {
		switch d.Role {
		case oracle.RoleNonterminal:
			cat = syntax.CatNonterminal
		case oracle.RoleNonterminalLabel:
			cat = syntax.CatNonterminalLabel
		}
	}
	if syntax.ValidName(newName, cat) {
		return Reason{}, false
	}
	return Reason{Kind: InvalidName, Witnesses: []loc.Location{cursor.Loc}}, true
}

func checkOutsideWorkspace(w *index.WorkspaceInfo, res *Resolution) []Reason {
	var witnesses []loc.Location
	for _, d := range res.Defs {
		if !w.SourceFiles[d.DefinedAt.File] {
			witnesses = append(witnesses, d.DefinedAt)
		}
	}
	if len(witnesses) == 0 {
		return nil
	}
	return []Reason{{Kind: DefinitionsOutsideWorkspace, Witnesses: witnesses}}
}

// checkDoubleDeclarations pairs every renamed define against every existing
// define of the new name declared in the same scope. Nested redeclarations
// are legal shadowing; the capture check covers those.
func checkDoubleDeclarations(w *index.WorkspaceInfo, res *Resolution, newName string) []Reason {
	bare := syntax.Unescape(newName)
	var reasons []Reason
	for _, cur := range res.Defs {
		for _, existing := range w.Model.Defines {
			if existing.Name != bare {
				continue
			}
			if cur.Scope != existing.Scope || legallyOverloadable(w, cur, existing) {
				continue
			}
			reasons = append(reasons, Reason{
				Kind:      DoubleDeclaration,
				Witnesses: []loc.Location{cur.DefinedAt, existing.DefinedAt},
			})
		}
	}
	return reasons
}

// checkModuleCollisions rejects a module rename whose target path already
// exists in the workspace, loaded or not.
func checkModuleCollisions(w *index.WorkspaceInfo, res *Resolution) []Reason {
	var reasons []Reason
	for _, fr := range res.FileRenames {
		if !w.SourceFiles[fr[1]] {
			continue
		}
		witnesses := []loc.Location{}
		for _, d := range res.Defs {
			if d.DefinedAt.File == fr[0] {
				witnesses = append(witnesses, d.DefinedAt)
			}
		}
		if existing, ok := w.Model.Files[fr[1]]; ok {
			witnesses = append(witnesses, existing)
		}
		reasons = append(reasons, Reason{Kind: DoubleDeclaration, Witnesses: witnesses})
	}
	return reasons
}

// legallyOverloadable decides whether a renamed define may coexist with an
// existing define of the new name in an overlapping scope.
func legallyOverloadable(w *index.WorkspaceInfo, cur, existing oracle.Define) bool {
	callable := func(r oracle.Role) bool {
		return r == oracle.RoleFunction || r == oracle.RoleConstructor
	}
	switch {
	case callable(cur.Role) && callable(existing.Role):
		return true
	case cur.Role == oracle.RoleDataType && existing.Role == oracle.RoleDataType:
		// same-named data declarations merge their constructors
		return true
	case cur.Role == oracle.RoleConstructorField && existing.Role == oracle.RoleConstructorField:
		// fields of the same ADT double up only when they share their
		// container (the same constructor, or both common)
		if w.Model.FieldOwner[cur.DefinedAt] != w.Model.FieldOwner[existing.DefinedAt] {
			return true
		}
		return containerID(cur) != containerID(existing)
	case cur.Role == oracle.RoleTypeParameter && existing.Role == oracle.RoleTypeParameter:
		// two type parameters in one signature would alias
		return cur.Scope != existing.Scope
	}
	return false
}

func containerID(d oracle.Define) string {
	i := strings.LastIndex(d.ID, "::")
	if i < 0 {
		return d.ID
	}
	return d.ID[:i]
}

// checkCapture detects the three ways a rename can change what an existing
// name resolves to.
func checkCapture(w *index.WorkspaceInfo, res *Resolution, newName string) []Reason {
	bare := syntax.Unescape(newName)
	var captured []loc.Location
	seen := map[loc.Location]bool{}
	capture := func(ls ...loc.Location) {
		for _, l := range ls {
			if !seen[l] {
				seen[l] = true
				captured = append(captured, l)
			}
		}
	}

	newDefs := definesNamed(w, bare)

	// implicit definitions of the new name inside a renamed definition's
	// scope turn into uses of it
	for _, nD := range newDefs {
		if !isImplicit(w, nD) {
			continue
		}
		for _, cur := range res.Defs {
			if nD.DefinedAt.In(cur.Scope) {
				capture(nD.DefinedAt, cur.DefinedAt)
			}
		}
	}

	// a current use under a new-name definition's scope gets shadowed when
	// its own definition sits further out
	for _, nD := range newDefs {
		for _, u := range res.Uses {
			if !u.In(nD.Scope) {
				continue
			}
			for _, t := range w.Model.UseDef[u] {
				if cur, ok := findDef(res.Defs, t); ok && nD.Scope.StrictlyIn(cur.Scope) {
					capture(u, nD.DefinedAt)
				}
			}
		}
	}

	// a use of the new name inside a renamed definition's scope starts
	// resolving to the renamed definition instead
	for u, targets := range w.Model.UseDef {
		var nD oracle.Define
		hitsNew := false
		for _, t := range targets {
			if d, ok := w.Model.DefineAt(t); ok && d.Name == bare {
				nD, hitsNew = d, true
				break
			}
		}
		if !hitsNew {
			continue
		}
		for _, cur := range res.Defs {
			if u.In(cur.Scope) && cur.Scope.StrictlyIn(nD.Scope) {
				capture(u, cur.DefinedAt)
			}
		}
	}

	if len(captured) == 0 {
		return nil
	}
	sort.Slice(captured, func(i, j int) bool {
		if captured[i].File != captured[j].File {
			return captured[i].File < captured[j].File
		}
		return captured[i].Offset < captured[j].Offset
	})
	return []Reason{{Kind: CaptureChange, Witnesses: captured}}
}

func definesNamed(w *index.WorkspaceInfo, name string) []oracle.Define {
	var out []oracle.Define
	for _, d := range w.Model.Defines {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// isImplicit replicates the checker's rule: variable defines promoted from
// a first unguarded use.
func isImplicit(w *index.WorkspaceInfo, d oracle.Define) bool {
	if d.Implicit {
		return true
	}
	if d.Role != oracle.RoleVariable && d.Role != oracle.RolePatternVariable {
		return false
	}
	_, usedAt := w.Model.UseDef[d.DefinedAt]
	return usedAt
}

func findDef(defs []oracle.Define, at loc.Location) (oracle.Define, bool) {
	for _, d := range defs {
		if d.DefinedAt == at {
			return d, true
		}
	}
	return oracle.Define{}, false
}
