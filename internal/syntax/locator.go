package syntax

import (
	"sort"

	"github.com/skarsol/rscd/internal/loc"
)

// NamedSubLocation returns the span of the identifier a node declares or
// names, per node kind. The second result is false for forms that carry no
// name of their own.
func NamedSubLocation(n Node) (loc.Location, bool) {
	switch n := n.(type) {
	case *Ident:
		return n.Span(), true
	case *TypeVar:
		return n.Span(), true
	case *Nonterminal:
		return n.Span(), true
	case *QName:
		return n.Last().Span(), true
	case *FuncDecl:
		return n.Name.Span(), true
	case *VarDecl:
		return n.Name.Span(), true
	case *Formal:
		return n.Name.Span(), true
	case *AliasDecl:
		return n.Name.Span(), true
	case *DataDecl:
		return n.Name.Span(), true
	case *ModuleHeader:
		return n.Name.Last().Span(), true
	case *SyntaxDecl:
		return n.Name.Span(), true
	case *Variant:
		return n.Name.Span(), true
	case *Field:
		return n.Name.Span(), true
	case *Assign:
		return n.Target.Span(), true
	case *Import:
		return n.Module.Last().Span(), true
	case *FieldAccess:
		return n.Field.Span(), true
	case *Call:
		return n.Fun.Last().Span(), true
	case *Arg:
		if n.Name != nil {
			return n.Name.Span(), true
		}
		return loc.Location{}, false
	case *Prod:
		if n.Label != nil {
			return n.Label.Span(), true
		}
		return loc.Location{}, false
	case *TypeField:
		if n.Label != nil {
			return n.Label.Span(), true
		}
		return loc.Location{}, false
	}
	return loc.Location{}, false
}

// EnclosingQName returns the innermost qualified name containing target, or
// nil.
func EnclosingQName(f *File, target loc.Location) *QName {
	var best *QName
	Walk(f, func(n Node) bool {
		if q, ok := n.(*QName); ok && target.In(q.Span()) {
			best = q
		}
		return true
	})
	return best
}

// IdentAt returns the identifier whose span covers the byte offset, or nil.
func IdentAt(f *File, offset int) *Ident {
	var found *Ident
	Walk(f, func(n Node) bool {
		if id, ok := n.(*Ident); ok && id.Span().Covers(offset) {
			found = id
		}
		return true
	})
	return found
}

// nodeWithSpan finds the node matching the exact span, else the smallest
// named node containing it.
func nodeWithSpan(f *File, target loc.Location) Node {
	var exact Node
	var smallest Node
	Walk(f, func(n Node) bool {
		sp := n.Span()
		if sp == target {
			exact = n
		}
		if target.In(sp) {
			if _, named := NamedSubLocation(n); named {
				if smallest == nil || sp.Length <= smallest.Span().Length {
					smallest = n
				}
			}
		}
		return true
	})
	if exact != nil {
		if _, named := NamedSubLocation(exact); named {
			return exact
		}
	}
	return smallest
}

// SubLocations maps every given location to its identifier sub-location.
// Locations that cannot be mapped come back in the second result; the caller
// turns those into an unsupported-rename failure.
func SubLocations(f *File, locs []loc.Location) (map[loc.Location]loc.Location, []loc.Location) {
	sorted := make([]loc.Location, len(locs))
	copy(sorted, locs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	result := make(map[loc.Location]loc.Location, len(sorted))
	var missing []loc.Location
	for _, l := range sorted {
		n := nodeWithSpan(f, l)
		if n == nil {
			missing = append(missing, l)
			continue
		}
		sub, ok := NamedSubLocation(n)
		if !ok {
			missing = append(missing, l)
			continue
		}
		result[l] = sub
	}
	return result, missing
}

// Name categories for legality checking of a proposed identifier.
type NameCategory int

const (
	CatIdent NameCategory = iota
	CatNonterminal
	CatNonterminalLabel
)

// ValidName parses the (possibly escaped) proposed name as the given
// syntactic category.
func ValidName(name string, cat NameCategory) bool {
	escaped := len(name) > 0 && name[0] == '\\'
	bare := Unescape(name)
	if bare == "" {
		return false
	}
	for i, r := range bare {
		if i == 0 {
			if !isIdentStart(r) {
				return false
			}
			continue
		}
		if !isIdentPart(r) {
			return false
		}
	}
	if Reserved(bare) && !escaped {
		return false
	}
	if cat == CatNonterminal {
		r := rune(bare[0])
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
