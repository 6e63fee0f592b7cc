package loc

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Pos is 1-based, columns count codepoints. In the LSP 0-based and UTF-16,
// conversion happens at the wire in one place only.
type Pos struct {
	Line uint
	Col  uint
}

type Range struct {
	Start Pos
	End   Pos
}

// Location is a byte span inside one file plus its line/column range.
type Location struct {
	File   string
	Offset int
	Length int
	Rng    Range
}

func (l Location) End() int {
	return l.Offset + l.Length
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Rng.Start.Line, l.Rng.Start.Col)
}

// In reports containment. Containment is reflexive: a location is inside
// itself.
func (l Location) In(outer Location) bool {
	if l.File != outer.File {
		return false
	}
	return l.Offset >= outer.Offset && l.End() <= outer.End()
}

// StrictlyIn excludes equality of the spans.
func (l Location) StrictlyIn(outer Location) bool {
	if !l.In(outer) {
		return false
	}
	return l.Offset != outer.Offset || l.Length != outer.Length
}

// Covers reports whether the byte offset falls inside the span. The end
// offset counts as inside so a cursor directly behind an identifier still
// hits it.
func (l Location) Covers(offset int) bool {
	return offset >= l.Offset && offset <= l.End()
}

// PathPrefix reports whether dir is an ancestor directory of path.
func PathPrefix(dir, path string) bool {
	dir = filepath.Clean(dir)
	path = filepath.Clean(path)
	if dir == path {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
