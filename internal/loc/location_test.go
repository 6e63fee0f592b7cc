package loc

import (
	"testing"

	"github.com/nalgeon/be"
)

func mk(file string, offset, length int) Location {
	return Location{File: file, Offset: offset, Length: length}
}

func TestIn(t *testing.T) {
	outer := mk("a.rsc", 10, 20)
	inner := mk("a.rsc", 12, 4)

	be.True(t, inner.In(outer))
	be.True(t, outer.In(outer)) // containment is reflexive
	be.True(t, !outer.In(inner))
	be.True(t, !mk("b.rsc", 12, 4).In(outer))
}

func TestStrictlyIn(t *testing.T) {
	outer := mk("a.rsc", 10, 20)
	inner := mk("a.rsc", 12, 4)

	be.True(t, inner.StrictlyIn(outer))
	be.True(t, !outer.StrictlyIn(outer))

	// same start offset but shorter still counts as strict
	prefix := mk("a.rsc", 10, 5)
	be.True(t, prefix.StrictlyIn(outer))
}

func TestCovers(t *testing.T) {
	l := mk("a.rsc", 5, 3)

	be.True(t, l.Covers(5))
	be.True(t, l.Covers(7))
	be.True(t, l.Covers(8)) // cursor directly behind the identifier
	be.True(t, !l.Covers(9))
	be.True(t, !l.Covers(4))
}

func TestPathPrefix(t *testing.T) {
	be.True(t, PathPrefix("/ws/src", "/ws/src/a/M.rsc"))
	be.True(t, PathPrefix("/ws", "/ws"))
	be.True(t, !PathPrefix("/ws/src", "/ws/srcother/M.rsc"))
	be.True(t, !PathPrefix("/ws/src/a", "/ws/src"))
}
