package loc

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestUTF16ColAscii(t *testing.T) {
	m := NewColumnMapper("int a = 1;\nint b = 2;\n")
	be.Equal(t, m.UTF16Col(1, 5), uint(5))
	be.Equal(t, m.UTF16Col(2, 1), uint(1))
}

func TestUTF16ColAstral(t *testing.T) {
	// the emoji occupies two UTF-16 code units but one codepoint
	m := NewColumnMapper("int \U0001F600x = 1;")
	be.Equal(t, m.UTF16Col(1, 5), uint(5))  // before the emoji
	be.Equal(t, m.UTF16Col(1, 6), uint(7))  // after it, shifted by one unit
	be.Equal(t, m.UTF16Col(1, 7), uint(8))
}

func TestUTF16Range(t *testing.T) {
	m := NewColumnMapper("\U0001F600\U0001F600abc")
	got := m.UTF16Range(Range{
		Start: Pos{Line: 1, Col: 3},
		End:   Pos{Line: 1, Col: 6},
	})
	be.Equal(t, got.Start.Col, uint(5))
	be.Equal(t, got.End.Col, uint(8))
}

func TestUTF16ColOutOfRange(t *testing.T) {
	m := NewColumnMapper("abc")
	be.Equal(t, m.UTF16Col(9, 4), uint(4))
}
