package syntax

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/skarsol/rscd/internal/loc"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokInt
	tokReal
	tokStr
	tokPunct
	tokKeyword
)

type token struct {
	kind    tokKind
	text    string // idents: escape stripped
	escaped bool
	offset  int
	length  int
	rng     loc.Range
}

func (t token) is(kind tokKind, text string) bool {
	return t.kind == kind && t.text == text
}

var reservedWords = map[string]bool{
	"module": true, "import": true, "data": true, "alias": true,
	"syntax": true, "int": true, "str": true, "bool": true, "real": true,
	"void": true, "list": true, "set": true, "rel": true, "tuple": true,
	"return": true, "if": true, "else": true, "true": true, "false": true,
}

// Reserved reports whether name collides with a keyword and must be escaped.
func Reserved(name string) bool {
	return reservedWords[name]
}

// Escape prepends a backslash iff the name is reserved.
func Escape(name string) string {
	if Reserved(name) {
		return "\\" + name
	}
	return name
}

// Unescape strips a single leading backslash.
func Unescape(name string) string {
	return strings.TrimPrefix(name, "\\")
}

// ParseError carries the source range of the first offending token.
type ParseError struct {
	File string
	Rng  loc.Range
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Rng.Start.Line, e.Rng.Start.Col, e.Msg)
}

type scanner struct {
	src  string
	file string
	off  int
	line uint
	col  uint
}

func newScanner(src, file string) *scanner {
	return &scanner{src: src, file: file, line: 1, col: 1}
}

func (s *scanner) pos() loc.Pos { return loc.Pos{Line: s.line, Col: s.col} }

func (s *scanner) advance(r rune, size int) {
	s.off += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

func (s *scanner) peek() (rune, int) {
	if s.off >= len(s.src) {
		return 0, 0
	}
	for _, r := range s.src[s.off:] {
		return r, len(string(r))
	}
	return 0, 0
}

func (s *scanner) peekAt(byteAhead int) rune {
	p := s.off + byteAhead
	if p >= len(s.src) {
		return 0
	}
	for _, r := range s.src[p:] {
		return r
	}
	return 0
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (s *scanner) scanAll() ([]token, error) {
	var toks []token
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

var twoBytePunct = []string{"::", "==", "!=", "<=", ">="}

func (s *scanner) next() (token, error) {
	for {
		r, size := s.peek()
		if size == 0 {
			return token{kind: tokEOF, offset: s.off, rng: loc.Range{Start: s.pos(), End: s.pos()}}, nil
		}
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\n':
			s.advance(r, size)
			continue
		case r == '/' && s.peekAt(1) == '/':
			for {
				r, size = s.peek()
				if size == 0 || r == '\n' {
					break
				}
				s.advance(r, size)
			}
			continue
		case r == '/' && s.peekAt(1) == '*':
			s.advance(r, size)
			s.advance('*', 1)
			for {
				r, size = s.peek()
				if size == 0 {
					return token{}, &ParseError{File: s.file, Rng: loc.Range{Start: s.pos(), End: s.pos()}, Msg: "unterminated comment"}
				}
				if r == '*' && s.peekAt(1) == '/' {
					s.advance(r, size)
					s.advance('/', 1)
					break
				}
				s.advance(r, size)
			}
			continue
		}
		break
	}

	start := s.off
	startPos := s.pos()
	r, size := s.peek()

	mk := func(kind tokKind, text string, escaped bool) token {
		return token{
			kind: kind, text: text, escaped: escaped,
			offset: start, length: s.off - start,
			rng: loc.Range{Start: startPos, End: s.pos()},
		}
	}

	switch {
	case r == '\\' && isIdentStart(s.peekAt(1)):
		s.advance(r, size)
		text := s.scanIdentText()
		return mk(tokIdent, text, true), nil

	case isIdentStart(r):
		text := s.scanIdentText()
		if reservedWords[text] {
			return mk(tokKeyword, text, false), nil
		}
		return mk(tokIdent, text, false), nil

	case unicode.IsDigit(r):
		kind := tokInt
		for {
			r, size = s.peek()
			if size == 0 || !unicode.IsDigit(r) {
				break
			}
			s.advance(r, size)
		}
		if r == '.' && unicode.IsDigit(s.peekAt(1)) {
			kind = tokReal
			s.advance(r, 1)
			for {
				r, size = s.peek()
				if size == 0 || !unicode.IsDigit(r) {
					break
				}
				s.advance(r, size)
			}
		}
		return mk(kind, s.src[start:s.off], false), nil

	case r == '"':
		s.advance(r, size)
		for {
			r, size = s.peek()
			if size == 0 {
				return token{}, &ParseError{File: s.file, Rng: loc.Range{Start: startPos, End: s.pos()}, Msg: "unterminated string"}
			}
			s.advance(r, size)
			if r == '"' {
				break
			}
		}
		return mk(tokStr, s.src[start:s.off], false), nil

	default:
		for _, p := range twoBytePunct {
			if strings.HasPrefix(s.src[s.off:], p) {
				s.advance(rune(p[0]), 1)
				s.advance(rune(p[1]), 1)
				return mk(tokPunct, p, false), nil
			}
		}
		if strings.ContainsRune("(){}[],;=|!&:.+-*/<>", r) {
			s.advance(r, size)
			return mk(tokPunct, string(r), false), nil
		}
		return token{}, &ParseError{File: s.file, Rng: loc.Range{Start: startPos, End: s.pos()}, Msg: fmt.Sprintf("unexpected character %q", r)}
	}
}

func (s *scanner) scanIdentText() string {
	start := s.off
	for {
		r, size := s.peek()
		if size == 0 || !isIdentPart(r) {
			break
		}
		s.advance(r, size)
	}
	return s.src[start:s.off]
}
