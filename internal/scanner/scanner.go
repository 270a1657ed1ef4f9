// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package scanner provides a Unicode-aware lexer for elab source text.
package scanner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"nickandperla.net/elab/internal/token"
)

// Scanner tokenizes elab input rune-by-rune starting at a byte offset.
// It never mutates the input, so a scanner can be recreated at any
// position the parser has recorded.
type Scanner struct {
	input  string
	pos    int // byte offset of the next unread rune
	peeked *Item
}

// Item represents a scanned token with its value.
type Item struct {
	Token token.Token
	Value string
	Pos   int // Byte offset where this token started
	End   int // Byte offset just past the token
}

// New creates a new Scanner positioned at the start of input.
func New(input string) *Scanner {
	return NewAt(input, 0)
}

// NewAt creates a new Scanner positioned at byte offset pos.
func NewAt(input string, pos int) *Scanner {
	if pos > len(input) {
		pos = len(input)
	}
	return &Scanner{input: input, pos: pos}
}

// Pos returns the offset of the next item (the peeked one if any).
func (s *Scanner) Pos() int {
	if s.peeked != nil {
		return s.peeked.Pos
	}
	return s.pos
}

// Peek returns the next item without consuming it.
func (s *Scanner) Peek() Item {
	if s.peeked != nil {
		return *s.peeked
	}
	item := s.Next()
	s.peeked = &item
	return item
}

// Next returns the next token from the input.
func (s *Scanner) Next() Item {
	if s.peeked != nil {
		item := *s.peeked
		s.peeked = nil
		return item
	}

	s.skipTrivia()
	start := s.pos
	if s.pos >= len(s.input) {
		return Item{Token: token.EOF, Pos: start, End: start}
	}

	r := s.read()
	switch {
	case isIdentStart(r):
		s.acceptIdent()
		value := s.input[start:s.pos]
		return s.item(token.Lookup(value), start)
	case r == '#':
		if !isIdentStart(s.peekRune()) {
			return s.item(token.ILLEGAL, start)
		}
		s.acceptIdent()
		return s.item(token.DIRECTIVE, start)
	case unicode.IsDigit(r):
		for unicode.IsDigit(s.peekRune()) {
			s.read()
		}
		return s.item(token.NAT, start)
	case r == '"':
		return s.scanString(start)
	}

	switch r {
	case ':':
		if s.accept('=') {
			return s.item(token.ASSIGN, start)
		}
		return s.item(token.COLON, start)
	case ';':
		return s.item(token.SEMICOLON, start)
	case '(':
		return s.item(token.LPAREN, start)
	case ')':
		return s.item(token.RPAREN, start)
	case '+':
		if s.accept('+') {
			return s.item(token.APPEND, start)
		}
		return s.item(token.PLUS, start)
	case '-':
		return s.item(token.MINUS, start)
	case '*':
		return s.item(token.STAR, start)
	case '/':
		return s.item(token.SLASH, start)
	case '=':
		if s.accept('=') {
			return s.item(token.EQ, start)
		}
	case '&':
		if s.accept('&') {
			return s.item(token.AND, start)
		}
	case '|':
		if s.accept('|') {
			return s.item(token.OR, start)
		}
	}
	return s.item(token.ILLEGAL, start)
}

func (s *Scanner) item(t token.Token, start int) Item {
	return Item{Token: t, Value: s.input[start:s.pos], Pos: start, End: s.pos}
}

// scanString scans a double-quoted literal. The item value is the
// unquoted content; an unterminated literal is ILLEGAL.
func (s *Scanner) scanString(start int) Item {
	var sb strings.Builder
	for s.pos < len(s.input) {
		r := s.read()
		switch r {
		case '"':
			return Item{Token: token.STRING, Value: sb.String(), Pos: start, End: s.pos}
		case '\\':
			if s.pos >= len(s.input) {
				break
			}
			switch esc := s.read(); esc {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(esc)
			}
		case '\n':
			return s.item(token.ILLEGAL, start)
		default:
			sb.WriteRune(r)
		}
	}
	return s.item(token.ILLEGAL, start)
}

// skipTrivia consumes whitespace, `-- line` comments and `/- block -/` comments.
func (s *Scanner) skipTrivia() {
	for s.pos < len(s.input) {
		rest := s.input[s.pos:]
		switch {
		case strings.HasPrefix(rest, "--"):
			if i := strings.IndexByte(rest, '\n'); i >= 0 {
				s.pos += i + 1
			} else {
				s.pos = len(s.input)
			}
		case strings.HasPrefix(rest, "/-"):
			if i := strings.Index(rest[2:], "-/"); i >= 0 {
				s.pos += i + 4
			} else {
				s.pos = len(s.input)
			}
		default:
			r, size := utf8.DecodeRuneInString(rest)
			if !unicode.IsSpace(r) {
				return
			}
			s.pos += size
		}
	}
}

func (s *Scanner) read() rune {
	r, size := utf8.DecodeRuneInString(s.input[s.pos:])
	s.pos += size
	return r
}

func (s *Scanner) peekRune() rune {
	if s.pos >= len(s.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.pos:])
	return r
}

func (s *Scanner) accept(r rune) bool {
	if s.peekRune() == r && s.pos < len(s.input) {
		s.read()
		return true
	}
	return false
}

// acceptIdent consumes identifier characters, including dotted segments
// such as Foo.bar.
func (s *Scanner) acceptIdent() {
	for {
		r := s.peekRune()
		if isIdentChar(r) {
			s.read()
			continue
		}
		if r == '.' && s.pos+1 < len(s.input) {
			next, _ := utf8.DecodeRuneInString(s.input[s.pos+1:])
			if isIdentStart(next) {
				s.read()
				continue
			}
		}
		return
	}
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

// isIdentChar returns true if the rune is valid in an identifier (letter, digit, underscore, prime).
func isIdentChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '\''
}
