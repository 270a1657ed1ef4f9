// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package token defines elab token types and keyword tables.
package token

// Token represents an elab token type.
type Token int

const (
	EOF Token = iota
	ILLEGAL

	IDENT     // x, Foo.bar
	NAT       // 42
	STRING    // "text"
	DIRECTIVE // #check, #eval, #print, #exit, #anything

	// Keywords
	DEF
	IMPORT
	NAMESPACE
	SECTION
	END
	OPEN
	TRUE
	FALSE

	// Punctuation and operators
	ASSIGN    // :=
	COLON     // :
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
	PLUS      // +
	MINUS     // -
	STAR      // *
	SLASH     // /
	APPEND    // ++
	EQ        // ==
	AND       // &&
	OR        // ||
)

// Directive names recognised by the parser.
const (
	DirectiveCheck = "#check"
	DirectiveEval  = "#eval"
	DirectivePrint = "#print"
	DirectiveExit  = "#exit"
)

var keywords = map[string]Token{
	"def":       DEF,
	"import":    IMPORT,
	"namespace": NAMESPACE,
	"section":   SECTION,
	"end":       END,
	"open":      OPEN,
	"true":      TRUE,
	"false":     FALSE,
}

// Lookup returns the keyword token for an identifier, or IDENT.
func Lookup(ident string) Token {
	if t, ok := keywords[ident]; ok {
		return t
	}
	return IDENT
}

// String returns the string representation of a token.
func (t Token) String() string {
	switch t {
	case EOF:
		return "EOF"
	case ILLEGAL:
		return "ILLEGAL"
	case IDENT:
		return "IDENT"
	case NAT:
		return "NAT"
	case STRING:
		return "STRING"
	case DIRECTIVE:
		return "DIRECTIVE"
	case DEF:
		return "def"
	case IMPORT:
		return "import"
	case NAMESPACE:
		return "namespace"
	case SECTION:
		return "section"
	case END:
		return "end"
	case OPEN:
		return "open"
	case TRUE:
		return "true"
	case FALSE:
		return "false"
	case ASSIGN:
		return ":="
	case COLON:
		return ":"
	case SEMICOLON:
		return ";"
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case APPEND:
		return "++"
	case EQ:
		return "=="
	case AND:
		return "&&"
	case OR:
		return "||"
	}
	return "UNKNOWN"
}

// StartsCommand returns true if the token can begin a top-level command.
// The parser resynchronises on these after a syntax error.
func (t Token) StartsCommand() bool {
	switch t {
	case DEF, IMPORT, NAMESPACE, SECTION, END, OPEN, DIRECTIVE, EOF:
		return true
	}
	return false
}

// IsBinaryOperator returns true if the token is an infix operator.
func (t Token) IsBinaryOperator() bool {
	switch t {
	case PLUS, MINUS, STAR, SLASH, APPEND, EQ, AND, OR:
		return true
	}
	return false
}

// Precedence returns the binding power of an infix operator, 0 otherwise.
func (t Token) Precedence() int {
	switch t {
	case OR:
		return 1
	case AND:
		return 2
	case EQ:
		return 3
	case PLUS, MINUS, APPEND:
		return 4
	case STAR, SLASH:
		return 5
	}
	return 0
}
