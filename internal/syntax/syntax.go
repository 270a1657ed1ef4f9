// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package syntax defines the elab syntax tree produced by the parser.
package syntax

import (
	"strconv"
	"strings"

	"nickandperla.net/elab/internal/token"
)

// Node is the interface all syntax nodes implement.
type Node interface {
	// Pos returns the byte offset where the node starts.
	Pos() int
	// String returns source-like text for the node.
	String() string
}

// Expr is a term appearing on the right of := or after #check/#eval.
type Expr interface {
	Node
	exprNode()
}

// Ident is a possibly dotted name reference.
type Ident struct {
	At   int
	Name string
}

func (i *Ident) Pos() int       { return i.At }
func (i *Ident) String() string { return i.Name }
func (*Ident) exprNode()        {}

// NatLit is a natural number literal.
type NatLit struct {
	At    int
	Value uint64
}

func (n *NatLit) Pos() int       { return n.At }
func (n *NatLit) String() string { return strconv.FormatUint(n.Value, 10) }
func (*NatLit) exprNode()        {}

// StrLit is a string literal.
type StrLit struct {
	At    int
	Value string
}

func (s *StrLit) Pos() int       { return s.At }
func (s *StrLit) String() string { return strconv.Quote(s.Value) }
func (*StrLit) exprNode()        {}

// BoolLit is true or false.
type BoolLit struct {
	At    int
	Value bool
}

func (b *BoolLit) Pos() int       { return b.At }
func (b *BoolLit) String() string { return strconv.FormatBool(b.Value) }
func (*BoolLit) exprNode()        {}

// Binary is an infix application.
type Binary struct {
	Op    token.Token
	Left  Expr
	Right Expr
}

func (b *Binary) Pos() int { return b.Left.Pos() }
func (b *Binary) String() string {
	left, right := b.Left.String(), b.Right.String()
	if needsParens(b.Left, b.Op.Precedence()) {
		left = "(" + left + ")"
	}
	if needsParens(b.Right, b.Op.Precedence()+1) {
		right = "(" + right + ")"
	}
	return left + " " + b.Op.String() + " " + right
}
func (*Binary) exprNode() {}

// Paren is a parenthesised expression.
type Paren struct {
	At    int
	Inner Expr
}

func (p *Paren) Pos() int       { return p.At }
func (p *Paren) String() string { return "(" + p.Inner.String() + ")" }
func (*Paren) exprNode()        {}

// Missing marks a hole left by the parser after a syntax error.
// Elaborating it aborts silently since the parser already reported the error.
type Missing struct {
	At int
}

func (m *Missing) Pos() int       { return m.At }
func (m *Missing) String() string { return "<missing>" }
func (*Missing) exprNode()        {}

// needsParens reports whether a binary operand binds looser than prec.
// Operators are left associative, so right operands need prec+1.
func needsParens(e Expr, prec int) bool {
	b, ok := e.(*Binary)
	return ok && b.Op.Precedence() < prec
}

// Import is a single module reference in the header.
type Import struct {
	At     int
	Module string
}

func (i *Import) Pos() int       { return i.At }
func (i *Import) String() string { return "import " + i.Module }

// Header is the module header: the leading import directives.
type Header struct {
	At      int
	Imports []*Import
}

func (h *Header) Pos() int { return h.At }
func (h *Header) String() string {
	var sb strings.Builder
	for i, imp := range h.Imports {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(imp.String())
	}
	return sb.String()
}

// Modules returns the imported module names in order.
func (h *Header) Modules() []string {
	names := make([]string, 0, len(h.Imports))
	for _, imp := range h.Imports {
		names = append(names, imp.Module)
	}
	return names
}
