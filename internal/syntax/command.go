// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package syntax

import "strings"

// Command is one top-level syntactic unit. EndOfInput and Exit terminate
// the command loop; every other command is regular and gets elaborated.
type Command interface {
	Node
	// Kind returns a short name for logs, e.g. "def" or "#check".
	Kind() string
	commandNode()
}

// EndOfInput is produced once the parser reaches the end of the source.
type EndOfInput struct {
	At int
}

func (e *EndOfInput) Pos() int       { return e.At }
func (e *EndOfInput) String() string { return "" }
func (*EndOfInput) Kind() string     { return "eoi" }
func (*EndOfInput) commandNode()     {}

// Exit is the #exit directive.
type Exit struct {
	At int
}

func (e *Exit) Pos() int       { return e.At }
func (e *Exit) String() string { return "#exit" }
func (*Exit) Kind() string     { return "#exit" }
func (*Exit) commandNode()     {}

// Def declares a named constant, optionally with a type annotation.
type Def struct {
	At    int
	Name  *Ident
	Type  *Ident // nil when omitted
	Value Expr
}

func (d *Def) Pos() int { return d.At }
func (d *Def) String() string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(d.Name.String())
	if d.Type != nil {
		sb.WriteString(" : ")
		sb.WriteString(d.Type.String())
	}
	sb.WriteString(" := ")
	sb.WriteString(d.Value.String())
	return sb.String()
}
func (*Def) Kind() string { return "def" }
func (*Def) commandNode() {}

// Check is #check expr.
type Check struct {
	At   int
	Term Expr
}

func (c *Check) Pos() int       { return c.At }
func (c *Check) String() string { return "#check " + c.Term.String() }
func (*Check) Kind() string     { return "#check" }
func (*Check) commandNode()     {}

// Eval is #eval expr.
type Eval struct {
	At   int
	Term Expr
}

func (e *Eval) Pos() int       { return e.At }
func (e *Eval) String() string { return "#eval " + e.Term.String() }
func (*Eval) Kind() string     { return "#eval" }
func (*Eval) commandNode()     {}

// Print is #print name.
type Print struct {
	At   int
	Name *Ident
}

func (p *Print) Pos() int       { return p.At }
func (p *Print) String() string { return "#print " + p.Name.String() }
func (*Print) Kind() string     { return "#print" }
func (*Print) commandNode()     {}

// Namespace opens a named scope whose declarations are prefixed.
type Namespace struct {
	At   int
	Name *Ident
}

func (n *Namespace) Pos() int       { return n.At }
func (n *Namespace) String() string { return "namespace " + n.Name.String() }
func (*Namespace) Kind() string     { return "namespace" }
func (*Namespace) commandNode()     {}

// Section opens an optionally named scope without a name prefix.
type Section struct {
	At   int
	Name *Ident // nil for anonymous sections
}

func (s *Section) Pos() int { return s.At }
func (s *Section) String() string {
	if s.Name == nil {
		return "section"
	}
	return "section " + s.Name.String()
}
func (*Section) Kind() string { return "section" }
func (*Section) commandNode() {}

// End closes the innermost namespace or section.
type End struct {
	At   int
	Name *Ident // nil when omitted
}

func (e *End) Pos() int { return e.At }
func (e *End) String() string {
	if e.Name == nil {
		return "end"
	}
	return "end " + e.Name.String()
}
func (*End) Kind() string { return "end" }
func (*End) commandNode() {}

// Open makes the declarations of namespaces visible unqualified.
type Open struct {
	At         int
	Namespaces []*Ident
}

func (o *Open) Pos() int { return o.At }
func (o *Open) String() string {
	parts := make([]string, 0, len(o.Namespaces))
	for _, n := range o.Namespaces {
		parts = append(parts, n.String())
	}
	return "open " + strings.Join(parts, " ")
}
func (*Open) Kind() string { return "open" }
func (*Open) commandNode() {}

// Directive is a #name command the parser does not know about.
// Its arguments are kept as raw source text.
type Directive struct {
	At   int
	Name string
	Args string
}

func (d *Directive) Pos() int { return d.At }
func (d *Directive) String() string {
	if d.Args == "" {
		return d.Name
	}
	return d.Name + " " + d.Args
}
func (d *Directive) Kind() string { return d.Name }
func (*Directive) commandNode()   {}

// Malformed is what the parser returns for a command it could not parse.
// The diagnostic has already been logged by the parser.
type Malformed struct {
	At     int
	Source string
}

func (m *Malformed) Pos() int       { return m.At }
func (m *Malformed) String() string { return m.Source }
func (*Malformed) Kind() string     { return "malformed" }
func (*Malformed) commandNode()     {}

// IsEOI reports whether the command is the end-of-input marker.
func IsEOI(c Command) bool {
	_, ok := c.(*EndOfInput)
	return ok
}

// IsExitCommand reports whether the command is the #exit directive.
func IsExitCommand(c Command) bool {
	_, ok := c.(*Exit)
	return ok
}

// ContainsMissing reports whether an expression has a parser hole in it.
func ContainsMissing(e Expr) bool {
	switch n := e.(type) {
	case *Missing:
		return true
	case *Binary:
		return ContainsMissing(n.Left) || ContainsMissing(n.Right)
	case *Paren:
		return ContainsMissing(n.Inner)
	}
	return false
}
