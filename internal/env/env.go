// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package env implements the elab environment: the declarations visible
// to later commands.
package env

import (
	"fmt"
	"strings"

	"nickandperla.net/elab/internal/syntax"
)

// MaxTrustLevel is the highest trust level an environment can be created with.
const MaxTrustLevel uint32 = 1024

// Type is the type of a declaration or expression.
type Type int

const (
	Unknown Type = iota
	Nat
	String
	Bool
)

// String returns the type name as written in source.
func (t Type) String() string {
	switch t {
	case Nat:
		return "Nat"
	case String:
		return "String"
	case Bool:
		return "Bool"
	default:
		return "?"
	}
}

// ParseType parses a type name. Returns false for unknown names.
func ParseType(s string) (Type, bool) {
	switch s {
	case "Nat":
		return Nat, true
	case "String":
		return String, true
	case "Bool":
		return Bool, true
	default:
		return Unknown, false
	}
}

// Declaration is a named, typed constant.
type Declaration struct {
	Name   string
	Type   Type
	Value  syntax.Expr
	Module string // module that declared it
}

// String renders the declaration the way #print shows it.
func (d Declaration) String() string {
	return fmt.Sprintf("def %s : %s := %s", d.Name, d.Type, d.Value)
}

// Header carries the environment's provenance.
type Header struct {
	TrustLevel uint32
	MainModule string
	Imports    []string
}

// Environment is an immutable set of declarations. Add returns a new
// Environment; the receiver is never modified, so a value held by one
// command is unaffected by what a later command does.
type Environment struct {
	header Header
	decls  map[string]Declaration
	order  []string
}

// New creates an empty environment.
func New(trustLevel uint32) (*Environment, error) {
	if trustLevel > MaxTrustLevel {
		return nil, fmt.Errorf("trust level %d exceeds maximum %d", trustLevel, MaxTrustLevel)
	}
	return &Environment{
		header: Header{TrustLevel: trustLevel},
		decls:  make(map[string]Declaration),
	}, nil
}

// Header returns a copy of the environment header.
func (e *Environment) Header() Header {
	h := e.header
	h.Imports = append([]string(nil), e.header.Imports...)
	return h
}

// Find retrieves a declaration by full name.
func (e *Environment) Find(name string) (Declaration, bool) {
	d, ok := e.decls[name]
	return d, ok
}

// Contains returns true if the name is declared.
func (e *Environment) Contains(name string) bool {
	_, ok := e.decls[name]
	return ok
}

// IsNamespace returns true if some declaration lives under ns.
func (e *Environment) IsNamespace(ns string) bool {
	prefix := ns + "."
	for _, name := range e.order {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Len returns the number of declarations.
func (e *Environment) Len() int { return len(e.order) }

// Declarations returns the declarations in declaration order.
func (e *Environment) Declarations() []Declaration {
	out := make([]Declaration, 0, len(e.order))
	for _, name := range e.order {
		out = append(out, e.decls[name])
	}
	return out
}

// ModuleDeclarations returns the declarations added by module, in order.
func (e *Environment) ModuleDeclarations(module string) []Declaration {
	var out []Declaration
	for _, name := range e.order {
		if d := e.decls[name]; d.Module == module {
			out = append(out, d)
		}
	}
	return out
}

// Add returns a new environment with d added.
func (e *Environment) Add(d Declaration) (*Environment, error) {
	if e.Contains(d.Name) {
		return nil, fmt.Errorf("'%s' has already been declared", d.Name)
	}
	clone := e.clone()
	clone.decls[d.Name] = d
	clone.order = append(clone.order, d.Name)
	return clone, nil
}

// WithHeader returns a new environment with the main module and import
// list replaced.
func (e *Environment) WithHeader(mainModule string, imports []string) *Environment {
	clone := e.clone()
	clone.header.MainModule = mainModule
	clone.header.Imports = append([]string(nil), imports...)
	return clone
}

// clone creates a copy that shares no mutable state with e.
func (e *Environment) clone() *Environment {
	c := &Environment{
		header: e.header,
		decls:  make(map[string]Declaration, len(e.decls)+1),
		order:  make([]string, len(e.order), len(e.order)+1),
	}
	for k, v := range e.decls {
		c.decls[k] = v
	}
	copy(c.order, e.order)
	c.header.Imports = append([]string(nil), e.header.Imports...)
	return c
}
