// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package elab implements the elab command elaborator and the
// classification of elaboration failures into diagnostics.
package elab

import (
	"fmt"
	"log/slog"
	"strings"

	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/syntax"
)

// OutputWriter receives the output of #check, #eval and #print.
type OutputWriter func(text string) error

// ScopeKind distinguishes the entries of the scope stack.
type ScopeKind int

const (
	ScopeRoot ScopeKind = iota
	ScopeNamespace
	ScopeSection
)

// Scope is one entry of the scope stack.
type Scope struct {
	Kind      ScopeKind
	Header    string   // "root", the namespace name, or the section name
	Namespace string   // current full namespace, "" at the root
	Opens     []string // opened namespaces, innermost last
}

// RootScope returns the scope every command stream starts in.
func RootScope() Scope {
	return Scope{Kind: ScopeRoot, Header: "root"}
}

// State is the elaboration state threaded through the command loop.
// It is passed and returned by value; the slices it holds are never
// appended to in place, so a caller's copy is never changed behind its back.
type State struct {
	Env      *env.Environment
	Messages message.Log
	CmdPos   int
	Scopes   []Scope
}

// NewState returns the initial state for an environment and header log.
func NewState(e *env.Environment, log message.Log) State {
	return State{Env: e, Messages: log, Scopes: []Scope{RootScope()}}
}

// CurrentScope returns the innermost scope.
func (s State) CurrentScope() Scope {
	if len(s.Scopes) == 0 {
		return RootScope()
	}
	return s.Scopes[len(s.Scopes)-1]
}

func (s State) pushScope(sc Scope) State {
	n := len(s.Scopes)
	s.Scopes = append(s.Scopes[:n:n], sc)
	return s
}

func (s State) popScope() State {
	s.Scopes = s.Scopes[: len(s.Scopes)-1 : len(s.Scopes)-1]
	return s
}

// Context is built fresh for every elaboration call and never stored.
type Context struct {
	FileName string
	FileMap  *message.FileMap
	CmdPos   int
	Output   OutputWriter
	Logger   *slog.Logger
}

// Elaborator elaborates commands against an environment.
type Elaborator struct{}

// New creates a new Elaborator.
func New() *Elaborator {
	return &Elaborator{}
}

// ElabCommand elaborates one regular command. On success it returns the
// updated state; on failure it returns an Exception and the caller must
// discard whatever state the elaborator was building.
func (el *Elaborator) ElabCommand(stx syntax.Command, ctx *Context, st State) (State, error) {
	switch c := stx.(type) {
	case *syntax.Def:
		return el.elabDef(c, st)
	case *syntax.Check:
		_, typ, err := el.infer(c.Term, st)
		if err != nil {
			return st, err
		}
		return st, write(ctx, fmt.Sprintf("%s : %s", c.Term, typ))
	case *syntax.Eval:
		term, _, err := el.infer(c.Term, st)
		if err != nil {
			return st, err
		}
		v, err := Evaluate(term, st.Env)
		if err != nil {
			return st, &InternalFailure{Err: err}
		}
		return st, write(ctx, v.String())
	case *syntax.Print:
		full, ok := resolveName(st, c.Name.Name)
		if !ok {
			return st, &UnresolvedReference{Node: c.Name}
		}
		d, _ := st.Env.Find(full)
		return st, write(ctx, d.String())
	case *syntax.Namespace:
		cur := st.CurrentScope()
		return st.pushScope(Scope{
			Kind:      ScopeNamespace,
			Header:    c.Name.Name,
			Namespace: qualify(cur.Namespace, c.Name.Name),
			Opens:     cur.Opens,
		}), nil
	case *syntax.Section:
		cur := st.CurrentScope()
		header := ""
		if c.Name != nil {
			header = c.Name.Name
		}
		return st.pushScope(Scope{
			Kind:      ScopeSection,
			Header:    header,
			Namespace: cur.Namespace,
			Opens:     cur.Opens,
		}), nil
	case *syntax.End:
		return el.elabEnd(c, st)
	case *syntax.Open:
		return el.elabOpen(c, st)
	case *syntax.Malformed:
		return st, Silent{}
	case *syntax.Directive:
		return st, &Unclassified{Ref: c}
	}
	return st, &Unclassified{Ref: stx}
}

func (el *Elaborator) elabDef(c *syntax.Def, st State) (State, error) {
	if syntax.ContainsMissing(c.Value) {
		return st, Silent{}
	}
	full := qualify(st.CurrentScope().Namespace, c.Name.Name)
	if st.Env.Contains(full) {
		return st, &DirectMessage{Ref: c.Name, Msg: fmt.Sprintf("'%s' has already been declared", full)}
	}

	value, typ, err := el.infer(c.Value, st)
	if err != nil {
		return st, err
	}
	if c.Type != nil {
		expected, ok := env.ParseType(c.Type.Name)
		if !ok {
			return st, &UnresolvedReference{Node: c.Type}
		}
		if typ != expected {
			return st, &DirectMessage{Ref: c.Value, Msg: fmt.Sprintf(
				"type mismatch\n  %s\nhas type\n  %s\nbut is expected to have type\n  %s",
				c.Value, typ, expected)}
		}
	}

	next, err := st.Env.Add(env.Declaration{
		Name:   full,
		Type:   typ,
		Value:  value,
		Module: st.Env.Header().MainModule,
	})
	if err != nil {
		return st, &DirectMessage{Ref: c.Name, Msg: err.Error()}
	}
	st.Env = next
	return st, nil
}

func (el *Elaborator) elabEnd(c *syntax.End, st State) (State, error) {
	if len(st.Scopes) <= 1 {
		return st, &DirectMessage{Ref: c, Msg: "invalid 'end', insufficient scopes"}
	}
	top := st.CurrentScope()
	name := ""
	if c.Name != nil {
		name = c.Name.Name
	}
	if name != top.Header {
		if name == "" {
			return st, &DirectMessage{Ref: c, Msg: "invalid 'end', name is missing"}
		}
		return st, &DirectMessage{Ref: c, Msg: "invalid 'end', name mismatch"}
	}
	return st.popScope(), nil
}

func (el *Elaborator) elabOpen(c *syntax.Open, st State) (State, error) {
	cur := st.CurrentScope()
	opens := append([]string(nil), cur.Opens...)
	for _, id := range c.Namespaces {
		ns, ok := resolveNamespace(st, id.Name)
		if !ok {
			return st, &DirectMessage{Ref: id, Msg: fmt.Sprintf("unknown namespace '%s'", id.Name)}
		}
		opens = append(opens, ns)
	}
	cur.Opens = opens
	scopes := append([]Scope(nil), st.Scopes...)
	scopes[len(scopes)-1] = cur
	st.Scopes = scopes
	return st, nil
}

func write(ctx *Context, text string) error {
	if ctx.Output == nil {
		return nil
	}
	if err := ctx.Output(text + "\n"); err != nil {
		return &InternalFailure{Err: fmt.Errorf("write output: %w", err)}
	}
	return nil
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "." + name
}

// namespaceChain returns ns and each of its parents, innermost first.
func namespaceChain(ns string) []string {
	var chain []string
	for ns != "" {
		chain = append(chain, ns)
		i := strings.LastIndex(ns, ".")
		if i < 0 {
			break
		}
		ns = ns[:i]
	}
	return chain
}

// resolveName finds the declaration a name refers to: the current
// namespace and its parents first, then opened namespaces, then the root.
func resolveName(st State, name string) (string, bool) {
	cur := st.CurrentScope()
	for _, ns := range namespaceChain(cur.Namespace) {
		if full := qualify(ns, name); st.Env.Contains(full) {
			return full, true
		}
	}
	for i := len(cur.Opens) - 1; i >= 0; i-- {
		if full := qualify(cur.Opens[i], name); st.Env.Contains(full) {
			return full, true
		}
	}
	if st.Env.Contains(name) {
		return name, true
	}
	return "", false
}

func resolveNamespace(st State, name string) (string, bool) {
	for _, ns := range namespaceChain(st.CurrentScope().Namespace) {
		if full := qualify(ns, name); st.Env.IsNamespace(full) {
			return full, true
		}
	}
	if st.Env.IsNamespace(name) {
		return name, true
	}
	return "", false
}
