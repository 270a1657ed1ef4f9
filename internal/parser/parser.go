// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package parser turns elab source text into header and command syntax,
// one command at a time.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/scanner"
	"nickandperla.net/elab/internal/syntax"
	"nickandperla.net/elab/internal/token"
)

// Context is the read-only configuration shared by every parse of one input.
type Context struct {
	Env      *env.Environment // environment the context was created from
	Input    string
	FileName string
	FileMap  *message.FileMap
}

// NewContext builds a parser context for input.
func NewContext(e *env.Environment, input, fileName string) *Context {
	return &Context{
		Env:      e,
		Input:    input,
		FileName: fileName,
		FileMap:  message.NewFileMap(input),
	}
}

// State is the parse cursor between commands. It is a plain value:
// each ParseCommand call returns a new one.
type State struct {
	Pos        int  // byte offset of the next command
	Recovering bool // true after a syntax error until a command parses cleanly
}

// syntaxError is a parse failure at a byte offset.
type syntaxError struct {
	pos int
	msg string
}

func (e *syntaxError) Error() string { return e.msg }

// ParseHeader parses the leading import directives.
func ParseHeader(ctx *Context) (*syntax.Header, State, message.Log) {
	var log message.Log
	p := newParser(ctx, 0)
	header := &syntax.Header{At: p.peek().Pos}

	for p.peek().Token == token.IMPORT {
		kw := p.next()
		if p.peek().Token != token.IDENT {
			log = log.Add(ctx.errorAt(p.peek().Pos, p.unexpected("identifier")))
			p.synchronize(kw.Pos)
			return header, State{Pos: p.scan.Pos(), Recovering: true}, log
		}
		for p.peek().Token == token.IDENT {
			id := p.next()
			header.Imports = append(header.Imports, &syntax.Import{At: id.Pos, Module: id.Value})
		}
	}
	return header, State{Pos: p.scan.Pos()}, log
}

// ParseCommand parses the next command starting at st.Pos. Syntax errors
// are appended to log (once per error run) and the returned command is
// either a partial command containing syntax.Missing or syntax.Malformed.
func ParseCommand(ctx *Context, st State, log message.Log) (syntax.Command, State, message.Log) {
	p := newParser(ctx, st.Pos)
	for p.peek().Token == token.SEMICOLON {
		p.next()
	}
	start := p.peek().Pos

	cmd, err := p.command()
	if err == nil {
		// Peek so the next command starts at its first token, not at the
		// trivia after this one.
		return cmd, State{Pos: p.peek().Pos}, log
	}

	if !st.Recovering {
		log = log.Add(ctx.errorAt(err.pos, err.msg))
	}
	p.synchronize(start)
	end := p.scan.Pos()
	if cmd == nil {
		cmd = &syntax.Malformed{At: start, Source: strings.TrimSpace(ctx.Input[start:end])}
	}
	return cmd, State{Pos: end, Recovering: true}, log
}

// ParseExpr parses input as a single expression.
func ParseExpr(input string) (syntax.Expr, error) {
	ctx := NewContext(nil, input, "")
	p := newParser(ctx, 0)
	e, err := p.expr(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Token != token.EOF {
		return nil, fmt.Errorf("%s", p.unexpected("end of input"))
	}
	return e, nil
}

func (ctx *Context) errorAt(offset int, msg string) message.Diagnostic {
	pos := message.Position{Line: 1}
	if ctx.FileMap != nil {
		pos = ctx.FileMap.ToPosition(offset)
	}
	return message.Diagnostic{
		FileName: ctx.FileName,
		Offset:   offset,
		Pos:      pos,
		Severity: message.Error,
		Class:    message.ClassParse,
		Data:     msg,
	}
}

type parser struct {
	ctx  *Context
	scan *scanner.Scanner
}

func newParser(ctx *Context, pos int) *parser {
	return &parser{ctx: ctx, scan: scanner.NewAt(ctx.Input, pos)}
}

func (p *parser) peek() scanner.Item { return p.scan.Peek() }
func (p *parser) next() scanner.Item { return p.scan.Next() }

// synchronize skips to the next token that can start a command, always
// consuming at least one token past start so parsing makes progress.
func (p *parser) synchronize(start int) {
	if p.peek().Pos <= start && p.peek().Token != token.EOF {
		p.next()
	}
	for !p.peek().Token.StartsCommand() {
		p.next()
	}
}

func (p *parser) fail(expected string) *syntaxError {
	return &syntaxError{pos: p.peek().Pos, msg: p.unexpected(expected)}
}

func (p *parser) unexpected(expected string) string {
	item := p.peek()
	switch item.Token {
	case token.EOF:
		return "unexpected end of input; expected " + expected
	case token.ILLEGAL:
		return fmt.Sprintf("unexpected character '%s'; expected %s", item.Value, expected)
	default:
		return fmt.Sprintf("unexpected token '%s'; expected %s", item.Value, expected)
	}
}

func (p *parser) ident(expected string) (*syntax.Ident, *syntaxError) {
	if p.peek().Token != token.IDENT {
		return nil, p.fail(expected)
	}
	item := p.next()
	return &syntax.Ident{At: item.Pos, Name: item.Value}, nil
}

// optionalIdent consumes an identifier on the same line as the keyword.
func (p *parser) optionalIdent(after int) *syntax.Ident {
	item := p.peek()
	if item.Token != token.IDENT || strings.Contains(p.ctx.Input[after:item.Pos], "\n") {
		return nil
	}
	p.next()
	return &syntax.Ident{At: item.Pos, Name: item.Value}
}

// command parses one command. On an expression error it still returns the
// partially built command with a syntax.Missing hole.
func (p *parser) command() (syntax.Command, *syntaxError) {
	item := p.peek()
	switch item.Token {
	case token.EOF:
		return &syntax.EndOfInput{At: item.Pos}, nil
	case token.DEF:
		return p.def()
	case token.NAMESPACE:
		p.next()
		name, err := p.ident("identifier")
		if err != nil {
			return nil, err
		}
		return &syntax.Namespace{At: item.Pos, Name: name}, nil
	case token.SECTION:
		kw := p.next()
		return &syntax.Section{At: item.Pos, Name: p.optionalIdent(kw.End)}, nil
	case token.END:
		kw := p.next()
		return &syntax.End{At: item.Pos, Name: p.optionalIdent(kw.End)}, nil
	case token.OPEN:
		p.next()
		first, err := p.ident("identifier")
		if err != nil {
			return nil, err
		}
		open := &syntax.Open{At: item.Pos, Namespaces: []*syntax.Ident{first}}
		for p.peek().Token == token.IDENT {
			id := p.next()
			open.Namespaces = append(open.Namespaces, &syntax.Ident{At: id.Pos, Name: id.Value})
		}
		return open, nil
	case token.IMPORT:
		return nil, &syntaxError{pos: item.Pos, msg: "invalid 'import' command, it must be used in the beginning of the file"}
	case token.DIRECTIVE:
		return p.directive()
	}
	return nil, p.fail("command")
}

func (p *parser) def() (syntax.Command, *syntaxError) {
	kw := p.next()
	name, err := p.ident("identifier")
	if err != nil {
		return nil, err
	}
	d := &syntax.Def{At: kw.Pos, Name: name}
	if p.peek().Token == token.COLON {
		p.next()
		if d.Type, err = p.ident("type"); err != nil {
			return nil, err
		}
	}
	if p.peek().Token != token.ASSIGN {
		return nil, p.fail("':='")
	}
	p.next()
	d.Value, err = p.term()
	return d, err
}

func (p *parser) directive() (syntax.Command, *syntaxError) {
	item := p.next()
	switch item.Value {
	case token.DirectiveExit:
		return &syntax.Exit{At: item.Pos}, nil
	case token.DirectiveCheck:
		t, err := p.term()
		return &syntax.Check{At: item.Pos, Term: t}, err
	case token.DirectiveEval:
		t, err := p.term()
		return &syntax.Eval{At: item.Pos, Term: t}, err
	case token.DirectivePrint:
		name, err := p.ident("identifier")
		if err != nil {
			return nil, err
		}
		return &syntax.Print{At: item.Pos, Name: name}, nil
	}
	for !p.peek().Token.StartsCommand() && p.peek().Token != token.SEMICOLON {
		p.next()
	}
	args := strings.TrimSpace(p.ctx.Input[item.End:p.scan.Pos()])
	return &syntax.Directive{At: item.Pos, Name: item.Value, Args: args}, nil
}

// term parses an expression, substituting syntax.Missing on failure.
func (p *parser) term() (syntax.Expr, *syntaxError) {
	at := p.peek().Pos
	e, err := p.expr(1)
	if err != nil {
		if se, ok := err.(*syntaxError); ok {
			return &syntax.Missing{At: at}, se
		}
		return &syntax.Missing{At: at}, &syntaxError{pos: at, msg: err.Error()}
	}
	return e, nil
}

// expr parses a binary expression by precedence climbing.
func (p *parser) expr(minPrec int) (syntax.Expr, error) {
	left, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().Token
		prec := op.Precedence()
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.expr(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &syntax.Binary{Op: op, Left: left, Right: right}
	}
}

func (p *parser) atom() (syntax.Expr, error) {
	item := p.peek()
	switch item.Token {
	case token.NAT:
		p.next()
		v, err := strconv.ParseUint(item.Value, 10, 64)
		if err != nil {
			return nil, &syntaxError{pos: item.Pos, msg: "numeric literal is too large"}
		}
		return &syntax.NatLit{At: item.Pos, Value: v}, nil
	case token.STRING:
		p.next()
		return &syntax.StrLit{At: item.Pos, Value: item.Value}, nil
	case token.TRUE, token.FALSE:
		p.next()
		return &syntax.BoolLit{At: item.Pos, Value: item.Token == token.TRUE}, nil
	case token.IDENT:
		p.next()
		return &syntax.Ident{At: item.Pos, Name: item.Value}, nil
	case token.LPAREN:
		p.next()
		inner, err := p.expr(1)
		if err != nil {
			return nil, err
		}
		if p.peek().Token != token.RPAREN {
			return nil, p.fail("')'")
		}
		p.next()
		return &syntax.Paren{At: item.Pos, Inner: inner}, nil
	}
	return nil, p.fail("term")
}
