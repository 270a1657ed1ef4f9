// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package frontend drives parsing and elaboration of a module: it
// processes the header, then parses and elaborates one command at a time
// until the end of input or an #exit directive.
package frontend

import (
	"log/slog"

	"nickandperla.net/elab/internal/elab"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/parser"
	"nickandperla.net/elab/internal/syntax"
)

// Parser yields the next command of an input.
type Parser interface {
	ParseCommand(ctx *parser.Context, st parser.State, log message.Log) (syntax.Command, parser.State, message.Log)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx *parser.Context, st parser.State, log message.Log) (syntax.Command, parser.State, message.Log)

// ParseCommand calls f.
func (f ParserFunc) ParseCommand(ctx *parser.Context, st parser.State, log message.Log) (syntax.Command, parser.State, message.Log) {
	return f(ctx, st, log)
}

// Elaborator elaborates one regular command.
type Elaborator interface {
	ElabCommand(stx syntax.Command, ctx *elab.Context, st elab.State) (elab.State, error)
}

// Classifier turns an elaboration failure into at most one diagnostic.
type Classifier func(ctx *elab.Context, st elab.State, err error) elab.State

// Action is an arbitrary elaboration step run by RunCommandElabM.
type Action func(ctx *elab.Context, st elab.State) (elab.State, error)

// Phase is the state of the command loop.
type Phase int

const (
	Running Phase = iota
	Done
)

func (p Phase) String() string {
	if p == Done {
		return "done"
	}
	return "running"
}

// Driver runs the command loop over one parser context.
type Driver struct {
	ctx        *parser.Context
	parser     Parser
	elaborator Elaborator
	classify   Classifier
	output     elab.OutputWriter
	logger     *slog.Logger
	phase      Phase
	exited     bool
}

// NewDriver creates a driver for ctx. Options not related to the command
// loop (importer, environment factory) are ignored.
func NewDriver(ctx *parser.Context, opts ...Option) *Driver {
	o := buildOptions(opts)
	return newDriver(ctx, o)
}

func newDriver(ctx *parser.Context, o *options) *Driver {
	return &Driver{
		ctx:        ctx,
		parser:     o.parser,
		elaborator: o.elaborator,
		classify:   o.classifier,
		output:     o.output,
		logger:     o.logger,
	}
}

// Phase returns Done once the loop has reached the end of input or #exit.
func (d *Driver) Phase() Phase { return d.phase }

// Exited reports whether the loop stopped at an #exit directive.
func (d *Driver) Exited() bool { return d.exited }

// UpdateCmdPos records the parser position as the position of the
// command about to be parsed.
func UpdateCmdPos(ps parser.State, st elab.State) elab.State {
	st.CmdPos = ps.Pos
	return st
}

// commandContext derives the per-call context from the current state.
func (d *Driver) commandContext(st elab.State) *elab.Context {
	return &elab.Context{
		FileName: d.ctx.FileName,
		FileMap:  d.ctx.FileMap,
		CmdPos:   st.CmdPos,
		Output:   d.output,
		Logger:   d.logger,
	}
}

// RunCommandElabM runs action against st. If the action fails, whatever
// state it produced is dropped and the failure is classified against a
// context rebuilt from st itself.
func (d *Driver) RunCommandElabM(st elab.State, action Action) elab.State {
	next, err := action(d.commandContext(st), st)
	if err == nil {
		return next
	}
	d.logger.Debug("command failed", "pos", st.CmdPos, "error", err)
	return d.classify(d.commandContext(st), st, err)
}

// ElabCommandAtFrontend elaborates one command through RunCommandElabM.
func (d *Driver) ElabCommandAtFrontend(stx syntax.Command, st elab.State) elab.State {
	return d.RunCommandElabM(st, func(ctx *elab.Context, st elab.State) (elab.State, error) {
		return d.elaborator.ElabCommand(stx, ctx, st)
	})
}

// ProcessCommand parses and elaborates a single command. It returns
// done=true at the end of input or at #exit, in which case nothing is
// elaborated.
func (d *Driver) ProcessCommand(ps parser.State, st elab.State) (bool, parser.State, elab.State) {
	st = UpdateCmdPos(ps, st)

	cmd, ps, log := d.parser.ParseCommand(d.ctx, ps, st.Messages)
	st.Messages = log

	if syntax.IsEOI(cmd) || syntax.IsExitCommand(cmd) {
		d.phase = Done
		d.exited = syntax.IsExitCommand(cmd)
		d.logger.Debug("command loop finished", "pos", st.CmdPos, "kind", cmd.Kind())
		return true, ps, st
	}

	before := st.Messages.Len()
	st = d.ElabCommandAtFrontend(cmd, st)
	d.logger.Debug("command processed",
		"kind", cmd.Kind(),
		"pos", st.CmdPos,
		"diagnostics", st.Messages.Len()-before,
		"phase", d.phase)
	return false, ps, st
}

// ProcessCommands runs ProcessCommand until it reports done and returns
// the final state.
func (d *Driver) ProcessCommands(ps parser.State, st elab.State) elab.State {
	d.phase = Running
	d.exited = false
	for {
		var done bool
		done, ps, st = d.ProcessCommand(ps, st)
		if done {
			return st
		}
	}
}
