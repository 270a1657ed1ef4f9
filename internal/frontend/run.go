// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package frontend

import (
	"errors"
	"fmt"
	"slices"

	"nickandperla.net/elab/internal/elab"
	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/parser"
	"nickandperla.net/elab/internal/syntax"
)

// DefaultModuleName is used when Run is given no module name.
const DefaultModuleName = "<input>"

// Fatal setup errors. Both abort a run before any command is parsed.
var (
	ErrEnvironmentCreation = errors.New("environment creation failed")
	ErrHeaderImport        = errors.New("header import failed")
)

// Importer resolves a module name to its declarations.
type Importer interface {
	Import(module string) ([]env.Declaration, error)
}

// ProcessHeader builds the environment described by the header's imports.
// A module that cannot be imported is fatal.
func ProcessHeader(header *syntax.Header, log message.Log, ctx *parser.Context, trustLevel uint32, imp Importer) (*env.Environment, message.Log, error) {
	e, err := env.New(trustLevel)
	if err != nil {
		return nil, log, fmt.Errorf("%w: %w", ErrHeaderImport, err)
	}
	e, err = ImportModules(e.WithHeader(ctx.FileName, nil), header.Modules(), imp)
	if err != nil {
		return nil, log, err
	}
	return e, log, nil
}

// ImportModules adds the declarations of each module to e, in order.
// Modules already listed in e's header, or repeated in modules, are
// imported once. Any failure wraps ErrHeaderImport and e is left as is.
func ImportModules(e *env.Environment, modules []string, imp Importer) (*env.Environment, error) {
	h := e.Header()
	imported := h.Imports
	for _, module := range modules {
		if slices.Contains(imported, module) {
			continue
		}
		if imp == nil {
			return nil, fmt.Errorf("%w: unknown module '%s'", ErrHeaderImport, module)
		}
		decls, err := imp.Import(module)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrHeaderImport, module, err)
		}
		for _, d := range decls {
			if e, err = e.Add(d); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrHeaderImport, module, err)
			}
		}
		imported = append(imported, module)
	}
	return e.WithHeader(h.MainModule, imported), nil
}

// Run processes a whole input: header first, then every command until
// the end of input or #exit. It returns the final environment and log.
// An empty moduleName means DefaultModuleName.
func Run(input, moduleName string, opts ...Option) (*env.Environment, message.Log, error) {
	o := buildOptions(opts)

	e, err := o.newEnv(env.MaxTrustLevel)
	if err != nil {
		return nil, message.Log{}, fmt.Errorf("%w: %w", ErrEnvironmentCreation, err)
	}

	if moduleName == "" {
		moduleName = DefaultModuleName
	}
	ctx := parser.NewContext(e, input, moduleName)

	header, ps, log := parser.ParseHeader(ctx)
	e, log, err = ProcessHeader(header, log, ctx, 0, o.importer)
	if err != nil {
		return nil, message.Log{}, err
	}

	o.logger.Debug("header processed", "module", moduleName, "imports", len(header.Imports), "declarations", e.Len())

	d := newDriver(ctx, o)
	st := d.ProcessCommands(ps, elab.NewState(e, log))
	return st.Env, st.Messages, nil
}
