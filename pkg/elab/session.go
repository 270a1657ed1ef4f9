package elab

import (
	"fmt"

	"github.com/google/uuid"

	core "nickandperla.net/elab/internal/elab"
	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/frontend"
	"nickandperla.net/elab/internal/parser"
	"nickandperla.net/elab/internal/store"
)

// Session elaborates a sequence of inputs against one growing state, the
// way a REPL does. Each input may start with imports.
type Session struct {
	rt       *Runtime
	id       string
	module   string
	importer *store.Importer
	st       core.State
	exited   bool
}

// SessionResult is the outcome of one session input.
type SessionResult struct {
	Output      []string
	Diagnostics []Diagnostic
	Exited      bool // the input contained #exit
}

// NewSession starts a session whose declarations belong to module.
func (r *Runtime) NewSession(module string) (*Session, error) {
	if module == "" {
		module = frontend.DefaultModuleName
	}
	e, err := env.New(0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnvironmentCreation, err)
	}
	return &Session{
		rt:       r,
		id:       uuid.NewString(),
		module:   module,
		importer: store.NewImporter(r.store),
		st:       core.NewState(e.WithHeader(module, nil), Log{}),
	}, nil
}

// Eval elaborates one input. Import failures are returned as errors and
// leave the session unchanged.
func (s *Session) Eval(input string) (*SessionResult, error) {
	logger := s.rt.logger.With("session", s.id, "module", s.module)

	ctx := parser.NewContext(s.st.Env, input, s.module)
	header, ps, log := parser.ParseHeader(ctx)

	st := s.st
	before := st.Messages.Len()
	st.Messages = concat(st.Messages, log)
	e, err := frontend.ImportModules(st.Env, header.Modules(), s.importer)
	if err != nil {
		logger.Warn("session import failed", "error", err)
		return nil, err
	}
	st.Env = e

	res := &SessionResult{}
	d := frontend.NewDriver(ctx,
		frontend.WithLogger(logger),
		frontend.WithOutputWriter(s.rt.collect(&res.Output)),
	)
	st = d.ProcessCommands(ps, st)

	s.st = st
	s.exited = d.Exited()
	res.Exited = d.Exited()
	res.Diagnostics = st.Messages.Since(before)
	return res, nil
}

// Exited reports whether the last input ended with #exit.
func (s *Session) Exited() bool { return s.exited }

// Declarations returns the declarations made in this session.
func (s *Session) Declarations() []string {
	var out []string
	for _, d := range s.st.Env.ModuleDeclarations(s.module) {
		out = append(out, d.String())
	}
	return out
}

// Save stores the session's declarations as its module.
func (s *Session) Save() error {
	decls := s.st.Env.ModuleDeclarations(s.module)
	return s.rt.store.PutModule(s.module, store.Records(decls))
}

func concat(a, b Log) Log {
	for _, d := range b.Entries() {
		a = a.Add(d)
	}
	return a
}
