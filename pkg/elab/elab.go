package elab

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"nickandperla.net/elab/internal/frontend"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/render"
	"nickandperla.net/elab/internal/store"
)

// Diagnostic is one reported issue.
type Diagnostic = message.Diagnostic

// Log is the ordered diagnostics of a run.
type Log = message.Log

// Fatal setup errors, see frontend.Run.
var (
	ErrEnvironmentCreation = frontend.ErrEnvironmentCreation
	ErrHeaderImport        = frontend.ErrHeaderImport
)

// ErrHasErrors is returned by Compile when the module did not elaborate
// cleanly and was therefore not stored.
var ErrHasErrors = errors.New("module has errors")

// Runtime elaborates modules against a module store.
type Runtime struct {
	store        store.Store
	outputWriter func(text string) error
	logger       *slog.Logger
	prelude      string // Custom prelude source (if empty, uses DefaultPrelude)
	noStdlib     bool   // If true, skip compiling the prelude
	optErr       error
}

// Result is the outcome of one run.
type Result struct {
	RunID        string
	Module       string
	Output       []string
	Declarations []string // declarations added by the module itself
	Messages     Log
}

// OK reports whether the run produced no error diagnostics.
func (r *Result) OK() bool { return !r.Messages.HasErrors() }

// Report converts the result for rendering.
func (r *Result) Report() render.Report {
	return render.Report{
		Module:       r.Module,
		RunID:        r.RunID,
		Output:       r.Output,
		Declarations: r.Declarations,
		Diagnostics:  r.Messages,
	}
}

// New creates a runtime. Without a store option an in-memory store is used.
func New(opts ...Option) (*Runtime, error) {
	r := &Runtime{}
	for _, opt := range opts {
		opt(r)
	}
	if r.optErr != nil {
		return nil, r.optErr
	}
	if r.store == nil {
		r.store = store.NewMemory()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}

	// Compile prelude unless disabled
	if !r.noStdlib {
		prelude := r.prelude
		if prelude == "" {
			prelude = DefaultPrelude
		}
		res, err := r.Compile(prelude, PreludeModule)
		if err != nil {
			r.store.Close()
			return nil, fmt.Errorf("prelude: %w", err)
		}
		r.logger.Debug("prelude compiled", "declarations", len(res.Declarations))
	}

	return r, nil
}

// Run elaborates input as module and returns its result. Nothing is stored.
func (r *Runtime) Run(input, module string) (*Result, error) {
	res, _, err := r.run(input, module)
	return res, err
}

// RunFile elaborates a file. The module name defaults to the file's base
// name without extension.
func (r *Runtime) RunFile(path, module string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if module == "" {
		module = ModuleNameFromPath(path)
	}
	return r.Run(string(data), module)
}

// Compile elaborates input and, if no errors were reported, stores the
// module's own declarations so other modules can import it.
func (r *Runtime) Compile(input, module string) (*Result, error) {
	res, decls, err := r.run(input, module)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return res, fmt.Errorf("%w: %s", ErrHasErrors, module)
	}
	if err := r.store.PutModule(res.Module, decls); err != nil {
		return res, fmt.Errorf("storing module %s: %w", res.Module, err)
	}
	r.logger.Info("module compiled", "run_id", res.RunID, "module", res.Module, "declarations", len(decls))
	return res, nil
}

// CompileFile compiles a file, see Compile and RunFile.
func (r *Runtime) CompileFile(path, module string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if module == "" {
		module = ModuleNameFromPath(path)
	}
	return r.Compile(string(data), module)
}

func (r *Runtime) run(input, module string) (*Result, []store.Record, error) {
	if module == "" {
		module = frontend.DefaultModuleName
	}
	res := &Result{RunID: uuid.NewString(), Module: module}
	logger := r.logger.With("run_id", res.RunID, "module", module)
	logger.Debug("run started", "bytes", len(input))

	e, log, err := frontend.Run(input, module,
		frontend.WithImporter(store.NewImporter(r.store)),
		frontend.WithLogger(logger),
		frontend.WithOutputWriter(r.collect(&res.Output)),
	)
	if err != nil {
		logger.Warn("run aborted", "error", err)
		return nil, nil, err
	}

	res.Messages = log
	own := e.ModuleDeclarations(module)
	for _, d := range own {
		res.Declarations = append(res.Declarations, d.String())
	}
	logger.Debug("run finished", "declarations", len(own), "diagnostics", log.Len())
	return res, store.Records(own), nil
}

// collect records output into out and forwards it to the configured writer.
func (r *Runtime) collect(out *[]string) func(text string) error {
	return func(text string) error {
		*out = append(*out, text)
		if r.outputWriter != nil {
			return r.outputWriter(text)
		}
		return nil
	}
}

// Modules returns the names of the stored modules.
func (r *Runtime) Modules() ([]string, error) {
	return r.store.ListModules()
}

// Module returns a stored module rendered as source.
func (r *Runtime) Module(name string) (string, error) {
	records, err := r.store.GetModule(name)
	if err != nil {
		return "", err
	}
	return store.Render(records), nil
}

// History returns the stored versions of a module, newest first, when the
// store keeps history.
func (r *Runtime) History(name string, limit int) ([]store.VersionEntry, error) {
	hs, ok := r.store.(store.HistoryStore)
	if !ok {
		return nil, nil
	}
	return hs.GetHistory(name, limit)
}

// Close releases resources.
func (r *Runtime) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}

// ModuleNameFromPath derives a module name from a file path:
// "src/Geometry.elab" becomes "Geometry".
func ModuleNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
