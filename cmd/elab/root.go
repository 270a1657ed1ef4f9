package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nickandperla.net/elab/internal/config"
	"nickandperla.net/elab/internal/render"
	"nickandperla.net/elab/pkg/elab"
)

// Version information (set at build time).
var Version = "0.1.0"

// errDiagnostics is returned when elaboration reported errors. The
// diagnostics themselves have already been rendered.
var errDiagnostics = errors.New("elaboration reported errors")

// app carries the state shared by all subcommands.
type app struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "elab",
		Short: "elab - command frontend for the elab language",
		Long: `elab parses and elaborates elab modules one command at a time,
reporting every diagnostic instead of stopping at the first error.

Compiled modules are stored in a SQLite database and can be imported by
later modules.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return a.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./elab.yaml)")
	pf.String("db", "", "SQLite module store path (empty for in-memory)")
	pf.StringP("module", "m", config.DefaultModule, "Module name for stdin and -e input")
	pf.Bool("no-stdlib", false, "Do not compile the Prelude module")
	pf.StringP("output", "o", config.DefaultOutput, "Output format (text|json|yaml)")
	pf.Bool("color", true, "Colorize text output on terminals")
	pf.String("log-level", config.DefaultLogLevel, "Log level (debug|info|warn|error)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.OutputText, config.OutputJSON, config.OutputYAML}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newRunCmd(a))
	rootCmd.AddCommand(newCompileCmd(a))
	rootCmd.AddCommand(newReplCmd(a))
	rootCmd.AddCommand(newWatchCmd(a))
	rootCmd.AddCommand(newModulesCmd(a))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// load reads configuration and sets up logging.
func (a *app) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.Load(a.cfgFile, flags)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	if cfg.FileUsed != "" {
		a.logger.Debug("using config file", "path", cfg.FileUsed)
	}
	return nil
}

// runtime opens the module store and compiles the prelude.
func (a *app) runtime() (*elab.Runtime, error) {
	opts := []elab.Option{elab.WithLogger(a.logger)}
	if a.cfg.DB != "" {
		opts = append(opts, elab.WithSQLiteStore(a.cfg.DB))
	} else {
		opts = append(opts, elab.WithMemoryStore())
	}
	if a.cfg.NoStdlib {
		opts = append(opts, elab.WithNoStdlib())
	}
	rt, err := elab.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start runtime: %w", err)
	}
	return rt, nil
}

// renderer returns the configured renderer for w.
func (a *app) renderer(w io.Writer) (render.Renderer, error) {
	return render.New(a.cfg.Output, a.cfg.Color && isTerminal(w))
}

// report renders res and converts error diagnostics into errDiagnostics.
func (a *app) report(w io.Writer, res *elab.Result) error {
	r, err := a.renderer(w)
	if err != nil {
		return err
	}
	if err := r.Render(w, res.Report()); err != nil {
		return err
	}
	if !res.OK() {
		return errDiagnostics
	}
	return nil
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
