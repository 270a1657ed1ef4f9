package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"nickandperla.net/elab/pkg/elab"
)

func newRunCmd(a *app) *cobra.Command {
	var evalStr string
	cmd := &cobra.Command{
		Use:   "run [file...]",
		Short: "Elaborate files, an -e string, or stdin without storing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()
			return a.each(cmd, args, evalStr, rt.Run, rt.RunFile)
		},
	}
	cmd.Flags().StringVarP(&evalStr, "eval", "e", "", "Elaborate the given source string")
	return cmd
}

func newCompileCmd(a *app) *cobra.Command {
	var evalStr string
	cmd := &cobra.Command{
		Use:   "compile [file...]",
		Short: "Elaborate modules and store them for import",
		Long: `Compile elaborates each input in order and stores the declarations of
every module that reported no errors. Later files may import earlier ones.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()
			return a.each(cmd, args, evalStr, compileIgnoringErrors(rt.Compile), compileIgnoringErrors(rt.CompileFile))
		},
	}
	cmd.Flags().StringVarP(&evalStr, "eval", "e", "", "Compile the given source string")
	return cmd
}

// compileIgnoringErrors drops elab.ErrHasErrors: the diagnostics are
// rendered and turned into errDiagnostics by the caller.
func compileIgnoringErrors(f func(string, string) (*elab.Result, error)) func(string, string) (*elab.Result, error) {
	return func(input, module string) (*elab.Result, error) {
		res, err := f(input, module)
		if res != nil && !res.OK() {
			return res, nil
		}
		return res, err
	}
}

// each applies run to the -e string, or to stdin when no files are given,
// and runFile to every file. All inputs are processed even if one reports
// errors.
func (a *app) each(cmd *cobra.Command, files []string, evalStr string,
	run func(input, module string) (*elab.Result, error),
	runFile func(path, module string) (*elab.Result, error),
) error {
	out := cmd.OutOrStdout()
	failed := false
	check := func(res *elab.Result, err error) error {
		if err != nil {
			return err
		}
		if err := a.report(out, res); err != nil {
			if err != errDiagnostics {
				return err
			}
			failed = true
		}
		return nil
	}

	switch {
	case evalStr != "":
		if err := check(run(evalStr, a.cfg.Module)); err != nil {
			return err
		}
	case len(files) == 0:
		in := cmd.InOrStdin()
		if isTerminal(in) {
			return fmt.Errorf("no input: pass files, -e, or pipe source on stdin")
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("error reading stdin: %w", err)
		}
		if err := check(run(string(data), a.cfg.Module)); err != nil {
			return err
		}
	}

	for _, path := range files {
		if err := check(runFile(path, "")); err != nil {
			return err
		}
	}
	if failed {
		return errDiagnostics
	}
	return nil
}

func newModulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List stored modules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			names, err := rt.Modules()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <module>",
		Short: "Print a stored module as source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			src, err := rt.Module(args[0])
			if err != nil {
				return fmt.Errorf("module %s: %w", args[0], err)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), src)
			return err
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history <module>",
		Short: "Show the stored versions of a module, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			entries, err := rt.History(args[0], limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "VERSION\tSTORED\tDECLARATIONS")
			for _, e := range entries {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", e.Version, e.Ts, countLines(e.Value))
			}
			return tw.Flush()
		},
	}
	history.Flags().IntVar(&limit, "limit", 0, "Maximum number of versions (0 for all)")
	cmd.AddCommand(history)

	return cmd
}

func countLines(s string) int {
	n := 0
	for _, c := range s {
		if c == '\n' {
			n++
		}
	}
	return n
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// No config needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "elab %s\n", Version)
			return nil
		},
	}
}
