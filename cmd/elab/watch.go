package main

import (
	"fmt"
	"io"
	"io/fs"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nickandperla.net/elab/internal/watch"
	"nickandperla.net/elab/pkg/elab"
)

func newWatchCmd(a *app) *cobra.Command {
	var compile bool
	cmd := &cobra.Command{
		Use:   "watch <path...>",
		Short: "Re-elaborate files whenever they change",
		Long: `Watch elaborates the given files (and every ` + watch.SourceExt + ` file under the
given directories) whenever they change. With --compile each clean module
is also stored.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			out := cmd.OutOrStdout()
			elaborate := func(paths []string) {
				rerun(a, rt, out, paths, compile)
			}

			w, err := watch.New(a.cfg.Watch.Debounce, a.cfg.Watch.Exclude, a.logger, elaborate)
			if err != nil {
				return err
			}
			defer w.Close()
			if err := w.Watch(args); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			elaborate(sources(args))
			a.logger.Info("watching", "paths", args, "debounce", a.cfg.Watch.Debounce)
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&compile, "compile", false, "Store each module that elaborates cleanly")
	cmd.Flags().Duration("debounce", 300*time.Millisecond, "Quiet period before re-running")
	cmd.Flags().StringSlice("exclude", nil, "Glob patterns of file or directory names to ignore")
	return cmd
}

// rerun elaborates each changed file and renders its result. Files that
// have been removed are reported and skipped.
func rerun(a *app, rt *elab.Runtime, out io.Writer, paths []string, compile bool) {
	for _, path := range paths {
		fmt.Fprintf(out, "== %s (%s)\n", path, time.Now().Format(time.TimeOnly))

		var res *elab.Result
		var err error
		if compile {
			res, err = rt.CompileFile(path, "")
			if res != nil && !res.OK() {
				err = nil
			}
		} else {
			res, err = rt.RunFile(path, "")
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if err := a.report(out, res); err != nil && err != errDiagnostics {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}


// sources expands directories into the source files below them.
func sources(args []string) []string {
	var files []string
	for _, arg := range args {
		_ = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && (path == arg || filepath.Ext(path) == watch.SourceExt) {
				files = append(files, path)
			}
			return nil
		})
	}
	return files
}
