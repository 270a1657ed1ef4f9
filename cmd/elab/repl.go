package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"nickandperla.net/elab/internal/render"
	"nickandperla.net/elab/pkg/elab"
)

func printBanner(w io.Writer) {
	fmt.Fprintln(w, "elab REPL (Ctrl+D to exit)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "End a line with \\ to continue it.")
	fmt.Fprintln(w, "  :decls  list this session's declarations")
	fmt.Fprintln(w, "  :save   store them as the session module")
	fmt.Fprintln(w, "  :quit   leave (as does #exit)")
	fmt.Fprintln(w)
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			s, err := rt.NewSession(a.cfg.Module)
			if err != nil {
				return err
			}

			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			printBanner(out)

			// Check if stdin is a terminal
			if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return runTermREPL(a, f, out, s)
			}
			r := &repl{session: s, out: out}
			return r.loop(bufio.NewReader(in).ReadString)
		},
	}
}

// repl evaluates lines against a session.
type repl struct {
	session *elab.Session
	out     io.Writer
	color   bool
	prompt  func(string)
}

// loop reads lines until EOF, :quit or #exit.
func (r *repl) loop(readLine func(delim byte) (string, error)) error {
	var multiline strings.Builder
	inMultiline := false

	for {
		if r.prompt != nil {
			if inMultiline {
				r.prompt("... ")
			} else {
				r.prompt(">>> ")
			}
		}

		line, err := readLine('\n')
		if err != nil && line == "" {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		if strings.HasSuffix(line, "\\") {
			multiline.WriteString(strings.TrimSuffix(line, "\\"))
			multiline.WriteString("\n")
			inMultiline = true
			continue
		}

		var input string
		if inMultiline {
			multiline.WriteString(line)
			input = multiline.String()
			multiline.Reset()
			inMultiline = false
		} else {
			input = line
		}

		if strings.TrimSpace(input) == "" {
			continue
		}
		if quit := r.eval(input); quit {
			return nil
		}
	}
}

// eval handles one complete input and reports whether to stop.
func (r *repl) eval(input string) bool {
	switch strings.TrimSpace(input) {
	case ":quit", ":q":
		return true
	case ":decls":
		for _, d := range r.session.Declarations() {
			r.println(d)
		}
		return false
	case ":save":
		if err := r.session.Save(); err != nil {
			r.println("Error: " + err.Error())
		} else {
			r.println("saved")
		}
		return false
	}

	res, err := r.session.Eval(input)
	if err != nil {
		r.println("Error: " + err.Error())
		return false
	}
	for _, text := range res.Output {
		r.println(text)
	}
	txt := &render.Text{Color: r.color}
	for _, d := range res.Diagnostics {
		r.println(txt.Diagnostic(d))
	}
	return res.Exited
}

// println writes a line; term.Terminal translates newlines in raw mode.
func (r *repl) println(s string) {
	fmt.Fprintln(r.out, s)
}

// runTermREPL runs the REPL on a raw terminal with line editing and history.
func runTermREPL(a *app, f *os.File, out io.Writer, s *elab.Session) error {
	fd := int(f.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set raw mode: %v\n", err)
		r := &repl{session: s, out: out}
		return r.loop(bufio.NewReader(f).ReadString)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{f, out}, ">>> ")
	r := &repl{
		session: s,
		out:     t,
		color:   a.cfg.Color,
		prompt:  t.SetPrompt,
	}
	return r.loop(func(byte) (string, error) { return t.ReadLine() })
}
