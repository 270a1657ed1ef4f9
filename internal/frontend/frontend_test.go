package frontend

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/elab/internal/elab"
	"nickandperla.net/elab/internal/env"
	"nickandperla.net/elab/internal/message"
	"nickandperla.net/elab/internal/parser"
	"nickandperla.net/elab/internal/syntax"
)

type collector struct {
	sb strings.Builder
}

func (c *collector) write(text string) error {
	c.sb.WriteString(text)
	return nil
}

type mapImporter map[string][]env.Declaration

func (m mapImporter) Import(module string) ([]env.Declaration, error) {
	decls, ok := m[module]
	if !ok {
		return nil, fmt.Errorf("module '%s' not found", module)
	}
	return decls, nil
}

// recorder is an Elaborator that records the positions it sees.
type recorder struct {
	ctxPos   []int
	statePos []int
	fail     map[int]error
}

func (r *recorder) ElabCommand(stx syntax.Command, ctx *elab.Context, st elab.State) (elab.State, error) {
	r.ctxPos = append(r.ctxPos, ctx.CmdPos)
	r.statePos = append(r.statePos, st.CmdPos)
	if err, ok := r.fail[stx.Pos()]; ok {
		// Partial work that must not survive the failure.
		st.Scopes = append(st.Scopes, elab.Scope{Kind: elab.ScopeSection})
		return st, err
	}
	return st, nil
}

// scripted returns a parser that yields one Eval per offset in positions
// and then EndOfInput.
func scripted(positions ...int) ParserFunc {
	return func(ctx *parser.Context, st parser.State, log message.Log) (syntax.Command, parser.State, message.Log) {
		for i, p := range positions {
			if p >= st.Pos {
				next := len(ctx.Input)
				if i+1 < len(positions) {
					next = positions[i+1]
				}
				return &syntax.Eval{At: p, Term: &syntax.NatLit{At: p, Value: 1}}, parser.State{Pos: next}, log
			}
		}
		return &syntax.EndOfInput{At: len(ctx.Input)}, parser.State{Pos: len(ctx.Input)}, log
	}
}

func TestRunSuccess(t *testing.T) {
	var out collector
	e, log, err := Run("def x := 1\n#check x\n", "Main", WithOutputWriter(out.write))
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, "x : Nat\n", out.sb.String())

	d, ok := e.Find("x")
	require.True(t, ok)
	assert.Equal(t, "Main", d.Module)
	assert.Equal(t, "Main", e.Header().MainModule)
}

func TestRunEmptyInput(t *testing.T) {
	e, log, err := Run("", "")
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, DefaultModuleName, e.Header().MainModule)
}

func TestRunErrorIsolation(t *testing.T) {
	e, log, err := Run("def x := 1\ndef y := z\n", "Main")
	require.NoError(t, err)
	require.Equal(t, 1, log.Len())

	d := log.Entries()[0]
	assert.Equal(t, message.ClassUnresolved, d.Class)
	assert.Equal(t, message.Error, d.Severity)
	assert.Equal(t, "Main:2:9: error: unknown identifier 'z'", d.String())
	assert.True(t, e.Contains("x"))
	assert.False(t, e.Contains("y"))
}

func TestRunContinuesAfterErrors(t *testing.T) {
	var out collector
	_, log, err := Run("#eval (\n#eval nope\n#eval 1 / 0\n#eval 2\n", "Main", WithOutputWriter(out.write))
	require.NoError(t, err)
	assert.Equal(t, "2\n", out.sb.String())

	var classes []message.Class
	for _, d := range log.Entries() {
		classes = append(classes, d.Class)
	}
	assert.Equal(t, []message.Class{message.ClassParse, message.ClassUnresolved, message.ClassInternal}, classes)
}

func TestRunExit(t *testing.T) {
	var out collector
	e, log, err := Run("def a := 1\n#eval a\n#exit\ndef b := oops\n#eval 2", "Main", WithOutputWriter(out.write))
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, "1\n", out.sb.String())
	assert.False(t, e.Contains("b"))
}

func TestDriverPhase(t *testing.T) {
	ctx := parser.NewContext(nil, "#eval 1\n#exit", "Main")
	d := NewDriver(ctx)
	assert.Equal(t, Running, d.Phase())

	e, _ := env.New(0)
	d.ProcessCommands(parser.State{}, elab.NewState(e, message.Log{}))
	assert.Equal(t, Done, d.Phase())
	assert.True(t, d.Exited())

	d2 := NewDriver(parser.NewContext(nil, "#eval 1", "Main"))
	d2.ProcessCommands(parser.State{}, elab.NewState(e, message.Log{}))
	assert.Equal(t, Done, d2.Phase())
	assert.False(t, d2.Exited())
}

func TestProcessCommandSteps(t *testing.T) {
	input := "def a := 1\n#eval a"
	var out collector
	d := NewDriver(parser.NewContext(nil, input, "Main"), WithOutputWriter(out.write))
	e, _ := env.New(0)
	st := elab.NewState(e, message.Log{})
	ps := parser.State{}

	done, ps, st := d.ProcessCommand(ps, st)
	require.False(t, done)
	assert.Equal(t, 0, st.CmdPos)
	assert.True(t, st.Env.Contains("a"))

	done, ps, st = d.ProcessCommand(ps, st)
	require.False(t, done)
	assert.Equal(t, strings.Index(input, "#eval"), st.CmdPos)
	assert.Equal(t, "1\n", out.sb.String())

	done, _, st = d.ProcessCommand(ps, st)
	assert.True(t, done)
	assert.Equal(t, len(input), st.CmdPos)
}

// scriptInput is long enough for the scripted positions; its first token
// keeps the header parser at offset 0.
var scriptInput = "x" + strings.Repeat(" ", 39)

func TestCmdPosMonotonic(t *testing.T) {
	rec := &recorder{}
	_, _, err := Run(scriptInput, "Main",
		WithParser(scripted(0, 10, 25, 31)),
		WithElaborator(rec))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 10, 25, 31}, rec.statePos)
	assert.Equal(t, rec.statePos, rec.ctxPos, "context and state disagree on the command position")
}

func TestCmdPosFromParserState(t *testing.T) {
	rec := &recorder{}
	input := "#eval 1\n  -- comment\n#eval 2"
	_, _, err := Run(input, "Main", WithElaborator(rec))
	require.NoError(t, err)
	assert.Equal(t, []int{0, strings.LastIndex(input, "#eval")}, rec.statePos)
}

func TestFailedCommandStateDropped(t *testing.T) {
	rec := &recorder{fail: map[int]error{
		10: &elab.DirectMessage{Msg: "boom"},
		25: elab.Silent{},
	}}
	classify := func(ctx *elab.Context, st elab.State, err error) elab.State {
		assert.Len(t, st.Scopes, 1, "classifier saw the failed command's state")
		return elab.LogException(ctx, st, err)
	}
	_, log, err := Run(scriptInput, "Main",
		WithParser(scripted(0, 10, 25, 31)),
		WithElaborator(rec),
		WithClassifier(classify))
	require.NoError(t, err)

	require.Equal(t, 1, log.Len(), "silent failures add nothing")
	d := log.Entries()[0]
	assert.Equal(t, "boom", d.Data)
	assert.Equal(t, 10, d.Offset)
	assert.Equal(t, message.ClassDirect, d.Class)
	assert.Len(t, rec.statePos, 4, "loop stopped after a failure")
}

func TestRunCommandElabM(t *testing.T) {
	d := NewDriver(parser.NewContext(nil, "abc\ndef", "Main"))
	e, _ := env.New(0)
	st := elab.NewState(e, message.Log{})
	st.CmdPos = 4

	ok := d.RunCommandElabM(st, func(ctx *elab.Context, st elab.State) (elab.State, error) {
		assert.Equal(t, 4, ctx.CmdPos)
		next, err := st.Env.Add(env.Declaration{Name: "v", Type: env.Nat, Value: &syntax.NatLit{Value: 1}})
		st.Env = next
		return st, err
	})
	assert.True(t, ok.Env.Contains("v"))

	failed := d.RunCommandElabM(st, func(ctx *elab.Context, st elab.State) (elab.State, error) {
		next, _ := st.Env.Add(env.Declaration{Name: "w", Type: env.Nat, Value: &syntax.NatLit{Value: 2}})
		st.Env = next
		return st, errors.New("late failure")
	})
	assert.False(t, failed.Env.Contains("w"))
	require.Equal(t, 1, failed.Messages.Len())
	assert.Equal(t, "Main:2:0: error: late failure", failed.Messages.Entries()[0].String())
	assert.Equal(t, 0, st.Messages.Len())
}

func TestUpdateCmdPos(t *testing.T) {
	e, _ := env.New(0)
	st := elab.NewState(e, message.Log{})
	next := UpdateCmdPos(parser.State{Pos: 17}, st)
	assert.Equal(t, 17, next.CmdPos)
	assert.Equal(t, 0, st.CmdPos)
}

func TestRunEnvironmentCreationFails(t *testing.T) {
	boom := errors.New("no memory")
	factory := func(uint32) (*env.Environment, error) { return nil, boom }

	e, log, err := Run("#eval 1", "Main", WithEnvironmentFactory(factory))
	assert.Nil(t, e)
	assert.Equal(t, 0, log.Len())
	assert.ErrorIs(t, err, ErrEnvironmentCreation)
	assert.ErrorIs(t, err, boom)
}

func TestRunUnknownImport(t *testing.T) {
	var out collector
	e, log, err := Run("import Missing\n#eval 1", "Main", WithOutputWriter(out.write))
	assert.Nil(t, e)
	assert.Equal(t, 0, log.Len())
	assert.ErrorIs(t, err, ErrHeaderImport)
	assert.Contains(t, err.Error(), "Missing")
	assert.Empty(t, out.sb.String(), "commands ran after a fatal header error")

	_, _, err = Run("import Missing", "Main", WithImporter(mapImporter{}))
	assert.ErrorIs(t, err, ErrHeaderImport)
}

func TestRunImports(t *testing.T) {
	imp := mapImporter{
		"Lib": {
			{Name: "base", Type: env.Nat, Value: &syntax.NatLit{Value: 40}, Module: "Lib"},
		},
		"Extra": {
			{Name: "Extra.two", Type: env.Nat, Value: &syntax.NatLit{Value: 2}, Module: "Extra"},
		},
	}
	var out collector
	e, log, err := Run("import Lib Extra Lib\ndef answer := base + Extra.two\n#eval answer", "Main",
		WithImporter(imp), WithOutputWriter(out.write))
	require.NoError(t, err)
	assert.Equal(t, 0, log.Len())
	assert.Equal(t, "42\n", out.sb.String())
	assert.Equal(t, []string{"Lib", "Extra"}, e.Header().Imports)
	assert.Len(t, e.ModuleDeclarations("Main"), 1)
}

func TestRunConflictingImports(t *testing.T) {
	imp := mapImporter{
		"A": {{Name: "x", Type: env.Nat, Value: &syntax.NatLit{Value: 1}, Module: "A"}},
		"B": {{Name: "x", Type: env.Nat, Value: &syntax.NatLit{Value: 2}, Module: "B"}},
	}
	_, _, err := Run("import A B", "Main", WithImporter(imp))
	assert.ErrorIs(t, err, ErrHeaderImport)
}

func TestRunHeaderSyntaxError(t *testing.T) {
	var out collector
	_, log, err := Run("import 1\n#eval 5", "Main", WithOutputWriter(out.write))
	require.NoError(t, err)
	require.Equal(t, 1, log.Len())
	assert.Equal(t, message.ClassParse, log.Entries()[0].Class)
	assert.Equal(t, "5\n", out.sb.String())
}

func TestRunDeterministic(t *testing.T) {
	input := "def x := 1\ndef y := z\n#eval x + 1\nnamespace A\ndef q := \"s\"\nend B\n#print A.q\n"
	render := func() string {
		var out collector
		e, log, err := Run(input, "Main", WithOutputWriter(out.write))
		require.NoError(t, err)
		var sb strings.Builder
		for _, d := range e.Declarations() {
			sb.WriteString(d.String() + "\n")
		}
		return sb.String() + log.String() + out.sb.String()
	}
	first := render()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, render())
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "done", Done.String())
}

func TestRunInternalFailurePositionAfterCommand(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"namespace A\n#eval 1 / 0\n", "Main:2:0: error: division by zero"},
		{"def x := 1\n#print x\n#eval 1 / 0\n", "Main:3:0: error: division by zero"},
		{"namespace A -- scope\n\n/- gap -/ #eval 1 / 0\n", "Main:3:10: error: division by zero"},
		{"section\n#eval 1 / 0\n", "Main:2:0: error: division by zero"},
	}
	for _, tt := range tests {
		_, log, err := Run(tt.input, "Main")
		require.NoError(t, err)
		require.Equal(t, 1, log.Len(), tt.input)
		assert.Equal(t, tt.expected, log.Entries()[0].String(), tt.input)
	}
}

func TestImportModules(t *testing.T) {
	imp := mapImporter{
		"A": {{Name: "a", Type: env.Nat, Value: &syntax.NatLit{Value: 1}, Module: "A"}},
		"B": {{Name: "b", Type: env.Nat, Value: &syntax.NatLit{Value: 2}, Module: "B"}},
	}
	e0, _ := env.New(0)
	e0 = e0.WithHeader("Main", nil)

	e1, err := ImportModules(e0, []string{"A", "A"}, imp)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, e1.Header().Imports)
	assert.Equal(t, "Main", e1.Header().MainModule)

	// A is already imported; only B is added.
	e2, err := ImportModules(e1, []string{"A", "B"}, imp)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, e2.Header().Imports)
	assert.Equal(t, 2, e2.Len())
	assert.Equal(t, 1, e1.Len(), "earlier environment changed")

	_, err = ImportModules(e2, []string{"C"}, imp)
	assert.ErrorIs(t, err, ErrHeaderImport)
	_, err = ImportModules(e0, []string{"A"}, nil)
	assert.ErrorIs(t, err, ErrHeaderImport)
}
