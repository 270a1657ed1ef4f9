package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nickandperla.net/elab/pkg/elab"
)

// execute runs the CLI with args and stdin, returning stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "elab "+Version)
}

func TestHelpCommand(t *testing.T) {
	out, err := execute(t, "", "--help")
	require.NoError(t, err)
	for _, sub := range []string{"run", "compile", "repl", "watch", "modules", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestRunEval(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "", "run", "-e", "def x := 1\n#check x\n")
	require.NoError(t, err)
	assert.Equal(t, "x : Nat\n", out)
}

func TestRunReportsDiagnostics(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "", "run", "-e", "def x := 1\ndef y := z\n#eval x\n")
	assert.True(t, errors.Is(err, errDiagnostics), "got %v", err)
	assert.Equal(t, "1\nMain:2:9: error: unknown identifier 'z'\n", out)
}

func TestRunStdin(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "#eval 2 * 21\n", "run", "--module", "Piped")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestRunJSON(t *testing.T) {
	inTempDir(t)
	out, err := execute(t, "", "run", "-o", "json", "-e", "#eval 1 + 1")
	require.NoError(t, err)

	var got struct {
		Module string   `json:"module"`
		OK     bool     `json:"ok"`
		Output []string `json:"output"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Main", got.Module)
	assert.True(t, got.OK)
	assert.Equal(t, []string{"2"}, got.Output)
}

func TestRunRejectsBadOutput(t *testing.T) {
	inTempDir(t)
	_, err := execute(t, "", "run", "-o", "xml", "-e", "#eval 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestRunUnknownImport(t *testing.T) {
	inTempDir(t)
	_, err := execute(t, "", "run", "-e", "import Nowhere\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, elab.ErrHeaderImport), "got %v", err)
}

func TestCompileAndModules(t *testing.T) {
	dir := inTempDir(t)
	db := filepath.Join(dir, "modules.db")
	lib := filepath.Join(dir, "Lib.elab")
	require.NoError(t, os.WriteFile(lib, []byte("def base : Nat := 40\n"), 0o644))

	_, err := execute(t, "", "compile", "--db", db, lib)
	require.NoError(t, err)

	out, err := execute(t, "", "run", "--db", db, "-e", "import Lib\n#eval base + 2\n")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)

	out, err = execute(t, "", "modules", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Lib\nPrelude\n", out)

	out, err = execute(t, "", "modules", "show", "Lib", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "def base : Nat := 40\n", out)

	out, err = execute(t, "", "modules", "history", "Lib", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "1 ")
}

func TestCompileSkipsModulesWithErrors(t *testing.T) {
	dir := inTempDir(t)
	db := filepath.Join(dir, "modules.db")
	bad := filepath.Join(dir, "Bad.elab")
	require.NoError(t, os.WriteFile(bad, []byte("def y := z\n"), 0o644))

	out, err := execute(t, "", "compile", "--db", db, "--no-stdlib", bad)
	assert.True(t, errors.Is(err, errDiagnostics), "got %v", err)
	assert.Contains(t, out, "unknown identifier 'z'")

	out, err = execute(t, "", "modules", "--db", db, "--no-stdlib")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestReplPiped(t *testing.T) {
	inTempDir(t)
	input := "def x := 2\n#eval x \\\n+ 1\n#check nope\n:decls\n#exit\n#eval 99\n"
	out, err := execute(t, input, "repl")
	require.NoError(t, err)

	assert.Contains(t, out, "elab REPL")
	assert.Contains(t, out, "3\n")
	assert.Contains(t, out, "unknown identifier 'nope'")
	assert.Contains(t, out, "def x : Nat := 2\n")
	assert.NotContains(t, out, "99")
}

func TestReplQuitAndSave(t *testing.T) {
	dir := inTempDir(t)
	db := filepath.Join(dir, "modules.db")

	out, err := execute(t, "def kept := 7\n:save\n:quit\n", "repl", "--db", db, "-m", "Scratch")
	require.NoError(t, err)
	assert.Contains(t, out, "saved")

	out, err = execute(t, "", "run", "--db", db, "-e", "import Scratch\n#eval kept\n")
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestRerun(t *testing.T) {
	dir := inTempDir(t)
	src := filepath.Join(dir, "Geo.elab")
	require.NoError(t, os.WriteFile(src, []byte("def side := 3\n#eval side * side\n"), 0o644))

	cmd := newRootCmd()
	a := &app{}
	require.NoError(t, a.load(cmd))
	rt, err := a.runtime()
	require.NoError(t, err)
	defer rt.Close()

	var out bytes.Buffer
	rerun(a, rt, &out, []string{src, filepath.Join(dir, "Gone.elab")}, true)
	assert.Contains(t, out.String(), "== "+src)
	assert.Contains(t, out.String(), "9\n")
	assert.Contains(t, out.String(), "Error:")

	mods, err := rt.Modules()
	require.NoError(t, err)
	assert.Contains(t, mods, "Geo")
}

func TestSources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	a := filepath.Join(dir, "A.elab")
	b := filepath.Join(dir, "sub", "B.elab")
	txt := filepath.Join(dir, "notes.txt")
	for _, p := range []string{a, b, txt} {
		require.NoError(t, os.WriteFile(p, nil, 0o644))
	}

	assert.Equal(t, []string{a, b}, sources([]string{dir}))
	// explicitly named files are kept regardless of extension
	assert.Equal(t, []string{txt}, sources([]string{txt}))
}
