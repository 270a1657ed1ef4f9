package elab

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	r, err := New(append([]Option{WithMemoryStore()}, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRunCheck(t *testing.T) {
	r := newRuntime(t)

	res, err := r.Run("def x := 1\n#check x\n", "Main")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Messages.Len() != 0 {
		t.Errorf("expected empty log, got:\n%s", res.Messages)
	}
	if len(res.Output) != 1 || res.Output[0] != "x : Nat" {
		t.Errorf("expected [x : Nat], got %v", res.Output)
	}
	if len(res.Declarations) != 1 || res.Declarations[0] != "def x : Nat := 1" {
		t.Errorf("unexpected declarations %v", res.Declarations)
	}
	if res.RunID == "" {
		t.Error("expected a run id")
	}
}

func TestRunIsolatesErrors(t *testing.T) {
	r := newRuntime(t)

	res, err := r.Run("def x := 1\ndef y := z\n", "Main")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	entries := res.Messages.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d:\n%s", len(entries), res.Messages)
	}
	if entries[0].Data != "unknown identifier 'z'" {
		t.Errorf("unexpected message %q", entries[0].Data)
	}
	if res.OK() {
		t.Error("expected result with errors")
	}
	if len(res.Declarations) != 1 {
		t.Errorf("expected only x to be declared, got %v", res.Declarations)
	}
}

func TestOutputWriter(t *testing.T) {
	var buf bytes.Buffer
	r := newRuntime(t, WithOutput(&buf))

	if _, err := r.Run("#eval 1 + 2\n#eval \"a\" ++ \"b\"\n", ""); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if buf.String() != "3\n\"ab\"\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestCompileAndImport(t *testing.T) {
	r := newRuntime(t)

	if _, err := r.Compile("def base : Nat := 40\n", "Lib"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	res, err := r.Run("import Lib\ndef answer : Nat := base + 2\n#eval answer\n", "Main")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.OK() {
		t.Fatalf("unexpected diagnostics:\n%s", res.Messages)
	}
	if len(res.Output) != 1 || res.Output[0] != "42" {
		t.Errorf("expected [42], got %v", res.Output)
	}
	// imported declarations are not the module's own
	if len(res.Declarations) != 1 {
		t.Errorf("expected only answer, got %v", res.Declarations)
	}

	src, err := r.Module("Lib")
	if err != nil {
		t.Fatalf("Module failed: %v", err)
	}
	if src != "def base : Nat := 40\n" {
		t.Errorf("unexpected stored source %q", src)
	}
}

func TestCompileWithErrorsIsNotStored(t *testing.T) {
	r := newRuntime(t)

	res, err := r.Compile("def y := z\n", "Bad")
	if !errors.Is(err, ErrHasErrors) {
		t.Fatalf("expected ErrHasErrors, got %v", err)
	}
	if res == nil || res.Messages.Len() != 1 {
		t.Fatalf("expected the result with one diagnostic, got %+v", res)
	}
	mods, _ := r.Modules()
	if slices.Contains(mods, "Bad") {
		t.Errorf("module with errors was stored: %v", mods)
	}
}

func TestUnknownImportIsFatal(t *testing.T) {
	r := newRuntime(t)

	res, err := r.Run("import Missing\ndef x := 1\n", "Main")
	if !errors.Is(err, ErrHeaderImport) {
		t.Fatalf("expected ErrHeaderImport, got %v", err)
	}
	if res != nil {
		t.Errorf("expected no result, got %+v", res)
	}
}

func TestRunFile(t *testing.T) {
	r := newRuntime(t)
	path := filepath.Join(t.TempDir(), "Geometry.elab")
	if err := os.WriteFile(path, []byte("def side := 3\n#eval side * side\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := r.RunFile(path, "")
	if err != nil {
		t.Fatalf("RunFile failed: %v", err)
	}
	if res.Module != "Geometry" {
		t.Errorf("expected module Geometry, got %q", res.Module)
	}
	if len(res.Output) != 1 || res.Output[0] != "9" {
		t.Errorf("expected [9], got %v", res.Output)
	}

	if _, err := r.CompileFile(path, ""); err != nil {
		t.Fatalf("CompileFile failed: %v", err)
	}
	mods, _ := r.Modules()
	if !slices.Contains(mods, "Geometry") {
		t.Errorf("expected Geometry in %v", mods)
	}
}

func TestSQLitePersistsAcrossRuntimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.db")

	r1, err := New(WithSQLiteStore(path))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := r1.Compile("def v := 1\n", "Lib"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if _, err := r1.Compile("def v := 2\n", "Lib"); err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	r1.Close()

	r2, err := New(WithSQLiteStore(path))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer r2.Close()

	res, err := r2.Run("import Lib\n#eval v\n", "Main")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(res.Output) != 1 || res.Output[0] != "2" {
		t.Errorf("expected [2], got %v", res.Output)
	}

	history, err := r2.History("Lib", 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 || !strings.Contains(history[0].Value, ":= 2") {
		t.Errorf("unexpected history %+v", history)
	}
}

func TestBadSQLitePath(t *testing.T) {
	_, err := New(WithSQLiteStore(filepath.Join(t.TempDir(), "missing", "dir", "x.db")))
	if err == nil {
		t.Error("expected error for unopenable database")
	}
}

func TestModuleNameFromPath(t *testing.T) {
	tests := map[string]string{
		"Main.elab":         "Main",
		"src/Geometry.elab": "Geometry",
		"/abs/path/Lib":     "Lib",
		"notes.v2.elab":     "notes.v2",
	}
	for in, want := range tests {
		if got := ModuleNameFromPath(in); got != want {
			t.Errorf("ModuleNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
