package file_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"ash/internal/compiler"
	"ash/internal/lexer"
	"ash/internal/parser"
	"ash/internal/stdlib/file"
	"ash/internal/vm"
)

func eval(t *testing.T, source string) (vm.Value, *vm.State) {
	t.Helper()
	state := vm.NewState()
	file.Install(state)

	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	result, err := state.RunModule(module)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return result, state
}

func TestWriteThenReadAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "greeting.txt")

	source := fmt.Sprintf(`
		File.writeAll(%q, "hello")
		return File.readAll(%q)
	`, path, path)
	result, state := eval(t, source)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestAppendAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.txt")

	source := fmt.Sprintf(`
		File.writeAll(%q, "a")
		File.appendAll(%q, "b")
		File.appendAll(%q, "c")
		return File.readAll(%q)
	`, path, path, path, path)
	result, state := eval(t, source)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != "abc" {
		t.Errorf("got %q, want %q", got, "abc")
	}
}

func TestExistsDistinguishesFileFromMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(dir, "absent.txt")

	source := fmt.Sprintf(`return File.exists(%q)`, path)
	result, _ := eval(t, source)
	if !result.IsBool() || !result.AsBool() {
		t.Error("expected File.exists to report true for a file that exists")
	}

	source = fmt.Sprintf(`return File.exists(%q)`, missing)
	result, _ = eval(t, source)
	if !result.IsBool() || result.AsBool() {
		t.Error("expected File.exists to report false for a missing file")
	}
}

func TestExistsIsFalseForADirectory(t *testing.T) {
	dir := t.TempDir()
	source := fmt.Sprintf(`return File.exists(%q)`, dir)
	result, _ := eval(t, source)
	if !result.IsBool() || result.AsBool() {
		t.Error("expected File.exists to report false for a directory")
	}
}

func TestRemoveDeletesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	source := fmt.Sprintf(`
		File.remove(%q)
		return File.exists(%q)
	`, path, path)
	result, _ := eval(t, source)
	if !result.IsBool() || result.AsBool() {
		t.Error("expected the file to no longer exist after File.remove")
	}
}

func TestDirectoryCreateAndExists(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")

	source := fmt.Sprintf(`
		Directory.create(%q)
		return Directory.exists(%q)
	`, nested, nested)
	result, _ := eval(t, source)
	if !result.IsBool() || !result.AsBool() {
		t.Error("expected Directory.create to make the directory exist")
	}
}

func TestDirectoryListFilesAndDirectories(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}

	source := fmt.Sprintf(`return Directory.listFiles(%q)`, dir)
	result, _ := eval(t, source)
	if !result.IsArray() || len(result.AsArray().Elements) != 2 {
		t.Fatalf("expected 2 files listed, got %v", result)
	}

	source = fmt.Sprintf(`return Directory.listDirectories(%q)`, dir)
	result, _ = eval(t, source)
	if !result.IsArray() || len(result.AsArray().Elements) != 1 {
		t.Fatalf("expected 1 directory listed, got %v", result)
	}
}

func TestReadAllOfMissingFileIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nope.txt")
	source := fmt.Sprintf(`return File.readAll(%q)`, path)

	state := vm.NewState()
	file.Install(state)
	scanner := lexer.NewScanner(source, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<test>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	if _, err := state.RunModule(module); err == nil {
		t.Fatal("expected an error for reading a missing file")
	}
}

func TestGetLastModifiedOfMissingFileIsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nope.txt")
	source := fmt.Sprintf(`return File.getLastModified(%q)`, path)
	result, _ := eval(t, source)
	if !result.IsNumber() || result.AsNumber() != 0 {
		t.Errorf("expected 0 for a missing file's mtime, got %v", result)
	}
}
