package compiler_test

import (
	"testing"

	"ash/internal/compiler"
	"ash/internal/lexer"
	"ash/internal/parser"
	"ash/internal/vm"
)

func parseLine(t *testing.T, source string) []parser.Stmt {
	t.Helper()
	scanner := lexer.NewScanner(source, "<repl>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, source, "<repl>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors for %q: %v", source, p.Errors)
	}
	return stmts
}

func runLine(t *testing.T, state *vm.State, module *vm.ObjModule, source string) vm.Value {
	t.Helper()
	closure, errs := compiler.CompileREPLLine(state, module, parseLine(t, source))
	if len(errs) > 0 {
		t.Fatalf("compile errors for %q: %v", source, errs)
	}
	module.MainFunction = closure
	result, err := state.RunModule(module)
	if err != nil {
		t.Fatalf("runtime error for %q: %v", source, err)
	}
	return result
}

func newSession(state *vm.State) *vm.ObjModule {
	return &vm.ObjModule{
		Name:         state.Intern("repl"),
		Path:         "<repl>",
		PrivateNames: make(map[string]int),
	}
}

// A var declared on one line must still be visible, and still hold its
// value, on a later line compiled against the same module.
func TestCompileREPLLinePersistsVariablesAcrossLines(t *testing.T) {
	state := vm.NewState()
	session := newSession(state)

	runLine(t, state, session, `var x = 10`)
	result := runLine(t, state, session, `x = x + 5`)
	if !result.IsNull() {
		t.Fatalf("expected assignment to produce no echo value, got kind %v", result.Kind())
	}

	result = runLine(t, state, session, `x`)
	if !result.IsNumber() || result.AsNumber() != 15 {
		t.Fatalf("expected 15, got %v", result)
	}
}

// A function declared on one line must be callable on a later line.
func TestCompileREPLLinePersistsFunctions(t *testing.T) {
	state := vm.NewState()
	session := newSession(state)

	runLine(t, state, session, `function double(n) { return n * 2 }`)
	result := runLine(t, state, session, `double(21)`)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Fatalf("expected 42, got %v", result)
	}
}

// A bare trailing expression is the value that comes back as the module's
// ReturnValue, the mechanism the REPL uses to echo results — unlike a
// compiled module's top-level statements, which always discard their
// values.
func TestCompileREPLLineEchoesTrailingExpression(t *testing.T) {
	state := vm.NewState()
	session := newSession(state)

	result := runLine(t, state, session, `1 + 2`)
	if !result.IsNumber() || result.AsNumber() != 3 {
		t.Fatalf("expected bare expression to echo as 3, got %v", result)
	}
}

// A line ending in a declaration or assignment, not a bare expression,
// has nothing to echo and should come back null.
func TestCompileREPLLineVarDeclarationDoesNotEcho(t *testing.T) {
	state := vm.NewState()
	session := newSession(state)

	result := runLine(t, state, session, `var y = 99`)
	if !result.IsNull() {
		t.Fatalf("expected var declaration to produce no echo value, got %v", result)
	}

	result = runLine(t, state, session, `y = 100`)
	if !result.IsNull() {
		t.Fatalf("expected assignment to produce no echo value, got %v", result)
	}
}

// CompileModule's own statements must still discard their values even
// when the last statement is a bare expression — only the REPL's
// line-at-a-time entry point echoes.
func TestCompileModuleDoesNotEchoTrailingExpression(t *testing.T) {
	state := vm.NewState()
	stmts := parseLine(t, `var x = 41
x + 1`)
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	result, err := state.RunModule(module)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if !result.IsNull() {
		t.Fatalf("expected CompileModule's return value to stay null, got %v", result)
	}
}
