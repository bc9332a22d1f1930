package jsonlib_test

import (
	"testing"

	"ash/internal/compiler"
	"ash/internal/lexer"
	"ash/internal/parser"
	"ash/internal/stdlib/jsonlib"
	"ash/internal/vm"
)

func eval(t *testing.T, source string) (vm.Value, *vm.State) {
	t.Helper()
	state := vm.NewState()
	jsonlib.Install(state)

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

func expectString(t *testing.T, state *vm.State, v vm.Value, want string) {
	t.Helper()
	got, err := state.ToString(v)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestParsePrimitives(t *testing.T) {
	result, _ := eval(t, `return JSON.parse("42")`)
	if !result.IsNumber() || result.AsNumber() != 42 {
		t.Errorf("expected 42, got %v", result)
	}

	result, _ = eval(t, `return JSON.parse("true")`)
	if !result.IsBool() || !result.AsBool() {
		t.Errorf("expected true, got %v", result)
	}

	result, _ = eval(t, `return JSON.parse("null")`)
	if !result.IsNull() {
		t.Errorf("expected null, got %v", result)
	}

	result, state := eval(t, `return JSON.parse("\"hello\"")`)
	expectString(t, state, result, "hello")
}

func TestParseArray(t *testing.T) {
	result, _ := eval(t, `
		var arr = JSON.parse("[1, 2, 3]")
		return arr[0] + arr[1] + arr[2]
	`)
	if !result.IsNumber() || result.AsNumber() != 6 {
		t.Errorf("expected 6, got %v", result)
	}
}

func TestParseObject(t *testing.T) {
	result, state := eval(t, `
		var obj = JSON.parse("{\"name\": \"ash\", \"count\": 3}")
		return obj["name"]
	`)
	expectString(t, state, result, "ash")
}

func TestParseInvalidJSONIsError(t *testing.T) {
	state := vm.NewState()
	jsonlib.Install(state)

	scanner := lexer.NewScanner(`return JSON.parse("not json")`, "<test>")
	tokens := scanner.ScanTokens()
	p := parser.NewParser(tokens, `return JSON.parse("not json")`, "<test>")
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		t.Fatalf("parse errors: %v", p.Errors)
	}
	module, errs := compiler.CompileModule(state, stmts, "test", "<test>")
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	if _, err := state.RunModule(module); err == nil {
		t.Fatal("expected an error for invalid JSON input")
	}
}

func TestToStringRoundTripsArray(t *testing.T) {
	result, state := eval(t, `
		var arr = [1, 2, 3]
		return JSON.toString(arr)
	`)
	expectString(t, state, result, "[1,2,3]")
}

func TestToStringRoundTripsMap(t *testing.T) {
	result, state := eval(t, `
		var m = {"a": 1}
		var text = JSON.toString(m)
		var parsed = JSON.parse(text)
		return parsed["a"]
	`)
	if !result.IsNumber() {
		t.Fatalf("expected a number back out of the round trip, got kind %v", result.Kind())
	}
	_ = state
	if result.AsNumber() != 1 {
		t.Errorf("expected round-tripped value 1, got %v", result.AsNumber())
	}
}

func TestToStringIndented(t *testing.T) {
	result, state := eval(t, `return JSON.toString({"a": 1}, true)`)
	got, err := state.ToString(result)
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if got == `{"a":1}` {
		t.Errorf("expected indented output to differ from compact output, got %q", got)
	}
}

func TestToStringOfUnsupportedValueIsError(t *testing.T) {
	state := vm.NewState()
	jsonlib.Install(state)

	source := `
		function f() {}
		return JSON.toString(f)
	`
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
		t.Fatal("expected an error for a value with no JSON representation")
	}
}
