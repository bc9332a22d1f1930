package parser

import (
	"fmt"
	"testing"

	"ash/internal/lexer"
)

// parseString runs one source string through the scanner and parser,
// converting any parser panic (unterminated string, interpolation depth
// overrun, ...) into an error rather than failing the whole test binary.
func parseString(input string) (stmts []Stmt, errs []error) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				errs = append(errs, err)
			} else {
				errs = append(errs, fmt.Errorf("parser panic: %v", r))
			}
			stmts = nil
		}
	}()

	scanner := lexer.NewScanner(input, "<test>")
	tokens := scanner.ScanTokens()

	p := NewParser(tokens, input, "<test>")
	stmts = p.Parse()
	errs = append(errs, p.Errors...)
	return
}

func assertParseSuccess(t *testing.T, input string, description string) []Stmt {
	t.Helper()
	stmts, errs := parseString(input)
	if len(errs) > 0 {
		t.Errorf("%s: parsing failed with errors: %v", description, errs)
		return nil
	}
	return stmts
}

func assertParseError(t *testing.T, input string, description string) {
	t.Helper()
	_, errs := parseString(input)
	if len(errs) == 0 {
		t.Errorf("%s: expected parsing to fail but it succeeded", description)
	}
}

func runTable(t *testing.T, tests []struct {
	name       string
	input      string
	shouldPass bool
}) {
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.shouldPass {
				assertParseSuccess(t, test.input, test.name)
			} else {
				assertParseError(t, test.input, test.name)
			}
		})
	}
}

// ===== Variable Declaration Tests =====

func TestVariableDeclarations(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"var declaration", "var x = 5", true},
		{"const declaration", "const x = 5", true},
		{"var without init", "var x", true},
		{"const without init", "const x", false},
		{"multiple declarations", "var x = 5\nvar y = 10", true},
		{"redeclaration same scope", "var x = 5\nvar x = 10", true},
		{"missing name", "var = 5", false},
	})
}

// ===== String Literal Tests =====

func TestStringLiterals(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"simple string", `var x = "hello"`, true},
		{"string with spaces", `var x = "hello world"`, true},
		{"empty string", `var x = ""`, true},
		{"string with escapes", `var x = "hello\nworld"`, true},
		{"string with quotes", `var x = "hello \"world\""`, true},
		{"unicode in string", `var x = "你好世界"`, true},
		{"simple interpolation", `var x = "value: \(y)"`, true},
		{"interpolation with call", `var x = "sum: \(add(1, 2))"`, true},
		{"nested interpolation", `var x = "a: \("b: \(1)")"`, true},
		{"unterminated string", `var x = "hello`, false},
	})
}

// ===== Map Literal Tests =====

func TestMapLiterals(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty map", `var x = {}`, true},
		{"simple map", `var x = {"key": "value"}`, true},
		{"numeric keys", `var x = {1: "one", 2: "two"}`, true},
		{"identifier keys", `var x = {key: "value"}`, true},
		{"nested map", `var x = {"outer": {"inner": "value"}}`, true},
		{"map with array", `var x = {"items": [1, 2, 3]}`, true},
		{"trailing comma", `var x = {"key": "value",}`, true},
		{"unicode keys", `var x = {"你好": "world"}`, true},
		{"missing comma", `var x = {"a": 1 "b": 2}`, false},
	})
}

// ===== Array/Range Literal Tests =====

func TestArrayAndRangeLiterals(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty array", `var x = []`, true},
		{"simple array", `var x = [1, 2, 3]`, true},
		{"trailing comma", `var x = [1, 2, 3,]`, true},
		{"nested array", `var x = [[1, 2], [3, 4]]`, true},
		{"exclusive range", `var x = 0..10`, true},
		{"inclusive range", `var x = 0...10`, true},
		{"range of variables", `var x = a..b`, true},
		{"missing bracket", `var x = [1, 2, 3`, false},
	})
}

// ===== Function Declaration Tests =====

func TestFunctionDeclarations(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"simple function", `function test() { return 1 }`, true},
		{"function with params", `function test(a, b) { return a + b }`, true},
		{"function with default param", `function test(a, b = 1) { return a + b }`, true},
		{"function with body", `function test() { var x = 1; return x }`, true},
		{"arrow lambda", `var f = function(x) => x * 2`, true},
		{"block lambda", `var f = function(x) { return x * 2 }`, true},
		{"nested function", `function outer() { function inner() { return 1 } return inner() }`, true},
		{"forward reference", `var x = test(); function test() { return 1 }`, true},
		{"recursive function", `function fact(n) { if n <= 1 { return 1 } return n * fact(n - 1) }`, true},
		{"function without body", `function test()`, false},
		{"function missing paren", `function test { return 1 }`, false},
	})
}

// ===== Class Declaration Tests =====

func TestClassDeclarations(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty class", `class Foo {}`, true},
		{"class with method", `class Foo { bar() { return 1 } }`, true},
		{"class with superclass", `class Foo : Bar { }`, true},
		{"class with static method", `class Foo { static bar() { return 1 } }`, true},
		{"class with static field", `class Foo { static count = 0 }`, true},
		{"class with getter", `class Foo { get value { return 1 } }`, true},
		{"class with setter", `class Foo { set value(v) { this.v = v } }`, true},
		{"super call", `class Foo : Bar { init() { super.init() } }`, true},
		{"missing brace", `class Foo`, false},
	})
}

// ===== For Loop Tests =====

func TestForLoops(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"c-style for loop", `for (var i = 0; i < 10; i = i + 1) { log(i) }`, true},
		{"for-in loop", `for x in [1, 2, 3] { log(x) }`, true},
		{"for-in over range", `for x in 0..10 { log(x) }`, true},
		{"nested for loops", `for (var i = 0; i < 5; i = i + 1) { for (var j = 0; j < 5; j = j + 1) { log(i + j) } }`, true},
		{"for with break", `for (var i = 0; i < 10; i = i + 1) { if i == 5 { break } }`, true},
		{"for with continue", `for (var i = 0; i < 10; i = i + 1) { if i == 5 { continue } }`, true},
		{"for without body", `for (var i = 0; i < 10; i = i + 1)`, false},
	})
}

// ===== Variable Scoping Tests =====

func TestVariableScoping(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{
			"nested scope redeclaration",
			`var x = 1
			{
				var x = 2
				log(x)
			}
			log(x)`,
			true,
		},
		{
			"function scope",
			`var x = 1
			function test() {
				var x = 2
				return x
			}`,
			true,
		},
		{
			"loop variable scope",
			`for (var i = 0; i < 5; i = i + 1) {
				log(i)
			}
			for (var i = 0; i < 5; i = i + 1) {
				log(i)
			}`,
			true,
		},
	})
}

// ===== Edge Cases Tests =====

func TestEdgeCases(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"empty program", "", true},
		{"only whitespace", "   \n\t  ", true},
		{"only comments", "// comment\n/* block */", true},
		{"statement without semicolon", "var x = 5\nvar y = 10", true},
		{"expression statement", "5 + 3", true},
		{"chained operations", "a.b.c.d()", true},
		{"complex expression", "(a + b) * (c - d) / e", true},
		{"null coalesce", "var x = a ?? b", true},
		{"is expression", "var x = a is Foo", true},
		{"array indexing", "var x = arr[0][1][2]", true},
		{"map access", `var x = obj["key"]["nested"]`, true},
		{"function call chain", "fn1()()()", true},
		{"mixed brackets", "var x = arr[obj[key]]", true},
		{"if as expression", "var x = if a { 1 } else { 2 }", true},
		{"new expression", "var x = new Foo(1, 2)", true},
	})
}

// ===== Error Handling Tests =====

func TestErrorHandling(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"try-catch", `try { risky() } catch (e) { log(e) }`, true},
		{"try-catch-finally", `try { risky() } catch (e) { log(e) } finally { cleanup() }`, true},
		{"try-finally", `try { risky() } finally { cleanup() }`, true},
		{"catch without binding", `try { risky() } catch { log("error") }`, true},
		{"throw statement", `throw "error"`, true},
		{"throw in function", `function test() { throw "error" }`, true},
		{"nested try", `try { try { risky() } catch (e) { throw e } } catch (e) { log(e) }`, true},
	})
}

// ===== Import/Export Tests =====

func TestImportExport(t *testing.T) {
	runTable(t, []struct {
		name       string
		input      string
		shouldPass bool
	}{
		{"simple import", `import "module"`, true},
		{"import with alias", `import "module" as mod`, true},
		{"import builtin", `import math`, true},
		{"require", `require "module"`, true},
		{"export function", `export function test() { return 1 }`, true},
		{"export variable", `export var x = 5`, true},
		{"export class", `export class Foo {}`, true},
		{"invalid import", `import`, false},
	})
}

// ===== Benchmarks =====

func BenchmarkParseSimpleProgram(b *testing.B) {
	input := `var x = 5; var y = 10; var z = x + y`
	for i := 0; i < b.N; i++ {
		parseString(input)
	}
}

func BenchmarkParseComplexProgram(b *testing.B) {
	input := `
	function fibonacci(n) {
		if n <= 1 {
			return n
		}
		return fibonacci(n - 1) + fibonacci(n - 2)
	}

	for (var i = 0; i < 10; i = i + 1) {
		log(fibonacci(i))
	}
	`
	for i := 0; i < b.N; i++ {
		parseString(input)
	}
}

func BenchmarkParseLargeMap(b *testing.B) {
	input := `var data = {
		"key1": "value1",
		"key2": "value2",
		"key3": "value3",
		"key4": "value4",
		"key5": "value5",
		"nested": {
			"inner1": "value1",
			"inner2": "value2"
		}
	}`
	for i := 0; i < b.N; i++ {
		parseString(input)
	}
}
