package repl_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"ash/internal/repl"
)

func run(t *testing.T, input string) (out, errOut string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&stderr, nil))
	repl.Start(strings.NewReader(input), &stdout, &stderr, false, logger)
	return stdout.String(), stderr.String()
}

func TestEchoesTrailingExpression(t *testing.T) {
	out, errOut := run(t, "1 + 2\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if !strings.Contains(out, "3\n") {
		t.Errorf("expected output to contain echoed value 3, got %q", out)
	}
}

func TestVarDeclarationPersistsAcrossLines(t *testing.T) {
	out, errOut := run(t, "var x = 10\nx + 5\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if !strings.Contains(out, "15\n") {
		t.Errorf("expected x to persist and echo 15, got %q", out)
	}
}

func TestFunctionDeclarationPersistsAcrossLines(t *testing.T) {
	out, errOut := run(t, "function double(n) { return n * 2 }\ndouble(21)\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if !strings.Contains(out, "42\n") {
		t.Errorf("expected double(21) to echo 42, got %q", out)
	}
}

func TestExitStopsTheLoop(t *testing.T) {
	out, _ := run(t, "1 + 1\nexit\n2 + 2\n")
	if strings.Contains(out, "4\n") {
		t.Errorf("expected the loop to stop at 'exit' before evaluating later lines, got %q", out)
	}
	if !strings.Contains(out, "2\n") {
		t.Errorf("expected the line before 'exit' to still run, got %q", out)
	}
}

func TestQuitStopsTheLoop(t *testing.T) {
	out, _ := run(t, "quit\n99\n")
	if strings.Contains(out, "99") {
		t.Errorf("expected 'quit' to stop the loop immediately, got %q", out)
	}
}

func TestBlankLinesAreIgnored(t *testing.T) {
	out, errOut := run(t, "\n\n3\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if !strings.Contains(out, "3\n") {
		t.Errorf("expected blank lines to be skipped and 3 to echo, got %q", out)
	}
}

func TestParseErrorIsReportedOnStderr(t *testing.T) {
	out, errOut := run(t, "var = \n")
	if errOut == "" {
		t.Error("expected a parse error to be written to stderr")
	}
	_ = out
}

func TestRuntimeErrorIsReportedOnStderrAndLoopContinues(t *testing.T) {
	out, errOut := run(t, "thisNameDoesNotExist\n7\n")
	if errOut == "" {
		t.Error("expected a runtime error to be written to stderr")
	}
	if !strings.Contains(out, "7\n") {
		t.Errorf("expected the loop to continue after a runtime error, got %q", out)
	}
}

func TestStdlibFunctionsAreAvailable(t *testing.T) {
	out, errOut := run(t, "Math.sqrt(16)\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if !strings.Contains(out, "4\n") {
		t.Errorf("expected Math.sqrt(16) to echo 4, got %q", out)
	}
}

func TestNullResultIsNotEchoed(t *testing.T) {
	out, errOut := run(t, "var y = 1\n")
	if errOut != "" {
		t.Fatalf("unexpected stderr: %s", errOut)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected a var declaration to produce no echoed value line, got %q", out)
	}
}
