// Package repl implements the interactive prompt, grounded on the
// teacher's internal/repl/repl.go (lex -> parse -> compile -> run per
// line against one persistent vm.State). The teacher's version rebuilds
// a fresh compiler/chunk every line and loses locals between them; this
// version keeps one session-long *vm.ObjModule alive and compiles each
// line with compiler.CompileREPLLine so a `var`/`function`/`class`
// declared on one line is still visible on the next.
package repl

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ash/internal/compiler"
	"ash/internal/eventloop"
	"ash/internal/lexer"
	"ash/internal/module"
	"ash/internal/parser"
	"ash/internal/stdlib/file"
	"ash/internal/stdlib/jsonlib"
	"ash/internal/stdlib/mathlib"
	"ash/internal/stdlib/network"
	"ash/internal/stdlib/random"
	"ash/internal/vm"
)

const (
	colorReset = "\x1b[0m"
	colorDim   = "\x1b[2m"
	colorRed   = "\x1b[31m"
	colorCyan  = "\x1b[36m"
)

// Start runs the prompt loop, reading from in and writing to out/errOut,
// until EOF or a line reading "exit"/"quit". color gates ANSI escapes —
// callers pass isatty.IsTerminal(os.Stdout.Fd()) so piped output stays
// plain. logger replaces the state's default stderr text logger, so the
// REPL honors the same -log-format flag `ash run` does.
func Start(in io.Reader, out, errOut io.Writer, color bool, logger *slog.Logger) {
	fmt.Fprintln(out, "ash REPL | type 'exit' to quit")

	state := vm.NewState()
	state.Stdout = out
	state.Stderr = errOut
	state.Logger = logger
	module.NewLoader(state, nil)
	mathlib.Install(state)
	random.Install(state)
	jsonlib.Install(state)
	file.Install(state)
	network.Install(state)
	loop := eventloop.New(state)
	eventloop.Install(state, loop)

	session := &vm.ObjModule{
		Name:         state.Intern("repl"),
		Path:         "<repl>",
		PrivateNames: make(map[string]int),
	}

	scanner := bufio.NewScanner(in)
	prompt := ">>> "
	if color {
		prompt = colorCyan + ">>> " + colorReset
	}

	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			break
		}
		if line == "" {
			continue
		}

		if err := evalLine(state, session, line, out, color); err != nil {
			printErr(errOut, err, color)
		}
		if err := loop.Run(); err != nil {
			printErr(errOut, err, color)
		}
	}
}

func evalLine(state *vm.State, session *vm.ObjModule, line string, out io.Writer, color bool) error {
	scan := lexer.NewScanner(line, session.Path)
	tokens := scan.ScanTokens()

	p := parser.NewParser(tokens, line, session.Path)
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		return p.Errors[0]
	}

	closure, errs := compiler.CompileREPLLine(state, session, stmts)
	if len(errs) > 0 {
		return errs[0]
	}
	session.MainFunction = closure

	result, err := state.RunModule(session)
	if err != nil {
		return err
	}
	if result.IsNull() {
		return nil
	}
	text, err := state.ToString(result)
	if err != nil {
		return err
	}
	if color {
		fmt.Fprintf(out, "%s%s%s\n", colorDim, text, colorReset)
	} else {
		fmt.Fprintln(out, text)
	}
	return nil
}

func printErr(errOut io.Writer, err error, color bool) {
	if color {
		fmt.Fprintf(errOut, "%s%v%s\n", colorRed, err, colorReset)
	} else {
		fmt.Fprintln(errOut, err)
	}
}
