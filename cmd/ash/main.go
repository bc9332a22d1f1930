// Command ash is the interpreter's CLI driver, grounded on the teacher's
// cmd/sentra/main.go (hand-rolled subcommand dispatch ahead of any flag
// parsing) scaled down to the subcommands this implementation actually
// has behind it: `run` executes a source file, `repl` starts the
// interactive prompt. Both use stdlib `flag` for their own options
// rather than the teacher's positional-argument scanning, since neither
// subcommand here takes more than a couple of boolean/string flags.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"ash/internal/compiler"
	"ash/internal/eventloop"
	"ash/internal/lexer"
	"ash/internal/module"
	"ash/internal/parser"
	"ash/internal/repl"
	"ash/internal/stdlib/file"
	"ash/internal/stdlib/jsonlib"
	"ash/internal/stdlib/mathlib"
	"ash/internal/stdlib/network"
	"ash/internal/stdlib/random"
	"ash/internal/vm"

	"github.com/mattn/go-isatty"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "run":
		runCommand(os.Args[2:])
	case "repl":
		replCommand(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "ash: unknown command %q\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ash <run|repl> [flags] [args]")
	fmt.Fprintln(os.Stderr, "  ash run [-log-format=text|json] <file.ash>")
	fmt.Fprintln(os.Stderr, "  ash repl [-log-format=text|json]")
}

func newLogger(format string) *slog.Logger {
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, nil)
	default:
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return slog.New(handler)
}

func newState(logFormat string) (*vm.State, *eventloop.Loop) {
	state := vm.NewState()
	state.Logger = newLogger(logFormat)

	module.NewLoader(state, []string{".", "./lib"})
	mathlib.Install(state)
	random.Install(state)
	jsonlib.Install(state)
	file.Install(state)
	network.Install(state)
	loop := eventloop.New(state)
	eventloop.Install(state, loop)

	return state, loop
}

func runCommand(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	logFormat := fs.String("log-format", "text", "log output format: text or json")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		fmt.Fprintln(os.Stderr, "ash run: missing file argument")
		os.Exit(1)
	}
	filename := rest[0]

	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ash: %v\n", err)
		os.Exit(1)
	}

	state, loop := newState(*logFormat)

	scanner := lexer.NewScanner(string(source), filename)
	tokens := scanner.ScanTokens()

	p := parser.NewParser(tokens, string(source), filename)
	stmts := p.Parse()
	if len(p.Errors) > 0 {
		for _, e := range p.Errors {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	mod, errs := compiler.CompileModule(state, stmts, moduleNameFor(filename), filename)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		os.Exit(1)
	}

	if _, err := state.RunModule(mod); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Run any Timer.add callbacks the script scheduled but didn't wait
	// on, mirroring lit's own main() calling lit_event_loop once the
	// top-level script has finished running.
	if err := loop.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func replCommand(args []string) {
	fs := flag.NewFlagSet("repl", flag.ExitOnError)
	logFormat := fs.String("log-format", "text", "log output format: text or json")
	fs.Parse(args)

	color := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	repl.Start(os.Stdin, os.Stdout, os.Stderr, color, newLogger(*logFormat))
}

func moduleNameFor(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
