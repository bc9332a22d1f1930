package compiler

import (
	"ash/internal/bytecode"
	"ash/internal/parser"
	"ash/internal/vm"
)

// CompileModule compiles one source file's top-level statements into an
// *vm.ObjModule ready for State.RunModule (CompileREPLLine is the other
// entry point, for one REPL line at a time). Top-level `var`/`function`/`class` names are hoisted into
// module-private slots ahead of compiling any statement body, so mutual
// recursion and forward references between top-level declarations resolve
// the same way they do for any other module-private variable.
func CompileModule(state *vm.State, stmts []parser.Stmt, name, path string) (*vm.ObjModule, []error) {
	module := &vm.ObjModule{
		Name:         state.Intern(name),
		Path:         path,
		PrivateNames: make(map[string]int),
	}
	scope := &moduleScope{module: module, privates: make(map[string]int)}

	top := newFunctionCompiler(nil, state, "", path)
	top.module = scope

	hoistTopLevelNames(top, stmts)

	for _, stmt := range stmts {
		stmt.Accept(top)
	}
	top.emitOp(bytecode.OpNull, 0)
	top.emitOp(bytecode.OpReturn, 0)

	module.MainFunction = &vm.ObjClosure{Function: top.function}
	return module, top.allErrors()
}

// CompileREPLLine compiles one REPL-entered line against an existing,
// already-running module instead of building a fresh one: the module's
// ObjModule.Privates/PrivateNames persist across lines, so a `var`/
// `function`/`class` declared on one line is still resolvable (and still
// holds its value) on the next. Every other top-level Compiler/vm.State
// concept is identical to CompileModule — this exists only so the REPL's
// session module doesn't get discarded and rebuilt every line, losing
// every binding the user just typed.
//
// Unlike CompileModule, a trailing bare expression (`1 + 2`, not a `var`/
// `function`/`class`/assignment) is left on the stack instead of popped,
// so the line's OpReturn epilogue carries it out as the module's
// ReturnValue — that's what lets the REPL echo the value of whatever was
// just typed, the way interactive prompts do and a `require()`d file's
// top-level statements never need to.
func CompileREPLLine(state *vm.State, module *vm.ObjModule, stmts []parser.Stmt) (*vm.ObjClosure, []error) {
	scope := &moduleScope{module: module, privates: make(map[string]int, len(module.PrivateNames))}
	for name, idx := range module.PrivateNames {
		scope.privates[name] = idx
	}

	top := newFunctionCompiler(nil, state, "", module.Path)
	top.module = scope

	hoistTopLevelNames(top, stmts)

	last := len(stmts) - 1
	var echoExpr *parser.ExpressionStmt
	echoes := false
	if last >= 0 {
		echoExpr, echoes = stmts[last].(*parser.ExpressionStmt)
	}

	for i, stmt := range stmts {
		if echoes && i == last {
			echoExpr.Expr.Accept(top)
			continue
		}
		stmt.Accept(top)
	}
	if !echoes {
		top.emitOp(bytecode.OpNull, 0)
	}
	top.emitOp(bytecode.OpReturn, 0)

	return &vm.ObjClosure{Function: top.function}, top.allErrors()
}

// hoistTopLevelNames pre-reserves a module-private slot for every name a
// top-level `var`, `function`, or `class` declaration introduces, before
// any of their bodies are compiled. Without this, a top-level function
// calling another top-level function declared later in the file (or two
// classes referencing each other) would resolve as an undefined global
// instead of the module-private slot the later declaration is about to
// fill in.
func hoistTopLevelNames(top *Compiler, stmts []parser.Stmt) {
	for _, stmt := range stmts {
		hoistStmt(top, stmt)
	}
}

func hoistStmt(top *Compiler, stmt parser.Stmt) {
	switch s := stmt.(type) {
	case *parser.VarStmt:
		top.module.declarePrivate(s.Name)
	case *parser.FunctionStmt:
		top.module.declarePrivate(s.Name)
	case *parser.ClassStmt:
		top.module.declarePrivate(s.Name)
	case *parser.ImportStmt:
		top.module.declarePrivate(s.Alias)
	case *parser.ExportStmt:
		hoistStmt(top, s.Stmt)
	}
}
