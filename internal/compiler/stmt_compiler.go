package compiler

import (
	"ash/internal/bytecode"
	"ash/internal/parser"
)

// isModuleTopLevel reports whether we're compiling statements directly in
// the module's implicit main function, outside any block — the only place
// declarations bind to module-private slots instead of ordinary locals.
func (c *Compiler) isModuleTopLevel() bool {
	return c.enclosing == nil && c.scopeDepth == 0 && c.module != nil
}

// declareBinding finishes a var/function/class declaration whose value is
// already sitting on top of the stack: at module top level it's stored into
// the (already hoisted) private slot and popped back off, since Privates is
// a separate array, not the value stack; anywhere else the stack slot IS
// the local's storage, so no bytecode is needed beyond bookkeeping it.
func (c *Compiler) declareBinding(name string, line int) {
	if c.isModuleTopLevel() {
		idx := c.module.declarePrivate(name)
		c.emitLocalOp(bytecode.OpSetPrivate, bytecode.OpSetPrivateLong, idx, line)
		c.emitOp(bytecode.OpPop, line)
		return
	}
	c.addLocal(name, line)
}

func (c *Compiler) compileStmtBlock(stmts []parser.Stmt, line int) {
	c.beginScope()
	for _, stmt := range stmts {
		stmt.Accept(c)
	}
	c.endScope(line)
}

// compileExprStatement compiles an expression whose value is discarded:
// direct method/super calls get the _IGNORING opcode variant instead of a
// push-then-pop so the interpreter never materializes the unused result.
func (c *Compiler) compileExprStatement(expr parser.Expr, line int) {
	switch e := expr.(type) {
	case *parser.MethodCallExpr:
		c.emitMethodCall(e.Object, e.Method, e.Args, true, line)
	case *parser.CallExpr:
		if super, ok := e.Callee.(*parser.SuperExpr); ok {
			c.emitSuperCall(super.Method, e.Args, true, line)
			return
		}
		expr.Accept(c)
		c.emitOp(bytecode.OpPop, line)
	default:
		expr.Accept(c)
		c.emitOp(bytecode.OpPop, line)
	}
}

func (c *Compiler) VisitVarStmt(stmt *parser.VarStmt) interface{} {
	line := stmt.Line()
	if stmt.Expr != nil {
		stmt.Expr.Accept(c)
	} else {
		c.emitOp(bytecode.OpNull, line)
	}
	c.declareBinding(stmt.Name, line)
	return nil
}

func (c *Compiler) VisitAssignmentStmt(stmt *parser.AssignmentStmt) interface{} {
	line := stmt.Line()
	stmt.Value.Accept(c)
	c.emitSetVariable(stmt.Name, line)
	c.emitOp(bytecode.OpPop, line)
	return nil
}

func (c *Compiler) VisitExpressionStmt(stmt *parser.ExpressionStmt) interface{} {
	c.compileExprStatement(stmt.Expr, stmt.Line())
	return nil
}

func (c *Compiler) VisitFunctionStmt(stmt *parser.FunctionStmt) interface{} {
	line := stmt.Line()
	spec := funcSpec{name: stmt.Name, params: stmt.Params, body: stmt.Body}
	if c.isModuleTopLevel() {
		c.emitClosure(spec, line)
		idx := c.module.declarePrivate(stmt.Name)
		c.emitLocalOp(bytecode.OpSetPrivate, bytecode.OpSetPrivateLong, idx, line)
		c.emitOp(bytecode.OpPop, line)
		return nil
	}
	// Reserve the local slot before compiling the body so the function can
	// call itself by name (clox's declare-before-define for recursion).
	c.addLocal(stmt.Name, line)
	c.emitClosure(spec, line)
	return nil
}

func (c *Compiler) VisitReturnStmt(stmt *parser.ReturnStmt) interface{} {
	line := stmt.Line()
	if stmt.Value != nil {
		stmt.Value.Accept(c)
	} else {
		c.emitOp(bytecode.OpNull, line)
	}
	c.emitOp(bytecode.OpReturn, line)
	return nil
}

func (c *Compiler) VisitIfStmt(stmt *parser.IfStmt) interface{} {
	line := stmt.Line()
	stmt.Condition.Accept(c)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)
	c.compileStmtBlock(stmt.Then, line)
	elseJump := c.emitJump(bytecode.OpJump, line)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop, line)
	if stmt.Else != nil {
		c.compileStmtBlock(stmt.Else, line)
	}
	c.patchJump(elseJump)
	return nil
}

func (c *Compiler) VisitWhileStmt(stmt *parser.WhileStmt) interface{} {
	line := stmt.Line()
	loopStart := len(c.chunk.Code)
	stmt.Condition.Accept(c)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)

	lc := &loopContext{continueTarget: loopStart, localBase: len(c.locals), scopeDepth: c.scopeDepth}
	c.loops = append(c.loops, lc)
	c.compileStmtBlock(stmt.Body, line)
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop, line)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	return nil
}

// VisitForStmt follows clox's desugaring: the increment clause compiles
// between two jumps so it runs after the body but before the condition is
// rechecked, and `continue` targets the increment rather than the top of
// the loop when one is present.
func (c *Compiler) VisitForStmt(stmt *parser.ForStmt) interface{} {
	line := stmt.Line()
	c.beginScope()
	if stmt.Init != nil {
		stmt.Init.Accept(c)
	}

	loopStart := len(c.chunk.Code)
	exitJump := -1
	if stmt.Condition != nil {
		stmt.Condition.Accept(c)
		exitJump = c.emitJump(bytecode.OpJumpIfFalse, line)
		c.emitOp(bytecode.OpPop, line)
	}

	continueTarget := loopStart
	if stmt.Update != nil {
		bodyJump := c.emitJump(bytecode.OpJump, line)
		incrementStart := len(c.chunk.Code)
		stmt.Update.Accept(c)
		c.emitOp(bytecode.OpPop, line)
		c.emitLoop(loopStart, line)
		c.patchJump(bodyJump)
		continueTarget = incrementStart
	}

	lc := &loopContext{continueTarget: continueTarget, localBase: len(c.locals), scopeDepth: c.scopeDepth}
	c.loops = append(c.loops, lc)
	c.compileStmtBlock(stmt.Body, line)
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(continueTarget, line)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop, line)
	}
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.endScope(line)
	return nil
}

// VisitForInStmt lowers `for x in seq {...}` onto the iterate/
// iteratorValue native protocol: a hidden local holds the sequence, another
// holds the opaque iterator state iterate() returns (False means done —
// the only falsey value the protocol ever produces, so JUMP_IF_FALSE alone
// decides whether to keep looping).
func (c *Compiler) VisitForInStmt(stmt *parser.ForInStmt) interface{} {
	line := stmt.Line()
	c.beginScope()
	stmt.Collection.Accept(c)
	seqSlot := len(c.locals)
	c.addLocal("", line)
	c.emitOp(bytecode.OpNull, line)
	curSlot := len(c.locals)
	c.addLocal("", line)

	loopStart := len(c.chunk.Code)
	c.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, seqSlot, line)
	c.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, curSlot, line)
	c.emitOpShort(bytecode.OpInvoke, c.internConstant("iterate"), line)
	c.emitByte(1, line)
	c.emitLocalOp(bytecode.OpSetLocal, bytecode.OpSetLocalLong, curSlot, line)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)

	lc := &loopContext{continueTarget: loopStart, localBase: len(c.locals), scopeDepth: c.scopeDepth}
	c.loops = append(c.loops, lc)

	c.beginScope()
	c.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, seqSlot, line)
	c.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, curSlot, line)
	c.emitOpShort(bytecode.OpInvoke, c.internConstant("iteratorValue"), line)
	c.emitByte(1, line)
	c.addLocal(stmt.Variable, line)
	for _, s := range stmt.Body {
		s.Accept(c)
	}
	c.endScope(line)
	c.loops = c.loops[:len(c.loops)-1]

	c.emitLoop(loopStart, line)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop, line)
	for _, j := range lc.breakJumps {
		c.patchJump(j)
	}
	c.endScope(line)
	return nil
}

func (c *Compiler) VisitBreakStmt(stmt *parser.BreakStmt) interface{} {
	line := stmt.Line()
	if len(c.loops) == 0 {
		c.errorf(line, "'break' outside of a loop")
		return nil
	}
	lc := c.loops[len(c.loops)-1]
	if n := len(c.locals) - lc.localBase; n > 0 {
		c.emitOpShort(bytecode.OpPopLocals, n, line)
	}
	lc.breakJumps = append(lc.breakJumps, c.emitJump(bytecode.OpJump, line))
	return nil
}

func (c *Compiler) VisitContinueStmt(stmt *parser.ContinueStmt) interface{} {
	line := stmt.Line()
	if len(c.loops) == 0 {
		c.errorf(line, "'continue' outside of a loop")
		return nil
	}
	lc := c.loops[len(c.loops)-1]
	if n := len(c.locals) - lc.localBase; n > 0 {
		c.emitOpShort(bytecode.OpPopLocals, n, line)
	}
	c.emitLoop(lc.continueTarget, line)
	return nil
}

func (c *Compiler) VisitImportStmt(stmt *parser.ImportStmt) interface{} {
	line := stmt.Line()
	c.emitOpByte(bytecode.OpRequire, byte(c.internConstant(stmt.Path)), line)
	c.declareBinding(stmt.Alias, line)
	return nil
}

// VisitExportStmt: every module-private is already reachable from outside
// via OP_GET_FIELD on the module value (ObjModule.PrivateNames has no
// separate public/private split), so `export` just compiles the wrapped
// declaration — the keyword is accepted but doesn't change what's emitted.
func (c *Compiler) VisitExportStmt(stmt *parser.ExportStmt) interface{} {
	return stmt.Stmt.Accept(c)
}

func (c *Compiler) VisitThrowStmt(stmt *parser.ThrowStmt) interface{} {
	line := stmt.Line()
	stmt.Value.Accept(c)
	c.emitOp(bytecode.OpThrow, line)
	return nil
}

// VisitTryStmt: OP_PUSH_TRY's operand is a forward offset patched exactly
// like OP_JUMP's, so emitJump/patchJump double as its patching helpers. The
// try and catch paths both fall through to the same point, so a finally
// block placed there runs on either path; it does not run if the error
// escapes uncaught or a return/break/continue exits the try or catch body
// early (left as a known simplification).
func (c *Compiler) VisitTryStmt(stmt *parser.TryStmt) interface{} {
	line := stmt.Line()
	if stmt.CatchBlock != nil {
		tryJump := c.emitJump(bytecode.OpPushTry, line)
		c.compileStmtBlock(stmt.TryBlock, line)
		c.emitOp(bytecode.OpPopTry, line)
		endJump := c.emitJump(bytecode.OpJump, line)

		c.patchJump(tryJump)
		c.beginScope()
		c.addLocal(stmt.CatchVar, line)
		for _, s := range stmt.CatchBlock {
			s.Accept(c)
		}
		c.endScope(line)
		c.patchJump(endJump)
	} else {
		c.compileStmtBlock(stmt.TryBlock, line)
	}
	if stmt.FinallyBlock != nil {
		c.compileStmtBlock(stmt.FinallyBlock, line)
	}
	return nil
}
