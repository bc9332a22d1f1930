package compiler

import (
	"ash/internal/bytecode"
	"ash/internal/parser"
	"ash/internal/vm"
)

// funcSpec is the shape every callable (top-level function, method,
// lambda) reduces to before compileFunction turns it into an *ObjFunction.
type funcSpec struct {
	name     string
	params   []parser.Param
	body     []parser.Stmt
	exprBody parser.Expr // non-nil for the `=>` lambda shorthand
	receiver string      // "this" for methods, "" for plain functions/lambdas
}

// compileFunction compiles spec as a brand-new nested Compiler and returns
// the finished prototype together with its upvalue descriptors. It emits
// nothing into parent; emitClosure does that for every caller, methods
// included.
func (parent *Compiler) compileFunction(spec funcSpec, line int) (*vm.ObjFunction, []upvalueRef) {
	child := newFunctionCompiler(parent, parent.state, spec.name, parent.file)
	if spec.receiver != "" {
		child.locals[0].name = spec.receiver
	}

	required := 0
	for _, p := range spec.params {
		if p.Default == nil {
			required++
		}
	}
	child.function.Arity = required
	child.function.MaxArity = len(spec.params)

	for _, p := range spec.params {
		child.addLocal(p.Name, line)
	}
	for i, p := range spec.params {
		if p.Default == nil {
			continue
		}
		slot := i + 1 // +1: slot 0 is the reserved receiver/callee slot
		child.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, slot, line)
		nullJump := child.emitJump(bytecode.OpJumpIfNullPopping, line)
		presentJump := child.emitJump(bytecode.OpJump, line)
		child.patchJump(nullJump)
		p.Default.Accept(child)
		child.emitLocalOp(bytecode.OpSetLocal, bytecode.OpSetLocalLong, slot, line)
		child.emitOp(bytecode.OpPop, line)
		child.patchJump(presentJump)
	}

	if spec.exprBody != nil {
		spec.exprBody.Accept(child)
		child.emitOp(bytecode.OpReturn, line)
	} else {
		for _, stmt := range spec.body {
			stmt.Accept(child)
		}
		child.emitOp(bytecode.OpNull, line)
		child.emitOp(bytecode.OpReturn, line)
	}

	parent.Errors = append(parent.Errors, child.Errors...)
	return child.function, child.upvalues
}

// emitClosure compiles spec, adds the resulting prototype to parent's
// constant pool, and emits OP_CLOSURE with one (is_local, index) byte
// pair per captured upvalue, leaving the closure value on the stack.
func (parent *Compiler) emitClosure(spec funcSpec, line int) {
	fn, upvalues := parent.compileFunction(spec, line)
	idx := parent.chunk.AddConstant(vm.ObjectValue(fn))
	if idx > 0xff {
		parent.errorf(line, "too many function constants in one chunk")
		return
	}
	parent.emitOpByte(bytecode.OpClosure, byte(idx), line)
	for _, up := range upvalues {
		isLocal := byte(0)
		if up.isLocal {
			isLocal = 1
		}
		parent.emitByte(isLocal, line)
		parent.emitByte(byte(up.index), line)
	}
}
