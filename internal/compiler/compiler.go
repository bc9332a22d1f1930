// Package compiler walks the parser's AST and emits bytecode chunks the
// vm package can run directly, grounded on the teacher's single-pass
// visitor-style emitter generalized to locals, upvalues, closures, and
// classes the way lit_compiler.c/clox structure a real tree-to-bytecode
// compiler rather than the teacher's original globals-only toy version.
package compiler

import (
	"fmt"

	"ash/internal/bytecode"
	asherrors "ash/internal/errors"
	"ash/internal/parser"
	"ash/internal/vm"
)

// localVar is one slot in the current function's stack frame.
type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

// upvalueRef records how a closure's Nth upvalue should be captured: from
// the immediately enclosing function's locals, or forwarded from an
// upvalue the enclosing function already captured.
type upvalueRef struct {
	index   int
	isLocal bool
}

// loopContext tracks the bookkeeping break/continue need: where a
// `continue` jumps back to, the pending `break` jumps still waiting to be
// patched to the loop's end, and how many locals/what scope depth the
// loop body started at (so both can emit OP_POP_LOCALS for the right N).
type loopContext struct {
	continueTarget int
	breakJumps     []int
	localBase      int
	scopeDepth     int
}

// classContext links nested class bodies to their enclosing one so
// `this`/`super` resolve against the innermost class currently compiling.
type classContext struct {
	enclosing     *classContext
	name          string
	hasSuperclass bool
}

// moduleScope is shared by every function Compiler compiling within one
// module: the module-private name table backing top-level `var`/function/
// class declarations (ObjModule.Privates at runtime).
type moduleScope struct {
	module   *vm.ObjModule
	privates map[string]int
}

func (m *moduleScope) declarePrivate(name string) int {
	if idx, ok := m.privates[name]; ok {
		return idx
	}
	idx := len(m.module.Privates)
	m.module.Privates = append(m.module.Privates, vm.Null)
	m.privates[name] = idx
	m.module.PrivateNames[name] = idx
	return idx
}

// Compiler compiles exactly one function body (the module's implicit
// top-level function counts as one). Nested functions/lambdas/methods get
// their own Compiler linked via enclosing, mirroring clox's per-function
// compiler-on-the-C-stack design.
type Compiler struct {
	state     *vm.State
	enclosing *Compiler
	module    *moduleScope

	function *vm.ObjFunction
	chunk    *vm.Chunk

	locals     []localVar
	upvalues   []upvalueRef
	scopeDepth int

	loops []*loopContext
	class *classContext

	file string

	Errors []error
}

func newFunctionCompiler(enclosing *Compiler, state *vm.State, name string, file string) *Compiler {
	fn := &vm.ObjFunction{}
	if name != "" {
		fn.Name = state.Intern(name)
	}
	c := &Compiler{
		state:    state,
		function: fn,
		chunk:    &fn.Chunk,
		file:     file,
	}
	if enclosing != nil {
		c.module = enclosing.module
		c.class = enclosing.class
	}
	c.enclosing = enclosing
	// Slot 0 is always the receiver/callee slot (`this` for methods, the
	// called closure itself for plain functions — never addressed by
	// name, just reserved so param slots start at 1 the way callClosure's
	// stack layout expects).
	c.locals = append(c.locals, localVar{name: "", depth: 0})
	return c
}

func (c *Compiler) errorf(line int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	c.Errors = append(c.Errors, asherrors.NewCompileError(msg, c.file, line, 0))
}

func (c *Compiler) allErrors() []error {
	if c.enclosing != nil {
		return append(c.enclosing.allErrors(), c.Errors...)
	}
	return c.Errors
}

// --- emission helpers ---

func (c *Compiler) emitByte(b byte, line int) { c.chunk.Write(b, line) }

func (c *Compiler) emitOp(op bytecode.OpCode, line int) { c.chunk.WriteOp(byte(op), line) }

func (c *Compiler) emitShort(v int, line int) { c.chunk.WriteShort(uint16(v), line) }

func (c *Compiler) emitOpShort(op bytecode.OpCode, v int, line int) {
	c.emitOp(op, line)
	c.emitShort(v, line)
}

func (c *Compiler) emitOpByte(op bytecode.OpCode, b byte, line int) {
	c.emitOp(op, line)
	c.emitByte(b, line)
}

// emitConstant pushes value via OP_CONSTANT (one-byte index) or
// OP_CONSTANT_LONG (two-byte index) depending on how large the pool has
// grown, the narrowest-form choice spec.md's opcode table calls for.
func (c *Compiler) emitConstant(value vm.Value, line int) {
	idx := c.chunk.AddConstant(value)
	if idx <= 0xff {
		c.emitOpByte(bytecode.OpConstant, byte(idx), line)
		return
	}
	c.emitOpShort(bytecode.OpConstantLong, idx, line)
}

func (c *Compiler) internConstant(name string) int {
	return c.chunk.AddConstant(vm.ObjectValue(c.state.Intern(name)))
}

// emitJump writes a jump opcode with a placeholder u16 offset and returns
// the offset of the placeholder's first byte, to be patched by patchJump
// once the jump target is known.
func (c *Compiler) emitJump(op bytecode.OpCode, line int) int {
	c.emitOp(op, line)
	pos := len(c.chunk.Code)
	c.emitByte(0, line)
	c.emitByte(0, line)
	return pos
}

func (c *Compiler) patchJump(pos int) {
	offset := len(c.chunk.Code) - (pos + 2)
	c.chunk.Code[pos] = byte(offset >> 8)
	c.chunk.Code[pos+1] = byte(offset)
}

// emitLoop writes OP_JUMP_BACK targeting loopStart (an offset already
// passed, hence the subtraction rather than a forward patch).
func (c *Compiler) emitLoop(loopStart int, line int) {
	c.emitOp(bytecode.OpJumpBack, line)
	offset := (len(c.chunk.Code) + 2) - loopStart
	c.emitShort(offset, line)
}

// --- scope management ---

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope closes the current block scope, closing any of its locals that
// were captured as upvalues and emitting OP_POP_LOCALS to drop the rest,
// matching clox's endScope but batched into a single count instead of a
// POP per local (spec.md's POP_LOCALS exists for exactly this).
func (c *Compiler) endScope(line int) {
	c.scopeDepth--
	n := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.locals = c.locals[:len(c.locals)-1]
		n++
	}
	if n > 0 {
		c.emitOpShort(bytecode.OpPopLocals, n, line)
	}
}

func (c *Compiler) addLocal(name string, line int) {
	if len(c.locals) >= 65536 {
		c.errorf(line, "too many local variables in one function")
		return
	}
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth != -1 && c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.errorf(line, "variable '%s' already declared in this scope", name)
		}
	}
	c.locals = append(c.locals, localVar{name: name, depth: c.scopeDepth})
}

// resolveLocal returns the slot index of name within this function's own
// locals, innermost declaration first.
func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue finds name in an enclosing function, capturing it as a
// local or chaining through an already-captured upvalue, clox's
// resolveUpvalue generalized with no depth limit on the chain.
func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if slot := c.enclosing.resolveLocal(name); slot != -1 {
		c.enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(slot, true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(up, false)
	}
	return -1
}

func (c *Compiler) addUpvalue(index int, isLocal bool) int {
	for i, existing := range c.upvalues {
		if existing.index == index && existing.isLocal == isLocal {
			return i
		}
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// resolveVariable resolves name to its storage: local slot, upvalue slot,
// module-private slot, or (failing all of those) a bare global reference
// left for the runtime to resolve against the builtin namespace.
type varKind int

const (
	varLocal varKind = iota
	varUpvalue
	varPrivate
	varGlobal
)

func (c *Compiler) resolveVariable(name string) (varKind, int) {
	if slot := c.resolveLocal(name); slot != -1 {
		return varLocal, slot
	}
	if slot := c.resolveUpvalue(name); slot != -1 {
		return varUpvalue, slot
	}
	if c.module != nil {
		if idx, ok := c.module.privates[name]; ok {
			return varPrivate, idx
		}
	}
	return varGlobal, 0
}

func (c *Compiler) emitGetVariable(name string, line int) {
	kind, idx := c.resolveVariable(name)
	switch kind {
	case varLocal:
		c.emitLocalOp(bytecode.OpGetLocal, bytecode.OpGetLocalLong, idx, line)
	case varUpvalue:
		c.emitOpByte(bytecode.OpGetUpvalue, byte(idx), line)
	case varPrivate:
		c.emitLocalOp(bytecode.OpGetPrivate, bytecode.OpGetPrivateLong, idx, line)
	default:
		c.emitOpShort(bytecode.OpGetGlobal, c.internConstant(name), line)
	}
}

func (c *Compiler) emitSetVariable(name string, line int) {
	kind, idx := c.resolveVariable(name)
	switch kind {
	case varLocal:
		c.emitLocalOp(bytecode.OpSetLocal, bytecode.OpSetLocalLong, idx, line)
	case varUpvalue:
		c.emitOpByte(bytecode.OpSetUpvalue, byte(idx), line)
	case varPrivate:
		c.emitLocalOp(bytecode.OpSetPrivate, bytecode.OpSetPrivateLong, idx, line)
	default:
		c.emitOpShort(bytecode.OpSetGlobal, c.internConstant(name), line)
	}
}

func (c *Compiler) emitLocalOp(short, long bytecode.OpCode, idx int, line int) {
	if idx <= 0xff {
		c.emitOpByte(short, byte(idx), line)
		return
	}
	c.emitOpShort(long, idx, line)
}
