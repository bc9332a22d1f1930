package compiler

import (
	"ash/internal/bytecode"
	"ash/internal/parser"
)

// VisitClassStmt follows clox's class-declaration shape adapted to this
// VM's stack-slot-backed "super" local: OP_CLASS pushes the new class and
// binds it (module-private or plain local, same as any other top-level
// declaration); with a superclass, that value is re-fetched, paired with
// the superclass under OP_INHERIT, and the superclass is left bound to a
// scoped "super" local that method closures capture as an upvalue.
func (c *Compiler) VisitClassStmt(stmt *parser.ClassStmt) interface{} {
	line := stmt.Line()
	nameIdx := c.internConstant(stmt.Name)
	c.emitOpShort(bytecode.OpClass, nameIdx, line)
	c.declareBinding(stmt.Name, line)

	hasSuper := stmt.Superclass != ""
	if hasSuper {
		if stmt.Superclass == stmt.Name {
			c.errorf(line, "class '%s' cannot inherit from itself", stmt.Name)
		}
		c.emitGetVariable(stmt.Superclass, line)
		c.beginScope()
		c.addLocal("super", line)
		c.emitGetVariable(stmt.Name, line)
		c.emitOp(bytecode.OpInherit, line)
	}

	c.emitGetVariable(stmt.Name, line)
	savedClass := c.class
	c.class = &classContext{enclosing: savedClass, name: stmt.Name, hasSuperclass: hasSuper}

	// Fields declared with no initializer are documentation only: nothing
	// materializes a default value on a fresh instance ahead of its
	// constructor, so OP_DEFINE_FIELD is left unused here (see DESIGN.md) —
	// constructors/methods are expected to set them via `this.field = ...`.
	for _, sf := range stmt.StaticFields {
		sfLine := sf.Line()
		if sf.Expr != nil {
			sf.Expr.Accept(c)
		} else {
			c.emitOp(bytecode.OpNull, sfLine)
		}
		c.emitOpShort(bytecode.OpStaticField, c.internConstant(sf.Name), sfLine)
	}
	for _, method := range stmt.Methods {
		c.compileMethod(method)
	}

	c.class = savedClass
	c.emitOp(bytecode.OpPop, line) // drop the re-fetched class reference

	if hasSuper {
		c.endScope(line)
	}
	return nil
}

// compileMethod compiles one method/static-method body and installs it via
// OP_METHOD (constructors are recognized there by name, matching lit_vm.c's
// convention of treating "constructor" as the initializer slot) or
// OP_STATIC_FIELD when marked static — a static method is simply a plain
// callable value stored the same way a static data member would be.
func (c *Compiler) compileMethod(fn *parser.FunctionStmt) {
	line := fn.Line()
	receiver := "this"
	if fn.IsStatic {
		receiver = ""
	}
	spec := funcSpec{name: fn.Name, params: fn.Params, body: fn.Body, receiver: receiver}
	c.emitClosure(spec, line)
	nameIdx := c.internConstant(fn.Name)
	if fn.IsStatic {
		c.emitOpShort(bytecode.OpStaticField, nameIdx, line)
		return
	}
	c.emitOpShort(bytecode.OpMethod, nameIdx, line)
}
