package compiler

import (
	"ash/internal/bytecode"
	"ash/internal/parser"
	"ash/internal/vm"
)

var binaryOps = map[string]bytecode.OpCode{
	"+":  bytecode.OpAdd,
	"-":  bytecode.OpSubtract,
	"*":  bytecode.OpMultiply,
	"/":  bytecode.OpDivide,
	"%":  bytecode.OpMod,
	"**": bytecode.OpPower,
	"//": bytecode.OpFloorDivide,
	"==": bytecode.OpEqual,
	"!=": bytecode.OpNotEqual,
	"<":  bytecode.OpLess,
	">":  bytecode.OpGreater,
	"<=": bytecode.OpLessEqual,
	">=": bytecode.OpGreaterEqual,
	"&":  bytecode.OpBand,
	"|":  bytecode.OpBor,
	"^":  bytecode.OpBxor,
	"<<": bytecode.OpLshift,
	">>": bytecode.OpRshift,
}

func (c *Compiler) emitBinaryOp(op string, line int) {
	if code, ok := binaryOps[op]; ok {
		c.emitOp(code, line)
		return
	}
	c.errorf(line, "unknown binary operator '%s'", op)
}

func (c *Compiler) VisitBinaryExpr(expr *parser.Binary) interface{} {
	expr.Left.Accept(c)
	expr.Right.Accept(c)
	c.emitBinaryOp(expr.Operator, expr.Line())
	return nil
}

func (c *Compiler) VisitLiteralExpr(expr *parser.Literal) interface{} {
	line := expr.Line()
	switch v := expr.Value.(type) {
	case nil:
		c.emitOp(bytecode.OpNull, line)
	case bool:
		if v {
			c.emitOp(bytecode.OpTrue, line)
		} else {
			c.emitOp(bytecode.OpFalse, line)
		}
	case float64:
		c.emitConstant(vm.Number(v), line)
	case string:
		c.emitConstant(vm.ObjectValue(c.state.Intern(v)), line)
	default:
		c.errorf(line, "unsupported literal type %T", v)
	}
	return nil
}

func (c *Compiler) VisitVariableExpr(expr *parser.Variable) interface{} {
	c.emitGetVariable(expr.Name, expr.Line())
	return nil
}

func (c *Compiler) VisitAssignExpr(expr *parser.Assign) interface{} {
	expr.Value.Accept(c)
	c.emitSetVariable(expr.Name, expr.Line())
	return nil
}

func (c *Compiler) VisitCompoundAssignExpr(expr *parser.CompoundAssign) interface{} {
	line := expr.Line()
	c.emitGetVariable(expr.Name, line)
	expr.Value.Accept(c)
	c.emitBinaryOp(expr.Operator, line)
	c.emitSetVariable(expr.Name, line)
	return nil
}

func (c *Compiler) VisitCallExpr(expr *parser.CallExpr) interface{} {
	line := expr.Line()
	if super, ok := expr.Callee.(*parser.SuperExpr); ok {
		c.emitSuperCall(super.Method, expr.Args, false, line)
		return nil
	}
	expr.Callee.Accept(c)
	for _, arg := range expr.Args {
		arg.Accept(c)
	}
	if len(expr.Args) > 0xff {
		c.errorf(line, "too many arguments in call")
		return nil
	}
	c.emitOpByte(bytecode.OpCall, byte(len(expr.Args)), line)
	return nil
}

func (c *Compiler) VisitIfExpr(expr *parser.IfExpr) interface{} {
	line := expr.Line()
	expr.Cond.Accept(c)
	thenJump := c.emitJump(bytecode.OpJumpIfFalse, line)
	c.emitOp(bytecode.OpPop, line)
	expr.ThenBranch.Accept(c)
	elseJump := c.emitJump(bytecode.OpJump, line)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop, line)
	if expr.ElseBranch != nil {
		expr.ElseBranch.Accept(c)
	} else {
		c.emitOp(bytecode.OpNull, line)
	}
	c.patchJump(elseJump)
	return nil
}

// VisitBlockExpr compiles `{ stmts... }` used where a value is expected:
// a trailing bare expression statement becomes the block's value, stashed
// in a slot declared in the enclosing scope (so the inner scope's own
// OP_POP_LOCALS, including upvalue closing, leaves it untouched) before the
// block's own locals are torn down; anything else defaults to null.
func (c *Compiler) VisitBlockExpr(expr *parser.BlockExpr) interface{} {
	line := expr.Line()
	c.emitOp(bytecode.OpNull, line)
	resultSlot := len(c.locals)
	c.addLocal("", line)

	c.beginScope()
	for i, stmt := range expr.Stmts {
		if i == len(expr.Stmts)-1 {
			if es, ok := stmt.(*parser.ExpressionStmt); ok {
				es.Expr.Accept(c)
				c.emitLocalOp(bytecode.OpSetLocal, bytecode.OpSetLocalLong, resultSlot, line)
				c.emitOp(bytecode.OpPop, line)
				c.endScope(line)
				return nil
			}
		}
		stmt.Accept(c)
	}
	c.endScope(line)
	return nil
}

func (c *Compiler) VisitArrayExpr(expr *parser.ArrayExpr) interface{} {
	line := expr.Line()
	for _, el := range expr.Elements {
		el.Accept(c)
	}
	if len(expr.Elements) > 0xff {
		c.errorf(line, "too many elements in array literal")
		return nil
	}
	c.emitOpByte(bytecode.OpArray, byte(len(expr.Elements)), line)
	return nil
}

func (c *Compiler) VisitMapExpr(expr *parser.MapExpr) interface{} {
	line := expr.Line()
	for i := range expr.Keys {
		expr.Keys[i].Accept(c)
		expr.Values[i].Accept(c)
	}
	if len(expr.Keys) > 0xff {
		c.errorf(line, "too many entries in map literal")
		return nil
	}
	c.emitOpByte(bytecode.OpMap, byte(len(expr.Keys)), line)
	return nil
}

func (c *Compiler) VisitRangeExpr(expr *parser.RangeExpr) interface{} {
	line := expr.Line()
	expr.From.Accept(c)
	expr.To.Accept(c)
	inclusive := byte(0)
	if expr.Inclusive {
		inclusive = 1
	}
	c.emitOpByte(bytecode.OpRange, inclusive, line)
	return nil
}

func (c *Compiler) VisitIndexExpr(expr *parser.IndexExpr) interface{} {
	line := expr.Line()
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	c.emitOp(bytecode.OpSubscriptGet, line)
	return nil
}

func (c *Compiler) VisitSetIndexExpr(expr *parser.SetIndexExpr) interface{} {
	line := expr.Line()
	expr.Object.Accept(c)
	expr.Index.Accept(c)
	expr.Value.Accept(c)
	c.emitOp(bytecode.OpSubscriptSet, line)
	return nil
}

func (c *Compiler) VisitUnaryExpr(expr *parser.UnaryExpr) interface{} {
	line := expr.Line()
	expr.Operand.Accept(c)
	switch expr.Operator {
	case "!":
		c.emitOp(bytecode.OpNot, line)
	case "-":
		c.emitOp(bytecode.OpNegate, line)
	case "~":
		c.emitOp(bytecode.OpBnot, line)
	default:
		c.errorf(line, "unknown unary operator '%s'", expr.Operator)
	}
	return nil
}

// VisitLogicalExpr compiles `&&`/`and` and `||`/`or` with short-circuit
// jumps rather than the eager binaryOp path — neither JUMP_IF_FALSE nor
// JUMP_IF_NULL pop, so the short-circuited operand's own value is left
// sitting as the expression's result exactly when it should be.
func (c *Compiler) VisitLogicalExpr(expr *parser.LogicalExpr) interface{} {
	line := expr.Line()
	expr.Left.Accept(c)
	switch expr.Operator {
	case "&&", "and":
		endJump := c.emitJump(bytecode.OpJumpIfFalse, line)
		c.emitOp(bytecode.OpPop, line)
		expr.Right.Accept(c)
		c.patchJump(endJump)
	case "||", "or":
		elseJump := c.emitJump(bytecode.OpJumpIfFalse, line)
		endJump := c.emitJump(bytecode.OpJump, line)
		c.patchJump(elseJump)
		c.emitOp(bytecode.OpPop, line)
		expr.Right.Accept(c)
		c.patchJump(endJump)
	default:
		c.errorf(line, "unknown logical operator '%s'", expr.Operator)
	}
	return nil
}

func (c *Compiler) VisitNullCoalesceExpr(expr *parser.NullCoalesceExpr) interface{} {
	line := expr.Line()
	expr.Left.Accept(c)
	nullJump := c.emitJump(bytecode.OpJumpIfNull, line)
	endJump := c.emitJump(bytecode.OpJump, line)
	c.patchJump(nullJump)
	c.emitOp(bytecode.OpPop, line)
	expr.Right.Accept(c)
	c.patchJump(endJump)
	return nil
}

func (c *Compiler) VisitIsExpr(expr *parser.IsExpr) interface{} {
	line := expr.Line()
	expr.Left.Accept(c)
	expr.Class.Accept(c)
	c.emitOp(bytecode.OpIs, line)
	return nil
}

// VisitInterpolationExpr lowers `"a \(x) b"` to building an array of the
// literal/expression parts and joining it with the empty separator —
// Array.join already stringifies each element via State.ToString.
func (c *Compiler) VisitInterpolationExpr(expr *parser.InterpolationExpr) interface{} {
	line := expr.Line()
	for _, part := range expr.Parts {
		part.Accept(c)
	}
	if len(expr.Parts) > 0xff {
		c.errorf(line, "too many parts in string interpolation")
		return nil
	}
	c.emitOpByte(bytecode.OpArray, byte(len(expr.Parts)), line)
	c.emitConstant(vm.ObjectValue(c.state.Intern("")), line)
	c.emitOpShort(bytecode.OpInvoke, c.internConstant("join"), line)
	c.emitByte(1, line)
	return nil
}

func (c *Compiler) VisitLambdaExpr(expr *parser.LambdaExpr) interface{} {
	c.emitClosure(funcSpec{
		params:   expr.Params,
		body:     expr.Body,
		exprBody: expr.ExprBody,
	}, expr.Line())
	return nil
}

func (c *Compiler) VisitPropertyExpr(expr *parser.PropertyExpr) interface{} {
	line := expr.Line()
	expr.Object.Accept(c)
	c.emitOpShort(bytecode.OpGetField, c.internConstant(expr.Property), line)
	return nil
}

func (c *Compiler) VisitSetPropertyExpr(expr *parser.SetPropertyExpr) interface{} {
	line := expr.Line()
	expr.Object.Accept(c)
	expr.Value.Accept(c)
	c.emitOpShort(bytecode.OpSetField, c.internConstant(expr.Property), line)
	return nil
}

func (c *Compiler) emitMethodCall(object parser.Expr, method string, args []parser.Expr, ignoring bool, line int) {
	object.Accept(c)
	for _, arg := range args {
		arg.Accept(c)
	}
	if len(args) > 0xff {
		c.errorf(line, "too many arguments in call")
		return
	}
	op := bytecode.OpInvoke
	if ignoring {
		op = bytecode.OpInvokeIgnoring
	}
	c.emitOpShort(op, c.internConstant(method), line)
	c.emitByte(byte(len(args)), line)
}

func (c *Compiler) emitSuperCall(method string, args []parser.Expr, ignoring bool, line int) {
	c.emitGetVariable("this", line)
	for _, arg := range args {
		arg.Accept(c)
	}
	if len(args) > 0xff {
		c.errorf(line, "too many arguments in call")
		return
	}
	c.emitGetVariable("super", line)
	op := bytecode.OpInvokeSuper
	if ignoring {
		op = bytecode.OpInvokeSuperIgnoring
	}
	c.emitOpShort(op, c.internConstant(method), line)
	c.emitByte(byte(len(args)), line)
}

func (c *Compiler) VisitMethodCallExpr(expr *parser.MethodCallExpr) interface{} {
	c.emitMethodCall(expr.Object, expr.Method, expr.Args, false, expr.Line())
	return nil
}

func (c *Compiler) VisitThisExpr(expr *parser.ThisExpr) interface{} {
	c.emitGetVariable("this", expr.Line())
	return nil
}

// VisitSuperExpr handles a bare `super.method` reference used as a value
// rather than called directly (VisitCallExpr special-cases the call form
// to emit OP_INVOKE_SUPER instead of going through here).
func (c *Compiler) VisitSuperExpr(expr *parser.SuperExpr) interface{} {
	line := expr.Line()
	c.emitGetVariable("this", line)
	c.emitGetVariable("super", line)
	c.emitOpShort(bytecode.OpGetSuperMethod, c.internConstant(expr.Method), line)
	return nil
}

// VisitNewExpr: `new Class(args...)` is just a call whose callee happens
// to be a class value — OP_CALL's callValue already constructs instances
// and runs the initializer when the callee IsClass().
func (c *Compiler) VisitNewExpr(expr *parser.NewExpr) interface{} {
	line := expr.Line()
	expr.Class.Accept(c)
	for _, arg := range expr.Args {
		arg.Accept(c)
	}
	if len(expr.Args) > 0xff {
		c.errorf(line, "too many arguments in call")
		return nil
	}
	c.emitOpByte(bytecode.OpCall, byte(len(expr.Args)), line)
	return nil
}
