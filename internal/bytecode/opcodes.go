// Package bytecode defines the instruction set and chunk representation
// that the emitter produces and the VM interprets.
package bytecode

// OpCode identifies a single bytecode instruction. A few opcodes (constant,
// local and private access) come in a narrow (one-byte operand) and a wide
// (...Long, two-byte operand) form; the emitter picks the narrowest form
// that fits per occurrence.
type OpCode byte

const (
	OpPop OpCode = iota
	OpPopMultiple
	OpReturn

	OpConstant
	OpConstantLong
	OpTrue
	OpFalse
	OpNull

	OpNegate
	OpNot
	OpBnot

	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpMod
	OpPower
	OpFloorDivide

	OpEqual
	OpNotEqual
	OpGreater
	OpGreaterEqual
	OpLess
	OpLessEqual

	OpLshift
	OpRshift
	OpBand
	OpBor
	OpBxor

	OpIs

	OpGetGlobal
	OpSetGlobal

	OpGetLocal
	OpGetLocalLong
	OpSetLocal
	OpSetLocalLong

	OpGetPrivate
	OpGetPrivateLong
	OpSetPrivate
	OpSetPrivateLong

	OpGetUpvalue
	OpSetUpvalue

	OpJump
	OpJumpBack
	OpJumpIfFalse
	OpJumpIfNull
	OpJumpIfNullPopping

	OpCall

	OpClosure
	OpCloseUpvalue

	OpClass
	OpInherit
	OpMethod
	OpStaticField
	OpDefineField
	OpGetField
	OpSetField
	OpGetSuperMethod

	OpInvoke
	OpInvokeIgnoring
	OpInvokeSuper
	OpInvokeSuperIgnoring

	OpArray
	OpMap
	OpRange
	OpPushArrayElement
	OpPushMapElement

	OpSubscriptGet
	OpSubscriptSet

	OpPopLocals

	OpRequire

	OpPushTry
	OpPopTry
	OpThrow
)

var opcodeNames = [...]string{
	OpPop:                 "POP",
	OpPopMultiple:         "POP_MULTIPLE",
	OpReturn:              "RETURN",
	OpConstant:            "CONSTANT",
	OpConstantLong:        "CONSTANT_LONG",
	OpTrue:                "TRUE",
	OpFalse:               "FALSE",
	OpNull:                "NULL",
	OpNegate:              "NEGATE",
	OpNot:                 "NOT",
	OpBnot:                "BNOT",
	OpAdd:                 "ADD",
	OpSubtract:            "SUBTRACT",
	OpMultiply:            "MULTIPLY",
	OpDivide:              "DIVIDE",
	OpMod:                 "MOD",
	OpPower:               "POWER",
	OpFloorDivide:         "FLOOR_DIVIDE",
	OpEqual:               "EQUAL",
	OpNotEqual:            "NOT_EQUAL",
	OpGreater:             "GREATER",
	OpGreaterEqual:        "GREATER_EQUAL",
	OpLess:                "LESS",
	OpLessEqual:           "LESS_EQUAL",
	OpLshift:              "LSHIFT",
	OpRshift:              "RSHIFT",
	OpBand:                "BAND",
	OpBor:                 "BOR",
	OpBxor:                "BXOR",
	OpIs:                  "IS",
	OpGetGlobal:           "GET_GLOBAL",
	OpSetGlobal:           "SET_GLOBAL",
	OpGetLocal:            "GET_LOCAL",
	OpGetLocalLong:        "GET_LOCAL_LONG",
	OpSetLocal:            "SET_LOCAL",
	OpSetLocalLong:        "SET_LOCAL_LONG",
	OpGetPrivate:          "GET_PRIVATE",
	OpGetPrivateLong:      "GET_PRIVATE_LONG",
	OpSetPrivate:          "SET_PRIVATE",
	OpSetPrivateLong:      "SET_PRIVATE_LONG",
	OpGetUpvalue:          "GET_UPVALUE",
	OpSetUpvalue:          "SET_UPVALUE",
	OpJump:                "JUMP",
	OpJumpBack:            "JUMP_BACK",
	OpJumpIfFalse:         "JUMP_IF_FALSE",
	OpJumpIfNull:          "JUMP_IF_NULL",
	OpJumpIfNullPopping:   "JUMP_IF_NULL_POPPING",
	OpCall:                "CALL",
	OpClosure:             "CLOSURE",
	OpCloseUpvalue:        "CLOSE_UPVALUE",
	OpClass:               "CLASS",
	OpInherit:             "INHERIT",
	OpMethod:              "METHOD",
	OpStaticField:         "STATIC_FIELD",
	OpDefineField:         "DEFINE_FIELD",
	OpGetField:            "GET_FIELD",
	OpSetField:            "SET_FIELD",
	OpGetSuperMethod:      "GET_SUPER_METHOD",
	OpInvoke:              "INVOKE",
	OpInvokeIgnoring:      "INVOKE_IGNORING",
	OpInvokeSuper:         "INVOKE_SUPER",
	OpInvokeSuperIgnoring: "INVOKE_SUPER_IGNORING",
	OpArray:               "ARRAY",
	OpMap:                 "MAP",
	OpRange:               "RANGE",
	OpPushArrayElement:    "PUSH_ARRAY_ELEMENT",
	OpPushMapElement:      "PUSH_MAP_ELEMENT",
	OpSubscriptGet:        "SUBSCRIPT_GET",
	OpSubscriptSet:        "SUBSCRIPT_SET",
	OpPopLocals:           "POP_LOCALS",
	OpRequire:             "REQUIRE",
	OpPushTry:             "PUSH_TRY",
	OpPopTry:              "POP_TRY",
	OpThrow:               "THROW",
}

func (op OpCode) String() string {
	if int(op) < len(opcodeNames) && opcodeNames[op] != "" {
		return opcodeNames[op]
	}
	return "UNKNOWN"
}
