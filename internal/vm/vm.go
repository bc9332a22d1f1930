package vm

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	asherrors "ash/internal/errors"
	"ash/internal/bytecode"
)

// State is the interpreter's root object: the global namespace, the
// string intern table, the loaded-module cache, the object heap's GC
// bookkeeping, and the currently running fiber. One State corresponds to
// one embedding (spec.md §6's `interpret`/`define_native` surface hangs
// off it).
type State struct {
	Globals *Table
	Strings *Table

	Modules    map[string]*ObjModule
	rootFibers []*ObjFiber
	tempRoots  []Value

	CurrentFiber *ObjFiber

	gc gcState

	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer

	// RequireFn resolves an OP_REQUIRE module path. It's set by
	// internal/module after construction rather than imported directly:
	// the module loader depends on this package (for ObjModule/State) and
	// on the compiler (for source -> bytecode), so this package cannot
	// import the loader back without a cycle.
	RequireFn func(name string) (*ObjModule, error)

	ClassObject *ObjClass
	ClassClass  *ObjClass
	ClassNumber *ObjClass
	ClassString *ObjClass
	ClassBool   *ObjClass
	ClassFunction *ObjClass
	ClassFiber  *ObjClass
	ClassModule *ObjClass
	ClassArray  *ObjClass
	ClassMap    *ObjClass
	ClassRange  *ObjClass
}

// NewState builds a fresh interpreter with its core classes and stdlib
// entry points installed.
func NewState() *State {
	s := &State{
		Globals: NewTable(),
		Strings: NewTable(),
		Modules: make(map[string]*ObjModule),
		gc:      newGCState(),
		Logger:  slog.New(slog.NewTextHandler(os.Stderr, nil)),
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	registerCoreClasses(s)
	return s
}

func (s *State) coreClasses() []*ObjClass {
	return []*ObjClass{
		s.ClassObject, s.ClassClass, s.ClassNumber, s.ClassString, s.ClassBool,
		s.ClassFunction, s.ClassFiber, s.ClassModule, s.ClassArray, s.ClassMap, s.ClassRange,
	}
}

// Intern returns the canonical *ObjString for chars, allocating one only
// if it hasn't been interned yet.
func (s *State) Intern(chars string) *ObjString {
	hash := hashString(chars)
	if existing := s.Strings.FindString(chars, hash); existing != nil {
		return existing
	}
	str := &ObjString{Chars: chars, Hash: hash}
	s.trackObject(str, uint64(32+len(chars)))
	s.Strings.Set(str, Null)
	return str
}

func (s *State) NewString(chars string) Value { return ObjectValue(s.Intern(chars)) }

func (s *State) NewArray(elements []Value) Value {
	a := &ObjArray{Elements: elements}
	s.trackObject(a, uint64(24+16*len(elements)))
	return ObjectValue(a)
}

func (s *State) NewMap() Value {
	m := NewObjMap()
	s.trackObject(m, 48)
	return ObjectValue(m)
}

func (s *State) NewRange(from, to float64, inclusive bool) Value {
	r := &ObjRange{From: from, To: to, Inclusive: inclusive}
	s.trackObject(r, 32)
	return ObjectValue(r)
}

func (s *State) NewInstance(class *ObjClass) *ObjInstance {
	inst := &ObjInstance{Class: class, Fields: NewTable()}
	s.trackObject(inst, 64)
	return inst
}

func (s *State) NewNative(name string, fn NativeFn) Value {
	n := &ObjNative{Name: name, Fn: fn}
	s.trackObject(n, 48)
	return ObjectValue(n)
}

func (s *State) NewNativeMethod(name string, fn NativeFn) Value {
	n := &ObjNativeMethod{Name: name, Fn: fn}
	s.trackObject(n, 48)
	return ObjectValue(n)
}

func (s *State) NewClass(name string, super *ObjClass) *ObjClass {
	class := &ObjClass{
		Name:         s.Intern(name),
		Super:        super,
		Methods:      NewTable(),
		StaticFields: NewTable(),
		Init:         Null,
	}
	if super != nil {
		class.Methods.AddAll(super.Methods)
	}
	s.trackObject(class, 80)
	return class
}

// DefineGlobal binds name to value in the global namespace, the
// `define_native`-adjacent half of spec.md §6's embedding contract.
func (s *State) DefineGlobal(name string, value Value) {
	s.Globals.Set(s.Intern(name), value)
}

func (s *State) DefineNative(name string, fn NativeFn) {
	s.DefineGlobal(name, s.NewNative(name, fn))
}

// RuntimeError is runtimeError's exported form, for stdlib collaborator
// packages that need to raise the same located, stack-carrying error a
// native method body would (CheckNumber/CheckString already do this
// internally; collaborators outside package vm need this to match).
func (s *State) RuntimeError(format string, args ...interface{}) error {
	return s.runtimeError(format, args...)
}

// runtimeError raises an *errors.AshError located at the current fiber's
// topmost frame, with a reconstructed call stack.
func (s *State) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	fiber := s.CurrentFiber
	line := 0
	file := "<ash>"
	if fiber != nil && len(fiber.Frames) > 0 {
		frame := fiber.Frames[len(fiber.Frames)-1]
		if frame.Closure != nil {
			line = frame.Closure.Function.Chunk.LineAt(frame.IP - 1)
		}
		if frame.Module != nil {
			file = frame.Module.Path
		}
	}
	err := asherrors.NewRuntimeError(message, file, line, 0)
	if fiber != nil {
		var stack []asherrors.StackFrame
		for i := len(fiber.Frames) - 1; i >= 0; i-- {
			frame := fiber.Frames[i]
			name := "<script>"
			fnLine := 0
			if frame.Closure != nil && frame.Closure.Function.Name != nil {
				name = frame.Closure.Function.Name.Chars
				fnLine = frame.Closure.Function.Chunk.LineAt(frame.IP - 1)
			}
			stack = append(stack, asherrors.StackFrame{Function: name, File: file, Line: fnLine})
		}
		err = err.WithStack(stack)
	}
	return err
}

// RunModule executes an already-compiled module's main function on a
// fresh root fiber and returns its result.
func (s *State) RunModule(module *ObjModule) (Value, error) {
	fiber := NewFiber(module.MainFunction, nil)
	fiber.State = FiberRoot
	fiber.Frames[0].Module = module
	previous := s.CurrentFiber
	s.CurrentFiber = fiber
	defer func() { s.CurrentFiber = previous }()

	if err := s.run(fiber); err != nil {
		return Value{}, err
	}
	module.Ready = true
	return module.ReturnValue, nil
}

const framesMax = 64
const stackMax = 64 * 64

// thrownValue wraps an arbitrary Ash value raised via OP_THROW so it can
// ride the normal Go error-return path up to the nearest try/catch
// handler (or out to the caller if nothing catches it).
type thrownValue struct {
	value Value
}

func (*thrownValue) Error() string { return "uncaught throw" }

// run is the VM's bytecode dispatch loop: a Go switch over the current
// instruction, the switch-dispatch form spec.md §4.5 sanctions in
// languages without computed goto. Each iteration runs exactly one
// instruction via step(); errors are checked here against the current
// fiber's try/catch handlers before being propagated to the caller,
// implementing spec.md §4.5's error model without needing to unwind the
// Go call stack for a caught error.
func (s *State) run(fiber *ObjFiber) error {
	for {
		if fiber.Done {
			return nil
		}
		err := s.step(fiber)
		if err == nil {
			continue
		}
		if _, ok := err.(*yieldSignal); ok {
			return err
		}
		if s.catchInFiber(fiber, err) {
			continue
		}
		return err
	}
}

// catchInFiber looks for the innermost try handler still in scope and,
// if one exists, truncates the frame/stack back to where the try block
// started, pushes the error value, and resumes at the catch address.
func (s *State) catchInFiber(fiber *ObjFiber, err error) bool {
	if len(fiber.TryCatchers) == 0 {
		return false
	}
	catcher := fiber.TryCatchers[len(fiber.TryCatchers)-1]
	fiber.TryCatchers = fiber.TryCatchers[:len(fiber.TryCatchers)-1]

	fiber.Frames = fiber.Frames[:catcher.FrameDepth+1]
	fiber.Stack = fiber.Stack[:catcher.StackDepth]

	s.push(fiber, errorValueOf(s, err))
	fiber.Frames[catcher.FrameDepth].IP = catcher.CatchIP
	return true
}

func errorValueOf(s *State, err error) Value {
	if tv, ok := err.(*thrownValue); ok {
		return tv.value
	}
	return s.NewString(err.Error())
}

// step executes exactly one instruction of the topmost frame.
func (s *State) step(fiber *ObjFiber) error {
	{
		frame := &fiber.Frames[len(fiber.Frames)-1]
		chunk := &frame.Closure.Function.Chunk

		if frame.IP >= len(chunk.Code) {
			return s.runtimeError("instruction pointer ran past chunk end")
		}

		op := bytecode.OpCode(chunk.Code[frame.IP])
		frame.IP++

		switch op {
		case bytecode.OpConstant:
			idx := int(chunk.Code[frame.IP])
			frame.IP++
			s.push(fiber, chunk.Constants[idx])

		case bytecode.OpConstantLong:
			idx := readShort(chunk, frame)
			s.push(fiber, chunk.Constants[idx])

		case bytecode.OpNull:
			s.push(fiber, Null)
		case bytecode.OpTrue:
			s.push(fiber, True)
		case bytecode.OpFalse:
			s.push(fiber, False)

		case bytecode.OpPop:
			s.pop(fiber)
		case bytecode.OpPopMultiple:
			n := int(chunk.Code[frame.IP])
			frame.IP++
			fiber.Stack = fiber.Stack[:len(fiber.Stack)-n]

		case bytecode.OpAdd, bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide,
			bytecode.OpMod, bytecode.OpPower, bytecode.OpFloorDivide,
			bytecode.OpGreater, bytecode.OpGreaterEqual, bytecode.OpLess, bytecode.OpLessEqual,
			bytecode.OpLshift, bytecode.OpRshift, bytecode.OpBand, bytecode.OpBor, bytecode.OpBxor:
			if err := s.binaryOp(fiber, op); err != nil {
				return err
			}

		case bytecode.OpEqual:
			b := s.pop(fiber)
			a := s.pop(fiber)
			s.push(fiber, Bool(Equal(a, b)))
		case bytecode.OpNotEqual:
			b := s.pop(fiber)
			a := s.pop(fiber)
			s.push(fiber, Bool(!Equal(a, b)))

		case bytecode.OpIs:
			b := s.pop(fiber)
			a := s.pop(fiber)
			result, err := s.isOperator(a, b)
			if err != nil {
				return err
			}
			s.push(fiber, Bool(result))

		case bytecode.OpNegate:
			v := s.pop(fiber)
			if !v.IsNumber() {
				return s.runtimeError("operand of '-' must be a number")
			}
			s.push(fiber, Number(-v.AsNumber()))

		case bytecode.OpNot:
			v := s.pop(fiber)
			s.push(fiber, Bool(v.IsFalsey()))

		case bytecode.OpBnot:
			v := s.pop(fiber)
			if !v.IsNumber() {
				return s.runtimeError("operand of '~' must be a number")
			}
			s.push(fiber, Number(float64(^int64(v.AsNumber()))))

		case bytecode.OpGetGlobal:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			v, ok := s.Globals.Get(name)
			if !ok {
				return s.runtimeError("undefined global '%s'", name.Chars)
			}
			s.push(fiber, v)

		case bytecode.OpSetGlobal:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			if _, ok := s.Globals.Get(name); !ok {
				return s.runtimeError("undefined global '%s'", name.Chars)
			}
			s.Globals.Set(name, s.peek(fiber, 0))

		case bytecode.OpGetLocal:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			s.push(fiber, fiber.Stack[frame.StackBase+slot])
		case bytecode.OpGetLocalLong:
			slot := readShort(chunk, frame)
			s.push(fiber, fiber.Stack[frame.StackBase+slot])
		case bytecode.OpSetLocal:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			fiber.Stack[frame.StackBase+slot] = s.peek(fiber, 0)
		case bytecode.OpSetLocalLong:
			slot := readShort(chunk, frame)
			fiber.Stack[frame.StackBase+slot] = s.peek(fiber, 0)

		case bytecode.OpGetPrivate:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			s.push(fiber, frame.Module.Privates[slot])
		case bytecode.OpGetPrivateLong:
			slot := readShort(chunk, frame)
			s.push(fiber, frame.Module.Privates[slot])
		case bytecode.OpSetPrivate:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			frame.Module.Privates[slot] = s.peek(fiber, 0)
		case bytecode.OpSetPrivateLong:
			slot := readShort(chunk, frame)
			frame.Module.Privates[slot] = s.peek(fiber, 0)

		case bytecode.OpGetUpvalue:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			s.push(fiber, frame.Closure.Upvalues[slot].Get())
		case bytecode.OpSetUpvalue:
			slot := int(chunk.Code[frame.IP])
			frame.IP++
			frame.Closure.Upvalues[slot].Set(s.peek(fiber, 0))

		case bytecode.OpJump:
			offset := readShort(chunk, frame)
			frame.IP += offset
		case bytecode.OpJumpBack:
			offset := readShort(chunk, frame)
			frame.IP -= offset
		case bytecode.OpJumpIfFalse:
			offset := readShort(chunk, frame)
			if s.peek(fiber, 0).IsFalsey() {
				frame.IP += offset
			}
		case bytecode.OpJumpIfNull:
			offset := readShort(chunk, frame)
			if s.peek(fiber, 0).IsNull() {
				frame.IP += offset
			}
		case bytecode.OpJumpIfNullPopping:
			offset := readShort(chunk, frame)
			if s.pop(fiber).IsNull() {
				frame.IP += offset
			}

		case bytecode.OpCall:
			argCount := int(chunk.Code[frame.IP])
			frame.IP++
			callee := s.peek(fiber, argCount)
			if err := s.callValue(fiber, callee, argCount, false); err != nil {
				return err
			}

		case bytecode.OpClosure:
			fn := chunk.Constants[int(chunk.Code[frame.IP])].AsFunction()
			frame.IP++
			closure := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
			s.trackObject(closure, 48)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := chunk.Code[frame.IP]
				frame.IP++
				index := int(chunk.Code[frame.IP])
				frame.IP++
				if isLocal != 0 {
					closure.Upvalues[i] = s.captureUpvalue(fiber, frame.StackBase+index)
				} else {
					closure.Upvalues[i] = frame.Closure.Upvalues[index]
				}
			}
			s.push(fiber, ObjectValue(closure))

		case bytecode.OpCloseUpvalue:
			s.closeUpvalues(fiber, len(fiber.Stack)-1)
			s.pop(fiber)

		case bytecode.OpClass:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			class := s.NewClass(name.Chars, s.ClassObject)
			s.push(fiber, ObjectValue(class))

		case bytecode.OpInherit:
			superVal := s.peek(fiber, 1)
			if !superVal.IsClass() {
				return s.runtimeError("superclass must be a class")
			}
			super := superVal.AsClass()
			if super.IsNative {
				return s.runtimeError("cannot inherit from native class '%s'", super.Name.Chars)
			}
			subclass := s.peek(fiber, 0).AsClass()
			subclass.Super = super
			subclass.Methods.AddAll(super.Methods)
			subclass.Init = super.Init
			s.pop(fiber) // leaves superclass on stack, bound as the enclosing "super" local

		case bytecode.OpMethod:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			method := s.peek(fiber, 0)
			class := s.peek(fiber, 1).AsClass()
			class.Methods.Set(name, method)
			if name.Chars == "constructor" {
				class.Init = method
			}
			s.pop(fiber)

		case bytecode.OpStaticField:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			value := s.pop(fiber)
			class := s.peek(fiber, 0).AsClass()
			class.StaticFields.Set(name, value)

		case bytecode.OpDefineField:
			// Never emitted by the compiler (see DESIGN.md): an instance
			// field declared with no initializer is documentation only,
			// set later via `this.field = ...` in a constructor or method.
			// Kept for bytecode-format completeness, not reachable at runtime.
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			value := s.pop(fiber)
			class := s.peek(fiber, 0).AsClass()
			class.StaticFields.Set(name, value)

		case bytecode.OpGetField:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			if err := s.getField(fiber, name); err != nil {
				return err
			}

		case bytecode.OpSetField:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			value := s.pop(fiber)
			receiver := s.pop(fiber)
			if !receiver.IsInstance() {
				return s.runtimeError("only instances have settable fields")
			}
			receiver.AsInstance().Fields.Set(name, value)
			s.push(fiber, value)

		case bytecode.OpGetSuperMethod:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			super := s.pop(fiber).AsClass()
			receiver := s.pop(fiber)
			method, ok := super.ResolveMethod(name)
			if !ok {
				return s.runtimeError("undefined super method '%s'", name.Chars)
			}
			bound := &ObjBoundMethod{Receiver: receiver, Method: method}
			s.trackObject(bound, 32)
			s.push(fiber, ObjectValue(bound))

		case bytecode.OpInvoke, bytecode.OpInvokeIgnoring:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			argCount := int(chunk.Code[frame.IP])
			frame.IP++
			if err := s.invoke(fiber, name, argCount); err != nil {
				return err
			}
			if op == bytecode.OpInvokeIgnoring {
				s.pop(fiber)
			}

		case bytecode.OpInvokeSuper, bytecode.OpInvokeSuperIgnoring:
			name := chunk.Constants[readShort(chunk, frame)].AsString()
			argCount := int(chunk.Code[frame.IP])
			frame.IP++
			super := s.pop(fiber).AsClass()
			method, ok := super.ResolveMethod(name)
			if !ok {
				return s.runtimeError("undefined super method '%s'", name.Chars)
			}
			if err := s.callValue(fiber, method, argCount, false); err != nil {
				return err
			}
			if op == bytecode.OpInvokeSuperIgnoring {
				s.pop(fiber)
			}

		case bytecode.OpArray:
			count := int(chunk.Code[frame.IP])
			frame.IP++
			elements := make([]Value, count)
			copy(elements, fiber.Stack[len(fiber.Stack)-count:])
			fiber.Stack = fiber.Stack[:len(fiber.Stack)-count]
			s.push(fiber, s.NewArray(elements))

		case bytecode.OpMap:
			count := int(chunk.Code[frame.IP])
			frame.IP++
			m := NewObjMap()
			base := len(fiber.Stack) - count*2
			for i := 0; i < count; i++ {
				key := fiber.Stack[base+i*2]
				value := fiber.Stack[base+i*2+1]
				m.Set(key, value)
			}
			fiber.Stack = fiber.Stack[:base]
			s.trackObject(m, 48)
			s.push(fiber, ObjectValue(m))

		case bytecode.OpRange:
			inclusive := chunk.Code[frame.IP] != 0
			frame.IP++
			to := s.pop(fiber)
			from := s.pop(fiber)
			if !from.IsNumber() || !to.IsNumber() {
				return s.runtimeError("range bounds must be numbers")
			}
			s.push(fiber, s.NewRange(from.AsNumber(), to.AsNumber(), inclusive))

		case bytecode.OpPushArrayElement:
			value := s.pop(fiber)
			s.peek(fiber, 0).AsArray().Elements = append(s.peek(fiber, 0).AsArray().Elements, value)

		case bytecode.OpPushMapElement:
			value := s.pop(fiber)
			key := s.pop(fiber)
			s.peek(fiber, 0).AsMap().Set(key, value)

		case bytecode.OpSubscriptGet:
			index := s.pop(fiber)
			target := s.pop(fiber)
			v, err := s.subscriptGet(target, index)
			if err != nil {
				return err
			}
			s.push(fiber, v)

		case bytecode.OpSubscriptSet:
			value := s.pop(fiber)
			index := s.pop(fiber)
			target := s.pop(fiber)
			if err := s.subscriptSet(target, index, value); err != nil {
				return err
			}
			s.push(fiber, value)

		case bytecode.OpPopLocals:
			n := readShort(chunk, frame)
			s.closeUpvalues(fiber, len(fiber.Stack)-n)
			fiber.Stack = fiber.Stack[:len(fiber.Stack)-n]

		case bytecode.OpRequire:
			name := chunk.Constants[int(chunk.Code[frame.IP])].AsString()
			frame.IP++
			if s.RequireFn == nil {
				return s.runtimeError("no module loader configured")
			}
			mod, err := s.RequireFn(name.Chars)
			if err != nil {
				return err
			}
			s.push(fiber, ObjectValue(mod))

		case bytecode.OpPushTry:
			offset := readShort(chunk, frame)
			fiber.TryCatchers = append(fiber.TryCatchers, tryCatcher{
				FrameDepth: len(fiber.Frames) - 1,
				StackDepth: len(fiber.Stack),
				CatchIP:    frame.IP + offset,
			})

		case bytecode.OpPopTry:
			if len(fiber.TryCatchers) > 0 {
				fiber.TryCatchers = fiber.TryCatchers[:len(fiber.TryCatchers)-1]
			}

		case bytecode.OpThrow:
			return &thrownValue{value: s.pop(fiber)}

		case bytecode.OpReturn:
			result := s.pop(fiber)
			s.closeUpvalues(fiber, frame.StackBase)
			finishedModule := frame.Module
			ignoreResult := frame.ResultIgnored
			keep := frame.StackBase
			if ignoreResult {
				// a constructor frame: the instance in slot 0 is the call's value
				keep++
			}
			fiber.Stack = fiber.Stack[:keep]
			fiber.Frames = fiber.Frames[:len(fiber.Frames)-1]

			if len(fiber.Frames) == 0 {
				if finishedModule != nil {
					finishedModule.ReturnValue = result
				}
				fiber.Done = true
				s.push(fiber, result)
				_ = ignoreResult
				return nil
			}
			if !ignoreResult {
				s.push(fiber, result)
			}

		default:
			return s.runtimeError("unknown opcode %s", op)
		}
	}
	return nil
}

func readShort(chunk *Chunk, frame *CallFrame) int {
	hi := int(chunk.Code[frame.IP])
	lo := int(chunk.Code[frame.IP+1])
	frame.IP += 2
	return hi<<8 | lo
}

func (s *State) push(fiber *ObjFiber, v Value) {
	fiber.Stack = append(fiber.Stack, v)
}

func (s *State) pop(fiber *ObjFiber) Value {
	n := len(fiber.Stack) - 1
	v := fiber.Stack[n]
	fiber.Stack = fiber.Stack[:n]
	return v
}

func (s *State) peek(fiber *ObjFiber, distance int) Value {
	return fiber.Stack[len(fiber.Stack)-1-distance]
}

func (s *State) isOperator(a, b Value) (bool, error) {
	if !b.IsClass() {
		return false, s.runtimeError("right-hand side of 'is' must be a class")
	}
	target := b.AsClass()
	var class *ObjClass
	switch {
	case a.IsInstance():
		class = a.AsInstance().Class
	case a.IsNumber():
		class = s.ClassNumber
	case a.IsString():
		class = s.ClassString
	case a.IsBool():
		class = s.ClassBool
	case a.IsArray():
		class = s.ClassArray
	case a.IsMap():
		class = s.ClassMap
	case a.IsRange():
		class = s.ClassRange
	case a.IsFiber():
		class = s.ClassFiber
	case a.IsFunction(), a.IsClosure(), a.IsNative():
		class = s.ClassFunction
	default:
		return false, nil
	}
	for c := class; c != nil; c = c.Super {
		if c == target {
			return true, nil
		}
	}
	return false, nil
}

func (s *State) binaryOp(fiber *ObjFiber, op bytecode.OpCode) error {
	b := s.pop(fiber)
	a := s.pop(fiber)

	if op == bytecode.OpAdd && a.IsString() && b.IsString() {
		s.push(fiber, s.NewString(a.AsString().Chars+b.AsString().Chars))
		return nil
	}
	if op == bytecode.OpAdd && a.IsArray() && b.IsArray() {
		combined := make([]Value, 0, len(a.AsArray().Elements)+len(b.AsArray().Elements))
		combined = append(combined, a.AsArray().Elements...)
		combined = append(combined, b.AsArray().Elements...)
		s.push(fiber, s.NewArray(combined))
		return nil
	}

	if !a.IsNumber() || !b.IsNumber() {
		return s.runtimeError("operands must be numbers")
	}
	x, y := a.AsNumber(), b.AsNumber()

	switch op {
	case bytecode.OpAdd:
		s.push(fiber, Number(x+y))
	case bytecode.OpSubtract:
		s.push(fiber, Number(x-y))
	case bytecode.OpMultiply:
		s.push(fiber, Number(x*y))
	case bytecode.OpDivide:
		s.push(fiber, Number(x/y))
	case bytecode.OpFloorDivide:
		s.push(fiber, Number(math.Floor(x/y)))
	case bytecode.OpMod:
		s.push(fiber, Number(math.Mod(x, y)))
	case bytecode.OpPower:
		s.push(fiber, Number(math.Pow(x, y)))
	case bytecode.OpGreater:
		s.push(fiber, Bool(x > y))
	case bytecode.OpGreaterEqual:
		s.push(fiber, Bool(x >= y))
	case bytecode.OpLess:
		s.push(fiber, Bool(x < y))
	case bytecode.OpLessEqual:
		s.push(fiber, Bool(x <= y))
	case bytecode.OpLshift:
		s.push(fiber, Number(float64(int64(x)<<uint(int64(y)))))
	case bytecode.OpRshift:
		s.push(fiber, Number(float64(int64(x)>>uint(int64(y)))))
	case bytecode.OpBand:
		s.push(fiber, Number(float64(int64(x)&int64(y))))
	case bytecode.OpBor:
		s.push(fiber, Number(float64(int64(x)|int64(y))))
	case bytecode.OpBxor:
		s.push(fiber, Number(float64(int64(x)^int64(y))))
	}
	return nil
}

func (s *State) subscriptGet(target, index Value) (Value, error) {
	switch {
	case target.IsArray():
		if !index.IsNumber() {
			return Value{}, s.runtimeError("array index must be a number")
		}
		arr := target.AsArray()
		i := int(index.AsNumber())
		if i < 0 {
			i += len(arr.Elements)
		}
		if i < 0 || i >= len(arr.Elements) {
			return Value{}, s.runtimeError("array index out of bounds: %d", i)
		}
		return arr.Elements[i], nil
	case target.IsMap():
		v, ok := target.AsMap().Get(index)
		if !ok {
			return Null, nil
		}
		return v, nil
	case target.IsString():
		if !index.IsNumber() {
			return Value{}, s.runtimeError("string index must be a number")
		}
		runes := []rune(target.AsString().Chars)
		i := int(index.AsNumber())
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return Value{}, s.runtimeError("string index out of bounds: %d", i)
		}
		return s.NewString(string(runes[i])), nil
	}
	return Value{}, s.runtimeError("value is not subscriptable")
}

func (s *State) subscriptSet(target, index, value Value) error {
	switch {
	case target.IsArray():
		if !index.IsNumber() {
			return s.runtimeError("array index must be a number")
		}
		arr := target.AsArray()
		i := int(index.AsNumber())
		if i < 0 {
			i += len(arr.Elements)
		}
		if i < 0 || i >= len(arr.Elements) {
			return s.runtimeError("array index out of bounds: %d", i)
		}
		arr.Elements[i] = value
		return nil
	case target.IsMap():
		target.AsMap().Set(index, value)
		return nil
	}
	return s.runtimeError("value does not support index assignment")
}
