package vm

// captureUpvalue returns an open upvalue referencing fiber.Stack[slot],
// reusing one already captured for that slot if one exists on the
// fiber's open-upvalue list (lit_vm.c's capture_upvalue).
func (s *State) captureUpvalue(fiber *ObjFiber, slot int) *ObjUpvalue {
	var previous *ObjUpvalue
	up := fiber.OpenUpvalues
	for up != nil && up.Slot > slot {
		previous = up
		up = up.NextOpen
	}
	if up != nil && up.Slot == slot {
		return up
	}

	created := &ObjUpvalue{Fiber: fiber, Slot: slot, isOpen: true}
	s.trackObject(created, 24)
	created.NextOpen = up

	if previous == nil {
		fiber.OpenUpvalues = created
	} else {
		previous.NextOpen = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above stackSlot, copying
// each captured stack slot's value into the upvalue itself so it survives
// past the frame returning (lit_vm.c's close_upvalues).
func (s *State) closeUpvalues(fiber *ObjFiber, stackSlot int) {
	for fiber.OpenUpvalues != nil && fiber.OpenUpvalues.Slot >= stackSlot {
		up := fiber.OpenUpvalues
		up.Closed = fiber.Stack[up.Slot]
		up.isOpen = false
		fiber.OpenUpvalues = up.NextOpen
	}
}

// callValue dispatches a call to callee with argCount arguments already
// on the stack (grounded on lit_vm.c's call_value): closures push a new
// frame, natives run synchronously, classes construct an instance and
// invoke their initializer, and bound methods rewrite the receiver slot
// before dispatching to the underlying method.
func (s *State) callValue(fiber *ObjFiber, callee Value, argCount int, resultIgnored bool) error {
	switch {
	case callee.IsClosure():
		return s.callClosure(fiber, callee.AsClosure(), argCount, resultIgnored)

	case callee.IsNative():
		native := callee.AsNative()
		return s.callNative(fiber, native.Fn, Null, argCount)

	case callee.IsClass():
		class := callee.AsClass()
		if class.IsNative {
			if class.NativeConstructor == nil {
				return s.runtimeError("cannot directly instantiate native class '%s'", class.Name.Chars)
			}
			base := len(fiber.Stack) - argCount - 1
			args := append([]Value(nil), fiber.Stack[base+1:]...)
			result, err := class.NativeConstructor(s, Null, args)
			if err != nil {
				return err
			}
			fiber.Stack = fiber.Stack[:base]
			s.push(fiber, result)
			return nil
		}
		instance := s.NewInstance(class)
		base := len(fiber.Stack) - argCount - 1
		fiber.Stack[base] = ObjectValue(instance)
		if !class.Init.IsNull() {
			return s.callValue(fiber, class.Init, argCount, true)
		}
		if argCount != 0 {
			return s.runtimeError("class '%s' has no constructor but was called with arguments", class.Name.Chars)
		}
		return nil

	case callee.IsBoundMethod():
		bound := callee.AsBoundMethod()
		base := len(fiber.Stack) - argCount - 1
		fiber.Stack[base] = bound.Receiver
		return s.callValue(fiber, bound.Method, argCount, resultIgnored)

	case callee.IsNativeMethod():
		nm := callee.AsNativeMethod()
		base := len(fiber.Stack) - argCount - 1
		receiver := fiber.Stack[base]
		return s.callNative(fiber, nm.Fn, receiver, argCount)

	case callee.IsFunction():
		// A bare ObjFunction with no captured upvalues can run directly.
		closure := &ObjClosure{Function: callee.AsFunction()}
		return s.callClosure(fiber, closure, argCount, resultIgnored)
	}
	return s.runtimeError("value is not callable")
}

func (s *State) callClosure(fiber *ObjFiber, closure *ObjClosure, argCount int, resultIgnored bool) error {
	fn := closure.Function
	if argCount < fn.Arity || (fn.MaxArity >= 0 && argCount > fn.MaxArity) {
		return s.runtimeError("function '%s' expected %d arguments but got %d", nameOf(fn), fn.Arity, argCount)
	}
	for argCount < fn.MaxArity {
		s.push(fiber, Null)
		argCount++
	}
	if len(fiber.Frames) >= framesMax {
		return s.runtimeError("Stack overflow")
	}

	base := len(fiber.Stack) - argCount - 1
	var module *ObjModule
	if len(fiber.Frames) > 0 {
		module = fiber.Frames[len(fiber.Frames)-1].Module
	}
	if fn.Module != nil {
		module = fn.Module
	}
	fiber.Frames = append(fiber.Frames, CallFrame{
		Closure:       closure,
		StackBase:     base,
		Module:        module,
		ResultIgnored: resultIgnored,
	})
	return nil
}

func nameOf(fn *ObjFunction) string {
	if fn.Name == nil {
		return "<anonymous>"
	}
	return fn.Name.Chars
}

// callNative invokes a Go-implemented builtin directly (no bytecode
// frame involved) and leaves its result on the stack in place of the
// callee+arguments.
func (s *State) callNative(fiber *ObjFiber, fn NativeFn, receiver Value, argCount int) error {
	base := len(fiber.Stack) - argCount - 1
	args := append([]Value(nil), fiber.Stack[base+1:]...)
	result, err := fn(s, receiver, args)
	if ys, ok := err.(*yieldSignal); ok {
		// Collapse the pending call's callee+args now so that on resume
		// the only thing missing is the result `Fiber.run`/`Fiber.call`
		// feeds back in as if this native call had returned normally.
		fiber.Stack = fiber.Stack[:base]
		return ys
	}
	if err != nil {
		return err
	}
	fiber.Stack = fiber.Stack[:base]
	s.push(fiber, result)
	return nil
}

// invoke resolves and calls a method by name on the receiver argCount
// below the top of stack (lit_vm.c's invoke_from_class, generalized
// across instances, core-type receivers, and bound fields that turn out
// to hold a plain callable rather than a method).
func (s *State) invoke(fiber *ObjFiber, name *ObjString, argCount int) error {
	receiver := s.peek(fiber, argCount)

	if receiver.IsInstance() {
		instance := receiver.AsInstance()
		if field, ok := instance.Fields.Get(name); ok {
			base := len(fiber.Stack) - argCount - 1
			fiber.Stack[base] = field
			return s.callValue(fiber, field, argCount, false)
		}
		method, ok := instance.Class.ResolveMethod(name)
		if !ok {
			return s.runtimeError("undefined method '%s' on '%s'", name.Chars, instance.Class.Name.Chars)
		}
		return s.callValue(fiber, method, argCount, false)
	}

	if receiver.IsClass() {
		class := receiver.AsClass()
		method, ok := class.StaticFields.Get(name)
		if !ok {
			return s.runtimeError("undefined static method '%s' on class '%s'", name.Chars, class.Name.Chars)
		}
		return s.callValue(fiber, method, argCount, false)
	}

	class := s.classFor(receiver)
	if class == nil {
		return s.runtimeError("value has no methods")
	}
	method, ok := class.ResolveMethod(name)
	if !ok {
		return s.runtimeError("undefined method '%s'", name.Chars)
	}
	return s.callValue(fiber, method, argCount, false)
}

func (s *State) classFor(v Value) *ObjClass {
	switch {
	case v.IsNumber():
		return s.ClassNumber
	case v.IsString():
		return s.ClassString
	case v.IsBool():
		return s.ClassBool
	case v.IsArray():
		return s.ClassArray
	case v.IsMap():
		return s.ClassMap
	case v.IsRange():
		return s.ClassRange
	case v.IsFiber():
		return s.ClassFiber
	case v.IsModule():
		return s.ClassModule
	case v.IsFunction(), v.IsClosure(), v.IsNative():
		return s.ClassFunction
	case v.IsInstance():
		return v.AsInstance().Class
	}
	return nil
}

// getField resolves receiver.name for OP_GET_FIELD: an instance field
// wins over a method of the same name; everything else falls back to the
// receiver's class method table, producing a bound method.
func (s *State) getField(fiber *ObjFiber, name *ObjString) error {
	receiver := s.pop(fiber)

	if receiver.IsInstance() {
		instance := receiver.AsInstance()
		if v, ok := instance.Fields.Get(name); ok {
			s.push(fiber, v)
			return nil
		}
		if method, ok := instance.Class.ResolveMethod(name); ok {
			bound := &ObjBoundMethod{Receiver: receiver, Method: method}
			s.trackObject(bound, 32)
			s.push(fiber, ObjectValue(bound))
			return nil
		}
		return s.runtimeError("undefined field '%s' on '%s'", name.Chars, instance.Class.Name.Chars)
	}

	if receiver.IsFiber() && name.Chars == "done" {
		s.push(fiber, Bool(receiver.AsFiber().IsDone()))
		return nil
	}

	if receiver.IsModule() {
		module := receiver.AsModule()
		if idx, ok := module.PrivateNames[name.Chars]; ok {
			s.push(fiber, module.Privates[idx])
			return nil
		}
		return s.runtimeError("undefined export '%s' on module '%s'", name.Chars, module.Name.Chars)
	}

	class := s.classFor(receiver)
	if class == nil {
		return s.runtimeError("value has no field '%s'", name.Chars)
	}
	if method, ok := class.ResolveMethod(name); ok {
		bound := &ObjBoundMethod{Receiver: receiver, Method: method}
		s.trackObject(bound, 32)
		s.push(fiber, ObjectValue(bound))
		return nil
	}
	if receiver.IsClass() {
		if v, ok := receiver.AsClass().StaticFields.Get(name); ok {
			s.push(fiber, v)
			return nil
		}
	}
	return s.runtimeError("undefined field '%s'", name.Chars)
}

// yieldSignal is a control-flow sentinel, not a real failure: it unwinds
// the Go call stack out of run() without popping any Ash call frames, so
// the fiber can be resumed later exactly where it left off. Every
// opcode handler that can transitively call a native (OP_CALL,
// OP_INVOKE, ...) already propagates an error verbatim, which is all
// this needs to ride out of the dispatch loop.
type yieldSignal struct {
	value Value
}

func (*yieldSignal) Error() string { return "fiber yielded" }

// RunFiber resumes a non-root fiber from a fresh or suspended state, the
// `Fiber.run`/`Fiber.call` native entry point. It returns either the
// fiber's final return value (Done becomes true) or the value passed to
// `Fiber.yield` (the fiber remains suspended, resumable by calling this
// again).
func (s *State) RunFiber(fiber *ObjFiber, args []Value) (Value, error) {
	return s.resumeFiber(fiber, args, false)
}

// RunFiberTry is `Fiber.try`'s entry point: it resumes fiber exactly as
// RunFiber does, except a runtime error escaping the fiber's own
// try/catch handlers is caught here and handed back to the caller as the
// fiber's error value instead of propagating as a Go error (spec.md
// §4.7's `catcher = true`).
func (s *State) RunFiberTry(fiber *ObjFiber, args []Value) (Value, error) {
	return s.resumeFiber(fiber, args, true)
}

func (s *State) resumeFiber(fiber *ObjFiber, args []Value, protected bool) (Value, error) {
	if fiber.IsDone() {
		return Value{}, s.runtimeError("cannot run a finished fiber")
	}
	if !fiber.Started {
		fiber.Started = true
		if protected {
			fiber.State = FiberTry
		}
		for _, a := range args {
			fiber.Stack = append(fiber.Stack, a)
		}
	} else {
		// Resuming a previously-yielded fiber: the stack is exactly as it
		// was when Yield unwound out of callNative, missing only the
		// value the paused `Fiber.yield(...)` call should appear to have
		// returned.
		resumeValue := Null
		if len(args) > 0 {
			resumeValue = args[0]
		}
		fiber.Stack = append(fiber.Stack, resumeValue)
	}
	previous := s.CurrentFiber
	fiber.Parent = previous
	s.CurrentFiber = fiber

	err := s.run(fiber)
	s.CurrentFiber = previous

	if ys, ok := err.(*yieldSignal); ok {
		return ys.value, nil
	}
	if err != nil {
		if fiber.State == FiberTry {
			fiber.Aborted = true
			fiber.ErrorValue = errorValueOf(s, err)
			return fiber.ErrorValue, nil
		}
		return Value{}, err
	}
	return fiber.ReturnValue(), nil
}

// ReturnValue reports the last value a finished fiber produced.
func (f *ObjFiber) ReturnValue() Value {
	if len(f.Stack) == 0 {
		return Null
	}
	return f.Stack[len(f.Stack)-1]
}

// IsDone reports whether a fiber can never be resumed again: it ran to
// completion, or yeeted/aborted out of its last resumption.
func (f *ObjFiber) IsDone() bool {
	return f.Done || f.Aborted
}

// Yield suspends the current fiber at exactly this point, handing value
// back to the caller of the `run`/`call` that resumed it (`Fiber.yield`).
// The native call this executes inside never returns normally — its
// error return unwinds run() via yieldSignal instead.
func (s *State) Yield(value Value) (Value, error) {
	fiber := s.CurrentFiber
	if fiber == nil || fiber.Parent == nil {
		return Value{}, s.runtimeError("cannot yield from the root fiber")
	}
	return Value{}, &yieldSignal{value: value}
}

// Yeet suspends the current fiber like Yield, but the fiber can never be
// resumed afterward — `done` (ObjFiber.IsDone) reports true from this
// point on, matching `Fiber.yeet`'s one-way exit.
func (s *State) Yeet(value Value) (Value, error) {
	fiber := s.CurrentFiber
	if fiber == nil || fiber.Parent == nil {
		return Value{}, s.runtimeError("cannot yeet from the root fiber")
	}
	fiber.Aborted = true
	return Value{}, &yieldSignal{value: value}
}

// Abort cancels the current fiber, handing value to its parent the same
// way Yeet does (`Fiber.abort`); the parent may distinguish the two only
// by whatever value they pass.
func (s *State) Abort(value Value) (Value, error) {
	fiber := s.CurrentFiber
	if fiber == nil || fiber.Parent == nil {
		return Value{}, s.runtimeError("cannot abort the root fiber")
	}
	fiber.Aborted = true
	return Value{}, &yieldSignal{value: value}
}
