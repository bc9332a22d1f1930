package vm

import (
	"fmt"
	"strconv"
)

// Call invokes a callable value with args from Go code (the embedding
// surface's `call`, grounded on lit_calls.c's `lit_call`). It runs on a
// throwaway fiber pushed beneath the current one so native code can call
// back into Ash without disturbing whatever fiber is already executing.
func (s *State) Call(callee Value, args []Value) (Value, error) {
	return s.CallMethod(Null, callee, args)
}

// CallMethod invokes callee with receiver bound as `this` (Null receiver
// for a plain function), matching lit_calls.c's `lit_call_method`.
func (s *State) CallMethod(receiver, callee Value, args []Value) (Value, error) {
	if !callee.IsCallable() {
		return Value{}, s.runtimeError("value is not callable")
	}

	host := s.CurrentFiber
	fiber := &ObjFiber{State: FiberRoot, Parent: host}
	s.CurrentFiber = fiber
	defer func() { s.CurrentFiber = host }()

	base := len(fiber.Stack)
	if receiver.IsNull() && !callee.IsBoundMethod() {
		s.push(fiber, callee)
	} else {
		s.push(fiber, receiver)
	}
	for _, a := range args {
		s.push(fiber, a)
	}

	framesBefore := len(fiber.Frames)
	if err := s.callValue(fiber, callee, len(args), false); err != nil {
		fiber.Stack = fiber.Stack[:base]
		return Value{}, err
	}

	if len(fiber.Frames) == framesBefore {
		// Native/class-construct path already produced its result synchronously.
		result := s.pop(fiber)
		return result, nil
	}
	if host != nil && len(host.Frames) > 0 && fiber.Frames[0].Module == nil {
		fiber.Frames[0].Module = host.Frames[len(host.Frames)-1].Module
	}

	if err := s.run(fiber); err != nil {
		return Value{}, err
	}
	return s.pop(fiber), nil
}

// ToString converts v to its display representation, invoking a
// user-defined `toString` method on instances when present (lit_calls.c's
// `lit_to_string`).
func (s *State) ToString(v Value) (string, error) {
	switch {
	case v.IsNull():
		return "null", nil
	case v.IsBool():
		if v.AsBool() {
			return "true", nil
		}
		return "false", nil
	case v.IsNumber():
		return formatNumber(v.AsNumber()), nil
	case v.IsString():
		return v.AsString().Chars, nil
	case v.IsArray():
		return s.stringifyArray(v.AsArray())
	case v.IsMap():
		return s.stringifyMap(v.AsMap())
	case v.IsRange():
		r := v.AsRange()
		op := ".."
		if r.Inclusive {
			op = "..."
		}
		return fmt.Sprintf("%s%s%s", formatNumber(r.From), op, formatNumber(r.To)), nil
	case v.IsClass():
		return fmt.Sprintf("<class %s>", v.AsClass().Name.Chars), nil
	case v.IsInstance():
		instance := v.AsInstance()
		if method, ok := instance.Class.ResolveMethod(s.Intern("toString")); ok {
			result, err := s.CallMethod(v, method, nil)
			if err != nil {
				return "", err
			}
			if !result.IsString() {
				return "", s.runtimeError("toString() must return a string")
			}
			return result.AsString().Chars, nil
		}
		return fmt.Sprintf("<instance of %s>", instance.Class.Name.Chars), nil
	case v.IsFunction():
		return fmt.Sprintf("<function %s>", nameOf(v.AsFunction())), nil
	case v.IsClosure():
		return fmt.Sprintf("<function %s>", nameOf(v.AsClosure().Function)), nil
	case v.IsNative():
		return fmt.Sprintf("<native %s>", v.AsNative().Name), nil
	case v.IsBoundMethod():
		return s.ToString(v.AsBoundMethod().Receiver)
	case v.IsFiber():
		return fmt.Sprintf("<fiber %s>", v.AsFiber().ID), nil
	case v.IsModule():
		return v.AsModule().String(), nil
	}
	return "<value>", nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (s *State) stringifyArray(a *ObjArray) (string, error) {
	if len(a.Elements) == 0 {
		return "[]", nil
	}
	out := "[ "
	for i, el := range a.Elements {
		if i > 0 {
			out += ", "
		}
		str, err := s.ToString(el)
		if err != nil {
			return "", err
		}
		if el.IsString() {
			str = strconv.Quote(str)
		}
		out += str
	}
	return out + " ]", nil
}

func (s *State) stringifyMap(m *ObjMap) (string, error) {
	out := "{"
	for i, key := range m.Keys() {
		if i > 0 {
			out += ", "
		}
		value, _ := m.Get(key)
		keyStr, err := s.ToString(key)
		if err != nil {
			return "", err
		}
		valStr, err := s.ToString(value)
		if err != nil {
			return "", err
		}
		if value.IsString() {
			valStr = strconv.Quote(valStr)
		}
		out += keyStr + ": " + valStr
	}
	return out + "}", nil
}

// CheckNumber validates that args[i] is a number, the native-method
// argument-checking helper lit_calls.c exposes as `lit_check_number`.
func (s *State) CheckNumber(args []Value, i int, fnName string) (float64, error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, s.runtimeError("%s() expected a number for argument %d", fnName, i+1)
	}
	return args[i].AsNumber(), nil
}

// CheckString validates that args[i] is a string.
func (s *State) CheckString(args []Value, i int, fnName string) (string, error) {
	if i >= len(args) || !args[i].IsString() {
		return "", s.runtimeError("%s() expected a string for argument %d", fnName, i+1)
	}
	return args[i].AsString().Chars, nil
}

// ArgOrNull returns args[i] if present, Null otherwise — the pattern
// every variadic-default native method uses instead of panicking on a
// short argument list.
func ArgOrNull(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Null
}
