package vm

import (
	"math"
	"sort"
	"strings"
)

// registerCoreClasses installs the built-in Object/Class/Number/String/
// Bool/Function/Fiber/Module/Array/Map/Range classes, grounded on
// lit_core.c's method tables (`lit_open_core_library`). Each is marked
// IsNative so user code can call methods on it but never subclass it
// directly through `class Foo : Number`.
//
// This lives inside package vm rather than its own corelib package
// because every method closure below needs unexported State/Table
// internals (trackObject, the receiver accessor helpers); a separate
// package would need to re-export most of this file's surface area to
// get the same access, which buys nothing.
func registerCoreClasses(s *State) {
	s.ClassObject = nativeClass(s, "Object", nil)
	installObjectMethods(s, s.ClassObject)

	s.ClassClass = nativeClass(s, "Class", s.ClassObject)
	installClassMethods(s, s.ClassClass)

	s.ClassNumber = nativeClass(s, "Number", s.ClassObject)
	installNumberMethods(s, s.ClassNumber)

	s.ClassString = nativeClass(s, "String", s.ClassObject)
	installStringMethods(s, s.ClassString)

	s.ClassBool = nativeClass(s, "Bool", s.ClassObject)
	installBoolMethods(s, s.ClassBool)

	s.ClassFunction = nativeClass(s, "Function", s.ClassObject)

	s.ClassFiber = nativeClass(s, "Fiber", s.ClassObject)
	installFiberMethods(s, s.ClassFiber)

	s.ClassModule = nativeClass(s, "Module", s.ClassObject)

	s.ClassArray = nativeClass(s, "Array", s.ClassObject)
	installArrayMethods(s, s.ClassArray)

	s.ClassMap = nativeClass(s, "Map", s.ClassObject)
	installMapMethods(s, s.ClassMap)

	s.ClassRange = nativeClass(s, "Range", s.ClassObject)
	installRangeMethods(s, s.ClassRange)

	for _, class := range s.coreClasses() {
		s.DefineGlobal(class.Name.Chars, ObjectValue(class))
	}

	s.DefineNative("print", nativePrint)
	s.DefineNative("typeOf", nativeTypeOf)
}

func nativeClass(s *State, name string, super *ObjClass) *ObjClass {
	class := s.NewClass(name, super)
	class.IsNative = true
	return class
}

func method(class *ObjClass, name string, fn NativeFn) {
	class.Methods.Set((&ObjString{Chars: name, Hash: hashString(name)}), ObjectValue(&ObjNativeMethod{Name: name, Fn: fn}))
}

func staticMethod(s *State, class *ObjClass, name string, fn NativeFn) {
	class.StaticFields.Set(s.Intern(name), s.NewNativeMethod(name, fn))
}

func nativePrint(s *State, _ Value, args []Value) (Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		str, err := s.ToString(a)
		if err != nil {
			return Value{}, err
		}
		parts[i] = str
	}
	s.Stdout.Write([]byte(strings.Join(parts, " ") + "\n"))
	return Null, nil
}

func nativeTypeOf(s *State, _ Value, args []Value) (Value, error) {
	v := ArgOrNull(args, 0)
	class := s.classFor(v)
	if class == nil {
		return Null, nil
	}
	return ObjectValue(class), nil
}

func installObjectMethods(s *State, class *ObjClass) {
	method(class, "toString", func(s *State, recv Value, _ []Value) (Value, error) {
		str, err := s.ToString(recv)
		if err != nil {
			return Value{}, err
		}
		return s.NewString(str), nil
	})
	method(class, "equals", func(s *State, recv Value, args []Value) (Value, error) {
		return Bool(Equal(recv, ArgOrNull(args, 0))), nil
	})
	method(class, "class", func(s *State, recv Value, _ []Value) (Value, error) {
		class := s.classFor(recv)
		if class == nil {
			return Null, nil
		}
		return ObjectValue(class), nil
	})
}

func installClassMethods(s *State, class *ObjClass) {
	method(class, "name", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewString(recv.AsClass().Name.Chars), nil
	})
	method(class, "super", func(s *State, recv Value, _ []Value) (Value, error) {
		super := recv.AsClass().Super
		if super == nil {
			return Null, nil
		}
		return ObjectValue(super), nil
	})
}

func installNumberMethods(s *State, class *ObjClass) {
	unary := func(f func(float64) float64) NativeFn {
		return func(s *State, recv Value, _ []Value) (Value, error) {
			return Number(f(recv.AsNumber())), nil
		}
	}
	method(class, "abs", unary(math.Abs))
	method(class, "floor", unary(math.Floor))
	method(class, "ceil", unary(math.Ceil))
	method(class, "round", unary(math.Round))
	method(class, "sqrt", unary(math.Sqrt))
	method(class, "toString", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewString(formatNumber(recv.AsNumber())), nil
	})
}

func installStringMethods(s *State, class *ObjClass) {
	method(class, "length", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(float64(len([]rune(recv.AsString().Chars)))), nil
	})
	method(class, "upper", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewString(strings.ToUpper(recv.AsString().Chars)), nil
	})
	method(class, "lower", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewString(strings.ToLower(recv.AsString().Chars)), nil
	})
	method(class, "trim", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewString(strings.TrimSpace(recv.AsString().Chars)), nil
	})
	method(class, "contains", func(s *State, recv Value, args []Value) (Value, error) {
		needle, err := s.CheckString(args, 0, "contains")
		if err != nil {
			return Value{}, err
		}
		return Bool(strings.Contains(recv.AsString().Chars, needle)), nil
	})
	method(class, "split", func(s *State, recv Value, args []Value) (Value, error) {
		sep, err := s.CheckString(args, 0, "split")
		if err != nil {
			return Value{}, err
		}
		parts := strings.Split(recv.AsString().Chars, sep)
		out := make([]Value, len(parts))
		for i, p := range parts {
			out[i] = s.NewString(p)
		}
		return s.NewArray(out), nil
	})
	method(class, "toString", func(s *State, recv Value, _ []Value) (Value, error) { return recv, nil })
	method(class, "iterate", func(s *State, recv Value, args []Value) (Value, error) {
		runes := []rune(recv.AsString().Chars)
		prev := ArgOrNull(args, 0)
		if prev.IsNull() {
			if len(runes) == 0 {
				return False, nil
			}
			return Number(0), nil
		}
		idx := prev.AsNumber() + 1
		if int(idx) >= len(runes) {
			return False, nil
		}
		return Number(idx), nil
	})
	method(class, "iteratorValue", func(s *State, recv Value, args []Value) (Value, error) {
		runes := []rune(recv.AsString().Chars)
		idx := int(ArgOrNull(args, 0).AsNumber())
		return s.NewString(string(runes[idx])), nil
	})
}

func installBoolMethods(s *State, class *ObjClass) {
	method(class, "toString", func(s *State, recv Value, _ []Value) (Value, error) {
		if recv.AsBool() {
			return s.NewString("true"), nil
		}
		return s.NewString("false"), nil
	})
}

func installFiberMethods(s *State, class *ObjClass) {
	class.NativeConstructor = nativeFiberNew

	method(class, "run", func(s *State, recv Value, args []Value) (Value, error) {
		return s.RunFiber(recv.AsFiber(), args)
	})
	method(class, "call", func(s *State, recv Value, args []Value) (Value, error) {
		return s.RunFiber(recv.AsFiber(), args)
	})
	method(class, "try", func(s *State, recv Value, args []Value) (Value, error) {
		return s.RunFiberTry(recv.AsFiber(), args)
	})
	method(class, "isDone", func(s *State, recv Value, _ []Value) (Value, error) {
		return Bool(recv.AsFiber().IsDone()), nil
	})

	staticMethod(s, class, "yield", func(s *State, _ Value, args []Value) (Value, error) {
		return s.Yield(ArgOrNull(args, 0))
	})
	staticMethod(s, class, "yeet", func(s *State, _ Value, args []Value) (Value, error) {
		return s.Yeet(ArgOrNull(args, 0))
	})
	staticMethod(s, class, "abort", func(s *State, _ Value, args []Value) (Value, error) {
		return s.Abort(ArgOrNull(args, 0))
	})
	staticMethod(s, class, "current", func(s *State, _ Value, _ []Value) (Value, error) {
		if s.CurrentFiber == nil {
			return Null, nil
		}
		return ObjectValue(s.CurrentFiber), nil
	})
}

// nativeFiberNew builds an ObjFiber from the function passed to
// `new Fiber(fn)`, wrapping a bare ObjFunction in a closure since
// NewFiber's first frame always runs a closure (lit_core.c's
// fiber constructor does the same: it rejects anything but a callable).
func nativeFiberNew(s *State, _ Value, args []Value) (Value, error) {
	fn := ArgOrNull(args, 0)
	var closure *ObjClosure
	switch {
	case fn.IsClosure():
		closure = fn.AsClosure()
	case fn.IsFunction():
		closure = &ObjClosure{Function: fn.AsFunction()}
	default:
		return Value{}, s.runtimeError("Fiber expects a function")
	}
	fiber := NewFiber(closure, nil)
	s.trackObject(fiber, 128)
	return ObjectValue(fiber), nil
}

func installArrayMethods(s *State, class *ObjClass) {
	method(class, "length", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(float64(len(recv.AsArray().Elements))), nil
	})
	method(class, "push", func(s *State, recv Value, args []Value) (Value, error) {
		arr := recv.AsArray()
		arr.Elements = append(arr.Elements, args...)
		return recv, nil
	})
	method(class, "pop", func(s *State, recv Value, _ []Value) (Value, error) {
		arr := recv.AsArray()
		if len(arr.Elements) == 0 {
			return Null, nil
		}
		last := arr.Elements[len(arr.Elements)-1]
		arr.Elements = arr.Elements[:len(arr.Elements)-1]
		return last, nil
	})
	method(class, "contains", func(s *State, recv Value, args []Value) (Value, error) {
		target := ArgOrNull(args, 0)
		for _, el := range recv.AsArray().Elements {
			if Equal(el, target) {
				return True, nil
			}
		}
		return False, nil
	})
	method(class, "join", func(s *State, recv Value, args []Value) (Value, error) {
		sep := ", "
		if len(args) > 0 && args[0].IsString() {
			sep = args[0].AsString().Chars
		}
		parts := make([]string, len(recv.AsArray().Elements))
		for i, el := range recv.AsArray().Elements {
			str, err := s.ToString(el)
			if err != nil {
				return Value{}, err
			}
			parts[i] = str
		}
		return s.NewString(strings.Join(parts, sep)), nil
	})
	method(class, "reverse", func(s *State, recv Value, _ []Value) (Value, error) {
		elems := recv.AsArray().Elements
		out := make([]Value, len(elems))
		for i, e := range elems {
			out[len(elems)-1-i] = e
		}
		return s.NewArray(out), nil
	})
	method(class, "sort", func(s *State, recv Value, _ []Value) (Value, error) {
		arr := recv.AsArray()
		sort.SliceStable(arr.Elements, func(i, j int) bool {
			a, b := arr.Elements[i], arr.Elements[j]
			if a.IsNumber() && b.IsNumber() {
				return a.AsNumber() < b.AsNumber()
			}
			if a.IsString() && b.IsString() {
				return a.AsString().Chars < b.AsString().Chars
			}
			return false
		})
		return recv, nil
	})
	// iterate/iteratorValue implement the seed-based iteration protocol the
	// emitter lowers `for x in seq` to: iterate(prev) returns the next
	// iterator state or false when exhausted, iteratorValue(iter) maps that
	// state to the value the loop variable should see.
	method(class, "iterate", func(s *State, recv Value, args []Value) (Value, error) {
		elems := recv.AsArray().Elements
		prev := ArgOrNull(args, 0)
		if prev.IsNull() {
			if len(elems) == 0 {
				return False, nil
			}
			return Number(0), nil
		}
		idx := prev.AsNumber() + 1
		if int(idx) >= len(elems) {
			return False, nil
		}
		return Number(idx), nil
	})
	method(class, "iteratorValue", func(s *State, recv Value, args []Value) (Value, error) {
		idx := ArgOrNull(args, 0)
		return recv.AsArray().Elements[int(idx.AsNumber())], nil
	})
}

func installMapMethods(s *State, class *ObjClass) {
	method(class, "length", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(float64(recv.AsMap().Len())), nil
	})
	method(class, "has", func(s *State, recv Value, args []Value) (Value, error) {
		_, ok := recv.AsMap().Get(ArgOrNull(args, 0))
		return Bool(ok), nil
	})
	method(class, "remove", func(s *State, recv Value, args []Value) (Value, error) {
		return Bool(recv.AsMap().Delete(ArgOrNull(args, 0))), nil
	})
	method(class, "keys", func(s *State, recv Value, _ []Value) (Value, error) {
		return s.NewArray(append([]Value(nil), recv.AsMap().Keys()...)), nil
	})
	method(class, "iterate", func(s *State, recv Value, args []Value) (Value, error) {
		keys := recv.AsMap().Keys()
		prev := ArgOrNull(args, 0)
		if prev.IsNull() {
			if len(keys) == 0 {
				return False, nil
			}
			return Number(0), nil
		}
		idx := prev.AsNumber() + 1
		if int(idx) >= len(keys) {
			return False, nil
		}
		return Number(idx), nil
	})
	method(class, "iteratorValue", func(s *State, recv Value, args []Value) (Value, error) {
		idx := ArgOrNull(args, 0)
		return recv.AsMap().Keys()[int(idx.AsNumber())], nil
	})
}

func installRangeMethods(s *State, class *ObjClass) {
	method(class, "from", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(recv.AsRange().From), nil
	})
	method(class, "to", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(recv.AsRange().To), nil
	})
	method(class, "toArray", func(s *State, recv Value, _ []Value) (Value, error) {
		r := recv.AsRange()
		var out []Value
		if r.From <= r.To {
			end := r.To
			if r.Inclusive {
				end++
			}
			for i := r.From; i < end; i++ {
				out = append(out, Number(i))
			}
		} else {
			end := r.To
			if r.Inclusive {
				end--
			}
			for i := r.From; i > end; i-- {
				out = append(out, Number(i))
			}
		}
		return s.NewArray(out), nil
	})
	method(class, "length", func(s *State, recv Value, _ []Value) (Value, error) {
		return Number(float64(rangeLen(recv.AsRange()))), nil
	})
	method(class, "iterate", func(s *State, recv Value, args []Value) (Value, error) {
		count := rangeLen(recv.AsRange())
		prev := ArgOrNull(args, 0)
		if prev.IsNull() {
			if count == 0 {
				return False, nil
			}
			return Number(0), nil
		}
		idx := prev.AsNumber() + 1
		if int(idx) >= count {
			return False, nil
		}
		return Number(idx), nil
	})
	method(class, "iteratorValue", func(s *State, recv Value, args []Value) (Value, error) {
		r := recv.AsRange()
		idx := ArgOrNull(args, 0).AsNumber()
		if r.From <= r.To {
			return Number(r.From + idx), nil
		}
		return Number(r.From - idx), nil
	})
}

// rangeLen returns the number of integers a range covers, used by both
// toArray and the iterate/iteratorValue pair.
func rangeLen(r *ObjRange) int {
	if r.From <= r.To {
		end := r.To
		if r.Inclusive {
			end++
		}
		return int(end - r.From)
	}
	end := r.To
	if r.Inclusive {
		end--
	}
	return int(r.From - end)
}
