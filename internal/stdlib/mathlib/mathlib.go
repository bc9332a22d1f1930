// Package mathlib installs the Math collaborator: a native, global class
// exposing the trigonometric/rounding/extrema functions spec.md's Math
// module names, grounded on lit_math.c's `lit_open_math_library` method
// table and constant fields (`Pi`, `Tau`).
package mathlib

import (
	"math"

	"ash/internal/vm"
)

// Install builds the Math class and binds it as a global, the same
// define-then-DefineGlobal shape the core classes use.
func Install(s *vm.State) {
	class := s.NewClass("Math", nil)
	class.IsNative = true

	staticField(s, class, "Pi", vm.Number(math.Pi))
	staticField(s, class, "Tau", vm.Number(math.Pi*2))

	staticMethod(s, class, "abs", unary(math.Abs))
	staticMethod(s, class, "sin", unary(math.Sin))
	staticMethod(s, class, "cos", unary(math.Cos))
	staticMethod(s, class, "tan", unary(math.Tan))
	staticMethod(s, class, "asin", unary(math.Asin))
	staticMethod(s, class, "acos", unary(math.Acos))
	staticMethod(s, class, "atan", unary(math.Atan))
	staticMethod(s, class, "floor", unary(math.Floor))
	staticMethod(s, class, "ceil", unary(math.Ceil))
	staticMethod(s, class, "round", unary(math.Round))
	staticMethod(s, class, "sqrt", unary(math.Sqrt))
	staticMethod(s, class, "log", unary(math.Log))
	staticMethod(s, class, "exp", unary(math.Exp))
	staticMethod(s, class, "toRadians", unary(func(d float64) float64 { return d * math.Pi / 180 }))
	staticMethod(s, class, "toDegrees", unary(func(d float64) float64 { return d * 180 / math.Pi }))

	staticMethod(s, class, "atan2", binary(math.Atan2))
	staticMethod(s, class, "min", binary(math.Min))
	staticMethod(s, class, "max", binary(math.Max))

	staticMethod(s, class, "mid", func(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
		x, err := state.CheckNumber(args, 0, "Math.mid")
		if err != nil {
			return vm.Value{}, err
		}
		y, err := state.CheckNumber(args, 1, "Math.mid")
		if err != nil {
			return vm.Value{}, err
		}
		z, err := state.CheckNumber(args, 2, "Math.mid")
		if err != nil {
			return vm.Value{}, err
		}
		if x > y {
			return vm.Number(math.Max(x, math.Min(y, z))), nil
		}
		return vm.Number(math.Max(y, math.Min(x, z))), nil
	})

	s.DefineGlobal("Math", vm.ObjectValue(class))
}

func unary(fn func(float64) float64) vm.NativeFn {
	return func(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
		x, err := state.CheckNumber(args, 0, "Math")
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Number(fn(x)), nil
	}
}

func binary(fn func(float64, float64) float64) vm.NativeFn {
	return func(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
		x, err := state.CheckNumber(args, 0, "Math")
		if err != nil {
			return vm.Value{}, err
		}
		y, err := state.CheckNumber(args, 1, "Math")
		if err != nil {
			return vm.Value{}, err
		}
		return vm.Number(fn(x, y)), nil
	}
}

func staticMethod(s *vm.State, class *vm.ObjClass, name string, fn vm.NativeFn) {
	class.StaticFields.Set(s.Intern(name), s.NewNativeMethod(name, fn))
}

func staticField(s *vm.State, class *vm.ObjClass, name string, value vm.Value) {
	class.StaticFields.Set(s.Intern(name), value)
}
