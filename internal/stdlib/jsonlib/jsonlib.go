// Package jsonlib installs the JSON collaborator: a static-only native
// class exposing `parse`/`toString`, grounded on lit_json.c's
// `lit_open_json_library` (`JSON.parse`, `JSON.toString`) but built on
// stdlib `encoding/json` for the actual parsing/formatting instead of the
// hand-rolled character-at-a-time state machine lit_json.c implements —
// the surface contract is what's grounded, not the parser internals.
package jsonlib

import (
	"encoding/json"
	"sort"

	"ash/internal/vm"
)

// Install builds the JSON class and binds it as a global.
func Install(s *vm.State) {
	class := s.NewClass("JSON", nil)
	class.IsNative = true

	staticMethod(s, class, "parse", jsonParse)
	staticMethod(s, class, "toString", jsonToString)

	s.DefineGlobal("JSON", vm.ObjectValue(class))
}

func jsonParse(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	text, err := state.CheckString(args, 0, "JSON.parse")
	if err != nil {
		return vm.Value{}, err
	}
	var decoded interface{}
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return vm.Value{}, state.RuntimeError("JSON.parse: %v", err)
	}
	return fromGo(state, decoded), nil
}

func jsonToString(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	if len(args) == 0 {
		return vm.Value{}, state.RuntimeError("JSON.toString() expects a value")
	}
	indent := false
	if len(args) > 1 {
		indent = args[1].IsBool() && args[1].AsBool()
	}
	converted, err := toGo(state, args[0])
	if err != nil {
		return vm.Value{}, err
	}

	var out []byte
	if indent {
		out, err = json.MarshalIndent(converted, "", "  ")
	} else {
		out, err = json.Marshal(converted)
	}
	if err != nil {
		return vm.Value{}, state.RuntimeError("JSON.toString: %v", err)
	}
	return state.NewString(string(out)), nil
}

// fromGo converts a json.Unmarshal result (nil/bool/float64/string/
// []interface{}/map[string]interface{}) into an Ash Value.
func fromGo(state *vm.State, v interface{}) vm.Value {
	switch x := v.(type) {
	case nil:
		return vm.Null
	case bool:
		return vm.Bool(x)
	case float64:
		return vm.Number(x)
	case string:
		return state.NewString(x)
	case []interface{}:
		elements := make([]vm.Value, len(x))
		for i, el := range x {
			elements[i] = fromGo(state, el)
		}
		return state.NewArray(elements)
	case map[string]interface{}:
		mapValue := state.NewMap()
		m := mapValue.AsMap()
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Set(state.NewString(k), fromGo(state, x[k]))
		}
		return mapValue
	}
	return vm.Null
}

// toGo converts an Ash Value into something encoding/json can marshal,
// erroring on values JSON has no representation for (functions, fibers,
// classes, instances with no natural object shape).
func toGo(state *vm.State, v vm.Value) (interface{}, error) {
	switch {
	case v.IsNull():
		return nil, nil
	case v.IsBool():
		return v.AsBool(), nil
	case v.IsNumber():
		return v.AsNumber(), nil
	case v.IsString():
		return v.AsString().Chars, nil
	case v.IsArray():
		elements := v.AsArray().Elements
		out := make([]interface{}, len(elements))
		for i, el := range elements {
			converted, err := toGo(state, el)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	case v.IsMap():
		m := v.AsMap()
		out := make(map[string]interface{}, m.Len())
		for _, key := range m.Keys() {
			keyStr, err := state.ToString(key)
			if err != nil {
				return nil, err
			}
			value, _ := m.Get(key)
			converted, err := toGo(state, value)
			if err != nil {
				return nil, err
			}
			out[keyStr] = converted
		}
		return out, nil
	}
	return nil, state.RuntimeError("JSON.toString: value has no JSON representation")
}

func staticMethod(s *vm.State, class *vm.ObjClass, name string, fn vm.NativeFn) {
	class.StaticFields.Set(s.Intern(name), s.NewNativeMethod(name, fn))
}
