// Package file installs the File and Directory collaborators, grounded
// on lit_file.c's method tables. lit_file.c opens a file handle into a
// userdata-backed instance (`new File(path, mode)`) that subsequent
// reads/writes mutate; this object model has no userdata/opaque-handle
// object kind, so File is modeled as a set of static, whole-file
// operations instead (`File.readAll`/`File.writeAll`), the same
// simplification `internal/stdlib/random` makes for the same reason.
// Permission-bit inspection beyond os.FileInfo's portable subset uses
// golang.org/x/sys/unix on unix platforms (file_unix.go).
package file

import (
	"os"

	"ash/internal/vm"
)

// Install builds the File and Directory classes and binds them as globals.
func Install(s *vm.State) {
	fileClass := s.NewClass("File", nil)
	fileClass.IsNative = true
	staticMethod(s, fileClass, "exists", fileExists)
	staticMethod(s, fileClass, "getLastModified", fileGetLastModified)
	staticMethod(s, fileClass, "readAll", fileReadAll)
	staticMethod(s, fileClass, "writeAll", fileWriteAll)
	staticMethod(s, fileClass, "appendAll", fileAppendAll)
	staticMethod(s, fileClass, "permissions", filePermissions)
	staticMethod(s, fileClass, "remove", fileRemove)
	s.DefineGlobal("File", vm.ObjectValue(fileClass))

	dirClass := s.NewClass("Directory", nil)
	dirClass.IsNative = true
	staticMethod(s, dirClass, "exists", directoryExists)
	staticMethod(s, dirClass, "listFiles", directoryListFiles)
	staticMethod(s, dirClass, "listDirectories", directoryListDirectories)
	staticMethod(s, dirClass, "create", directoryCreate)
	s.DefineGlobal("Directory", vm.ObjectValue(dirClass))
}

func fileExists(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.exists")
	if err != nil {
		return vm.Value{}, err
	}
	info, err := os.Stat(path)
	return vm.Bool(err == nil && !info.IsDir()), nil
}

func fileGetLastModified(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.getLastModified")
	if err != nil {
		return vm.Value{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return vm.Number(0), nil
	}
	return vm.Number(float64(info.ModTime().Unix())), nil
}

func fileReadAll(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.readAll")
	if err != nil {
		return vm.Value{}, err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return vm.Value{}, state.RuntimeError("File.readAll: %v", err)
	}
	return state.NewString(string(contents)), nil
}

func fileWriteAll(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.writeAll")
	if err != nil {
		return vm.Value{}, err
	}
	content, err := state.CheckString(args, 1, "File.writeAll")
	if err != nil {
		return vm.Value{}, err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return vm.Value{}, state.RuntimeError("File.writeAll: %v", err)
	}
	return vm.Null, nil
}

func fileAppendAll(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.appendAll")
	if err != nil {
		return vm.Value{}, err
	}
	content, err := state.CheckString(args, 1, "File.appendAll")
	if err != nil {
		return vm.Value{}, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return vm.Value{}, state.RuntimeError("File.appendAll: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return vm.Value{}, state.RuntimeError("File.appendAll: %v", err)
	}
	return vm.Null, nil
}

func filePermissions(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.permissions")
	if err != nil {
		return vm.Value{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return vm.Value{}, state.RuntimeError("File.permissions: %v", err)
	}
	return vm.Number(float64(permissionBits(info))), nil
}

func fileRemove(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "File.remove")
	if err != nil {
		return vm.Value{}, err
	}
	if err := os.Remove(path); err != nil {
		return vm.Value{}, state.RuntimeError("File.remove: %v", err)
	}
	return vm.Null, nil
}

func directoryExists(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "Directory.exists")
	if err != nil {
		return vm.Value{}, err
	}
	info, err := os.Stat(path)
	return vm.Bool(err == nil && info.IsDir()), nil
}

func directoryCreate(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "Directory.create")
	if err != nil {
		return vm.Value{}, err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return vm.Value{}, state.RuntimeError("Directory.create: %v", err)
	}
	return vm.Null, nil
}

func directoryListFiles(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	return listEntries(state, args, func(e os.DirEntry) bool { return !e.IsDir() })
}

func directoryListDirectories(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
	return listEntries(state, args, func(e os.DirEntry) bool { return e.IsDir() })
}

func listEntries(state *vm.State, args []vm.Value, keep func(os.DirEntry) bool) (vm.Value, error) {
	path, err := state.CheckString(args, 0, "Directory")
	if err != nil {
		return vm.Value{}, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return state.NewArray(nil), nil
	}
	var out []vm.Value
	for _, e := range entries {
		if keep(e) {
			out = append(out, state.NewString(e.Name()))
		}
	}
	return state.NewArray(out), nil
}

func staticMethod(s *vm.State, class *vm.ObjClass, name string, fn vm.NativeFn) {
	class.StaticFields.Set(s.Intern(name), s.NewNativeMethod(name, fn))
}
