package vm

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// gcHeapGrowFactor is the multiplier applied to bytesAllocated to compute
// the next collection threshold, grounded on lit_mem.c's next_gc growth
// hook (`next_gc = bytes_allocated * GC_HEAP_GROW_FACTOR`).
const gcHeapGrowFactor = 2

const gcInitialThreshold = 1024 * 1024

// gcState is the tri-color mark-and-sweep collector's bookkeeping,
// embedded in State. Every Obj the interpreter allocates is linked into
// objects (an intrusive singly-linked list) at birth; collection walks
// the roots, grays everything reachable, then sweeps the list for
// anything left white.
type gcState struct {
	objects         Obj
	bytesAllocated  uint64
	nextGC          uint64
	gray            []Obj
	disabled        int // paused while > 0 (re-entrancy guard during allocation-heavy native calls)
}

func newGCState() gcState {
	return gcState{nextGC: gcInitialThreshold}
}

// trackObject links a freshly allocated object into the GC's object list
// and charges its estimated size against the allocation counter. Every
// New*/make-style constructor in this package must call it exactly once.
func (s *State) trackObject(o Obj, size uint64) {
	o.objHeader().next = s.gc.objects
	s.gc.objects = o
	s.gc.bytesAllocated += size
	if s.gc.bytesAllocated > s.gc.nextGC && s.gc.disabled == 0 {
		s.CollectGarbage()
	}
}

// PauseGC and ResumeGC bracket sections where collecting mid-allocation
// would observe half-built state (e.g. while a native constructor is
// still wiring up a value that isn't reachable from any root yet).
func (s *State) PauseGC()  { s.gc.disabled++ }
func (s *State) ResumeGC() { s.gc.disabled-- }

// CollectGarbage runs one full mark-and-sweep cycle: mark every object
// reachable from the VM's roots, then free everything left unmarked.
func (s *State) CollectGarbage() {
	before := s.gc.bytesAllocated

	s.markRoots()
	s.traceReferences()
	removeWhiteStrings(s.Strings)
	s.sweep()

	s.gc.nextGC = s.gc.bytesAllocated * gcHeapGrowFactor
	if s.gc.nextGC < gcInitialThreshold {
		s.gc.nextGC = gcInitialThreshold
	}

	if s.Logger != nil {
		s.Logger.Debug("gc cycle",
			slog.String("before", humanize.Bytes(before)),
			slog.String("after", humanize.Bytes(s.gc.bytesAllocated)),
			slog.String("next_gc", humanize.Bytes(s.gc.nextGC)),
		)
	}
}

func (s *State) markRoots() {
	s.Globals.Each(func(_ *ObjString, v Value) { s.markValue(v) })
	// Strings is an intern table, not a root: an interned string stays
	// alive only while something else still references it, the same
	// weak-table trick lit_vm.c uses for its own `strings` table.

	for _, class := range s.coreClasses() {
		if class != nil {
			s.markObject(class)
		}
	}

	for _, module := range s.Modules {
		s.markObject(module)
	}

	for fiber := s.CurrentFiber; fiber != nil; fiber = fiber.Parent {
		s.markFiber(fiber)
	}
	for _, root := range s.rootFibers {
		s.markFiber(root)
	}

	for _, v := range s.tempRoots {
		s.markValue(v)
	}
}

// removeWhiteStrings drops every intern-table entry whose key didn't get
// marked this cycle, so interning a short-lived string doesn't pin it in
// memory forever.
func removeWhiteStrings(t *Table) {
	var dead []*ObjString
	t.Each(func(key *ObjString, _ Value) {
		if !key.marked {
			dead = append(dead, key)
		}
	})
	for _, key := range dead {
		t.Delete(key)
	}
}

func (s *State) markFiber(f *ObjFiber) {
	if f == nil || s.isMarked(f) {
		return
	}
	s.markObject(f)
	for _, v := range f.Stack {
		s.markValue(v)
	}
	for _, frame := range f.Frames {
		if frame.Closure != nil {
			s.markObject(frame.Closure)
		}
		if frame.Function != nil {
			s.markObject(frame.Function)
		}
		if frame.Module != nil {
			s.markObject(frame.Module)
		}
	}
	for up := f.OpenUpvalues; up != nil; up = up.NextOpen {
		s.markObject(up)
	}
	s.markValue(f.ErrorValue)
}

func (s *State) isMarked(o Obj) bool {
	if o == nil {
		return true
	}
	return o.objHeader().marked
}

func (s *State) markValue(v Value) {
	if v.IsObject() {
		s.markObject(v.AsObject())
	}
}

func (s *State) markObject(o Obj) {
	if o == nil || o.objHeader().marked {
		return
	}
	o.objHeader().marked = true
	s.gc.gray = append(s.gc.gray, o)
}

// traceReferences drains the gray worklist, blackening each object by
// marking everything it points to, until nothing gray remains.
func (s *State) traceReferences() {
	for len(s.gc.gray) > 0 {
		n := len(s.gc.gray) - 1
		o := s.gc.gray[n]
		s.gc.gray = s.gc.gray[:n]
		s.blacken(o)
	}
}

func (s *State) blacken(o Obj) {
	switch obj := o.(type) {
	case *ObjString, *ObjNative, *ObjNativeMethod, *ObjRange:
		// no outgoing references
	case *ObjUpvalue:
		s.markValue(obj.Get())
	case *ObjFunction:
		s.markObject(obj.Name)
		for _, c := range obj.Chunk.Constants {
			s.markValue(c)
		}
		if obj.Module != nil {
			s.markObject(obj.Module)
		}
	case *ObjClosure:
		s.markObject(obj.Function)
		for _, up := range obj.Upvalues {
			s.markObject(up)
		}
	case *ObjClass:
		s.markObject(obj.Name)
		if obj.Super != nil {
			s.markObject(obj.Super)
		}
		obj.Methods.Each(func(k *ObjString, v Value) { s.markObject(k); s.markValue(v) })
		obj.StaticFields.Each(func(k *ObjString, v Value) { s.markObject(k); s.markValue(v) })
	case *ObjInstance:
		s.markObject(obj.Class)
		obj.Fields.Each(func(k *ObjString, v Value) { s.markObject(k); s.markValue(v) })
	case *ObjBoundMethod:
		s.markValue(obj.Receiver)
		s.markValue(obj.Method)
	case *ObjArray:
		for _, v := range obj.Elements {
			s.markValue(v)
		}
	case *ObjMap:
		for _, k := range obj.order {
			s.markValue(k)
			v, _ := obj.Get(k)
			s.markValue(v)
		}
	case *ObjModule:
		s.markObject(obj.Name)
		for _, v := range obj.Privates {
			s.markValue(v)
		}
		if obj.MainFunction != nil {
			s.markObject(obj.MainFunction)
		}
		s.markValue(obj.ReturnValue)
	case *ObjFiber:
		s.markFiber(obj)
	}
}

// sweep unlinks and discards every object left unmarked, and resets the
// marked bit on survivors for the next cycle.
func (s *State) sweep() {
	var previous Obj
	object := s.gc.objects
	for object != nil {
		header := object.objHeader()
		if header.marked {
			header.marked = false
			previous = object
			object = header.next
			continue
		}
		unreached := object
		object = header.next
		if previous != nil {
			previous.objHeader().next = object
		} else {
			s.gc.objects = object
		}
		s.gc.bytesAllocated -= estimateSize(unreached)
	}
}

// estimateSize gives the allocation accounting a rough per-kind size; it
// does not need to be exact, only monotonic with real heap pressure.
func estimateSize(o Obj) uint64 {
	switch obj := o.(type) {
	case *ObjString:
		return uint64(32 + len(obj.Chars))
	case *ObjArray:
		return uint64(24 + 16*len(obj.Elements))
	case *ObjMap:
		return uint64(48 + 32*obj.Len())
	case *ObjInstance:
		return 64
	default:
		return 48
	}
}
