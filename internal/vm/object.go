package vm

import (
	"fmt"

	"github.com/google/uuid"
)

// ObjKind discriminates the concrete type behind an Obj, mirroring
// LitObjectType's enum in lit_object.h.
type ObjKind byte

const (
	_ ObjKind = iota
	KindString
	KindFunction
	KindClosure
	KindUpvalue
	KindNative
	KindNativeMethod
	KindClass
	KindInstance
	KindBoundMethod
	KindArray
	KindMap
	KindFiber
	KindModule
	KindRange
)

// Obj is the interface every heap-allocated object satisfies. header
// embeds the fields the collector needs regardless of concrete kind.
type Obj interface {
	Kind() ObjKind
	objHeader() *objHeader
}

// objHeader is the intrusive-list node every object embeds, grounded on
// lit_object.h's shared `LitObject` prefix ({type, marked, next}).
type objHeader struct {
	marked bool
	next   Obj
}

func (h *objHeader) objHeader() *objHeader { return h }

// ObjString is an interned, immutable byte sequence with a precomputed
// FNV-1a hash (lit_object.h's LitString: chars/length/hash).
type ObjString struct {
	objHeader
	Chars string
	Hash  uint32
}

func (s *ObjString) Kind() ObjKind { return KindString }
func (s *ObjString) String() string { return s.Chars }

// hashString computes the FNV-1a hash the table and intern set key on.
func hashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// ObjUpvalue is either open (referencing a live slot on its owning
// fiber's stack by index) or closed (owning its own copy after the frame
// that created it returns). Indexing by slot rather than a raw pointer
// into the stack slice sidesteps the slice reallocating out from under a
// long-lived reference whenever the stack grows.
type ObjUpvalue struct {
	objHeader
	Fiber    *ObjFiber
	Slot     int
	isOpen   bool
	Closed   Value
	NextOpen *ObjUpvalue
}

func (u *ObjUpvalue) Get() Value {
	if u.isOpen {
		return u.Fiber.Stack[u.Slot]
	}
	return u.Closed
}

func (u *ObjUpvalue) Set(v Value) {
	if u.isOpen {
		u.Fiber.Stack[u.Slot] = v
		return
	}
	u.Closed = v
}

func (u *ObjUpvalue) Kind() ObjKind { return KindUpvalue }

// ObjFunction is a compiled, not-yet-closed-over function prototype.
type ObjFunction struct {
	objHeader
	Name          *ObjString
	Arity         int
	MaxArity      int // -1 means unlimited (varargs via trailing "...")
	UpvalueCount  int
	Chunk         Chunk
	IsStatic      bool
	Module        *ObjModule
}

func (f *ObjFunction) Kind() ObjKind { return KindFunction }

// upvalueDescriptor tells the VM, at closure-creation time, whether an
// upvalue slot should capture a local of the enclosing frame or reuse an
// upvalue already captured by the enclosing closure.
type upvalueDescriptor struct {
	FromLocal bool
	Index     int
}

// ObjClosure pairs a function prototype with its captured upvalues.
type ObjClosure struct {
	objHeader
	Function  *ObjFunction
	Upvalues  []*ObjUpvalue
}

func (c *ObjClosure) Kind() ObjKind { return KindClosure }

// NativeFn is the Go-side signature for a builtin callable: it receives
// the invoking State, the receiver (Null if free function) and argument
// slice, and returns a result or an error.
type NativeFn func(s *State, receiver Value, args []Value) (Value, error)

// ObjNative wraps a free native function (top-level builtin or stdlib
// export) as a first-class, callable Value.
type ObjNative struct {
	objHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNative) Kind() ObjKind { return KindNative }

// ObjNativeMethod wraps a native function bound as a class method.
type ObjNativeMethod struct {
	objHeader
	Name string
	Fn   NativeFn
}

func (n *ObjNativeMethod) Kind() ObjKind { return KindNativeMethod }

// ObjClass is a class object: a method table, an optional superclass,
// and static-field storage (lit_object.h's LitClass).
type ObjClass struct {
	objHeader
	Name        *ObjString
	Super       *ObjClass
	Methods     *Table
	StaticFields *Table
	Init        Value // cached constructor lookup, Null if none
	IsNative    bool  // core classes (Number, String, ...) can't be subclassed in user code

	// NativeConstructor builds a Go-backed value in place of a normal
	// ObjInstance (Fiber's `new Fiber(fn)`, lit_core.c's fiber constructor).
	// Nil for every native class that has no Ash-reachable constructor.
	NativeConstructor NativeFn
}

func (c *ObjClass) Kind() ObjKind { return KindClass }

func (c *ObjClass) ResolveMethod(name *ObjString) (Value, bool) {
	for class := c; class != nil; class = class.Super {
		if v, ok := class.Methods.Get(name); ok {
			return v, true
		}
	}
	return Value{}, false
}

// ObjInstance is a live object of some class, with a per-instance field
// table (lit_object.h's LitInstance).
type ObjInstance struct {
	objHeader
	Class  *ObjClass
	Fields *Table
}

func (i *ObjInstance) Kind() ObjKind { return KindInstance }

// ObjBoundMethod pairs a receiver with one of its class's methods,
// produced by OP_GET_FIELD/OP_GET_SUPER_METHOD when the field resolves
// to a method rather than an instance field.
type ObjBoundMethod struct {
	objHeader
	Receiver Value
	Method   Value // ObjClosure, ObjNativeMethod, or ObjFunction
}

func (b *ObjBoundMethod) Kind() ObjKind { return KindBoundMethod }

// ObjArray is a growable, zero-indexed sequence of Values.
type ObjArray struct {
	objHeader
	Elements []Value
}

func (a *ObjArray) Kind() ObjKind { return KindArray }

// ObjMap is an insertion-order-preserving string/value-keyed map. Keys
// are restricted to hashable primitives and interned strings, matching
// spec.md's Map semantics; the order slice keeps iteration deterministic.
type ObjMap struct {
	objHeader
	entries map[Value]Value
	order   []Value
}

func (m *ObjMap) Kind() ObjKind { return KindMap }

func NewObjMap() *ObjMap {
	return &ObjMap{entries: make(map[Value]Value)}
}

func (m *ObjMap) Get(key Value) (Value, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *ObjMap) Set(key, value Value) {
	if _, exists := m.entries[key]; !exists {
		m.order = append(m.order, key)
	}
	m.entries[key] = value
}

func (m *ObjMap) Delete(key Value) bool {
	if _, exists := m.entries[key]; !exists {
		return false
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if Equal(k, key) {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

func (m *ObjMap) Len() int { return len(m.entries) }

func (m *ObjMap) Keys() []Value { return m.order }

// ObjRange is a lazily-iterated inclusive/exclusive numeric range.
type ObjRange struct {
	objHeader
	From, To float64
	Inclusive bool
}

func (r *ObjRange) Kind() ObjKind { return KindRange }

// FiberState mirrors LitFiber's lifecycle (lit_object.h).
type FiberState byte

const (
	FiberOther FiberState = iota
	FiberRoot
	FiberTry
)

// CallFrame is one activation record on a fiber's call stack, grounded on
// lit_vm.c's LitCallFrame (closure/function, return ip, stack base slot).
type CallFrame struct {
	Closure   *ObjClosure
	Function  *ObjFunction // set directly for native-less calls without a closure wrapper
	IP        int
	StackBase int
	Module    *ObjModule
	ResultIgnored bool
}

// ObjFiber is a cooperative coroutine: its own value stack and call-frame
// stack, plus a parent link so `yield`/`yeet` can resume the caller.
type ObjFiber struct {
	objHeader
	ID          string
	Stack       []Value
	Frames      []CallFrame
	OpenUpvalues *ObjUpvalue
	Parent      *ObjFiber
	State       FiberState
	Started     bool
	Done        bool
	Aborted     bool
	ErrorValue  Value
	TryCatchers []tryCatcher
}

func (f *ObjFiber) Kind() ObjKind { return KindFiber }

type tryCatcher struct {
	FrameDepth int
	StackDepth int
	CatchIP    int
}

// NewFiber allocates a fresh fiber rooted at the given closure, ready to
// be resumed by run/try.
func NewFiber(closure *ObjClosure, parent *ObjFiber) *ObjFiber {
	f := &ObjFiber{
		ID:     uuid.NewString(),
		Stack:  make([]Value, 0, 256),
		Frames: make([]CallFrame, 0, 16),
		Parent: parent,
		State:  FiberOther,
	}
	f.Frames = append(f.Frames, CallFrame{Closure: closure, Function: closure.Function, StackBase: 0})
	return f
}

// ObjModule is a compiled source file's namespace: private (module-local)
// variables, their declared names for error messages, and the top-level
// closure that initializes them (lit_object.h's LitModule).
type ObjModule struct {
	objHeader
	Name         *ObjString
	Path         string
	Privates     []Value
	PrivateNames map[string]int
	MainFunction *ObjClosure
	ReturnValue  Value
	Ready        bool
}

func (m *ObjModule) Kind() ObjKind { return KindModule }

func (m *ObjModule) String() string {
	return fmt.Sprintf("<module %s>", m.Name.Chars)
}
