// Package eventloop implements the timed-callback queue lit_event.c
// calls out as an external collaborator (lit_register_event/
// lit_event_loop): register a callback with a millisecond delay, then
// drain the queue in expiry order, invoking each callback through
// State.Call. The original polls its linked list in a busy `while
// (events != NULL)` loop, calling millis() every iteration; this
// package instead keeps the pending callbacks in a container/heap
// ordered by expiry and sleeps until the next one is due, matching
// the teacher's internal/concurrency preference for condition-driven
// waits over busy polling. Fibers are cooperative and run on a single
// goroutine, so the loop is itself single-threaded: no callback runs
// concurrently with Ash code or with another callback.
package eventloop

import (
	"container/heap"
	"sync"
	"time"

	"ash/internal/vm"
)

// entry is one pending callback, ordered by expire.
type entry struct {
	expire   time.Time
	callback vm.Value
	index    int
}

type entryHeap []*entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].expire.Before(h[j].expire) }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i]; h[i].index, h[j].index = i, j }
func (h *entryHeap) Push(x interface{}) { e := x.(*entry); e.index = len(*h); *h = append(*h, e) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Loop holds the pending-callback queue for one interpreter State.
type Loop struct {
	state *vm.State

	mu      sync.Mutex
	pending entryHeap
	wake    chan struct{}
}

// New creates an empty loop bound to state. Register/Run operate on it;
// Install additionally exposes it to Ash code as the Timer class.
func New(state *vm.State) *Loop {
	return &Loop{state: state, wake: make(chan struct{}, 1)}
}

// Register schedules callback to run after delayMillis have elapsed,
// grounded on lit_register_event's (callback, delay) signature.
func (l *Loop) Register(callback vm.Value, delayMillis float64) {
	if delayMillis < 0 {
		delayMillis = 0
	}
	l.mu.Lock()
	heap.Push(&l.pending, &entry{
		expire:   time.Now().Add(time.Duration(delayMillis * float64(time.Millisecond))),
		callback: callback,
	})
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending reports whether any callback is still queued.
func (l *Loop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending) > 0
}

// Run drains the queue in expiry order, invoking each callback via
// State.Call, until empty — mirroring lit_event_loop's `while (events !=
// NULL)` but callbacks registered from within a callback (Timer.add
// called by a running timer) are picked up too, since Register wakes a
// blocked Run.
func (l *Loop) Run() error {
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return nil
		}
		next := l.pending[0]
		wait := time.Until(next.expire)
		l.mu.Unlock()

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-l.wake:
				timer.Stop()
			}
			continue
		}

		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			continue
		}
		due := heap.Pop(&l.pending).(*entry)
		l.mu.Unlock()

		if _, err := l.state.Call(due.callback, nil); err != nil {
			return err
		}
	}
}

// Install registers the Timer class, whose single static method
// (`add`) is grounded on lit_time.c's timer_add: validate a callable
// first argument and a numeric delay, then hand both to Register.
func Install(s *vm.State, loop *Loop) {
	class := s.NewClass("Timer", nil)
	class.IsNative = true
	class.StaticFields.Set(s.Intern("add"), s.NewNativeMethod("add", func(state *vm.State, _ vm.Value, args []vm.Value) (vm.Value, error) {
		if len(args) < 1 || !args[0].IsCallable() {
			return vm.Value{}, state.RuntimeError("Timer.add expects a function as the callback")
		}
		delay, err := state.CheckNumber(args, 1, "Timer.add")
		if err != nil {
			return vm.Value{}, err
		}
		loop.Register(args[0], delay)
		return vm.Null, nil
	}))
	s.DefineGlobal("Timer", vm.ObjectValue(class))
}
