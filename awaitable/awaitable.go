// Package awaitable provides the Go re-architecture of the SDK wrapper's
// C++ coroutine awaitables (spec §4.D, §9 DESIGN NOTES). A Receptacle is
// the heap-allocated meeting point between a completion callback and at
// most one waiter; a Value[T] is the awaitable handle around it. Where
// the source suspends a coroutine by storing its handle in the
// receptacle, this package blocks a goroutine on a channel close — the
// same "resume a saved continuation" shape, expressed without
// co_await/co_return.
package awaitable

import (
	"context"
	"sync"
)

type state int

const (
	empty state = iota
	hasValue
	hasError
)

// Receptacle is the union of {empty, value, error} plus at most one
// waiter, matching spec §3's description exactly. It is always
// heap-allocated (a plain *Receptacle, never copied) so its address
// remains stable while packed into SDK task user-data.
type Receptacle[T any] struct {
	mu        sync.Mutex
	state     state
	value     T
	err       error
	waiting   bool
	done      chan struct{}
}

// NewReceptacle returns an empty receptacle ready to be registered as
// task user-data or queued on an accepter queue.
func NewReceptacle[T any]() *Receptacle[T] {
	return &Receptacle[T]{done: make(chan struct{})}
}

// SetValue stores a value outcome. Calling it more than once, or after
// SetError, is a no-op: per spec §3, "once value or error is set,
// subsequent resumes are no-ops."
func (r *Receptacle[T]) SetValue(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != empty {
		return
	}
	r.value = v
	r.state = hasValue
}

// SetError stores an error outcome, with the same once-only discipline
// as SetValue.
func (r *Receptacle[T]) SetError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != empty {
		return
	}
	r.err = err
	r.state = hasError
}

// Resume fires the completion signal. It is safe to call even if no
// waiter ever registers (the SDK callback always calls it; a dropped
// awaitable simply never observes the close) and safe to call more than
// once — only the first call has any effect, matching the union's
// resume-is-a-no-op-once-closed behavior in the source.
func (r *Receptacle[T]) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
		return
	default:
		close(r.done)
	}
}

// registerWaiter marks the receptacle as having a waiter, returning
// ErrInUse if one is already registered. This is the Go expression of
// spec §4.D's await_suspend failing with *in-use*.
func (r *Receptacle[T]) registerWaiter() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting {
		return errInUse
	}
	r.waiting = true
	return nil
}

func (r *Receptacle[T]) snapshot() (state, T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.value, r.err
}

// errInUse and errEmpty are defined with the doca.Kind taxonomy via an
// indirection (errFactory) so this low-level package does not import
// the root module and create an import cycle; the root package installs
// the real factory in its init.
type plainError string

func (e plainError) Error() string { return string(e) }

var errFactory = func(kind string, msg string) error { return plainError(kind + ": " + msg) }

var (
	errInUse = errFactory("in-use", "a waiter is already registered on this receptacle")
	errEmpty = errFactory("empty", "receptacle resumed with no value or error set")
)

// SetErrorFactory lets the root doca package install constructors that
// produce *doca.Error values with the correct Kind, so callers of this
// package see the same error type everywhere. Called once from an init
// in the root package.
func SetErrorFactory(f func(kind string, msg string) error) {
	errFactory = f
	errInUse = errFactory("in-use", "a waiter is already registered on this receptacle")
	errEmpty = errFactory("empty", "receptacle resumed with no value or error set")
}

// Value is the Go analogue of value_awaitable<T>: a single-shot handle
// around a *Receptacle[T].
type Value[T any] struct {
	r *Receptacle[T]
}

// CreateSpace allocates a fresh, empty receptacle and returns both the
// awaitable and the receptacle pointer — the pointer is what gets
// packed as SDK task user-data so a later callback can complete it.
func CreateSpace[T any]() (Value[T], *Receptacle[T]) {
	r := NewReceptacle[T]()
	return Value[T]{r: r}, r
}

// FromValue produces an already-ready awaitable, for synchronous
// success paths (e.g. a cached message already queued).
func FromValue[T any](v T) Value[T] {
	r := NewReceptacle[T]()
	r.SetValue(v)
	r.Resume()
	return Value[T]{r: r}
}

// FromError produces an already-ready awaitable carrying an error, for
// synchronous failure paths (e.g. send on a disconnected connection).
func FromError[T any](err error) Value[T] {
	r := NewReceptacle[T]()
	r.SetError(err)
	r.Resume()
	return Value[T]{r: r}
}

// Ready reports whether the awaitable's outcome is already available,
// the Go equivalent of await_ready.
func (a Value[T]) Ready() bool {
	st, _, _ := a.r.snapshot()
	return st != empty
}

// Receptacle exposes the backing receptacle, for callers (accepter
// queues, task adapters) that need to hand its pointer to a callback
// before the awaitable is returned.
func (a Value[T]) Receptacle() *Receptacle[T] {
	return a.r
}

// Await blocks until the receptacle is resolved or ctx is done. Calling
// Await twice concurrently on the same awaitable is the at-most-one-
// waiter violation from §8 property 3 and returns ErrInUse from the
// second caller; calling Await again sequentially after it has returned
// a value or an error is fine since the receptacle is already non-empty
// and the fast path never touches the waiter flag. An Await that
// returned because ctx was done leaves the waiter flag set, so a later
// Await on the still-empty receptacle returns ErrInUse.
func (a Value[T]) Await(ctx context.Context) (T, error) {
	if st, v, err := a.r.snapshot(); st != empty {
		if st == hasError {
			var zero T
			return zero, err
		}
		return v, nil
	}

	if err := a.r.registerWaiter(); err != nil {
		var zero T
		return zero, err
	}

	select {
	case <-a.r.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}

	st, v, err := a.r.snapshot()
	if st == empty {
		var zero T
		return zero, errEmpty
	}
	if st == hasError {
		var zero T
		return zero, err
	}
	return v, nil
}
