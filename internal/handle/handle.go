// Package handle provides RAII-style wrappers around the opaque handles
// the vendor SDK hands back from its create/open calls. Go has no
// destructors, so lifetime is explicit: every handle must be closed by
// its owner rather than relying on finalizers.
package handle

import "sync"

// Unique owns a single handle value and its destroyer. It is move-only
// in spirit: callers must not copy a *Unique, only pass the pointer.
// Close is idempotent.
type Unique[T any] struct {
	mu      sync.Mutex
	value   T
	valid   bool
	destroy func(T)
}

// NewUnique wraps value with a destroyer that runs exactly once, on the
// first Close call.
func NewUnique[T any](value T, destroy func(T)) *Unique[T] {
	return &Unique[T]{value: value, valid: true, destroy: destroy}
}

// Handle returns the wrapped value. The zero value is returned once the
// handle has been closed; callers that might race a Close must check
// Valid first.
func (u *Unique[T]) Handle() T {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.value
}

// Valid reports whether the handle has not yet been closed.
func (u *Unique[T]) Valid() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.valid
}

// Close runs the destroyer once and clears the handle.
func (u *Unique[T]) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.valid {
		return
	}
	u.valid = false
	if u.destroy != nil {
		u.destroy(u.value)
	}
	var zero T
	u.value = zero
}

// Shared is a reference-counted handle: the destroyer runs when the
// last sharer releases it. The SDK's device handles are shared this
// way across every context and memory map built from them (spec §4.A).
type Shared[T any] struct {
	mu      sync.Mutex
	value   T
	count   int
	destroy func(T)
}

// NewShared creates a shared handle with an initial refcount of 1.
func NewShared[T any](value T, destroy func(T)) *Shared[T] {
	return &Shared[T]{value: value, count: 1, destroy: destroy}
}

// Retain increments the refcount and returns the same handle, so callers
// can write `other := h.Retain()` to hand out a second owning reference.
func (s *Shared[T]) Retain() *Shared[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count > 0 {
		s.count++
	}
	return s
}

// Handle returns the wrapped value.
func (s *Shared[T]) Handle() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Release decrements the refcount, running the destroyer and returning
// true when this was the last reference.
func (s *Shared[T]) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return false
	}
	s.count--
	if s.count == 0 {
		if s.destroy != nil {
			s.destroy(s.value)
		}
		return true
	}
	return false
}

// Count reports the current refcount, for tests asserting §8 property 1.
func (s *Shared[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
