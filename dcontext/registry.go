package dcontext

import "sync"

// ChildRegistry tracks the nested contexts a parent context (or the
// engine, for top-level contexts) owns, grounded on
// original_source/doca/context.cpp's child bookkeeping set.
type ChildRegistry struct {
	mu       sync.Mutex
	children map[Context]struct{}
}

// NewChildRegistry returns an empty registry.
func NewChildRegistry() *ChildRegistry {
	return &ChildRegistry{children: map[Context]struct{}{}}
}

// Register adds a child.
func (r *ChildRegistry) Register(c Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.children[c] = struct{}{}
}

// Unregister removes a child, if present. A child registered under a
// type that embeds *Base is also matched by that *Base, which is what
// Base passes to its parent's SignalStoppedChild.
func (r *ChildRegistry) Unregister(c Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.children {
		e, ok := k.(interface{ embeddedBase() *Base })
		if k == c || (ok && Context(e.embeddedBase()) == c) {
			delete(r.children, k)
		}
	}
}

func (b *Base) embeddedBase() *Base { return b }

// Empty reports whether no children remain.
func (r *ChildRegistry) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.children) == 0
}

// StopAll requests every child to stop. It does not wait for them; each
// child will call back into its parent's SignalStoppedChild once idle.
func (r *ChildRegistry) StopAll() {
	r.mu.Lock()
	children := make([]Context, 0, len(r.children))
	for c := range r.children {
		children = append(children, c)
	}
	r.mu.Unlock()

	for _, c := range children {
		c.RequestStop()
	}
}
