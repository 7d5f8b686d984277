// Package dcontext implements the context base (spec §4.F): the shared
// idle/starting/running/stopping state machine every offload context
// and connection object builds on. It is grounded on
// original_source/doca/context.{hpp,cpp}'s state machine and the
// teacher's lifecycle bookkeeping in internal/ctrl (open/close guarded
// by a state field under a mutex).
package dcontext

import (
	"context"
	"sync"

	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/logging"
)

// State is one position in the idle -> starting -> running -> stopping
// -> idle cycle (spec §4.B/§4.F).
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Parent is implemented by whatever owns a context: either another
// context (nested offload contexts, connections owned by a comch
// server) or the Engine itself for top-level contexts.
type Parent interface {
	// SignalStoppedChild is called exactly once, when a child context has
	// fully unwound back to idle, so the parent can drop it from its
	// registry and, if it was itself stopping and is now childless,
	// continue its own shutdown.
	SignalStoppedChild(child Context)
	Engine() *engine.Engine
}

// Context is the behavior every offload context, connection, and server
// shares: start, stop, and state inspection.
type Context interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	State() State
	RequestStop()
	Stopped() bool
}

// SDKHooks are the concrete context's bindings into its underlying SDK
// object: StartFn arms the SDK context and (per spec §4.F) may complete
// synchronously or asynchronously via an engine callback; StopFn mirrors
// this for teardown. Either may be nil for contexts with no SDK-side
// start/stop work beyond their children's.
type SDKHooks struct {
	StartFn func() awaitable.Value[struct{}]
	StopFn  func() awaitable.Value[struct{}]
}

// Base implements Context and is embedded by every concrete offload
// context and connection type. It owns the state machine, the child
// registry, and the coroutine-handle-shaped receptacle fields spec §9
// describes for in-flight start/stop awaits.
type Base struct {
	name   string
	log    *logging.Logger
	parent Parent
	eng    *engine.Engine
	hooks  SDKHooks

	mu       sync.Mutex
	state    State
	children *ChildRegistry
	idleCh   chan struct{}

	stopRequested bool
}

// NewBase constructs a context base. parent may be nil for a top-level
// context, in which case eng must be non-nil and the base registers
// itself directly with the engine instead of a parent context.
func NewBase(name string, parent Parent, eng *engine.Engine, hooks SDKHooks) *Base {
	if parent != nil {
		eng = parent.Engine()
	}
	b := &Base{
		name:     name,
		log:      eng.Logger().With("context", name),
		parent:   parent,
		eng:      eng,
		hooks:    hooks,
		state:    StateIdle,
		children: NewChildRegistry(),
	}
	return b
}

// Name returns the context's diagnostic name.
func (b *Base) Name() string { return b.name }

// Logger returns the context's bound logger, for concrete context types
// to reuse when logging their own task submissions.
func (b *Base) Logger() *logging.Logger { return b.log }

// Engine returns the engine this context (and transitively, its
// children) runs on.
func (b *Base) Engine() *engine.Engine { return b.eng }

// State reports the current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stopped reports whether the context has unwound back to idle after a
// stop request, satisfying engine.Stoppable for top-level registration.
func (b *Base) Stopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateIdle && b.stopRequested
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Children exposes the child registry for concrete context types that
// host nested contexts (e.g. a comch server owning connections).
func (b *Base) Children() *ChildRegistry { return b.children }

// Start transitions idle -> starting -> running, invoking the SDK start
// hook if present and waiting for it to resolve. Starting a context that
// is not idle is a bad-state error.
func (b *Base) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		b.mu.Unlock()
		return badState("context.Start", "context is not idle")
	}
	b.state = StateStarting
	b.idleCh = make(chan struct{})
	b.mu.Unlock()

	if b.parent != nil {
		// no-op placeholder: nested contexts are registered by their
		// owner after construction, not here, since the owner decides
		// the child-registry key (e.g. connection id).
	} else {
		b.eng.RegisterChild(b)
	}

	if b.hooks.StartFn != nil {
		if _, err := b.hooks.StartFn().Await(ctx); err != nil {
			b.setState(StateIdle)
			return err
		}
	}

	b.setState(StateRunning)
	b.log.Debug("context started")
	return nil
}

// RequestStop begins an asynchronous transition toward idle: it marks
// the context stopping, asks every child to stop, and if there were no
// children to begin with, immediately invokes the SDK stop hook. It
// never blocks; callers that need to observe completion use Stop.
func (b *Base) RequestStop() {
	b.mu.Lock()
	if b.state == StateIdle || b.state == StateStopping {
		b.mu.Unlock()
		return
	}
	b.state = StateStopping
	b.stopRequested = true
	b.mu.Unlock()

	b.log.Debug("context stopping")

	if b.children.Empty() {
		b.finishStop()
		return
	}
	b.children.StopAll()
}

// SignalStoppedChild implements the ChildRegistry callback wired by
// concrete context types that host children: once the last child drains,
// and this context itself is stopping, finish its own teardown.
func (b *Base) SignalStoppedChild(child Context) {
	b.children.Unregister(child)
	b.mu.Lock()
	stopping := b.state == StateStopping
	empty := b.children.Empty()
	b.mu.Unlock()
	if stopping && empty {
		b.finishStop()
	}
}

func (b *Base) finishStop() {
	var stopAwait awaitable.Value[struct{}]
	if b.hooks.StopFn != nil {
		stopAwait = b.hooks.StopFn()
	} else {
		stopAwait = awaitable.FromValue(struct{}{})
	}

	go func() {
		// The await itself may legitimately take a full progress-engine
		// cycle; run it off the calling goroutine so RequestStop (and its
		// caller, often a parent's own finishStop) never blocks.
		_, err := stopAwait.Await(context.Background())
		if err != nil {
			b.log.Error("context stop hook failed", "error", err)
		}

		b.mu.Lock()
		b.state = StateIdle
		idleCh := b.idleCh
		b.mu.Unlock()
		close(idleCh)
		b.log.Debug("context stopped")

		// Per the source's ordering rule: drop this context's own
		// in-flight handle before notifying the parent, so a parent that
		// synchronously inspects us from within SignalStoppedChild never
		// observes a context that looks like it is still stopping.
		parent := b.parent
		eng := b.eng
		if parent != nil {
			parent.SignalStoppedChild(b)
		} else {
			eng.UnregisterChild(b)
		}
	}()
}

// Stop requests a stop and blocks until the context reaches idle or ctx
// is done.
func (b *Base) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateIdle {
		b.mu.Unlock()
		return nil
	}
	idleCh := b.idleCh
	b.mu.Unlock()

	b.RequestStop()
	select {
	case <-idleCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
