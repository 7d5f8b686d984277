// Package engine implements the progress engine (spec §4.E): the
// single-threaded cooperative driver that owns the SDK's event engine
// handle, integrates with an external executor via a notification
// primitive, and schedules task submission/retry. It is grounded on
// original_source/doca/progress_engine.{hpp,cpp}'s main loop and on the
// teacher's Runner.ioLoop/processRequests batched drain-then-flush
// shape (internal/queue/runner.go in the pack).
package engine

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/behrlich/go-doca/internal/logging"
)

// SDK is the vendor collaborator contract from spec §6: a notification
// primitive, arm/clear functions, and a progress function that drains
// pending completions. In production this would be backed by the real
// vendor SDK; internal/sdkstub provides a stand-in for tests.
type SDK interface {
	ArmNotification() error
	ClearNotification() error
	// Progress runs one pass of callback dispatch, returning whether any
	// work was done (so the caller knows whether to loop again before
	// re-arming).
	Progress() (didWork bool, err error)
	// Notify returns the channel the engine selects on to learn the
	// notification FD is readable, simulating wait_readable on a real FD.
	Notify() <-chan struct{}
}

// Stoppable is satisfied by any top-level context the engine schedules.
// Defined here (rather than imported from dcontext) so engine has no
// dependency on the context package — dcontext depends on engine, not
// the other way around.
type Stoppable interface {
	RequestStop()
	Stopped() bool
}

// Config configures the engine's retry ladder (spec §4.E submit_task)
// and logging.
type Config struct {
	ImmediateSubmissionAttempts int
	ResubmissionAttempts        int
	ResubmissionInterval        time.Duration
	Logger                      *logging.Logger
	Observer                    Observer
}

// Observer receives submission/task events; kept as a narrow interface
// here (rather than importing the root package's Observer) to avoid an
// import cycle, and satisfied directly by doca.MetricsObserver, whose
// ObserveSubmit/ObserveTask methods have these signatures.
type Observer interface {
	ObserveSubmit(resubmit bool)
	ObserveTask(latencyNs uint64, success bool)
}

func (c *Config) withDefaults() *Config {
	cfg := *c
	if cfg.ImmediateSubmissionAttempts == 0 {
		cfg.ImmediateSubmissionAttempts = 1
	}
	if cfg.ResubmissionAttempts == 0 {
		cfg.ResubmissionAttempts = 3
	}
	if cfg.ResubmissionInterval == 0 {
		cfg.ResubmissionInterval = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = noOpObserver{}
	}
	return &cfg
}

type noOpObserver struct{}

func (noOpObserver) ObserveSubmit(bool)       {}
func (noOpObserver) ObserveTask(uint64, bool) {}

// AgainFactory lets the root package install the *doca.Error value the
// engine compares submission failures against, so "again" detection
// uses the module's own error taxonomy rather than a package-local
// sentinel.
var AgainFactory = func() error { return plainErr("again") }

type plainErr string

func (e plainErr) Error() string { return string(e) }

// IsAgainFunc is called to classify a submission error as transient
// backpressure (true) or terminal (false). The root package installs an
// errors.Is-based implementation once the Error/Kind taxonomy exists.
var IsAgainFunc = func(err error) bool { return err == AgainFactory() }

// Engine drives one SDK event engine. It is never shared across
// goroutines for submission or progress purposes — every method that
// touches the SDK is expected to run on the single goroutine that calls
// Run, matching spec §5's single-threaded cooperative model.
type Engine struct {
	cfg *Config
	sdk SDK

	mu       sync.Mutex
	children map[Stoppable]struct{}
}

// New constructs an engine bound to sdk.
func New(sdk SDK, cfg Config) *Engine {
	return &Engine{sdk: sdk, cfg: cfg.withDefaults(), children: map[Stoppable]struct{}{}}
}

// Logger returns the engine's configured logger, for contexts built on
// top of it to reuse rather than constructing their own.
func (e *Engine) Logger() *logging.Logger { return e.cfg.Logger }

// RegisterChild adds a top-level context to the engine's child set; the
// main loop runs as long as this set is non-empty.
func (e *Engine) RegisterChild(c Stoppable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children[c] = struct{}{}
}

// UnregisterChild removes a context once it has reached idle.
func (e *Engine) UnregisterChild(c Stoppable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.children, c)
}

func (e *Engine) childrenEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.children) == 0
}

func (e *Engine) snapshotChildren() []Stoppable {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Stoppable, 0, len(e.children))
	for c := range e.children {
		out = append(out, c)
	}
	return out
}

// Run is the main loop from spec §4.E: while children remain, arm
// notification, wait for readiness (or ctx cancellation), clear, then
// drain Progress until it reports no work, and repeat. Arm/clear are
// strictly paired around the readiness wait so no progress call happens
// between them except on the readiness edge itself, or spurious
// wakeups could be missed.
func (e *Engine) Run(ctx context.Context) error {
	for !e.childrenEmpty() {
		if err := e.sdk.ArmNotification(); err != nil {
			return err
		}

		select {
		case <-e.sdk.Notify():
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := e.sdk.ClearNotification(); err != nil {
			return err
		}

		for {
			didWork, err := e.sdk.Progress()
			if err != nil {
				return err
			}
			if !didWork {
				break
			}
		}
	}
	return nil
}

// Stop asks every registered top-level context to stop and drains
// progress until they are gone or ctx is done, matching spec §4.E's
// destruction behavior: the engine cannot cancel in-flight SDK tasks, it
// can only ask contexts to stop and keep draining until they confirm.
func (e *Engine) Stop(ctx context.Context) error {
	children := e.snapshotChildren()
	if len(children) == 0 {
		return nil
	}
	e.cfg.Logger.Warn("progress engine stopping with children still registered", "count", len(children))
	for _, c := range children {
		c.RequestStop()
	}

	for !e.childrenEmpty() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if _, err := e.sdk.Progress(); err != nil {
			return err
		}
	}
	return nil
}

// SubmitTask implements the retry/backpressure ladder from spec §4.E:
// up to ImmediateSubmissionAttempts synchronous tries, then up to
// ResubmissionAttempts more spaced by ResubmissionInterval, failing with
// the last underlying error once both ladders are exhausted. submit
// should attempt the SDK submission call and return AgainFactory()-class
// errors on transient backpressure.
func (e *Engine) SubmitTask(ctx context.Context, submit func() error) error {
	var err error

	for i := 0; i < e.cfg.ImmediateSubmissionAttempts; i++ {
		e.cfg.Observer.ObserveSubmit(i > 0)
		err = submit()
		if !IsAgainFunc(err) {
			return err
		}
	}

	for i := 0; i < e.cfg.ResubmissionAttempts; i++ {
		select {
		case <-time.After(e.cfg.ResubmissionInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
		e.cfg.Observer.ObserveSubmit(true)
		err = submit()
		if !IsAgainFunc(err) {
			return err
		}
	}

	return err
}

// Yield returns a channel that becomes ready on the next scheduling
// quantum, the Go analogue of yield(): it re-posts the caller without
// handing control to the SDK, used to break up long coroutine-like
// chains of awaits.
func (e *Engine) Yield() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		runtime.Gosched()
		close(ch)
	}()
	return ch
}

// Timeout returns a channel that closes after d, the Go analogue of
// timeout(d) built on the executor's timer facility.
func (e *Engine) Timeout(d time.Duration) <-chan struct{} {
	ch := make(chan struct{})
	time.AfterFunc(d, func() { close(ch) })
	return ch
}
