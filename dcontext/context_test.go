package dcontext

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/engine"
)

type stubSDK struct{ notify chan struct{} }

func newStubSDK() *stubSDK                  { return &stubSDK{notify: make(chan struct{}, 1)} }
func (s *stubSDK) ArmNotification() error   { return nil }
func (s *stubSDK) ClearNotification() error { return nil }
func (s *stubSDK) Progress() (bool, error)  { return false, nil }
func (s *stubSDK) Notify() <-chan struct{}  { return s.notify }

func newTestEngine() *engine.Engine {
	return engine.New(newStubSDK(), engine.Config{})
}

func TestStartTransitionsIdleToRunning(t *testing.T) {
	eng := newTestEngine()
	b := NewBase("test", nil, eng, SDKHooks{})

	if b.State() != StateIdle {
		t.Fatalf("expected initial state idle, got %s", b.State())
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateRunning {
		t.Fatalf("expected running after start, got %s", b.State())
	}
}

func TestStartTwiceFailsBadState(t *testing.T) {
	eng := newTestEngine()
	b := NewBase("test", nil, eng, SDKHooks{})
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.Start(context.Background()); err == nil {
		t.Fatal("expected starting a running context to fail")
	}
}

func TestStopWithNoChildrenReachesIdle(t *testing.T) {
	eng := newTestEngine()
	stopped := make(chan struct{})
	hooks := SDKHooks{
		StopFn: func() awaitable.Value[struct{}] {
			close(stopped)
			return awaitable.FromValue(struct{}{})
		},
	}
	b := NewBase("test", nil, eng, hooks)
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := b.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateIdle {
		t.Fatalf("expected idle after stop, got %s", b.State())
	}
	select {
	case <-stopped:
	default:
		t.Fatal("expected stop hook to have run")
	}
}

func TestParentStopsOnlyAfterChildrenDrain(t *testing.T) {
	eng := newTestEngine()
	parent := NewBase("parent", nil, eng, SDKHooks{})
	if err := parent.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child := NewBase("child", parent, eng, SDKHooks{})
	parent.Children().Register(child)
	if err := child.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := parent.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if parent.State() != StateIdle {
		t.Fatalf("expected parent idle, got %s", parent.State())
	}
	if child.State() != StateIdle {
		t.Fatalf("expected child idle, got %s", child.State())
	}
}

func TestRequestStopIsIdempotent(t *testing.T) {
	eng := newTestEngine()
	b := NewBase("test", nil, eng, SDKHooks{})
	_ = b.Start(context.Background())
	b.RequestStop()
	b.RequestStop()
	time.Sleep(10 * time.Millisecond)
	if b.State() != StateIdle {
		t.Fatalf("expected idle, got %s", b.State())
	}
}
