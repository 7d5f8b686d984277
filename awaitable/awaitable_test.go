package awaitable

import (
	"context"
	"testing"
	"time"
)

func TestFromValueIsImmediatelyReady(t *testing.T) {
	a := FromValue(42)
	if !a.Ready() {
		t.Fatal("expected FromValue awaitable to be ready")
	}
	v, err := a.Await(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestFromErrorResolvesWithError(t *testing.T) {
	sentinel := plainError("boom")
	a := FromError[int](sentinel)
	_, err := a.Await(context.Background())
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}

func TestCreateSpaceBlocksUntilResumed(t *testing.T) {
	a, r := CreateSpace[string]()
	if a.Ready() {
		t.Fatal("expected fresh space to be unready")
	}

	done := make(chan struct{})
	var got string
	var gotErr error
	go func() {
		got, gotErr = a.Await(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	r.SetValue("pong")
	r.Resume()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Resume")
	}
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if got != "pong" {
		t.Fatalf("expected pong, got %q", got)
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	a, _ := CreateSpace[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Await(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestSecondWaiterObservesInUse(t *testing.T) {
	a, _ := CreateSpace[int]()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_, _ = a.Await(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	_, err := a.Await(context.Background())
	if err != errInUse {
		t.Fatalf("expected errInUse, got %v", err)
	}
}

func TestResumeIsIdempotent(t *testing.T) {
	_, r := CreateSpace[int]()
	r.SetValue(1)
	r.Resume()
	r.Resume() // must not panic on double-close
}

func TestSetValueAfterErrorIsNoOp(t *testing.T) {
	a, r := CreateSpace[int]()
	r.SetError(plainError("first"))
	r.SetValue(99)
	r.Resume()

	_, err := a.Await(context.Background())
	if err == nil || err.Error() != "first" {
		t.Fatalf("expected first error to win, got %v", err)
	}
}
