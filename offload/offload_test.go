package offload

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/go-doca/engine"
)

type stubSDK struct{ notify chan struct{} }

func newStubSDK() *stubSDK                  { return &stubSDK{notify: make(chan struct{}, 1)} }
func (s *stubSDK) ArmNotification() error   { return nil }
func (s *stubSDK) ClearNotification() error { return nil }
func (s *stubSDK) Progress() (bool, error)  { return false, nil }
func (s *stubSDK) Notify() <-chan struct{}  { return s.notify }

type result struct {
	checksum uint32
}

func TestSubmitAndCompleteRoundTrip(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})

	var capturedUserData uintptr
	v, err := Submit[result](context.Background(), eng, func(userData uintptr) error {
		capturedUserData = userData
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	freed := false
	go func() {
		r := UserDataToReceptacle[result](capturedUserData)
		Complete(r, func() { freed = true }, result{checksum: 42}, nil)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	res, err := v.Await(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.checksum != 42 {
		t.Fatalf("expected checksum 42, got %d", res.checksum)
	}
	if !freed {
		t.Fatal("expected free callback to run before resume observed")
	}
}

func TestCompleteWithErrorResolvesAwaitWithError(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})

	var capturedUserData uintptr
	v, err := Submit[result](context.Background(), eng, func(userData uintptr) error {
		capturedUserData = userData
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantErr := errTaskFailed{}
	go func() {
		r := UserDataToReceptacle[result](capturedUserData)
		Complete(r, nil, result{}, wantErr)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := v.Await(ctx); err != wantErr {
		t.Fatalf("expected wantErr, got %v", err)
	}
}

type errTaskFailed struct{}

func (errTaskFailed) Error() string { return "task failed" }
