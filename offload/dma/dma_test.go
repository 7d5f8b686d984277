package dma

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
)

type stubSDK struct{ notify chan struct{} }

func newStubSDK() *stubSDK                  { return &stubSDK{notify: make(chan struct{}, 1)} }
func (s *stubSDK) ArmNotification() error   { return nil }
func (s *stubSDK) ClearNotification() error { return nil }
func (s *stubSDK) Progress() (bool, error)  { return false, nil }
func (s *stubSDK) Notify() <-chan struct{}  { return s.notify }

func newBuffer(t *testing.T, size int) *devsim.Buffer {
	t.Helper()
	mm := devsim.NewMemoryMap(make([]byte, size), devsim.PermRead|devsim.PermWrite)
	if err := mm.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := devsim.NewBufferInventory(1)
	b, err := inv.GetByAddr(mm, 0, size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestMemcpyHostToDPU(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})
	c := New(nil, eng)

	src := newBuffer(t, 16)
	copy(src.Data(), []byte("0123456789abcdef"))
	dest := newBuffer(t, 32)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Memcpy(ctx, src, dest); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(dest.Data()) != "0123456789abcdef" {
		t.Fatalf("expected dest to contain copied data, got %q", dest.Data())
	}
}
