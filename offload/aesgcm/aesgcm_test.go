package aesgcm

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

func TestEncryptDecryptRoundTrip(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})
	c := New(nil, eng)

	key, err := NewKey(make([]byte, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	iv := make([]byte, 12)

	plaintext := newBuffer(t, 32)
	copy(plaintext.Data(), []byte("top secret offload payload!!!!"))
	sealed := newBuffer(t, 64)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := c.Encrypt(ctx, plaintext, sealed, key, iv, 16, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	opened := newBuffer(t, 64)
	if err := c.Decrypt(ctx, sealed, opened, key, iv, 16, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(opened.Data()) != "top secret offload payload!!!!" {
		t.Fatalf("expected round trip to recover plaintext, got %q", opened.Data())
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})
	c := New(nil, eng)
	key, _ := NewKey(make([]byte, 16))
	iv := make([]byte, 12)

	plaintext := newBuffer(t, 16)
	copy(plaintext.Data(), []byte("0123456789abcdef"))
	sealed := newBuffer(t, 48)

	ctx := context.Background()
	if err := c.Encrypt(ctx, plaintext, sealed, key, iv, 16, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sealed.Data()[0] ^= 0xFF

	opened := newBuffer(t, 48)
	if err := c.Decrypt(ctx, sealed, opened, key, iv, 16, nil); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}
