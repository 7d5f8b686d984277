package compress

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
	inv := devsim.NewBufferInventory(2)
	b, err := inv.GetByAddr(mm, 0, size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestCompressDecompressRoundTrip(t *testing.T) {
	eng := engine.New(newStubSDK(), engine.Config{})
	var gotDone Result
	c := New(nil, eng, Callbacks{OnCompressDone: func(r Result) { gotDone = r }})

	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to build up redundancy")
	src := newBuffer(t, len(payload))
	copy(src.Data(), payload)
	dest := newBuffer(t, len(payload)*2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Compress(ctx, src, dest)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.CRC == 0 {
		t.Fatal("expected non-zero CRC")
	}
	if gotDone.CRC != res.CRC {
		t.Fatal("expected OnCompressDone callback to observe the same result")
	}

	compressedLen := len(dest.Data())
	compressedCopy := append([]byte(nil), dest.Data()...)
	compressedSrc := newBuffer(t, compressedLen)
	copy(compressedSrc.Data(), compressedCopy)

	out := newBuffer(t, len(payload)*2)
	gotResult, err := c.Decompress(ctx, compressedSrc, out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out.Data()) != string(payload) {
		t.Fatalf("expected round trip to recover original payload, got %q", out.Data())
	}
	if gotResult.CRC != res.CRC {
		t.Fatalf("expected compress and decompress CRC to match for a round trip: compress=%d decompress=%d", res.CRC, gotResult.CRC)
	}
	if gotResult.Adler != res.Adler {
		t.Fatalf("expected compress and decompress Adler checksum to match for a round trip: compress=%d decompress=%d", res.Adler, gotResult.Adler)
	}
}
