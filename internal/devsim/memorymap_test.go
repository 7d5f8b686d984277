package devsim

import "testing"

func TestMemoryMapStartPinsAndCloseReleases(t *testing.T) {
	mm, err := NewPinnedMemoryMap(4096, PermRead|PermWrite)
	if err != nil {
		t.Fatalf("new pinned memory map: %v", err)
	}
	if err := mm.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(mm.Span()) != 4096 {
		t.Fatalf("expected span of 4096, got %d", len(mm.Span()))
	}
	copy(mm.Span(), []byte("pinned"))
	if string(mm.Span()[:6]) != "pinned" {
		t.Fatalf("expected writable mmap'd region")
	}
	if err := mm.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestMemoryMapAddDeviceAfterStartFails(t *testing.T) {
	mm := NewMemoryMap(make([]byte, 64), PermRead)
	if err := mm.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := mm.AddDevice(nil); err == nil {
		t.Fatal("expected error adding a device after start")
	}
}
