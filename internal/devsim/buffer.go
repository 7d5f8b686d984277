package devsim

import (
	"sync"
	"sync/atomic"
)

// Buffer is a reference-counted view into a MemoryMap region (spec §3).
// It carries a memory region (head..tail, set at acquisition) and a
// nested data region (offset, length) inside it. Per spec §4.A, the SDK
// documents its native refcount operations as not thread-safe, so this
// wrapper never touches the shared counter from arbitrary goroutines —
// by construction every Buffer method here is only ever called from the
// progress engine's single executor goroutine, the same discipline
// original_source/doca/buffer.cpp enforces by using a shared_ptr with a
// custom decrement-on-drop deleter instead of calling the SDK's
// inc/dec-refcount directly.
type Buffer struct {
	inv    *BufferInventory
	mm     *MemoryMap
	memOff int
	memLen int

	mu      sync.Mutex
	dataOff int
	dataLen int
	cleared bool

	rc *int32
}

// Memory returns the buffer's outer (head..tail) region.
func (b *Buffer) Memory() []byte {
	return b.mm.data[b.memOff : b.memOff+b.memLen]
}

// Data returns the buffer's inner (offset, length) region, which must
// stay within the memory region (spec §3 invariant).
func (b *Buffer) Data() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	start := b.memOff + b.dataOff
	return b.mm.data[start : start+b.dataLen]
}

// SetData narrows or widens the data region without reallocating,
// returning the previous (offset, length) so callers can restore it.
func (b *Buffer) SetData(dataOffset, dataLen int) (prevOffset, prevLen int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if dataOffset < 0 || dataOffset+dataLen > b.memLen {
		return 0, 0, ErrBadStateFactory("buffer.SetData", "data region escapes memory region")
	}
	prevOffset, prevLen = b.dataOff, b.dataLen
	b.dataOff, b.dataLen = dataOffset, dataLen
	return prevOffset, prevLen, nil
}

// Dup duplicates the buffer, incrementing the shared refcount. The
// returned Buffer is an independent handle into the same underlying
// slot; dropping either (via Clear) only returns the slot to the
// inventory once both have been cleared.
func (b *Buffer) Dup() *Buffer {
	atomic.AddInt32(b.rc, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Buffer{
		inv: b.inv, mm: b.mm,
		memOff: b.memOff, memLen: b.memLen,
		dataOff: b.dataOff, dataLen: b.dataLen,
		rc: b.rc,
	}
}

// Clear releases this handle's reference early, mirroring
// buffer::clear()'s ref_.reset(). It is idempotent per handle: clearing
// an already-cleared Buffer is a no-op, matching a shared_ptr whose
// pointer has already been reset to null.
func (b *Buffer) Clear() {
	b.mu.Lock()
	if b.cleared {
		b.mu.Unlock()
		return
	}
	b.cleared = true
	b.mu.Unlock()

	if atomic.AddInt32(b.rc, -1) == 0 {
		b.inv.release()
	}
}

// BufferInventory is the simulated analogue of doca_buf_inventory: a
// fixed-capacity pool tracking how many buffer slots remain free (spec
// §3, §8 property 1).
type BufferInventory struct {
	mu       sync.Mutex
	maxElems int
	free     int
}

// NewBufferInventory creates an inventory with room for maxElems
// concurrently outstanding buffers.
func NewBufferInventory(maxElems int) *BufferInventory {
	return &BufferInventory{maxElems: maxElems, free: maxElems}
}

// NumElements reports total capacity.
func (inv *BufferInventory) NumElements() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.maxElems
}

// NumFreeElements reports the current free-slot count.
func (inv *BufferInventory) NumFreeElements() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.free
}

func (inv *BufferInventory) acquire() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.free == 0 {
		return ErrBadStateFactory("bufferinventory.acquire", "inventory exhausted")
	}
	inv.free--
	return nil
}

func (inv *BufferInventory) release() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.free++
}

func (inv *BufferInventory) newBuffer(mm *MemoryMap, memOff, memLen, dataOff, dataLen int) (*Buffer, error) {
	if err := inv.acquire(); err != nil {
		return nil, err
	}
	rc := new(int32)
	*rc = 1
	return &Buffer{inv: inv, mm: mm, memOff: memOff, memLen: memLen, dataOff: dataOff, dataLen: dataLen, rc: rc}, nil
}

// GetByArgs draws a buffer with an explicit memory region and data
// region, mirroring doca_buf_inventory_buf_get_by_args.
func (inv *BufferInventory) GetByArgs(mm *MemoryMap, memOffset, memLen, dataOffset, dataLen int) (*Buffer, error) {
	if memOffset < 0 || memOffset+memLen > len(mm.data) {
		return nil, ErrBadStateFactory("bufferinventory.GetByArgs", "memory region escapes map")
	}
	if dataOffset < 0 || dataOffset+dataLen > memLen {
		return nil, ErrBadStateFactory("bufferinventory.GetByArgs", "data region escapes memory region")
	}
	return inv.newBuffer(mm, memOffset, memLen, dataOffset, dataLen)
}

// GetByAddr draws a buffer whose data region spans the whole memory
// region, mirroring doca_buf_inventory_buf_get_by_addr.
func (inv *BufferInventory) GetByAddr(mm *MemoryMap, memOffset, memLen int) (*Buffer, error) {
	return inv.GetByArgs(mm, memOffset, memLen, 0, memLen)
}

// GetByData draws a buffer whose memory region equals its data region
// at the given offset/length, mirroring doca_buf_inventory_buf_get_by_data.
func (inv *BufferInventory) GetByData(mm *MemoryMap, dataOffset, dataLen int) (*Buffer, error) {
	return inv.GetByArgs(mm, dataOffset, dataLen, 0, dataLen)
}
