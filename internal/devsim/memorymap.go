package devsim

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-doca/internal/logging"
)

// Permission is a bitmask of access rights granted to devices a memory
// map is added to (spec §3 "permission mask").
type Permission uint8

const (
	PermRead Permission = 1 << iota
	PermWrite
	PermRDMARead
	PermRDMAWrite
	PermRDMAAtomic
)

// ExportDescriptor is the opaque byte-string a memory map produces for
// cross-process/cross-host transfer (spec §4.B "export produces
// {base_ptr, length}"). Here it simply captures enough to reconstruct a
// local view in this same process, since there is no real IOVA space to
// cross.
type ExportDescriptor struct {
	token string
	data  []byte
	perm  Permission
}

// MemoryMap registers a host memory range with one or more devices
// under a permission mask (spec §3, §4.B). Construction follows
// original_source/doca/memory_map.cpp's multi-device generation: add
// each device, then start; adding a device after Start is rejected,
// matching invariant (i) in §4.B.
type MemoryMap struct {
	mu       sync.Mutex
	data     []byte
	devices  []*Device
	perm     Permission
	started  bool
	locked   bool
	ownedMap bool
}

// NewMemoryMap creates a map over data for the given devices and
// permission mask, without starting it. Devices may still be added via
// AddDevice until Start is called.
func NewMemoryMap(data []byte, perm Permission, devices ...*Device) *MemoryMap {
	m := &MemoryMap{data: data, perm: perm}
	m.devices = append(m.devices, devices...)
	return m
}

// NewPinnedMemoryMap allocates size bytes via an anonymous mmap rather
// than a plain Go slice, the realistic way to obtain memory a device can
// DMA into: real host memory handed to hardware must live outside the
// Go heap's moving/collecting reach at a fixed virtual address, which a
// GC-managed slice's backing array does not guarantee. The returned
// map owns the mapping and releases it on Close.
func NewPinnedMemoryMap(size int, perm Permission, devices ...*Device) (*MemoryMap, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	m := &MemoryMap{data: data, perm: perm, ownedMap: true}
	m.devices = append(m.devices, devices...)
	return m, nil
}

// ErrBadStateFactory lets the root package install the module's own
// bad-state error constructor.
var ErrBadStateFactory = func(op, msg string) error { return plainErr(op + ": " + msg) }

type plainErr string

func (e plainErr) Error() string { return string(e) }

// AddDevice registers an additional device with the map. Per invariant
// (i) of spec §4.B, this is only legal before Start.
func (m *MemoryMap) AddDevice(d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrBadStateFactory("memorymap.AddDevice", "cannot add a device after the map has started")
	}
	m.devices = append(m.devices, d)
	return nil
}

// Start finalizes the map, simulating the SDK's create/set-range/add-
// devices/set-permissions/start sequence (spec §4.B). After Start no
// further devices may be added.
//
// Per invariant (ii), the backing range must stay pinned for the map's
// lifetime: Start attempts unix.Mlock to actually pin it in RAM, the
// same operation real RDMA/DMA memory-registration code performs before
// handing a range to hardware. Mlock commonly fails without
// CAP_IPC_LOCK or a raised RLIMIT_MEMLOCK, so failure is logged and
// tolerated rather than propagated — the map is still usable, just not
// guaranteed non-swappable on this host.
func (m *MemoryMap) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrBadStateFactory("memorymap.Start", "map already started")
	}
	if len(m.data) > 0 {
		if err := unix.Mlock(m.data); err != nil {
			logging.Default().Warnf("memorymap.Start: mlock failed, continuing unpinned: %v", err)
		} else {
			m.locked = true
		}
	}
	m.started = true
	return nil
}

// Close releases the map's pinning and, for a map created with
// NewPinnedMemoryMap, the underlying mmap'd region.
func (m *MemoryMap) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		if err := unix.Munlock(m.data); err != nil {
			logging.Default().Warnf("memorymap.Close: munlock failed: %v", err)
		}
		m.locked = false
	}
	if m.ownedMap {
		data := m.data
		m.data = nil
		m.ownedMap = false
		return unix.Munmap(data)
	}
	return nil
}

// Span returns the full backing byte slice (the "memory region").
func (m *MemoryMap) Span() []byte {
	return m.data
}

// Permissions reports the map's access mask.
func (m *MemoryMap) Permissions() Permission {
	return m.perm
}

// Export produces an opaque descriptor suitable for Import on a remote
// device, mirroring memory_map::export_pci / the {base_ptr, length}
// export descriptor in the source.
func (m *MemoryMap) Export(token string) ExportDescriptor {
	return ExportDescriptor{token: token, data: m.data, perm: m.perm}
}

// ImportMemoryMap reconstructs a map from an exported descriptor against
// a local device, mirroring the doca_mmap_create_from_export +
// doca_mmap_get_memrange sequence.
func ImportMemoryMap(desc ExportDescriptor, dev *Device) *MemoryMap {
	m := &MemoryMap{data: desc.data, perm: desc.perm, started: true}
	m.devices = append(m.devices, dev)
	return m
}
