// Package devsim simulates the vendor SDK's device discovery and memory
// registration surface (spec §3, §4.B). There is no real hardware
// behind this wrapper in this environment, so devsim plays the role the
// teacher repo's internal/uring/minimal.go plays for io_uring: a
// from-scratch stand-in for the vendor collaborator, built directly
// against the contract spec §6 describes (opaque handles, create/open,
// capability predicates) rather than against any real kernel/PCI
// interface.
package devsim

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Capability names a predicate a Device may or may not satisfy. The
// concrete offload contexts (compress, dma, aesgcm, ...) each require a
// specific capability to be present before they may be constructed on a
// device, mirroring the SDK's per-context "tasks_check" predicates.
type Capability string

const (
	CapCompressDeflate Capability = "compress-deflate"
	CapComchClient     Capability = "comch-client"
	CapComchServer     Capability = "comch-server"
	CapDMA             Capability = "dma"
	CapRDMA            Capability = "rdma"
	CapAESGCM          Capability = "aes-gcm"
	CapSHA             Capability = "sha"
	CapErasureCoding   Capability = "erasure-coding"
	CapSyncEventPCI    Capability = "sync-event-pci"
	CapEthernetRxq     Capability = "ethernet-rxq"
	CapEthernetTxq     Capability = "ethernet-txq"
	CapDevEmuMgmt      Capability = "devemu-mgmt"
	CapDevEmuHotplug   Capability = "devemu-hotplug"
)

// Device is a shared handle to a simulated hardware device. Every
// context and memory map that references a device holds its own
// *Device value; Go's garbage collector, not an explicit refcount,
// reclaims it once unreferenced, since devsim has no real handle to
// close.
type Device struct {
	ID           string
	PCIAddr      string
	IBDeviceName string
	capabilities map[Capability]bool
}

// Representor is the server-side counterpart used for inter-host
// messaging and emulated devices (spec §3 "Device representor").
type Representor struct {
	VUID         string
	PCIAddr      string
	capabilities map[Capability]bool
}

var registry = struct {
	mu          sync.Mutex
	devices     []*Device
	representors []*Representor
}{}

// Register adds a device to the discoverable set. Test setup and
// examples call this to populate the simulated device list before
// calling Find; there is no hotplug enumeration in this package.
func Register(d *Device) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.devices = append(registry.devices, d)
}

// RegisterRepresentor adds a representor to the discoverable set.
func RegisterRepresentor(r *Representor) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.representors = append(registry.representors, r)
}

// NewDevice constructs a simulated device with the given capabilities.
func NewDevice(pciAddr string, caps ...Capability) *Device {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return &Device{ID: uuid.NewString(), PCIAddr: pciAddr, capabilities: set}
}

// Has reports whether the device satisfies the given capability.
func (d *Device) Has(cap Capability) bool {
	return d.capabilities[cap]
}

// Filter selects devices during Find: PCI address, IB device name, or
// an unconditional match (spec §4.B: "by PCI address, IB-device name,
// or pure capability match").
type Filter struct {
	PCIAddr      string
	IBDeviceName string
}

func (f Filter) matches(d *Device) bool {
	if f.PCIAddr != "" && f.PCIAddr != d.PCIAddr {
		return false
	}
	if f.IBDeviceName != "" && f.IBDeviceName != d.IBDeviceName {
		return false
	}
	return true
}

// ErrNotFoundFactory lets the root package install a *doca.Error
// constructor so Find returns the module's own not-found error rather
// than a package-local sentinel.
var ErrNotFoundFactory = func(op, msg string) error { return fmt.Errorf("%s: %s", op, msg) }

// Find iterates the registered device list and returns the first device
// matching filter whose capabilities include every one of caps,
// mirroring device::find_by_pci_addr / find_by_capabilities from
// original_source/doca/device.cpp.
func Find(filter Filter, caps ...Capability) (*Device, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for _, d := range registry.devices {
		if !filter.matches(d) {
			continue
		}
		ok := true
		for _, c := range caps {
			if !d.Has(c) {
				ok = false
				break
			}
		}
		if ok {
			return d, nil
		}
	}
	return nil, ErrNotFoundFactory("device.Find", "no device matches filter and required capabilities")
}

// RepresentorFilter mirrors device_rep_list's doca_devinfo_rep_filter
// enum: representors may be found by PCI address or VUID.
type RepresentorFilter struct {
	PCIAddr string
	VUID    string
}

func (f RepresentorFilter) matches(r *Representor) bool {
	if f.PCIAddr != "" && f.PCIAddr != r.PCIAddr {
		return false
	}
	if f.VUID != "" && f.VUID != r.VUID {
		return false
	}
	return true
}

// FindRepresentor is the representor-list analogue of Find.
func FindRepresentor(filter RepresentorFilter, caps ...Capability) (*Representor, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	for _, r := range registry.representors {
		if !filter.matches(r) {
			continue
		}
		ok := true
		for _, c := range caps {
			if !r.capabilities[c] {
				ok = false
				break
			}
		}
		if ok {
			return r, nil
		}
	}
	return nil, ErrNotFoundFactory("device.FindRepresentor", "no representor matches filter and required capabilities")
}

// NewRepresentor constructs a simulated representor, for tests and
// examples that need a server-side endpoint without a real device.
func NewRepresentor(vuid string, caps ...Capability) *Representor {
	set := make(map[Capability]bool, len(caps))
	for _, c := range caps {
		set[c] = true
	}
	return &Representor{VUID: vuid, capabilities: set}
}

// ResetRegistry clears the simulated device/representor lists; test-only.
func ResetRegistry() {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.devices = nil
	registry.representors = nil
}
