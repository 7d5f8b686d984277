// Package syncevent implements the sync-event offload context (spec
// §4.H), grounded directly on original_source/doca/sync_event.hpp's
// get/notify_add/notify_set/wait_eq/wait_neq verb set and its
// export_to_remote_pci/export_to_remote_net accessors. The counter
// itself is simulated by internal/devsim.SyncEvent.
package syncevent

import (
	"context"

	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

// RemoteDescriptor is the exported handle a remote PCI function or
// network peer imports to address this event, the Go analogue of
// source's std::span<std::uint8_t const> export blobs.
type RemoteDescriptor struct {
	Token string
}

// Context is the Go analogue of doca::sync_event.
type Context struct {
	*dcontext.Base
	ev *devsim.SyncEvent
}

// New constructs a sync-event context over a fresh counter.
func New(parent dcontext.Parent, eng *engine.Engine) *Context {
	c := &Context{ev: devsim.NewSyncEvent()}
	c.Base = dcontext.NewBase("sync-event", parent, eng, dcontext.SDKHooks{})
	return c
}

// ExportToRemotePCI returns a descriptor a PCI-attached peer can import
// to address this event.
func (c *Context) ExportToRemotePCI(dev *devsim.Device) RemoteDescriptor {
	return RemoteDescriptor{Token: "pci:" + dev.PCIAddr}
}

// ExportToRemoteNet returns a descriptor a network peer can import to
// address this event.
func (c *Context) ExportToRemoteNet() RemoteDescriptor {
	return RemoteDescriptor{Token: "net:" + c.Name()}
}

// Get reads the event's current value.
func (c *Context) Get(ctx context.Context) (uint64, error) {
	return c.run(ctx, func() uint64 { return c.ev.Get() })
}

// NotifyAdd atomically adds incVal, returning the pre-addition value.
func (c *Context) NotifyAdd(ctx context.Context, incVal uint64) (uint64, error) {
	return c.run(ctx, func() uint64 { return c.ev.NotifyAdd(incVal) })
}

// NotifySet atomically overwrites the event's value.
func (c *Context) NotifySet(ctx context.Context, setVal uint64) error {
	_, err := c.run(ctx, func() uint64 { c.ev.NotifySet(setVal); return 0 })
	return err
}

// WaitEq blocks (asynchronously, via the progress engine) until the
// masked value equals waitVal.
func (c *Context) WaitEq(ctx context.Context, waitVal, mask uint64) error {
	_, err := c.run(ctx, func() uint64 { c.ev.WaitEq(waitVal, mask); return 0 })
	return err
}

// WaitNeq blocks until the masked value differs from waitVal.
func (c *Context) WaitNeq(ctx context.Context, waitVal, mask uint64) error {
	_, err := c.run(ctx, func() uint64 { c.ev.WaitNeq(waitVal, mask); return 0 })
	return err
}

func (c *Context) run(ctx context.Context, work func() uint64) (uint64, error) {
	v, err := offload.Submit[uint64](ctx, c.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[uint64](userData)
		go func() {
			offload.Complete(r, nil, work(), nil)
		}()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return v.Await(ctx)
}
