// Package dma implements the DMA offload context (spec §4.H), grounded
// directly on original_source/doca/dma.hpp's dma_context::memcpy. The
// simulated hardware path copies between two devsim.Buffer data regions,
// which may belong to different MemoryMaps (modeling a host-to-DPU or
// DPU-to-host copy) or the same one (a local move).
package dma

import (
	"context"

	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

// Context is the Go analogue of doca::dma_context.
type Context struct {
	*dcontext.Base
}

// New constructs a DMA context.
func New(parent dcontext.Parent, eng *engine.Engine) *Context {
	c := &Context{}
	c.Base = dcontext.NewBase("dma", parent, eng, dcontext.SDKHooks{})
	return c
}

// Memcpy copies src's data region into dest's, resizing dest's data
// region to src's length first. It returns once the copy's completion
// has been observed, mirroring memcpy's coro::status_awaitable<> return.
func (c *Context) Memcpy(ctx context.Context, src, dest *devsim.Buffer) error {
	v, err := offload.Submit[struct{}](ctx, c.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[struct{}](userData)
		go func() {
			if _, _, err := dest.SetData(0, len(src.Data())); err != nil {
				offload.Complete(r, nil, struct{}{}, err)
				return
			}
			n := copy(dest.Data(), src.Data())
			if n != len(src.Data()) {
				offload.Complete(r, nil, struct{}{}, errShortCopy)
				return
			}
			offload.Complete(r, nil, struct{}{}, nil)
		}()
		return nil
	})
	if err != nil {
		return err
	}
	_, err = v.Await(ctx)
	return err
}

type plainError string

func (e plainError) Error() string { return string(e) }

var errShortCopy = plainError("dma: short copy")
