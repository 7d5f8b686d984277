// Package offload implements the generic task-offload adapter (spec
// §4.G): the shared alloc-init/submit/complete cycle every concrete
// offload context (compress, DMA, SHA, AES-GCM, erasure coding) builds
// on. It is grounded on original_source/doca/compress.hpp's
// compress_task_helpers<TaskType> trait-table plus generic_compress_task
// wrapper: where the source specializes a template per task type, this
// package takes the per-task behavior as closures, since Go has no
// template specialization to hang a trait table off.
package offload

import (
	"context"
	"unsafe"

	// Blank-imported for its init(), which installs the root package's
	// *Error/Kind taxonomy as the error factories awaitable/accepter/
	// devsim/dcontext/engine compare and construct against. Every
	// concrete offload context (compress, dma, sha, aesgcm, erasure,
	// syncevent, ethernet, pcidevemu) and rdma/comch import this package
	// to reach Submit/Complete, so anchoring the import here — rather
	// than leaving it to whatever happens to import the root package
	// directly — guarantees the wiring runs, including engine's
	// again-classifier that SubmitTask's retry ladder (spec §4.E) relies
	// on, for every real program built on the leaf packages.
	_ "github.com/behrlich/go-doca"

	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/engine"
)

// Result is the outcome of one offloaded task: whatever auxiliary data
// (Extra) the concrete task type produces, e.g. a compression task's
// CRC/Adler checksums or an RDMA receive's immediate data word. It
// carries no status field.
type Result[Extra any] struct {
	Extra Extra
}

// AllocSubmit allocates and submits one SDK task. It is called on the
// engine's single executor goroutine from inside engine.SubmitTask's
// retry ladder, so it may be invoked more than once for a single logical
// submission if the SDK reports transient backpressure: implementations
// must allocate a fresh task handle on each call rather than reusing one
// across attempts, mirroring doca_compress_task_*_alloc_init being
// called fresh inside submit_task on every retry in the source.
type AllocSubmit func(userData uintptr) error

// Submit runs the generic offload flow: allocate space for the result,
// pack its address as SDK task user-data (the Go analogue of doca_data's
// ptr field), and submit through the engine's retry ladder. The returned
// awaitable resolves once the matching Complete call runs from the SDK's
// completion callback.
//
// The receptacle's address survives the round trip through the SDK as a
// uintptr, the same correlation trick doca_data/user_data performs by
// carrying an opaque pointer through C callback plumbing; it is cast
// back with UserDataToReceptacle in the context's completion handler.
func Submit[Extra any](ctx context.Context, eng *engine.Engine, alloc AllocSubmit) (awaitable.Value[Extra], error) {
	v, r := awaitable.CreateSpace[Extra]()
	userData := uintptr(unsafe.Pointer(r))

	err := eng.SubmitTask(ctx, func() error {
		return alloc(userData)
	})
	if err != nil {
		var zero awaitable.Value[Extra]
		return zero, err
	}
	return v, nil
}

// UserDataToReceptacle recovers the receptacle packed by Submit from the
// SDK-provided user-data value in a completion callback.
func UserDataToReceptacle[Extra any](userData uintptr) *awaitable.Receptacle[Extra] {
	return (*awaitable.Receptacle[Extra])(unsafe.Pointer(userData))
}

// Complete finishes one task from its SDK completion callback: it runs
// free (releasing the SDK task handle) before setting the result and
// resuming the waiter, matching generic_compress_task's destructor
// calling doca_task_free ahead of any access to the now-copied-out dst
// buffer/status fields by the caller.
func Complete[Extra any](r *awaitable.Receptacle[Extra], free func(), result Extra, err error) {
	if free != nil {
		free()
	}
	if err != nil {
		r.SetError(err)
	} else {
		r.SetValue(result)
	}
	r.Resume()
}
