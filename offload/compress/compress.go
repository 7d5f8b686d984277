// Package compress implements the compress/decompress offload context
// (spec §4.H), grounded directly on original_source/doca/compress.hpp's
// base_compress_context/compress_context pair. The simulated hardware
// path is backed by github.com/klauspost/compress/flate, a deflate
// implementation already present in the example pack (pulled in
// transitively by marmos91-dittofs's storage stack), rather than the
// standard library's compress/flate, so the "hardware" actually produces
// real compressed bytes through a library this corpus already reaches
// for.
package compress

import (
	"bytes"
	"context"
	"hash/adler32"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

// Result carries the checksums the source exposes via
// crc_cs()/adler_cs() on a completed compress/decompress task.
type Result struct {
	CRC   uint32
	Adler uint32
}

// Callbacks mirrors compress_callbacks: optional hooks invoked after a
// task resolves, independent of the per-call awaitable.
type Callbacks struct {
	OnCompressDone   func(Result)
	OnCompressError  func(error)
	OnDecompressDone func(Result)
	OnDecompressErr  func(error)
}

// Context is the Go analogue of doca::compress_context.
type Context struct {
	*dcontext.Base
	mu        sync.Mutex
	callbacks Callbacks
}

// New constructs a compress context bound to an engine (or a parent
// context, for nesting).
func New(parent dcontext.Parent, eng *engine.Engine, callbacks Callbacks) *Context {
	c := &Context{callbacks: callbacks}
	c.Base = dcontext.NewBase("compress", parent, eng, dcontext.SDKHooks{})
	return c
}

// Compress deflates src into dest, waiting for the task to complete and
// returning the resulting checksums. Both buffers are
// devsim.Buffer views; dest's data region is resized to the actual
// compressed length on success, mirroring the source writing the result
// length back into doca_buf's data length field.
func (c *Context) Compress(ctx context.Context, src, dest *devsim.Buffer) (Result, error) {
	return c.run(ctx, src, dest, false)
}

// Decompress inflates src into dest.
func (c *Context) Decompress(ctx context.Context, src, dest *devsim.Buffer) (Result, error) {
	return c.run(ctx, src, dest, true)
}

func (c *Context) run(ctx context.Context, src, dest *devsim.Buffer, decompress bool) (Result, error) {
	v, err := offload.Submit[Result](ctx, c.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[Result](userData)
		go c.execute(r, src, dest, decompress)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return v.Await(ctx)
}

// execute performs the simulated hardware work off the submitting
// goroutine, then completes the task the way an SDK completion callback
// would: fill dest, compute checksums, resume the waiter.
func (c *Context) execute(r *awaitable.Receptacle[Result], src, dest *devsim.Buffer, decompress bool) {
	var out bytes.Buffer
	var err error

	if decompress {
		fr := flate.NewReader(bytes.NewReader(src.Data()))
		_, err = out.ReadFrom(fr)
		_ = fr.Close()
	} else {
		fw, werr := flate.NewWriter(&out, flate.DefaultCompression)
		if werr != nil {
			err = werr
		} else {
			_, err = fw.Write(src.Data())
			if err == nil {
				err = fw.Close()
			}
		}
	}

	if err != nil {
		offload.Complete(r, nil, Result{}, err)
		c.reportError(decompress, err)
		return
	}

	if _, _, setErr := dest.SetData(0, out.Len()); setErr != nil {
		offload.Complete(r, nil, Result{}, setErr)
		c.reportError(decompress, setErr)
		return
	}
	copy(dest.Data(), out.Bytes())

	// Checksums are always taken over the uncompressed bytes (spec S2:
	// "checksums equal across compress and decompress for the same
	// buffer"), matching DOCA deflate tasks, which report the checksum of
	// the plaintext regardless of which direction the task ran.
	uncompressed := out.Bytes()
	if !decompress {
		uncompressed = src.Data()
	}
	res := Result{
		CRC:   crc32.ChecksumIEEE(uncompressed),
		Adler: adler32.Checksum(uncompressed),
	}
	offload.Complete(r, nil, res, nil)
	c.reportDone(decompress, res)
}

func (c *Context) reportDone(decompress bool, res Result) {
	c.mu.Lock()
	cb := c.callbacks
	c.mu.Unlock()
	if decompress && cb.OnDecompressDone != nil {
		cb.OnDecompressDone(res)
	} else if !decompress && cb.OnCompressDone != nil {
		cb.OnCompressDone(res)
	}
}

func (c *Context) reportError(decompress bool, err error) {
	c.mu.Lock()
	cb := c.callbacks
	c.mu.Unlock()
	if decompress && cb.OnDecompressErr != nil {
		cb.OnDecompressErr(err)
	} else if !decompress && cb.OnCompressError != nil {
		cb.OnCompressError(err)
	}
}
