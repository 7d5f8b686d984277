// Package accepter implements the accepter/supplier queue from spec §4.C:
// the primitive that turns spontaneous SDK events (new connections,
// inbound messages, new remote-consumer IDs) into single-consumer
// awaitables with disconnection semantics. It is grounded directly on
// original_source/doca/comch/common.hpp's accepter_queues<Payload,
// ScopeWrapper> template.
package accepter

import (
	"sync"

	"github.com/behrlich/go-doca/awaitable"
)

// Queue pairs payloads of type Payload with waiters that receive type
// Wrap (usually Wrap == Payload; a ScopeWrapper conversion happens in
// Supply when they differ, e.g. wrapping a raw connection pointer in an
// RAII scoped handle on delivery).
type Queue[Payload any, Wrap any] struct {
	mu           sync.Mutex
	pending      []Payload
	waiters      []*awaitable.Receptacle[Wrap]
	disconnected bool
	wrap         func(Payload) Wrap
}

// New creates an accepter queue. wrap converts a stored Payload into the
// Wrap type handed to a waiter; pass a plain identity function when
// Payload == Wrap.
func New[Payload any, Wrap any](wrap func(Payload) Wrap) *Queue[Payload, Wrap] {
	return &Queue[Payload, Wrap]{wrap: wrap}
}

var notConnectedFactory = func() error { return plainErr("not-connected") }

type plainErr string

func (e plainErr) Error() string { return string(e) }

// SetNotConnectedFactory installs the error value Accept/Disconnect
// surface once a queue is disconnected, so callers see the same *Error
// type (Kind: not-connected) the rest of the module uses.
func SetNotConnectedFactory(f func() error) {
	notConnectedFactory = f
}

// Accept returns an awaitable per spec §4.C: immediate if a payload is
// already pending, immediately not-connected if the queue has been
// disconnected, otherwise a fresh receptacle queued as a waiter.
func (q *Queue[Payload, Wrap]) Accept() awaitable.Value[Wrap] {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) > 0 {
		p := q.pending[0]
		q.pending = q.pending[1:]
		return awaitable.FromValue(q.wrap(p))
	}

	if q.disconnected {
		return awaitable.FromError[Wrap](notConnectedFactory())
	}

	v, r := awaitable.CreateSpace[Wrap]()
	q.waiters = append(q.waiters, r)
	return v
}

// Supply delivers a payload to the oldest waiting Accept, or enqueues it
// for a future Accept if none is waiting. Supply does not look at the
// disconnected flag: a payload supplied after Disconnect is queued like
// any other, and because Accept serves queued payloads before it checks
// the flag, the next Accept still receives it. This matches the source's
// documented choice to retain rather than drain.
func (q *Queue[Payload, Wrap]) Supply(payload Payload) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		r := q.waiters[0]
		q.waiters = q.waiters[1:]
		r.SetValue(q.wrap(payload))
		r.Resume()
		return
	}

	q.pending = append(q.pending, payload)
}

// Disconnect sets the sticky flag and resolves every pending waiter with
// not-connected. Pending payloads are left intact per the source's
// documented (and spec-confirmed, §9 Open Question 3) choice to retain
// rather than drain them.
func (q *Queue[Payload, Wrap]) Disconnect() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.disconnected {
		return
	}
	q.disconnected = true

	for _, r := range q.waiters {
		r.SetError(notConnectedFactory())
		r.Resume()
	}
	q.waiters = nil
}

// Disconnected reports the sticky flag, mostly for tests.
func (q *Queue[Payload, Wrap]) Disconnected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.disconnected
}

// PendingPayloads reports the number of queued-but-unaccepted payloads,
// for tests verifying the at-most-one-FIFO-nonempty invariant (§3).
func (q *Queue[Payload, Wrap]) PendingPayloads() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// PendingWaiters reports the number of queued-but-unsupplied waiters.
func (q *Queue[Payload, Wrap]) PendingWaiters() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiters)
}
