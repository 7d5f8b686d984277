// Package comch implements the inter-host messaging server/client/
// producer/consumer core (spec §4.I), grounded directly on
// original_source/doca/comch/{server,client,producer,common}.{hpp,cpp}.
// Connection state reuses dcontext.Base's idle/starting/running/stopping
// machine directly: connected maps to running, disconnecting to
// stopping, disconnected to idle — the same three-phase shutdown
// (children first, then the SDK handle) the source's state_ field and
// context base both already express, so this package does not define a
// parallel state type.
package comch

import (
	"context"
	"sync"

	"github.com/behrlich/go-doca/accepter"
	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

func identity[T any](v T) T { return v }

// ConsumerRecord is the completion value a Consumer's posted receive
// resolves with (spec §4.I): immediate data and the sending producer's
// remote ID. The record has no status field.
type ConsumerRecord struct {
	ImmediateData uint32
	ProducerID    uint32
}

// Connection is the Go analogue of doca::comch::server_connection /
// the client's single implicit connection. It owns the message and
// remote-consumer-ID accepter queues, and a child registry (via
// dcontext.Base) for producers/consumers created on it.
type Connection struct {
	*dcontext.Base

	handle      uint64
	messages    *accepter.Queue[string, string]
	consumerIDs *accepter.Queue[uint32, uint32]

	peerMu sync.Mutex
	peer   *Connection

	idMu           sync.Mutex
	nextConsumerID uint32
	nextProducerID uint32
	consumersByID  map[uint32]*Consumer
}

func newConnection(name string, parent dcontext.Parent, eng *engine.Engine, handle uint64) *Connection {
	c := &Connection{
		handle:        handle,
		messages:      accepter.New[string, string](identity[string]),
		consumerIDs:   accepter.New[uint32, uint32](identity[uint32]),
		consumersByID: map[uint32]*Consumer{},
	}
	c.Base = dcontext.NewBase(name, parent, eng, dcontext.SDKHooks{StopFn: c.sdkDisconnect})
	return c
}

// sdkDisconnect is the Connection's StopFn: once every child (producer/
// consumer) has drained, disconnect both accepter queues — waiters get
// not-connected, per spec §4.I's signal_disconnect — and sever the peer
// link.
func (c *Connection) sdkDisconnect() awaitable.Value[struct{}] {
	c.messages.Disconnect()
	c.consumerIDs.Disconnect()
	c.peerMu.Lock()
	peer := c.peer
	c.peer = nil
	c.peerMu.Unlock()
	if peer != nil {
		peer.clearPeerIfMatches(c)
	}
	return awaitable.FromValue(struct{}{})
}

// clearPeerIfMatches drops the peer link if it still points at old,
// called from the other side's sdkDisconnect so a severed connection is
// immediately unreachable from both directions.
func (c *Connection) clearPeerIfMatches(old *Connection) {
	c.peerMu.Lock()
	if c.peer == old {
		c.peer = nil
	}
	c.peerMu.Unlock()
}

// setPeer wires this connection to another for in-process loopback
// delivery, standing in for the vendor SDK's actual wire transport
// (spec §1 lists the SDK's transport as an external collaborator whose
// contract, not implementation, is in scope here).
func (c *Connection) setPeer(peer *Connection) {
	c.peerMu.Lock()
	c.peer = peer
	c.peerMu.Unlock()
}

// Send transmits message to the connected peer, resolving once the
// (simulated) hardware has accepted the send task.
func (c *Connection) Send(ctx context.Context, message string) error {
	c.peerMu.Lock()
	peer := c.peer
	c.peerMu.Unlock()
	if peer == nil {
		return errNotConnected
	}

	v, err := offload.Submit[struct{}](ctx, c.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[struct{}](userData)
		go func() {
			peer.messages.Supply(message)
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

// MsgRecv returns the next inbound message, per spec §4.I's msg_recv
// accepter.
func (c *Connection) MsgRecv(ctx context.Context) (string, error) {
	return c.messages.Accept().Await(ctx)
}

// AcceptConsumer returns the next remote consumer ID announced by the
// peer, per spec §4.I's accept_consumer accepter.
func (c *Connection) AcceptConsumer(ctx context.Context) (uint32, error) {
	return c.consumerIDs.Accept().Await(ctx)
}

// deliverConsumerID simulates the SDK announcing a new remote consumer.
func (c *Connection) deliverConsumerID(id uint32) {
	c.consumerIDs.Supply(id)
}

// deliverConsumerRecord routes an inbound send to the local consumer
// registered under remoteConsumerID, simulating the SDK's msg-recv
// dispatch by producer/consumer handle.
func (c *Connection) deliverConsumerRecord(remoteConsumerID, immediateData, producerID uint32, payload *devsim.Buffer) {
	c.idMu.Lock()
	cons, ok := c.consumersByID[remoteConsumerID]
	c.idMu.Unlock()
	if !ok {
		return
	}
	cons.deliverRecord(immediateData, producerID, payload)
}

// CreateProducer creates a producer child on this connection.
func (c *Connection) CreateProducer() *Producer {
	c.idMu.Lock()
	c.nextProducerID++
	id := c.nextProducerID
	c.idMu.Unlock()

	p := newProducer(c, c.Engine(), id)
	c.Children().Register(p)
	_ = p.Start(context.Background())
	return p
}

// CreateConsumer creates a consumer child on this connection and
// announces its ID to the connected peer so remote producers can
// discover it via AcceptConsumer.
func (c *Connection) CreateConsumer() *Consumer {
	c.idMu.Lock()
	c.nextConsumerID++
	id := c.nextConsumerID
	c.idMu.Unlock()

	cons := newConsumer(c, c.Engine(), id)
	c.Children().Register(cons)
	_ = cons.Start(context.Background())

	c.idMu.Lock()
	c.consumersByID[id] = cons
	c.idMu.Unlock()

	c.peerMu.Lock()
	peer := c.peer
	c.peerMu.Unlock()
	if peer != nil {
		peer.deliverConsumerID(id)
	}
	return cons
}

// Disconnect requests disconnection and blocks until it completes.
func (c *Connection) Disconnect(ctx context.Context) error {
	return c.Stop(ctx)
}

type plainError string

func (e plainError) Error() string { return string(e) }

var errNotConnected = plainError("comch: not connected")
