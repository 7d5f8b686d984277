package comch

import (
	"context"

	"github.com/behrlich/go-doca/accepter"
	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
)

// Consumer is a child context of a Connection (spec §4.I). It has no
// direct original-source file in this pack's retrieval; built from the
// spec's one-paragraph description: post a buffer for a future remote
// send to land in, and receive completion as a record of immediate
// data and the sending producer's ID. Posted buffers reuse
// the accepter-queue pattern already grounded on comch/common.hpp,
// since "post a buffer, get a future completion" is exactly an
// accepter's shape with the buffer as payload and the completed record
// as the wrapped result.
type Consumer struct {
	*dcontext.Base
	id      uint32
	conn    *Connection
	pending *accepter.Queue[*devsim.Buffer, *devsim.Buffer]
	records *accepter.Queue[ConsumerRecord, ConsumerRecord]
}

func newConsumer(conn *Connection, eng *engine.Engine, id uint32) *Consumer {
	c := &Consumer{
		id:      id,
		conn:    conn,
		pending: accepter.New[*devsim.Buffer, *devsim.Buffer](identity[*devsim.Buffer]),
		records: accepter.New[ConsumerRecord, ConsumerRecord](identity[ConsumerRecord]),
	}
	c.Base = dcontext.NewBase("comch-consumer", conn, eng, dcontext.SDKHooks{})
	return c
}

// PostRecv posts buf to receive the next inbound send addressed to this
// consumer. The returned record carries the remote producer's
// immediate data and ID once a matching send lands.
func (c *Consumer) PostRecv(ctx context.Context, buf *devsim.Buffer) (ConsumerRecord, error) {
	c.pending.Supply(buf)
	return c.records.Accept().Await(ctx)
}

// deliverRecord is invoked (via the owning Connection) when a remote
// producer's send targets this consumer: it drains the oldest posted
// buffer, copies the sent bytes into it, and resolves PostRecv.
func (c *Consumer) deliverRecord(immediateData, producerID uint32, payload *devsim.Buffer) {
	dest, err := c.pending.Accept().Await(context.Background())
	if err == nil && dest != nil && payload != nil {
		copy(dest.Data(), payload.Data())
	}
	c.records.Supply(ConsumerRecord{ImmediateData: immediateData, ProducerID: producerID})
}
