package comch

import (
	"context"

	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload"
)

// Producer is a child context of a Connection (spec §4.I): it sends
// buffers to a specific remote consumer, carrying 32 bits of immediate
// data per send.
type Producer struct {
	*dcontext.Base
	conn *Connection
	id   uint32
}

func newProducer(conn *Connection, eng *engine.Engine, id uint32) *Producer {
	p := &Producer{conn: conn, id: id}
	p.Base = dcontext.NewBase("comch-producer", conn, eng, dcontext.SDKHooks{})
	return p
}

// Send posts buf to the remote consumer identified by remoteConsumerID,
// carrying immediateData. It fails synchronously with not-connected if
// the owning connection has already begun disconnecting, mirroring the
// source's refusal to accept new sends once disconnect starts.
func (p *Producer) Send(ctx context.Context, buf *devsim.Buffer, immediateData, remoteConsumerID uint32) error {
	if p.conn.State() != dcontext.StateRunning {
		return errNotConnected
	}

	v, err := offload.Submit[struct{}](ctx, p.Engine(), func(userData uintptr) error {
		r := offload.UserDataToReceptacle[struct{}](userData)
		go func() {
			p.conn.peerMu.Lock()
			peer := p.conn.peer
			p.conn.peerMu.Unlock()
			if peer != nil {
				peer.deliverConsumerRecord(remoteConsumerID, immediateData, p.id, buf)
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
