// Client is the Go analogue of doca::comch::client, grounded on
// server.hpp's same connection-state machinery applied to the single
// implicit connection a client owns (spec §4.I notes the client is
// "structurally the server with exactly one connection").
package comch

import (
	"context"

	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
)

// Client owns exactly one Connection, established out of band via
// Connect (the vendor SDK's actual wire handshake is an external
// collaborator, per spec §1; this wires the resulting Connection to a
// simulated Server-side peer for in-process tests and local loopback
// use).
type Client struct {
	*dcontext.Base
	conn *Connection
}

// NewClient constructs an unconnected client.
func NewClient(parent dcontext.Parent, eng *engine.Engine) *Client {
	c := &Client{}
	c.Base = dcontext.NewBase("comch-client", parent, eng, dcontext.SDKHooks{})
	return c
}

// Connect establishes this client's connection against a server,
// simulating the handshake by calling the server's own connection-entry
// path and wiring the two Connection objects as loopback peers.
func (c *Client) Connect(ctx context.Context, server *Server) (*Connection, error) {
	serverSide := server.SimulateConnect()

	clientSide := newConnection("comch-client-connection", c, c.Engine(), serverSide.handle)
	c.Children().Register(clientSide)
	if err := clientSide.Start(ctx); err != nil {
		return nil, err
	}

	clientSide.setPeer(serverSide)
	serverSide.setPeer(clientSide)

	c.conn = clientSide
	return clientSide, nil
}

// Connection returns the client's established connection, or nil if
// Connect has not yet succeeded.
func (c *Client) Connection() *Connection { return c.conn }
