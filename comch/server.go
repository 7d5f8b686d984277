// Server is the Go analogue of doca::comch::server, grounded on
// original_source/doca/comch/server.hpp: a top-level context holding a
// map from connection handle to owning Connection, an accepter queue
// surfacing newly-arrived connections, and a stop sequence that cascades
// disconnect to every open connection before the SDK handle itself is
// considered stopped (reusing dcontext.Base's child-drain-then-stop-hook
// machinery directly, rather than hand-rolling the two-phase shutdown
// server.hpp implements by hand in C++).
package comch

import (
	"context"
	"sync"

	"github.com/eapache/queue"

	"github.com/behrlich/go-doca/accepter"
	"github.com/behrlich/go-doca/awaitable"
	"github.com/behrlich/go-doca/dcontext"
	"github.com/behrlich/go-doca/engine"
)

// recentlyClosedCap bounds the diagnostic ring of recently-disconnected
// connection handles a server retains for operators inspecting churn.
const recentlyClosedCap = 64

// Server listens for inbound connections and owns every Connection
// accepted from it until each disconnects.
type Server struct {
	*dcontext.Base

	mu             sync.Mutex
	connsByHandle  map[uint64]*Connection
	nextHandle     uint64
	recentlyClosed *queue.Queue

	pending *accepter.Queue[*Connection, *Connection]
}

// NewServer starts a messaging server. parent may be nil for a
// top-level server registered directly with the engine.
func NewServer(parent dcontext.Parent, eng *engine.Engine) *Server {
	s := &Server{
		connsByHandle:  map[uint64]*Connection{},
		pending:        accepter.New[*Connection, *Connection](identity[*Connection]),
		recentlyClosed: queue.New(),
	}
	s.Base = dcontext.NewBase("comch-server", parent, eng, dcontext.SDKHooks{StopFn: s.sdkStop})
	return s
}

func (s *Server) sdkStop() awaitable.Value[struct{}] {
	s.pending.Disconnect()
	return awaitable.FromValue(struct{}{})
}

// SimulateConnect models the SDK's connection_entry callback firing: it
// mints a new connection bound to handle, registers it as a child of
// the server (so the server's own Stop waits for every open connection
// to disconnect first, per spec §4.I), and hands it to a pending
// Accept().
func (s *Server) SimulateConnect() *Connection {
	s.mu.Lock()
	s.nextHandle++
	handle := s.nextHandle
	s.mu.Unlock()

	conn := newConnection("comch-server-connection", s, s.Engine(), handle)
	s.Children().Register(conn)

	s.mu.Lock()
	s.connsByHandle[handle] = conn
	s.mu.Unlock()

	_ = conn.Start(context.Background())
	s.pending.Supply(conn)
	return conn
}

// Accept returns the next inbound connection.
func (s *Server) Accept(ctx context.Context) (*Connection, error) {
	return s.pending.Accept().Await(ctx)
}

// SignalStoppedChild additionally removes the connection from the
// handle map once it has fully disconnected, then delegates to Base for
// the shared child-drain bookkeeping.
func (s *Server) SignalStoppedChild(child dcontext.Context) {
	// A stopping connection reports its embedded *dcontext.Base, not the
	// *Connection, so match on either.
	s.mu.Lock()
	for handle, conn := range s.connsByHandle {
		if child == dcontext.Context(conn) || child == dcontext.Context(conn.Base) {
			delete(s.connsByHandle, handle)
			s.recentlyClosed.Enqueue(handle)
			if s.recentlyClosed.Length() > recentlyClosedCap {
				s.recentlyClosed.Dequeue()
			}
			break
		}
	}
	s.mu.Unlock()
	s.Base.SignalStoppedChild(child)
}

// RecentlyClosedHandles returns, oldest first, the connection handles
// most recently removed from the open-connection map.
func (s *Server) RecentlyClosedHandles() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uint64, 0, s.recentlyClosed.Length())
	for i := 0; i < s.recentlyClosed.Length(); i++ {
		v, ok := s.recentlyClosed.Dequeue()
		if !ok {
			break
		}
		handle := v.(uint64)
		out = append(out, handle)
		s.recentlyClosed.Enqueue(handle)
	}
	return out
}
