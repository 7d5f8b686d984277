package rdma

import (
	"context"
	"testing"
	"time"

	"github.com/behrlich/go-doca/engine"
	"github.com/behrlich/go-doca/internal/devsim"
	"github.com/behrlich/go-doca/offload/syncevent"
)

type stubSDK struct{ notify chan struct{} }

func newStubSDK() *stubSDK                  { return &stubSDK{notify: make(chan struct{}, 1)} }
func (s *stubSDK) ArmNotification() error   { return nil }
func (s *stubSDK) ClearNotification() error { return nil }
func (s *stubSDK) Progress() (bool, error)  { return false, nil }
func (s *stubSDK) Notify() <-chan struct{}  { return s.notify }

func newTestEngine() *engine.Engine { return engine.New(newStubSDK(), engine.Config{}) }

func newBuffer(t *testing.T, size int, fill []byte) *devsim.Buffer {
	t.Helper()
	mm := devsim.NewMemoryMap(make([]byte, size), devsim.PermRead|devsim.PermWrite)
	if err := mm.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := devsim.NewBufferInventory(1)
	b, err := inv.GetByAddr(mm, 0, size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	copy(b.Data(), fill)
	return b
}

// TestSendReceiveImmediateDataRoundTrip exercises testable property 8:
// immediate data sent alongside a two-sided send is observed intact by
// the peer's Receive.
func TestSendReceiveImmediateDataRoundTrip(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)
	a.Connect(b)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src := newBuffer(t, 16, []byte("hello-rdma"))
	dest := newBuffer(t, 16, nil)

	recvDone := make(chan struct {
		imm uint32
		has bool
		err error
	}, 1)
	go func() {
		imm, has, err := b.Receive(ctx, dest)
		recvDone <- struct {
			imm uint32
			has bool
			err error
		}{imm, has, err}
	}()

	time.Sleep(20 * time.Millisecond)
	if err := a.SendImmediate(ctx, src, 0x1234, true); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case r := <-recvDone:
		if r.err != nil {
			t.Fatalf("receive: %v", r.err)
		}
		if !r.has || r.imm != 0x1234 {
			t.Fatalf("expected immediate data 0x1234, got has=%v val=%#x", r.has, r.imm)
		}
		if string(dest.Data()[:10]) != "hello-rdma" {
			t.Fatalf("unexpected payload: %q", string(dest.Data()[:10]))
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for receive")
	}
}

func TestReadCopiesRemoteIntoLocal(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)
	a.Connect(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	remote := newBuffer(t, 8, []byte("remoteva"))
	local := newBuffer(t, 8, nil)
	if err := a.Read(ctx, remote, local); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(local.Data()) != "remoteva" {
		t.Fatalf("unexpected copy: %q", string(local.Data()))
	}
}

func TestAtomicFetchAddReturnsPreAddValue(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)
	a.Connect(b)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	dst := newBuffer(t, 8, nil)
	putUint64(dst, 10)
	result := newBuffer(t, 8, nil)

	if err := a.AtomicFetchAdd(ctx, dst, result, 5); err != nil {
		t.Fatalf("fetch-add: %v", err)
	}
	if getUint64(result) != 10 {
		t.Fatalf("expected pre-add value 10, got %d", getUint64(result))
	}
	if getUint64(dst) != 15 {
		t.Fatalf("expected dst 15, got %d", getUint64(dst))
	}
}

func TestRemoteSyncEventNotifySetThenGet(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)
	a.Connect(b)
	ev := syncevent.New(nil, eng)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	src := newBuffer(t, 8, nil)
	putUint64(src, 42)
	if err := a.RemoteSyncEventNotifySet(ctx, ev, src); err != nil {
		t.Fatalf("notify-set: %v", err)
	}

	dst := newBuffer(t, 8, nil)
	if err := a.RemoteSyncEventGet(ctx, ev, dst); err != nil {
		t.Fatalf("get: %v", err)
	}
	if getUint64(dst) != 42 {
		t.Fatalf("expected 42, got %d", getUint64(dst))
	}
}

func TestSendWithoutConnectionFails(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := a.Send(ctx, newBuffer(t, 8, nil)); err == nil {
		t.Fatal("expected error with no connection")
	}
}

// TestConnectOutOfBand exercises the out-of-band establishment pathway
// (spec §4.I(a)): a peers exports its connection details and b connects
// using only those bytes.
func TestConnectOutOfBand(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)

	details := a.ExportConnectionDetails()
	conn, err := b.ConnectOutOfBand(details)
	if err != nil {
		t.Fatalf("connect out of band: %v", err)
	}
	if conn.peer != a {
		t.Fatalf("expected peer a, got %v", conn.peer)
	}
	if a.conn == nil || a.conn.peer != b {
		t.Fatalf("expected a connected back to b")
	}
}

func TestConnectOutOfBandUnknownDetailsFails(t *testing.T) {
	eng := newTestEngine()
	b := New(nil, eng, nil)
	if _, err := b.ConnectOutOfBand([]byte("not-a-real-token")); err == nil {
		t.Fatal("expected error for unknown connection details")
	}
}

// TestListenConnectAddress exercises the CM-style establishment pathway
// (spec §4.I(b)): a listens on an address, b dials it, and a's Listen
// call returns the resulting connection.
func TestListenConnectAddress(t *testing.T) {
	eng := newTestEngine()
	a := New(nil, eng, nil)
	b := New(nil, eng, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	listenDone := make(chan struct {
		conn *Connection
		err  error
	}, 1)
	go func() {
		conn, err := a.Listen(ctx, "dpu0:18515")
		listenDone <- struct {
			conn *Connection
			err  error
		}{conn, err}
	}()

	time.Sleep(20 * time.Millisecond)
	dialConn, err := b.ConnectAddress(ctx, "dpu0:18515")
	if err != nil {
		t.Fatalf("connect address: %v", err)
	}
	if dialConn.peer != a {
		t.Fatalf("expected peer a, got %v", dialConn.peer)
	}

	res := <-listenDone
	if res.err != nil {
		t.Fatalf("listen: %v", res.err)
	}
	if res.conn == nil || res.conn.peer != b {
		t.Fatalf("expected listen to resolve to a connection to b, got %v", res.conn)
	}
}
