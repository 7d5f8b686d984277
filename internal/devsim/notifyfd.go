//go:build linux

package devsim

import (
	"encoding/binary"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-doca/internal/logging"
)

// NotifyFD is a real eventfd-backed notification primitive: the
// production counterpart to internal/sdkstub's plain channel. It backs
// spec §6's vendor-SDK contract ("a notification-handle getter (FD),
// arm/clear functions") with an actual Linux eventfd polled through
// epoll, so a real engine.SDK binding has a ready-made FD to embed
// instead of hand-rolling one. Grounded on
// joeycumines-go-utilpkg/eventloop/wakeup_linux.go's createWakeFd and
// poller_linux.go's epoll wait loop, in the teacher's
// internal/uring/minimal.go raw-syscall idiom.
type NotifyFD struct {
	fd   int
	epfd int
	ch   chan struct{}
	done chan struct{}
	once sync.Once
}

// NewNotifyFD creates a non-blocking eventfd and an epoll instance
// watching it for readability, starting a background goroutine that
// forwards readiness onto the channel Notify returns.
func NewNotifyFD() (*NotifyFD, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		_ = unix.Close(fd)
		return nil, err
	}
	ev := &unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		_ = unix.Close(fd)
		_ = unix.Close(epfd)
		return nil, err
	}
	n := &NotifyFD{fd: fd, epfd: epfd, ch: make(chan struct{}, 1), done: make(chan struct{})}
	go n.pollLoop()
	return n, nil
}

func (n *NotifyFD) pollLoop() {
	var events [1]unix.EpollEvent
	for {
		select {
		case <-n.done:
			return
		default:
		}
		count, err := unix.EpollWait(n.epfd, events[:], 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			logging.Default().Errorf("devsim: notifyfd epoll_wait: %v", err)
			return
		}
		if count > 0 {
			select {
			case n.ch <- struct{}{}:
			default:
			}
		}
	}
}

// Arm is a no-op: the eventfd stays level-registered with epoll across
// the engine's arm/wait/clear cycle (spec §4.E's "strictly paired"
// arm/clear is enforced at the engine layer, not the FD layer).
func (n *NotifyFD) Arm() error { return nil }

// Clear drains the eventfd's counter so the next Signal produces a
// fresh readiness edge.
func (n *NotifyFD) Clear() error {
	var buf [8]byte
	_, err := unix.Read(n.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Notify returns the channel the engine selects on for FD readiness.
func (n *NotifyFD) Notify() <-chan struct{} { return n.ch }

// Signal increments the eventfd counter, the production analogue of the
// vendor SDK waking the notification FD when work completes.
func (n *NotifyFD) Signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(n.fd, buf[:])
	return err
}

// Close stops the poll loop and releases the eventfd/epoll descriptors.
func (n *NotifyFD) Close() error {
	n.once.Do(func() { close(n.done) })
	err1 := unix.Close(n.fd)
	err2 := unix.Close(n.epfd)
	if err1 != nil {
		return err1
	}
	return err2
}
