//go:build linux

package devsim

import (
	"testing"
	"time"
)

func TestNotifyFDSignalWakesNotifyChannel(t *testing.T) {
	n, err := NewNotifyFD()
	if err != nil {
		t.Fatalf("new notify fd: %v", err)
	}
	defer n.Close()

	if err := n.Signal(); err != nil {
		t.Fatalf("signal: %v", err)
	}

	select {
	case <-n.Notify():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
	}

	if err := n.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestNotifyFDCloseStopsPollLoop(t *testing.T) {
	n, err := NewNotifyFD()
	if err != nil {
		t.Fatalf("new notify fd: %v", err)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
