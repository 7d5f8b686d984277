// Package sdkstub provides a configurable stand-in for the vendor SDK
// collaborator, used in place of real hardware in tests. It mirrors the
// teacher's MockBackend idiom (internal/ctrl mock in the pack) but
// speaks the engine.SDK / task-submission surface instead of block I/O.
package sdkstub

import (
	"sync"
	"sync/atomic"
)

// SDK is a fake progress-engine collaborator. Submissions fail with
// ErrAgain for the first FailCount calls (counted across all
// submissions, not per task), then succeed, letting callers exercise submission backpressure and retry
// without real hardware.
type SDK struct {
	mu        sync.Mutex
	armed     bool
	notify    chan struct{}
	completed []func()

	FailCount int32
	calls     int32
}

// New constructs a stub SDK. failCount is how many times SubmitTask-style
// callers should observe ErrAgain before a submission is accepted.
func New(failCount int32) *SDK {
	return &SDK{notify: make(chan struct{}, 1), FailCount: failCount}
}

func (s *SDK) ArmNotification() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = true
	return nil
}

func (s *SDK) ClearNotification() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = false
	return nil
}

// Notify exposes the readiness channel the engine selects on.
func (s *SDK) Notify() <-chan struct{} { return s.notify }

// Progress dispatches one pending completion callback, if any, reporting
// whether it did work.
func (s *SDK) Progress() (bool, error) {
	s.mu.Lock()
	if len(s.completed) == 0 {
		s.mu.Unlock()
		return false, nil
	}
	cb := s.completed[0]
	s.completed = s.completed[1:]
	s.mu.Unlock()
	cb()
	return true, nil
}

// ErrAgain is the transient backpressure error this stub returns while
// FailCount has not yet been exhausted.
type ErrAgain struct{}

func (ErrAgain) Error() string { return "again" }

// Submit simulates submitting one task to the SDK: it fails with
// ErrAgain{} for the first FailCount calls, then schedules onComplete to
// run on a future Progress call and pings Notify.
func (s *SDK) Submit(onComplete func()) error {
	n := atomic.AddInt32(&s.calls, 1)
	if n <= s.FailCount {
		return ErrAgain{}
	}

	s.mu.Lock()
	s.completed = append(s.completed, onComplete)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return nil
}

// Calls reports how many times Submit has been invoked.
func (s *SDK) Calls() int32 { return atomic.LoadInt32(&s.calls) }
