package doca

import "testing"

func TestMetricsRecordTask(t *testing.T) {
	m := NewMetrics()
	m.RecordSubmit(false)
	m.RecordTask(5_000, true)
	m.RecordSubmit(true)
	m.RecordTask(2_000_000, false)

	snap := m.Snapshot()
	if snap.TasksSubmitted != 2 {
		t.Fatalf("expected 2 submits, got %d", snap.TasksSubmitted)
	}
	if snap.ResubmitCount != 1 {
		t.Fatalf("expected 1 resubmit, got %d", snap.ResubmitCount)
	}
	if snap.TasksCompleted != 2 || snap.TasksFailed != 1 {
		t.Fatalf("expected 2 completed/1 failed, got %+v", snap)
	}
	if snap.ErrorRate <= 0 {
		t.Fatalf("expected nonzero error rate, got %v", snap.ErrorRate)
	}
}

func TestMetricsInflightTracksMax(t *testing.T) {
	m := NewMetrics()
	m.RecordInflight(3)
	m.RecordInflight(10)
	m.RecordInflight(2)

	snap := m.Snapshot()
	if snap.MaxInflight != 10 {
		t.Fatalf("expected max inflight 10, got %d", snap.MaxInflight)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordTask(1_000, true)
	m.Reset()

	snap := m.Snapshot()
	if snap.TasksCompleted != 0 {
		t.Fatalf("expected reset to zero counters, got %+v", snap)
	}
}

func TestNoOpObserverSatisfiesInterface(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveSubmit(false)
	o.ObserveTask(1, true)
	o.ObserveInflight(1)
}
