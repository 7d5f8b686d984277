package doca

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the task-completion latency histogram buckets
// in nanoseconds, covering 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks task submission/completion statistics across every
// offload context sharing one progress engine.
type Metrics struct {
	TasksSubmitted atomic.Uint64
	TasksCompleted atomic.Uint64
	TasksFailed    atomic.Uint64
	ResubmitCount  atomic.Uint64 // count of AGAIN-triggered resubmission attempts

	InflightTotal atomic.Uint64 // cumulative inflight-depth samples
	InflightCount atomic.Uint64
	MaxInflight   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordTask records the outcome and latency of one completed task.
func (m *Metrics) RecordTask(latencyNs uint64, success bool) {
	m.TasksCompleted.Add(1)
	if !success {
		m.TasksFailed.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordSubmit records a submission attempt; resubmit marks a retry
// triggered by the engine's backpressure ladder rather than the first
// attempt.
func (m *Metrics) RecordSubmit(resubmit bool) {
	m.TasksSubmitted.Add(1)
	if resubmit {
		m.ResubmitCount.Add(1)
	}
}

// RecordInflight records the current number of tasks awaiting completion
// on one context, for queue-depth statistics.
func (m *Metrics) RecordInflight(depth uint32) {
	m.InflightTotal.Add(uint64(depth))
	m.InflightCount.Add(1)

	for {
		current := m.MaxInflight.Load()
		if depth <= current {
			break
		}
		if m.MaxInflight.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived rates.
type MetricsSnapshot struct {
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksFailed    uint64
	ResubmitCount  uint64

	AvgInflight float64
	MaxInflight uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	ThroughputOpsPerSec float64
	ErrorRate           float64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TasksSubmitted: m.TasksSubmitted.Load(),
		TasksCompleted: m.TasksCompleted.Load(),
		TasksFailed:    m.TasksFailed.Load(),
		ResubmitCount:  m.ResubmitCount.Load(),
		MaxInflight:    m.MaxInflight.Load(),
	}

	inflightTotal := m.InflightTotal.Load()
	inflightCount := m.InflightCount.Load()
	if inflightCount > 0 {
		snap.AvgInflight = float64(inflightTotal) / float64(inflightCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.ThroughputOpsPerSec = float64(snap.TasksCompleted) / uptimeSeconds
	}

	if snap.TasksCompleted > 0 {
		snap.ErrorRate = float64(snap.TasksFailed) / float64(snap.TasksCompleted) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) by linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters; useful between test scenarios.
func (m *Metrics) Reset() {
	m.TasksSubmitted.Store(0)
	m.TasksCompleted.Store(0)
	m.TasksFailed.Store(0)
	m.ResubmitCount.Store(0)
	m.InflightTotal.Store(0)
	m.InflightCount.Store(0)
	m.MaxInflight.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer receives task lifecycle events from the progress engine and
// every concrete offload context sharing it. Implementations must be
// safe to call from the engine's single executor goroutine only; they
// are never called concurrently by this package.
type Observer interface {
	ObserveSubmit(resubmit bool)
	ObserveTask(latencyNs uint64, success bool)
	ObserveInflight(depth uint32)
}

// NoOpObserver discards every event; the zero-dependency default.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit(bool)         {}
func (NoOpObserver) ObserveTask(uint64, bool)   {}
func (NoOpObserver) ObserveInflight(uint32)     {}

// MetricsObserver records events into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit(resubmit bool)           { o.metrics.RecordSubmit(resubmit) }
func (o *MetricsObserver) ObserveTask(latencyNs uint64, ok bool) { o.metrics.RecordTask(latencyNs, ok) }
func (o *MetricsObserver) ObserveInflight(depth uint32)          { o.metrics.RecordInflight(depth) }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
