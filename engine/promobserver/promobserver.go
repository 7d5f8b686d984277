// Package promobserver adapts engine.Observer onto
// github.com/prometheus/client_golang. This module's own in-process
// Metrics type (see metrics.go at the repository root) tracks the same
// events with stdlib atomics; this package gives operators a second
// Observer implementation that exports them as Prometheus collectors
// instead, usable wherever engine.Config.Observer is wired.
package promobserver

import "github.com/prometheus/client_golang/prometheus"

// Observer records progress-engine submission and task-completion
// events as Prometheus collectors, satisfying engine.Observer.
type Observer struct {
	submissions   *prometheus.CounterVec
	taskCompleted *prometheus.CounterVec
	taskLatency   prometheus.Histogram
}

// New registers its collectors against reg and returns an Observer
// ready to pass as engine.Config.Observer.
func New(reg prometheus.Registerer, namespace string) *Observer {
	o := &Observer{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_submissions_total",
			Help:      "Task submissions to the progress engine, labeled by whether the attempt was a resubmission.",
		}, []string{"resubmit"}),
		taskCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_completed_total",
			Help:      "Completed offload tasks, labeled by outcome.",
		}, []string{"outcome"}),
		taskLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_latency_seconds",
			Help:      "Offload task completion latency.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, 8),
		}),
	}
	reg.MustRegister(o.submissions, o.taskCompleted, o.taskLatency)
	return o
}

// ObserveSubmit records one submission attempt.
func (o *Observer) ObserveSubmit(resubmit bool) {
	label := "false"
	if resubmit {
		label = "true"
	}
	o.submissions.WithLabelValues(label).Inc()
}

// ObserveTask records one completed task's outcome and latency.
func (o *Observer) ObserveTask(latencyNs uint64, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	o.taskCompleted.WithLabelValues(outcome).Inc()
	o.taskLatency.Observe(float64(latencyNs) / 1e9)
}
