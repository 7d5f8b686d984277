package promobserver

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestObserveSubmitIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg, "doca_test")

	o.ObserveSubmit(false)
	o.ObserveSubmit(true)
	o.ObserveSubmit(true)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() != "doca_test_task_submissions_total" {
			continue
		}
		found = true
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		if total != 3 {
			t.Fatalf("expected 3 total submissions, got %v", total)
		}
	}
	if !found {
		t.Fatal("expected submissions metric family to be present")
	}
}

func TestObserveTaskRecordsOutcomeAndLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	o := New(reg, "doca_test")

	o.ObserveTask(5_000_000, true)
	o.ObserveTask(1_000_000, false)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sawSuccess, sawFailure bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "doca_test_tasks_completed_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" {
					switch l.GetValue() {
					case "success":
						sawSuccess = true
					case "failure":
						sawFailure = true
					}
				}
			}
		}
	}
	if !sawSuccess || !sawFailure {
		t.Fatalf("expected both outcome labels present")
	}
}
