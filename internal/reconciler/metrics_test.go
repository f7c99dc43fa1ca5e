package reconciler

import (
	"errors"
	"testing"
	"time"
)

func TestMetrics_RecordPass(t *testing.T) {
	metrics := NewMetrics()
	now := time.Now()

	metrics.RecordPass(Outcome{Reconciler: "dns", Started: now, Finished: now.Add(time.Second), Changed: true, Restarted: true})
	metrics.RecordPass(Outcome{Reconciler: "dns", Started: now, Finished: now.Add(2 * time.Second), Err: errors.New("io")})
	metrics.RecordPass(Outcome{Reconciler: "ftp", Started: now, Finished: now, Err: &PanicError{Value: "x"}})

	summary := metrics.Summary()
	if summary.TotalPasses != 3 {
		t.Errorf("expected TotalPasses=3, got %d", summary.TotalPasses)
	}
	if summary.TotalFailures != 2 || summary.TotalPanics != 1 || summary.TotalRestarts != 1 {
		t.Errorf("unexpected totals %+v", summary)
	}

	dns, ok := metrics.Reconciler("dns")
	if !ok {
		t.Fatal("expected dns metrics to exist")
	}
	if dns.Passes != 2 || dns.Failures != 1 || dns.Changed != 1 {
		t.Errorf("unexpected dns metrics %+v", dns)
	}
	if dns.LastDuration != 2*time.Second {
		t.Errorf("expected LastDuration=2s, got %s", dns.LastDuration)
	}
	if dns.LastSuccessAt.IsZero() || dns.LastFailureAt.IsZero() {
		t.Error("expected success and failure timestamps to be set")
	}

	if _, ok := metrics.Reconciler("unknown"); ok {
		t.Error("expected no metrics for unknown reconciler")
	}
}

func TestMetrics_FailureRate(t *testing.T) {
	metrics := NewMetrics()
	if rate := metrics.Summary().FailureRate; rate != 0 {
		t.Errorf("expected zero failure rate without passes, got %f", rate)
	}

	metrics.RecordPass(Outcome{Reconciler: "a"})
	metrics.RecordPass(Outcome{Reconciler: "a", Err: errors.New("x")})
	if rate := metrics.Summary().FailureRate; rate != 0.5 {
		t.Errorf("expected failure rate 0.5, got %f", rate)
	}
}
