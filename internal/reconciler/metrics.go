package reconciler

import (
	"sort"
	"sync"
	"time"

	"hostconfd/pkg/logging"
)

// Metrics tracks pass counts and timings per reconciler.
type Metrics struct {
	mu sync.RWMutex

	perReconciler map[string]*reconcilerMetrics

	totalPasses   int64
	totalFailures int64
	totalPanics   int64
	totalRestarts int64
}

type reconcilerMetrics struct {
	Passes        int64
	Failures      int64
	Panics        int64
	Restarts      int64
	Changed       int64
	LastPassAt    time.Time
	LastSuccessAt time.Time
	LastFailureAt time.Time
	LastDuration  time.Duration
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{perReconciler: make(map[string]*reconcilerMetrics)}
}

func (m *Metrics) getOrCreate(name string) *reconcilerMetrics {
	if rm, ok := m.perReconciler[name]; ok {
		return rm
	}
	rm := &reconcilerMetrics{}
	m.perReconciler[name] = rm
	return rm
}

// RecordPass accounts for one finished pass.
func (m *Metrics) RecordPass(out Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreate(out.Reconciler)
	rm.Passes++
	rm.LastPassAt = out.Finished
	rm.LastDuration = out.Duration()
	m.totalPasses++

	if out.Changed {
		rm.Changed++
	}
	if out.Restarted {
		rm.Restarts++
		m.totalRestarts++
	}
	if out.Err == nil {
		rm.LastSuccessAt = out.Finished
		return
	}

	rm.Failures++
	rm.LastFailureAt = out.Finished
	m.totalFailures++
	if _, ok := out.Err.(*PanicError); ok {
		rm.Panics++
		m.totalPanics++
	}
	logging.Debug("ReconcilerMetrics", "%s failures: %d of %d passes", out.Reconciler, rm.Failures, rm.Passes)
}

// MetricsSummary is a read-only snapshot of Metrics.
type MetricsSummary struct {
	TotalPasses   int64                  `json:"total_passes"`
	TotalFailures int64                  `json:"total_failures"`
	TotalPanics   int64                  `json:"total_panics"`
	TotalRestarts int64                  `json:"total_restarts"`
	FailureRate   float64                `json:"failure_rate"`
	PerReconciler []ReconcilerMetricView `json:"per_reconciler"`
}

// ReconcilerMetricView is the per-reconciler part of MetricsSummary.
type ReconcilerMetricView struct {
	Name          string        `json:"name"`
	Passes        int64         `json:"passes"`
	Failures      int64         `json:"failures"`
	Panics        int64         `json:"panics"`
	Restarts      int64         `json:"restarts"`
	Changed       int64         `json:"changed"`
	LastPassAt    time.Time     `json:"last_pass_at,omitempty"`
	LastSuccessAt time.Time     `json:"last_success_at,omitempty"`
	LastFailureAt time.Time     `json:"last_failure_at,omitempty"`
	LastDuration  time.Duration `json:"last_duration"`
}

// Summary returns a snapshot sorted by reconciler name.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := MetricsSummary{
		TotalPasses:   m.totalPasses,
		TotalFailures: m.totalFailures,
		TotalPanics:   m.totalPanics,
		TotalRestarts: m.totalRestarts,
	}
	if m.totalPasses > 0 {
		s.FailureRate = float64(m.totalFailures) / float64(m.totalPasses)
	}
	for name, rm := range m.perReconciler {
		s.PerReconciler = append(s.PerReconciler, ReconcilerMetricView{
			Name:          name,
			Passes:        rm.Passes,
			Failures:      rm.Failures,
			Panics:        rm.Panics,
			Restarts:      rm.Restarts,
			Changed:       rm.Changed,
			LastPassAt:    rm.LastPassAt,
			LastSuccessAt: rm.LastSuccessAt,
			LastFailureAt: rm.LastFailureAt,
			LastDuration:  rm.LastDuration,
		})
	}
	sort.Slice(s.PerReconciler, func(i, j int) bool {
		return s.PerReconciler[i].Name < s.PerReconciler[j].Name
	})
	return s
}

// Reconciler returns the view for one reconciler.
func (m *Metrics) Reconciler(name string) (ReconcilerMetricView, bool) {
	for _, v := range m.Summary().PerReconciler {
		if v.Name == name {
			return v, true
		}
	}
	return ReconcilerMetricView{}, false
}
