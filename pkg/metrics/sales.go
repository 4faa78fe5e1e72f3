package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics records commit outcomes for sale transactions.
type SaleMetrics struct {
	duration  *prometheus.HistogramVec
	committed prometheus.Counter
	failed    *prometheus.CounterVec
}

// NewSaleMetrics registers the sale commit metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sale_commit_duration_seconds",
		Help:    "Duration of sale commit transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	committed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sale_committed_total",
		Help: "Sales committed successfully.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sale_commit_failed_total",
		Help: "Sale commits aborted, by error code.",
	}, []string{"code"})
	reg.MustRegister(duration, committed, failed)
	return &SaleMetrics{
		duration:  duration,
		committed: committed,
		failed:    failed,
	}
}

// ObserveCommit records the duration of one commit attempt.
func (s *SaleMetrics) ObserveCommit(outcome string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCommitted increments the committed counter.
func (s *SaleMetrics) IncCommitted() {
	if s == nil || s.committed == nil {
		return
	}
	s.committed.Inc()
}

// IncFailed increments the failure counter for the given error code.
func (s *SaleMetrics) IncFailed(code string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(code)).Inc()
}
