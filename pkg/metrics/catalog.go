package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CatalogMetrics records catalog snapshot refresh activity.
type CatalogMetrics struct {
	duration prometheus.Histogram
	success  prometheus.Counter
	failure  prometheus.Counter
	partial  prometheus.Counter
}

// NewCatalogMetrics registers the catalog refresher metrics.
func NewCatalogMetrics(reg prometheus.Registerer) *CatalogMetrics {
	if reg == nil {
		return &CatalogMetrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_refresh_duration_seconds",
		Help:    "Duration of catalog snapshot refreshes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_refresh_success_total",
		Help: "Catalog refreshes that published a fully fresh snapshot.",
	})
	failure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_refresh_failure_total",
		Help: "Catalog refreshes that kept the previous snapshot entirely.",
	})
	partial := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_refresh_partial_total",
		Help: "Catalog refreshes that retained part of the previous snapshot.",
	})
	reg.MustRegister(duration, success, failure, partial)
	return &CatalogMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		partial:  partial,
	}
}

// ObserveRefresh records the duration of one refresh.
func (c *CatalogMetrics) ObserveRefresh(duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.Observe(duration.Seconds())
}

// IncSuccess increments the full-refresh counter.
func (c *CatalogMetrics) IncSuccess() {
	if c == nil || c.success == nil {
		return
	}
	c.success.Inc()
}

// IncFailure increments the kept-stale counter.
func (c *CatalogMetrics) IncFailure() {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.Inc()
}

// IncPartial increments the partial-refresh counter.
func (c *CatalogMetrics) IncPartial() {
	if c == nil || c.partial == nil {
		return
	}
	c.partial.Inc()
}
