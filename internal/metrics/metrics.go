package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	PassesTotal     prometheus.Counter
	PassFailures    prometheus.Counter
	LeaseConflicts  prometheus.Counter
	OrdersAdded     prometheus.Counter
	ClaimsSkipped   prometheus.Counter
	CommentsIgnored prometheus.Counter
	PassDurationSec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	passes := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_passes_total"})
	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_pass_failures_total"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_lease_conflicts_total"})
	added := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_orders_added_total"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_claims_skipped_total"})
	ignored := prometheus.NewCounter(prometheus.CounterOpts{Name: "liveorder_comments_ignored_total"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "liveorder_pass_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(passes, failures, conflicts, added, skipped, ignored, duration)
	return &Registry{
		reg:             r,
		PassesTotal:     passes,
		PassFailures:    failures,
		LeaseConflicts:  conflicts,
		OrdersAdded:     added,
		ClaimsSkipped:   skipped,
		CommentsIgnored: ignored,
		PassDurationSec: duration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
