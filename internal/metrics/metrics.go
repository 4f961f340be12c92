// Package metrics counts what a crawl or processing run did and pushes the
// totals to a Prometheus Pushgateway when the run ends.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

const namespace = "jobinsight"

// Enrichment outcomes.
const (
	OutcomeEnriched = "enriched"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
)

// Metrics holds run counters on a private registry. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	postings     *prometheus.CounterVec // platform, stage
	emptyFetches *prometheus.CounterVec // platform, kind
	enrichments  *prometheus.CounterVec // outcome
	generation   prometheus.Histogram
	lastSuccess  prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		postings: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "postings_total",
			Help:      "Postings seen by the crawler, by pipeline stage.",
		}, []string{"platform", "stage"}),
		emptyFetches: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_fetches_total",
			Help:      "Fetches that returned no content.",
		}, []string{"platform", "kind"}),
		enrichments: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Enrichment records written, by outcome.",
		}, []string{"outcome"}),
		generation: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_seconds",
			Help:      "Latency of text-generation calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		lastSuccess: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Postings adds n postings at stage (crawled, relevant, stored, duplicate, failed).
func (m *Metrics) Postings(platform, stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.postings.WithLabelValues(platform, stage).Add(float64(n))
}

// EmptyFetch counts a listing or detail fetch that produced nothing.
func (m *Metrics) EmptyFetch(platform, kind string) {
	if m == nil {
		return
	}
	m.emptyFetches.WithLabelValues(platform, kind).Inc()
}

// Enrichment counts one processed record.
func (m *Metrics) Enrichment(outcome string) {
	if m == nil {
		return
	}
	m.enrichments.WithLabelValues(outcome).Inc()
}

// Generation records the latency of one generation call.
func (m *Metrics) Generation(d time.Duration) {
	if m == nil {
		return
	}
	m.generation.Observe(d.Seconds())
}

// Push marks the run finished and sends every collector to the Pushgateway
// at url under job. An empty url disables pushing.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	m.lastSuccess.SetToCurrentTime()
	err := push.New(url, job).Gatherer(m.registry).PushContext(ctx)
	return eris.Wrapf(err, "metrics: push to %s", url)
}
