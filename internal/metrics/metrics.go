package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"querycal/internal/model"
)

// Metrics groups the service's Prometheus collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Refreshes      *prometheus.CounterVec
	RefreshSeconds prometheus.Histogram
	Projections    prometheus.Counter
	ResultRows     prometheus.Gauge
	Groups         prometheus.Gauge
	Events         prometheus.Gauge
	SkippedRows    prometheus.Gauge
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "querycal",
			Name:      "refreshes_total",
			Help:      "Source refreshes by outcome.",
		}, []string{"outcome"}),
		RefreshSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "querycal",
			Name:      "refresh_duration_seconds",
			Help:      "Time spent fetching the source.",
			Buckets:   prometheus.DefBuckets,
		}),
		Projections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "querycal",
			Name:      "projections_total",
			Help:      "Number of times rows were projected into event sources.",
		}),
		ResultRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "querycal",
			Name:      "result_rows",
			Help:      "Rows in the last projected result.",
		}),
		Groups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "querycal",
			Name:      "event_sources",
			Help:      "Event sources (groups) in the last projection.",
		}),
		Events: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "querycal",
			Name:      "events",
			Help:      "Calendar events in the last projection.",
		}),
		SkippedRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "querycal",
			Name:      "skipped_rows",
			Help:      "Rows dropped as malformed in the last projection.",
		}),
	}
	reg.MustRegister(
		m.Refreshes,
		m.RefreshSeconds,
		m.Projections,
		m.ResultRows,
		m.Groups,
		m.Events,
		m.SkippedRows,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveProjection records the shape of one projection. Only meaningful
// when sources is non-empty; an unconfigured mapping yields no sources and
// therefore no skipped rows.
func (m *Metrics) ObserveProjection(rows int, sources []model.EventSource) {
	events := 0
	for _, s := range sources {
		events += len(s.Events)
	}
	skipped := 0
	if len(sources) > 0 {
		skipped = rows - events
	}
	m.Projections.Inc()
	m.ResultRows.Set(float64(rows))
	m.Groups.Set(float64(len(sources)))
	m.Events.Set(float64(events))
	m.SkippedRows.Set(float64(skipped))
}
