// Package metrics exposes Prometheus collectors for the counter.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"durood/internal/core"
)

const namespace = "durood"

type Metrics struct {
	registry *prometheus.Registry

	EntriesAdded    prometheus.Counter
	DuroodAdded     prometheus.Counter
	EntriesEdited   *prometheus.CounterVec
	DaysClosed      prometheus.Counter
	Resets          prometheus.Counter
	PublishFailures *prometheus.CounterVec
	TotalCount      prometheus.Gauge
	LifetimeTotal   prometheus.Gauge
	ClosedDays      prometheus.Gauge
}

// New registers every collector on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		EntriesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_added_total",
			Help:      "Number of entries recorded.",
		}),
		DuroodAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recitations_added_total",
			Help:      "Sum of counts recorded through additions.",
		}),
		EntriesEdited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_edited_total",
			Help:      "Edit requests by outcome.",
		}, []string{"outcome"}),
		DaysClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_closed_total",
			Help:      "Business days closed by rollover.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Full resets performed.",
		}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be published, by event type.",
		}, []string{"event"}),
		TotalCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "today_total",
			Help:      "Running total of the current business day.",
		}),
		LifetimeTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "lifetime_total",
			Help:      "Cumulative lifetime total.",
		}),
		ClosedDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "closed_days",
			Help:      "Number of closed days kept in history.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.EntriesAdded,
		m.DuroodAdded,
		m.EntriesEdited,
		m.DaysClosed,
		m.Resets,
		m.PublishFailures,
		m.TotalCount,
		m.LifetimeTotal,
		m.ClosedDays,
	)
	return m
}

// ObserveState sets the gauges from a state snapshot.
func (m *Metrics) ObserveState(s core.State) {
	m.TotalCount.Set(float64(s.TotalCount))
	m.LifetimeTotal.Set(float64(s.LifetimeTotal))
	m.ClosedDays.Set(float64(len(s.DailyTotals)))
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
