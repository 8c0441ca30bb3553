// Package metrics exposes the service's Prometheus instrumentation. All
// methods are safe on a nil *Metrics so tests can run uninstrumented.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry             *prometheus.Registry
	commandsProcessed    *prometheus.CounterVec
	commandsFailed       *prometheus.CounterVec
	commandDuration      prometheus.Histogram
	concurrencyConflicts prometheus.Counter
	eventsPublished      *prometheus.CounterVec
	eventsFailed         *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	return &Metrics{
		registry: registry,
		commandsProcessed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_commands_processed_total",
			Help: "Total number of successfully processed commands",
		}, []string{"command"}),
		commandsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_commands_failed_total",
			Help: "Total number of failed commands",
		}, []string{"command", "reason"}),
		commandDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_command_duration_seconds",
			Help:    "Time taken to execute a command end to end",
			Buckets: prometheus.DefBuckets,
		}),
		concurrencyConflicts: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_concurrency_conflicts_total",
			Help: "Total number of optimistic-concurrency conflicts at save time",
		}),
		eventsPublished: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_published_total",
			Help: "Total number of integration events published",
		}, []string{"subject"}),
		eventsFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_failed_total",
			Help: "Total number of integration events that exhausted their publish retries",
		}, []string{"subject"}),
	}
}

func (m *Metrics) CommandProcessed(command string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.commandsProcessed.WithLabelValues(command).Inc()
	m.commandDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) CommandFailed(command, reason string) {
	if m == nil {
		return
	}
	m.commandsFailed.WithLabelValues(command, reason).Inc()
}

func (m *Metrics) ConcurrencyConflict() {
	if m == nil {
		return
	}
	m.concurrencyConflicts.Inc()
}

func (m *Metrics) EventPublished(subject string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(subject).Inc()
}

func (m *Metrics) EventFailed(subject string) {
	if m == nil {
		return
	}
	m.eventsFailed.WithLabelValues(subject).Inc()
}

// Handler serves the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
