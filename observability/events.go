package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
	dropped prometheus.Counter
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking published vault events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "yzy",
				Subsystem: "events",
				Name:      "journal_failures_total",
				Help:      "Count of events the journal failed to persist.",
			}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.dropped)
	})
	return eventRegistry
}

// RecordEvent increments the counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// RecordJournalFailure counts an event the journal could not store.
func (m *eventMetrics) RecordJournalFailure() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
