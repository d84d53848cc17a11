package report

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xaenox/keep-migrate/internal/migrate"
)

// Metrics counts events in a private registry that can be written as a
// node-exporter textfile once the run ends.
type Metrics struct {
	registry *prometheus.Registry

	Events    *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Notes     *prometheus.CounterVec
	Reminders prometheus.Counter
	LastRun   prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Migration events by phase and kind",
			},
			[]string{"phase", "kind"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retried remote operations by phase",
			},
			[]string{"phase"},
		),
		Notes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notes_total",
				Help:      "Source notes by outcome",
			},
			[]string{"outcome"},
		),
		Reminders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reminders_copied_total",
				Help:      "Individual reminders written to the destination",
			},
		),
		LastRun: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_run_timestamp_seconds",
				Help:      "Unix time the last run finished",
			},
		),
	}

	registry.MustRegister(m.Events, m.Retries, m.Notes, m.Reminders, m.LastRun)
	return m
}

func (m *Metrics) Report(e migrate.Event) {
	m.Events.WithLabelValues(string(e.Phase), string(e.Kind)).Inc()

	switch e.Kind {
	case migrate.EventRetry:
		m.Retries.WithLabelValues(string(e.Phase)).Inc()
	case migrate.EventNoteCopied:
		m.Notes.WithLabelValues("copied").Inc()
	case migrate.EventNoteFailed:
		m.Notes.WithLabelValues("failed").Inc()
	case migrate.EventNoteSkipped:
		m.Notes.WithLabelValues("skipped_" + e.Reason).Inc()
	case migrate.EventRemindersCopied:
		m.Reminders.Add(float64(e.Count))
	}
}

// WriteTextfile stamps the run time and writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
