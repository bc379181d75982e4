// Package metrics exposes validation activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/sheetcast/internal/processor"
)

// Status label values.
const (
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// Metrics holds the collectors of one registry. A disabled Metrics is a
// no-op: every method may be called on it.
type Metrics struct {
	sheets       *prometheus.CounterVec
	rows         *prometheus.CounterVec
	messages     *prometheus.CounterVec
	bytes        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	active       prometheus.Gauge
	limitRejects prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors under namespace and registers them on a fresh
// registry.
func New(namespace string, enabled bool) *Metrics {
	if !enabled {
		return &Metrics{}
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		sheets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sheets_processed_total",
				Help:      "Total number of sheets processed",
			},
			[]string{"template", "status"},
		),
		rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_processed_total",
				Help:      "Total number of data rows processed",
			},
			[]string{"template", "status"},
		),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_total",
				Help:      "Total number of validation messages emitted",
			},
			[]string{"code", "severity"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "input_bytes_total",
				Help:      "Total bytes of input read",
			},
			[]string{"template"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sheet_duration_seconds",
				Help:      "Duration of sheet processing in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"template"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_validations",
				Help:      "Current number of validations in progress",
			},
		),
		limitRejects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_rejected_total",
				Help:      "Total number of validations refused by the concurrency limiter",
			},
		),
	}

	registry.MustRegister(
		m.sheets,
		m.rows,
		m.messages,
		m.bytes,
		m.duration,
		m.active,
		m.limitRejects,
	)

	return m
}

// Enabled reports whether the metrics are collected.
func (m *Metrics) Enabled() bool { return m.registry != nil }

// Observer returns a processor.Observer recording under the template label.
func (m *Metrics) Observer(template string) processor.Observer {
	return &observer{m: m, template: template}
}

// ValidationStarted increments the in-flight gauge.
func (m *Metrics) ValidationStarted() {
	if m.active == nil {
		return
	}
	m.active.Inc()
}

// ValidationFinished decrements the in-flight gauge.
func (m *Metrics) ValidationFinished() {
	if m.active == nil {
		return
	}
	m.active.Dec()
}

// RecordLimitRejection counts a validation refused for lack of capacity.
func (m *Metrics) RecordLimitRejection() {
	if m.limitRejects == nil {
		return
	}
	m.limitRejects.Inc()
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

type observer struct {
	m        *Metrics
	template string
}

func (o *observer) ObserveRow(r processor.RowOutcome) {
	if o.m.rows == nil {
		return
	}
	o.m.rows.WithLabelValues(o.template, status(r.Accepted())).Inc()
	for _, msg := range r.Messages {
		o.m.messages.WithLabelValues(msg.Code, string(msg.Severity)).Inc()
	}
}

func (o *observer) ObserveSheet(out processor.Outcome, s processor.Stats) {
	if o.m.sheets == nil {
		return
	}
	o.m.sheets.WithLabelValues(o.template, status(out.Accepted())).Inc()
	for _, msg := range out.Messages {
		o.m.messages.WithLabelValues(msg.Code, string(msg.Severity)).Inc()
	}
	o.m.bytes.WithLabelValues(o.template).Add(float64(s.Bytes))
	o.m.duration.WithLabelValues(o.template).Observe(s.Duration.Seconds())
}

func status(accepted bool) string {
	if accepted {
		return StatusAccepted
	}
	return StatusRejected
}
