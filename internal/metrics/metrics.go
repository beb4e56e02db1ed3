// Package metrics собирает метрики Prometheus движка начислений, доставки событий и HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "invest"

// Результаты запуска движка начислений.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

type Metrics struct {
	registry           *prometheus.Registry
	accrualRuns        *prometheus.CounterVec
	accrualInvestments *prometheus.CounterVec
	accrualDuration    prometheus.Histogram
	relayEvents        *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New создает метрики в отдельном реестре. Стандартные метрики процесса и Go регистрируются там же.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accrualRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "accrual",
				Name:      "runs_total",
				Help:      "Total number of accrual engine runs.",
			},
			[]string{"result"},
		),
		accrualInvestments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "accrual",
				Name:      "investments_total",
				Help:      "Investments processed by the accrual engine by outcome.",
			},
			[]string{"outcome"},
		),
		accrualDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "accrual",
				Name:      "run_duration_seconds",
				Help:      "Duration of accrual engine runs.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), //nolint:mnd
			},
		),
		relayEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "relay",
				Name:      "events_total",
				Help:      "Outbox events delivered by the relay.",
			},
			[]string{"kind", "result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), //nolint:mnd
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.accrualRuns,
		m.accrualInvestments,
		m.accrualDuration,
		m.relayEvents,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler отдает метрики реестра в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) AccrualRun(result string, duration time.Duration) {
	m.accrualRuns.WithLabelValues(result).Inc()
	if result != ResultSkipped {
		m.accrualDuration.Observe(duration.Seconds())
	}
}

// AccrualInvestments добавляет n инвестиций с исходом outcome (credited, matured, skipped, failed).
func (m *Metrics) AccrualInvestments(outcome string, n int) {
	if n <= 0 {
		return
	}
	m.accrualInvestments.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) RelayEvent(kind, result string) {
	m.relayEvents.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
