package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// Metrics implements goexplain.Metrics using Prometheus.
type Metrics struct {
	analysesTotal         *prometheus.CounterVec
	analysisDuration      *prometheus.HistogramVec
	fallbacksTotal        *prometheus.CounterVec
	impactLevelsTotal     *prometheus.CounterVec
	impactCoercionsTotal  prometheus.Counter
	apiCallsTotal         *prometheus.CounterVec
	apiCallDuration       *prometheus.HistogramVec
	requestsRejectedTotal *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analyses_total",
			Help:      "Total number of analyzed webhook events by result source.",
		}, []string{"event_type", "source"}),

		analysisDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of an analysis in seconds.",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"event_type"}),

		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "fallbacks_total",
			Help:      "Total number of analyses answered by the fallback classifier, by reason.",
		}, []string{"reason"}),

		impactLevelsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "impact_levels_total",
			Help:      "Total number of returned results by customer impact level.",
		}, []string{"level"}),

		impactCoercionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analyzer",
			Name:      "impact_coercions_total",
			Help:      "Total number of model impact levels coerced to medium.",
		}),

		apiCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "api_calls_total",
			Help:      "Total number of calls to the completion provider.",
		}, []string{"provider", "status"}),

		apiCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "api_call_duration_seconds",
			Help:      "Duration of calls to the completion provider in seconds.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"provider"}),

		requestsRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_rejected_total",
			Help:      "Total number of inbound requests rejected before analysis.",
		}, []string{"reason"}),
	}
}

func (m *Metrics) RecordAnalysis(eventType, source string) {
	m.analysesTotal.WithLabelValues(eventType, source).Inc()
}

func (m *Metrics) RecordAnalysisDuration(eventType string, duration time.Duration) {
	m.analysisDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *Metrics) RecordFallback(reason string) {
	m.fallbacksTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordImpactLevel(level goexplain.ImpactLevel) {
	m.impactLevelsTotal.WithLabelValues(string(level)).Inc()
}

func (m *Metrics) RecordImpactCoerced() {
	m.impactCoercionsTotal.Inc()
}

func (m *Metrics) RecordAPICall(provider, status string) {
	m.apiCallsTotal.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) RecordAPICallDuration(provider string, duration time.Duration) {
	m.apiCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordRequestRejected(reason string) {
	m.requestsRejectedTotal.WithLabelValues(reason).Inc()
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) goexplain.Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
