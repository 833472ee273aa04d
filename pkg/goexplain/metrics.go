package goexplain

import (
	"time"

	"github.com/mihaimyh/goexplain/pkg/completion"
)

// Result sources reported to RecordAnalysis.
const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// Metrics defines the interface for tracking analyses and outbound calls.
type Metrics interface {
	completion.Metrics

	// RecordAnalysis records a finished analysis.
	// source: "model" or "fallback"
	RecordAnalysis(eventType, source string)

	// RecordAnalysisDuration records the end-to-end duration of an analysis.
	RecordAnalysisDuration(eventType string, duration time.Duration)

	// RecordFallback records why the model path was abandoned.
	// reason: "config_missing", "transport_failure", "malformed_output", "invalid_result"
	RecordFallback(reason string)

	// RecordImpactLevel records the impact level of a returned result.
	RecordImpactLevel(level ImpactLevel)

	// RecordImpactCoerced records a model-supplied impact level outside the closed set.
	RecordImpactCoerced()

	// RecordRequestRejected records an inbound request rejected before analysis.
	// reason: "method_not_allowed", "payload_too_large", "invalid_payload", "rate_limited"
	RecordRequestRejected(reason string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPICall(_, _ string)                        {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordAnalysis(_, _ string)                       {}
func (n *NoopMetrics) RecordAnalysisDuration(_ string, _ time.Duration) {}
func (n *NoopMetrics) RecordFallback(_ string)                          {}
func (n *NoopMetrics) RecordImpactLevel(_ ImpactLevel)                  {}
func (n *NoopMetrics) RecordImpactCoerced()                             {}
func (n *NoopMetrics) RecordRequestRejected(_ string)                   {}
