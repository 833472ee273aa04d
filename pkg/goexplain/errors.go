package goexplain

import (
	"errors"

	"github.com/mihaimyh/goexplain/pkg/completion"
)

var (
	// ErrInvalidEvent is returned when an inbound payload is not a JSON object
	ErrInvalidEvent = errors.New("invalid event payload")

	// ErrConfigurationMissing is returned when no completion credential is configured
	ErrConfigurationMissing = errors.New("completion credential not configured")

	// ErrTransportFailure is returned for network errors, timeouts and non-2xx responses
	ErrTransportFailure = errors.New("completion transport failure")

	// ErrMalformedOutput is returned when the model output is not a single JSON object
	// or the provider response lacks the expected structure
	ErrMalformedOutput = errors.New("malformed model output")

	// ErrInvalidResult is returned in strict mode when a parsed result misses required fields
	ErrInvalidResult = errors.New("invalid analysis result")
)

// Fallback reasons, used as log fields and metric labels.
const (
	ReasonConfigMissing    = "config_missing"
	ReasonTransportFailure = "transport_failure"
	ReasonMalformedOutput  = "malformed_output"
	ReasonInvalidResult    = "invalid_result"
)

// classifyCompletionError maps provider errors onto the analyzer taxonomy.
func classifyCompletionError(err error) error {
	switch {
	case errors.Is(err, completion.ErrMalformedResponse):
		return errors.Join(ErrMalformedOutput, err)
	case errors.Is(err, completion.ErrNotConfigured):
		return errors.Join(ErrConfigurationMissing, err)
	default:
		return errors.Join(ErrTransportFailure, err)
	}
}

// failureReason returns the metric/log label for an analyzer error.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return ReasonConfigMissing
	case errors.Is(err, ErrMalformedOutput):
		return ReasonMalformedOutput
	case errors.Is(err, ErrInvalidResult):
		return ReasonInvalidResult
	default:
		return ReasonTransportFailure
	}
}
