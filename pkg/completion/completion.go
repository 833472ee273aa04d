// Package completion defines the contract between the analyzer and a chat
// completion backend.
package completion

import (
	"context"
	"time"
)

// Role values accepted by chat completion endpoints.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single role-tagged turn of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the provider-neutral completion request.
type Request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

// Client is the interface any completion backend must implement.
type Client interface {
	// Name returns the provider name (e.g., "openrouter")
	Name() string

	// Complete sends exactly one request and returns the textual content of the
	// first choice. Implementations must honour ctx cancellation and must not retry.
	Complete(ctx context.Context, req Request) (string, error)
}

// Metrics tracks outbound calls made by a Client.
// All methods are optional - providers should gracefully handle nil metrics.
type Metrics interface {
	// RecordAPICall records a call to the completion provider.
	// status: HTTP status code as string (e.g., "200", "502") or "error" for transport failures
	RecordAPICall(provider, status string)

	// RecordAPICallDuration records how long a call took.
	RecordAPICallDuration(provider string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordAPICall(_, _ string)                        {}
func (n *NoopMetrics) RecordAPICallDuration(_ string, _ time.Duration) {}
