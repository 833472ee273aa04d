package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// DefaultMaxBodyBytes caps inbound webhook payloads.
const DefaultMaxBodyBytes int64 = 256 << 10

// Explainer produces an analysis for a parsed event.
// *goexplain.Analyzer satisfies it.
type Explainer interface {
	Analyze(ctx context.Context, e goexplain.Event) goexplain.AnalysisResult
}

// Limiter decides whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Config holds configuration for the explain handler
type Config struct {
	// Analyzer produces results for parsed events (required)
	Analyzer Explainer

	// MaxBodyBytes limits the request body size (default: 256 KiB)
	MaxBodyBytes int64

	// Limiter optionally rate limits callers. If nil, requests are not limited.
	Limiter Limiter

	// GetKey extracts the rate limit key from the request.
	// Default: client IP
	GetKey func(*http.Request) string

	// OnError handles rejected requests.
	// If nil, a JSON error body with the matching status is written.
	OnError func(w http.ResponseWriter, r *http.Request, err error, status int)

	// Logger is optional. Defaults to a no-op logger.
	Logger goexplain.Logger

	// Metrics is optional. Defaults to no-op metrics.
	Metrics goexplain.Metrics
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Analyzer == nil {
		return fmt.Errorf("analyzer is required")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max body bytes must not be negative")
	}
	return nil
}

// NewHandler creates a new explain handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if config.GetKey == nil {
		config.GetKey = httputil.GetClientIP
	}
	if config.Logger == nil {
		config.Logger = &goexplain.NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &goexplain.NoopMetrics{}
	}
	return &Handler{config: config}, nil
}

// FromHeader returns a GetKey function that keys callers by a header value,
// falling back to the client IP when the header is absent.
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		if v := r.Header.Get(headerName); v != "" {
			return v
		}
		return httputil.GetClientIP(r)
	}
}
