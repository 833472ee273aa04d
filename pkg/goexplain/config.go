package goexplain

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mihaimyh/goexplain/pkg/completion"
)

const (
	// DefaultModel is the completion model used when Config.Model is empty
	DefaultModel = "amazon/nova-2-lite-v1:free"

	// DefaultTimeout bounds the single completion call
	DefaultTimeout = 30 * time.Second

	// Temperature is the sampling temperature sent with every request
	Temperature = 0.2
)

// Config configures an Analyzer. It is read once at construction; an
// Analyzer never consults the environment.
type Config struct {
	// APIKey is the completion service credential.
	// If empty, every analysis skips the model and uses the fallback classifier.
	APIKey string

	// Model is the completion model identifier (default: DefaultModel)
	Model string

	// Timeout bounds the completion call (default: 30s)
	Timeout time.Duration

	// StrictValidation routes model results missing summary, root_cause or
	// recommended_actions to the fallback classifier.
	// Default: false (results are returned as parsed)
	StrictValidation bool

	// Client is an optional completion backend.
	// If nil and APIKey is set, an OpenRouter provider is created.
	Client completion.Client

	// Endpoint, Referer, Title and HTTPClient configure the default OpenRouter
	// provider. Ignored when Client is set.
	Endpoint   string
	Referer    string
	Title      string
	HTTPClient *http.Client

	// Logger is an optional structured logger.
	// If nil, logs are discarded.
	Logger Logger

	// Metrics is an optional metrics collector.
	// If nil, metrics will be silently ignored (no-op).
	// Use metrics/prometheus.DefaultMetrics(namespace) for Prometheus metrics.
	Metrics Metrics
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}
