// Package gin provides Gin middleware that explains Stripe webhook events
package gin

import (
	"bytes"
	"io"
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// ContextKey is the gin context key holding the analysis.
const ContextKey = "goexplain.result"

// DefaultMaxBodyBytes caps the webhook body read by the middleware.
const DefaultMaxBodyBytes int64 = 256 << 10

// Config holds middleware configuration
type Config struct {
	// Analyzer is the event analyzer instance (required)
	Analyzer *goexplain.Analyzer

	// MaxBodyBytes limits the request body size (default: 256 KiB)
	MaxBodyBytes int64

	// OnInvalidEvent is called when the body is missing, oversized or not a JSON object.
	// If nil, responds with 400 or 413 and a JSON error body.
	OnInvalidEvent func(c *gongin.Context, err error)
}

func (cfg *Config) applyDefaults() {
	if cfg.Analyzer == nil {
		panic("goexplain/gin: Config.Analyzer is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Middleware analyzes the webhook body, stores the result under ContextKey
// and restores the body for the next handler.
func Middleware(cfg Config) gongin.HandlerFunc {
	cfg.applyDefaults()

	return func(c *gongin.Context) {
		result, body, ok := explain(c, &cfg)
		if !ok {
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(ContextKey, result)
		c.Next()
	}
}

// Handler returns a route handler that responds with the analysis as JSON.
func Handler(cfg Config) gongin.HandlerFunc {
	cfg.applyDefaults()

	return func(c *gongin.Context) {
		result, _, ok := explain(c, &cfg)
		if !ok {
			c.Abort()
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ResultFromContext returns the analysis stored by Middleware.
func ResultFromContext(c *gongin.Context) (goexplain.AnalysisResult, bool) {
	v, exists := c.Get(ContextKey)
	if !exists {
		return goexplain.AnalysisResult{}, false
	}
	result, ok := v.(goexplain.AnalysisResult)
	return result, ok
}

func explain(c *gongin.Context, cfg *Config) (goexplain.AnalysisResult, []byte, bool) {
	body, err := httputil.ReadBodyStrict(c.Writer, c.Request, cfg.MaxBodyBytes)
	if err == nil {
		var event goexplain.Event
		event, err = goexplain.ParseEvent(body)
		if err == nil {
			return cfg.Analyzer.Analyze(c.Request.Context(), event), body, true
		}
	}

	if cfg.OnInvalidEvent != nil {
		cfg.OnInvalidEvent(c, err)
	} else {
		defaultInvalidEvent(c, err)
	}
	return goexplain.AnalysisResult{}, nil, false
}

func defaultInvalidEvent(c *gongin.Context, err error) {
	c.JSON(httputil.StatusForBodyError(err), gongin.H{"error": "invalid JSON payload"})
}
