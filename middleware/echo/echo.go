// Package echo provides Echo middleware that explains Stripe webhook events
package echo

import (
	"bytes"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// ContextKey is the echo context key holding the analysis.
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
	OnInvalidEvent func(c echo.Context, err error) error
}

func (cfg *Config) applyDefaults() {
	if cfg.Analyzer == nil {
		panic("goexplain/echo: Config.Analyzer is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Middleware analyzes the webhook body, stores the result under ContextKey
// and restores the body for the next handler.
func Middleware(cfg Config) echo.MiddlewareFunc {
	cfg.applyDefaults()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			body, event, err := readEvent(c, &cfg)
			if err != nil {
				return invalidEvent(c, &cfg, err)
			}

			c.Set(ContextKey, cfg.Analyzer.Analyze(c.Request().Context(), event))
			c.Request().Body = io.NopCloser(bytes.NewReader(body))
			return next(c)
		}
	}
}

// Handler returns a route handler that responds with the analysis as JSON.
func Handler(cfg Config) echo.HandlerFunc {
	cfg.applyDefaults()

	return func(c echo.Context) error {
		_, event, err := readEvent(c, &cfg)
		if err != nil {
			return invalidEvent(c, &cfg, err)
		}
		return c.JSON(http.StatusOK, cfg.Analyzer.Analyze(c.Request().Context(), event))
	}
}

// ResultFromContext returns the analysis stored by Middleware.
func ResultFromContext(c echo.Context) (goexplain.AnalysisResult, bool) {
	result, ok := c.Get(ContextKey).(goexplain.AnalysisResult)
	return result, ok
}

func readEvent(c echo.Context, cfg *Config) ([]byte, goexplain.Event, error) {
	body, err := httputil.ReadBodyStrict(c.Response(), c.Request(), cfg.MaxBodyBytes)
	if err != nil {
		return nil, goexplain.Event{}, err
	}
	event, err := goexplain.ParseEvent(body)
	if err != nil {
		return nil, goexplain.Event{}, err
	}
	return body, event, nil
}

func invalidEvent(c echo.Context, cfg *Config, err error) error {
	if cfg.OnInvalidEvent != nil {
		return cfg.OnInvalidEvent(c, err)
	}
	return c.JSON(httputil.StatusForBodyError(err), map[string]string{"error": "invalid JSON payload"})
}
