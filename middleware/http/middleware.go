// Package http provides net/http middleware that explains Stripe webhook events
package http

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

type contextKey struct{}

var resultKey = contextKey{}

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
	OnInvalidEvent func(w http.ResponseWriter, r *http.Request, err error)
}

func (c *Config) applyDefaults() {
	if c.Analyzer == nil {
		panic("goexplain/http: Config.Analyzer is required")
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Middleware analyzes the webhook body, stores the result in the request
// context and restores the body for the next handler.
func Middleware(config Config) func(http.Handler) http.Handler {
	config.applyDefaults()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, body, ok := explain(w, r, &config)
			if !ok {
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), resultKey, result)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HandlerFunc is the http.HandlerFunc flavour of Middleware.
func HandlerFunc(config Config) func(http.HandlerFunc) http.HandlerFunc {
	middleware := Middleware(config)
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			middleware(next).ServeHTTP(w, r)
		}
	}
}

// Handler returns an endpoint that responds with the analysis as JSON.
func Handler(config Config) http.Handler {
	config.applyDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result, _, ok := explain(w, r, &config)
		if !ok {
			return
		}
		_ = httputil.WriteJSON(w, http.StatusOK, result)
	})
}

// ResultFromContext returns the analysis stored by Middleware.
func ResultFromContext(ctx context.Context) (goexplain.AnalysisResult, bool) {
	result, ok := ctx.Value(resultKey).(goexplain.AnalysisResult)
	return result, ok
}

func explain(w http.ResponseWriter, r *http.Request, config *Config) (goexplain.AnalysisResult, []byte, bool) {
	body, err := httputil.ReadBodyStrict(w, r, config.MaxBodyBytes)
	if err == nil {
		var event goexplain.Event
		event, err = goexplain.ParseEvent(body)
		if err == nil {
			return config.Analyzer.Analyze(r.Context(), event), body, true
		}
	}

	if config.OnInvalidEvent != nil {
		config.OnInvalidEvent(w, r, err)
	} else {
		_ = httputil.WriteError(w, httputil.StatusForBodyError(err), "invalid JSON payload")
	}
	return goexplain.AnalysisResult{}, nil, false
}
