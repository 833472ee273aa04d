// Package fiber provides Fiber middleware that explains Stripe webhook events
package fiber

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// LocalsKey is the fiber locals key holding the analysis.
const LocalsKey = "goexplain.result"

// DefaultMaxBodyBytes caps the webhook body read by the middleware.
const DefaultMaxBodyBytes = 256 << 10

// Config holds middleware configuration
type Config struct {
	// Analyzer is the event analyzer instance (required)
	Analyzer *goexplain.Analyzer

	// MaxBodyBytes limits the request body size (default: 256 KiB).
	// fiber.Config.BodyLimit still applies first.
	MaxBodyBytes int

	// OnInvalidEvent is called when the body is missing, oversized or not a JSON object.
	// If nil, responds with 400 or 413 and a JSON error body.
	OnInvalidEvent func(c *fiber.Ctx, err error) error
}

func (cfg *Config) applyDefaults() {
	if cfg.Analyzer == nil {
		panic("goexplain/fiber: Config.Analyzer is required")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
}

// Middleware analyzes the webhook body and stores the result in c.Locals.
// Fiber keeps the body readable, so the next handler sees it unchanged.
func Middleware(cfg Config) fiber.Handler {
	cfg.applyDefaults()

	return func(c *fiber.Ctx) error {
		event, err := readEvent(c, &cfg)
		if err != nil {
			return invalidEvent(c, &cfg, err)
		}
		c.Locals(LocalsKey, cfg.Analyzer.Analyze(c.UserContext(), event))
		return c.Next()
	}
}

// Handler returns a route handler that responds with the analysis as JSON.
func Handler(cfg Config) fiber.Handler {
	cfg.applyDefaults()

	return func(c *fiber.Ctx) error {
		event, err := readEvent(c, &cfg)
		if err != nil {
			return invalidEvent(c, &cfg, err)
		}
		return c.Status(fiber.StatusOK).JSON(cfg.Analyzer.Analyze(c.UserContext(), event))
	}
}

// ResultFromContext returns the analysis stored by Middleware.
func ResultFromContext(c *fiber.Ctx) (goexplain.AnalysisResult, bool) {
	result, ok := c.Locals(LocalsKey).(goexplain.AnalysisResult)
	return result, ok
}

func readEvent(c *fiber.Ctx, cfg *Config) (goexplain.Event, error) {
	body := c.Body()
	if len(body) == 0 {
		return goexplain.Event{}, httputil.ErrEmptyBody
	}
	if len(body) > cfg.MaxBodyBytes {
		return goexplain.Event{}, fmt.Errorf("%w (max %d bytes)", httputil.ErrPayloadTooLarge, cfg.MaxBodyBytes)
	}
	return goexplain.ParseEvent(body)
}

func invalidEvent(c *fiber.Ctx, cfg *Config, err error) error {
	if cfg.OnInvalidEvent != nil {
		return cfg.OnInvalidEvent(c, err)
	}
	return c.Status(httputil.StatusForBodyError(err)).JSON(fiber.Map{"error": "invalid JSON payload"})
}
