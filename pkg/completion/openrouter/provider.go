// Package openrouter implements completion.Client against the OpenRouter
// chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/completion"
)

const (
	providerName       = "openrouter"
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 30 * time.Second
	defaultReferer     = "http://localhost"
	defaultTitle       = "StripeEventExplainer"
	maxErrorBodyLen    = 512
	maxErrorReadBytes  = 4 << 10
	maxResponseBytes   = 4 << 20
)

// Config holds OpenRouter provider options
type Config struct {
	// APIKey is sent as a Bearer credential (required)
	APIKey string

	// Endpoint overrides the chat completions URL (default: OpenRouter production)
	Endpoint string

	// Referer is sent as HTTP-Referer for OpenRouter app attribution
	// Default: "http://localhost"
	Referer string

	// Title is sent as X-Title for OpenRouter app attribution
	// Default: "StripeEventExplainer"
	Title string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 30s timeout will be used.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector for outbound calls.
	// If nil, metrics will be silently ignored (no-op).
	Metrics completion.Metrics
}

// Provider implements completion.Client for OpenRouter
type Provider struct {
	apiKey     string
	endpoint   string
	referer    string
	title      string
	httpClient *http.Client
	metrics    completion.Metrics
}

// NewProvider creates a new OpenRouter completion provider
func NewProvider(config Config) (*Provider, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey == "" {
		return nil, completion.ErrNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultHTTPTimeout,
		}
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	referer := config.Referer
	if referer == "" {
		referer = defaultReferer
	}
	title := config.Title
	if title == "" {
		title = defaultTitle
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &completion.NoopMetrics{}
	}

	return &Provider{
		apiKey:     apiKey,
		endpoint:   endpoint,
		referer:    referer,
		title:      title,
		httpClient: httpClient,
		metrics:    metrics,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Complete sends a single chat completion request and returns the content of
// the first choice.
func (p *Provider) Complete(ctx context.Context, req completion.Request) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("HTTP-Referer", p.referer)
	httpReq.Header.Set("X-Title", p.title)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	p.metrics.RecordAPICallDuration(providerName, time.Since(start))
	if err != nil {
		p.metrics.RecordAPICall(providerName, "error")
		return "", fmt.Errorf("%w: %v", completion.ErrTransport, err)
	}
	defer resp.Body.Close()

	p.metrics.RecordAPICall(providerName, strconv.Itoa(resp.StatusCode))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorReadBytes))
		return "", fmt.Errorf("%w: status %d: %s", completion.ErrAPIError, resp.StatusCode, truncateAPIError(body))
	}

	body, err := httputil.ReadAllLimited(resp.Body, maxResponseBytes)
	if err != nil {
		if errors.Is(err, httputil.ErrPayloadTooLarge) {
			return "", fmt.Errorf("%w: response body: %w", completion.ErrMalformedResponse, err)
		}
		return "", fmt.Errorf("%w: read response: %v", completion.ErrTransport, err)
	}

	return extractContent(body)
}

// extractContent returns choices[0].message.content, which must be a string.
func extractContent(body []byte) (string, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content *string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", completion.ErrMalformedResponse, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", completion.ErrMalformedResponse)
	}
	content := result.Choices[0].Message.Content
	if content == nil {
		return "", fmt.Errorf("%w: choices[0].message.content missing", completion.ErrMalformedResponse)
	}
	return *content, nil
}

// truncateAPIError limits API error bodies kept in error messages.
// The cut never splits a UTF-8 sequence.
func truncateAPIError(body []byte) string {
	if len(body) <= maxErrorBodyLen {
		return string(body)
	}
	n := maxErrorBodyLen
	for n > 0 && !utf8.RuneStart(body[n]) {
		n--
	}
	return string(body[:n]) + "... (truncated)"
}
