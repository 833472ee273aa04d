package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/completion"
)

const testAPIKey = "sk-or-test"

// cannedRoundTripper returns a fixed response and captures the outgoing request.
type cannedRoundTripper struct {
	status   int
	response string
	err      error

	captured *http.Request
	body     []byte
}

func (rt *cannedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.captured = req
	if req.Body != nil {
		rt.body, _ = io.ReadAll(req.Body)
	}
	if rt.err != nil {
		return nil, rt.err
	}
	return &http.Response{
		StatusCode: rt.status,
		Body:       io.NopCloser(strings.NewReader(rt.response)),
		Header:     make(http.Header),
	}, nil
}

func newTestProvider(t *testing.T, rt http.RoundTripper) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		APIKey:     testAPIKey,
		Endpoint:   "https://test.local/v1/chat/completions",
		HTTPClient: &http.Client{Transport: rt},
	})
	require.NoError(t, err)
	return p
}

func testRequest() completion.Request {
	return completion.Request{
		Model: "test/model",
		Messages: []completion.Message{
			{Role: completion.RoleSystem, Content: "sys"},
			{Role: completion.RoleUser, Content: "usr"},
		},
		Temperature: 0.2,
	}
}

func TestNewProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewProvider(Config{APIKey: "   "})
	assert.ErrorIs(t, err, completion.ErrNotConfigured)
}

func TestNewProvider_Defaults(t *testing.T) {
	p, err := NewProvider(Config{APIKey: testAPIKey})
	require.NoError(t, err)

	assert.Equal(t, "openrouter", p.Name())
	assert.Equal(t, defaultEndpoint, p.endpoint)
	assert.Equal(t, defaultReferer, p.referer)
	assert.Equal(t, defaultTitle, p.title)
	assert.Equal(t, 30*time.Second, p.httpClient.Timeout)
}

func TestComplete_Success(t *testing.T) {
	rt := &cannedRoundTripper{
		status:   http.StatusOK,
		response: `{"choices":[{"message":{"role":"assistant","content":"{\"summary\":\"ok\"}"}}]}`,
	}
	p := newTestProvider(t, rt)

	content, err := p.Complete(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, content)
}

func TestComplete_RequestShape(t *testing.T) {
	rt := &cannedRoundTripper{
		status:   http.StatusOK,
		response: `{"choices":[{"message":{"content":"{}"}}]}`,
	}
	p := newTestProvider(t, rt)

	_, err := p.Complete(context.Background(), testRequest())
	require.NoError(t, err)

	require.NotNil(t, rt.captured)
	assert.Equal(t, http.MethodPost, rt.captured.Method)
	assert.Equal(t, "Bearer "+testAPIKey, rt.captured.Header.Get("Authorization"))
	assert.Equal(t, "http://localhost", rt.captured.Header.Get("HTTP-Referer"))
	assert.Equal(t, "StripeEventExplainer", rt.captured.Header.Get("X-Title"))
	assert.Equal(t, "application/json", rt.captured.Header.Get("Content-Type"))

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float64 `json:"temperature"`
	}
	require.NoError(t, json.Unmarshal(rt.body, &body))
	assert.Equal(t, "test/model", body.Model)
	assert.InDelta(t, 0.2, body.Temperature, 1e-9)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "user", body.Messages[1].Role)
}

func TestComplete_NonSuccessStatus(t *testing.T) {
	rt := &cannedRoundTripper{
		status:   http.StatusUnauthorized,
		response: `{"error":{"message":"invalid api key"}}`,
	}
	p := newTestProvider(t, rt)

	_, err := p.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, completion.ErrAPIError)
	assert.Contains(t, err.Error(), "401")
}

func TestComplete_TransportError(t *testing.T) {
	rt := &cannedRoundTripper{err: errors.New("connection refused")}
	p := newTestProvider(t, rt)

	_, err := p.Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, completion.ErrTransport)
}

func TestComplete_MalformedResponses(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", `<html>bad gateway</html>`},
		{"no choices", `{"choices":[]}`},
		{"missing content", `{"choices":[{"message":{}}]}`},
		{"null content", `{"choices":[{"message":{"content":null}}]}`},
		{"numeric content", `{"choices":[{"message":{"content":42}}]}`},
		{"choices not array", `{"choices":{"message":{"content":"x"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, &cannedRoundTripper{status: http.StatusOK, response: tt.response})
			_, err := p.Complete(context.Background(), testRequest())
			assert.ErrorIs(t, err, completion.ErrMalformedResponse)
		})
	}
}

func TestComplete_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	p, err := NewProvider(Config{APIKey: testAPIKey, Endpoint: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = p.Complete(ctx, testRequest())
	assert.ErrorIs(t, err, completion.ErrTransport)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTruncateAPIError(t *testing.T) {
	short := []byte("short")
	assert.Equal(t, "short", truncateAPIError(short))

	long := []byte(strings.Repeat("x", 600))
	out := truncateAPIError(long)
	assert.True(t, strings.HasSuffix(out, "... (truncated)"))
	assert.Len(t, out, maxErrorBodyLen+len("... (truncated)"))
}

func TestTruncateAPIError_KeepsRunesWhole(t *testing.T) {
	// 511 ASCII bytes, then a 3-byte rune straddling the cut
	body := []byte(strings.Repeat("x", maxErrorBodyLen-1) + "€€€")
	out := truncateAPIError(body)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("x", maxErrorBodyLen-1)+"... (truncated)", out)
}

func TestProvider_Complete_OversizedResponse(t *testing.T) {
	rt := &cannedRoundTripper{
		status:   http.StatusOK,
		response: `{"choices":[{"message":{"content":"` + strings.Repeat("a", maxResponseBytes) + `"}}]}`,
	}
	p := newTestProvider(t, rt)

	_, err := p.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, completion.ErrMalformedResponse)
	assert.ErrorIs(t, err, httputil.ErrPayloadTooLarge)
}

func TestProvider_Complete_LargeErrorBodyIsTruncated(t *testing.T) {
	rt := &cannedRoundTripper{
		status:   http.StatusBadGateway,
		response: strings.Repeat("e", maxResponseBytes+1),
	}
	p := newTestProvider(t, rt)

	_, err := p.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, completion.ErrAPIError)
	assert.Contains(t, err.Error(), "status 502")
	assert.Contains(t, err.Error(), "... (truncated)")
}
