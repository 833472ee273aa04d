package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/goexplain/pkg/completion"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

const disputeEvent = `{"id":"evt_1","type":"charge.dispute.created","data":{"object":{"id":"dp_1"}}}`

type cannedClient struct {
	content string
}

func (c *cannedClient) Name() string { return "canned" }

func (c *cannedClient) Complete(_ context.Context, _ completion.Request) (string, error) {
	return c.content, nil
}

func fallbackAnalyzer(t *testing.T) *goexplain.Analyzer {
	t.Helper()
	a, err := goexplain.NewAnalyzer(goexplain.Config{})
	require.NoError(t, err)
	return a
}

func TestMiddleware_PanicsWithoutAnalyzer(t *testing.T) {
	assert.Panics(t, func() { Middleware(Config{}) })
	assert.Panics(t, func() { Handler(Config{}) })
}

func TestMiddleware_StoresResultAndRestoresBody(t *testing.T) {
	var (
		got     goexplain.AnalysisResult
		found   bool
		gotBody string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = ResultFromContext(r.Context())
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	h := Middleware(Config{Analyzer: fallbackAnalyzer(t)})(next)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(disputeEvent)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, found)
	assert.Equal(t, "charge.dispute.created", got.EventType)
	assert.Equal(t, goexplain.ImpactHigh, got.CustomerImpactLevel)
	assert.Equal(t, disputeEvent, gotBody)
}

func TestMiddleware_InvalidBody(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })

	h := Middleware(Config{Analyzer: fallbackAnalyzer(t), MaxBodyBytes: 32})(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(disputeEvent)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.False(t, called)
}

func TestMiddleware_CustomInvalidEventHandler(t *testing.T) {
	var gotErr error
	h := Middleware(Config{
		Analyzer: fallbackAnalyzer(t),
		OnInvalidEvent: func(w http.ResponseWriter, _ *http.Request, err error) {
			gotErr = err
			w.WriteHeader(http.StatusUnprocessableEntity)
		},
	})(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("[]")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.True(t, errors.Is(gotErr, goexplain.ErrInvalidEvent))
}

func TestHandlerFunc(t *testing.T) {
	var found bool
	h := HandlerFunc(Config{Analyzer: fallbackAnalyzer(t)})(func(_ http.ResponseWriter, r *http.Request) {
		_, found = ResultFromContext(r.Context())
	})

	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(disputeEvent)))
	assert.True(t, found)
}

func TestHandler_ModelResult(t *testing.T) {
	analyzer, err := goexplain.NewAnalyzer(goexplain.Config{
		APIKey: "test-key",
		Client: &cannedClient{content: "```json\n{\"summary\":\"s\",\"root_cause\":\"r\",\"customer_impact_level\":\"low\",\"recommended_actions\":[\"a\"]}\n```"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Handler(Config{Analyzer: analyzer}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/explain_event", strings.NewReader(disputeEvent)))

	require.Equal(t, http.StatusOK, rec.Code)
	var result goexplain.AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "charge.dispute.created", result.EventType)
	assert.Equal(t, "s", result.Summary)
	assert.Equal(t, goexplain.ImpactLow, result.CustomerImpactLevel)
}

func TestResultFromContext_Missing(t *testing.T) {
	_, ok := ResultFromContext(context.Background())
	assert.False(t, ok)
}
