package api

import (
	"errors"
	"net/http"

	"github.com/mihaimyh/goexplain/internal/httputil"
	"github.com/mihaimyh/goexplain/pkg/goexplain"
)

// Rejection reasons reported to Metrics.RecordRequestRejected.
const (
	RejectMethodNotAllowed = "method_not_allowed"
	RejectPayloadTooLarge  = "payload_too_large"
	RejectInvalidPayload   = "invalid_payload"
	RejectRateLimited      = "rate_limited"
)

var (
	errMethodNotAllowed = errors.New("method not allowed")
	errRateLimited      = errors.New("rate limit exceeded")
	errInvalidPayload   = errors.New("invalid JSON payload")
)

// Handler serves POST /explain_event.
type Handler struct {
	config Config
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.ExplainEvent(w, r)
}

// ExplainEvent reads a webhook event from the body and responds with its analysis.
func (h *Handler) ExplainEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.reject(w, r, errMethodNotAllowed, http.StatusMethodNotAllowed, RejectMethodNotAllowed)
		return
	}

	if h.config.Limiter != nil {
		key := h.config.GetKey(r)
		allowed, err := h.config.Limiter.Allow(r.Context(), key)
		if err != nil {
			// Limiter errors fail open.
			h.config.Logger.Warn("rate limiter failed, allowing request",
				goexplain.Field{Key: "key", Value: key},
				goexplain.Field{Key: "error", Value: err},
			)
		} else if !allowed {
			h.reject(w, r, errRateLimited, http.StatusTooManyRequests, RejectRateLimited)
			return
		}
	}

	body, err := httputil.ReadBodyStrict(w, r, h.config.MaxBodyBytes)
	if err != nil {
		if errors.Is(err, httputil.ErrPayloadTooLarge) {
			h.reject(w, r, err, http.StatusRequestEntityTooLarge, RejectPayloadTooLarge)
			return
		}
		h.reject(w, r, errInvalidPayload, http.StatusBadRequest, RejectInvalidPayload)
		return
	}

	event, err := goexplain.ParseEvent(body)
	if err != nil {
		h.reject(w, r, errInvalidPayload, http.StatusBadRequest, RejectInvalidPayload)
		return
	}

	result := h.config.Analyzer.Analyze(r.Context(), event)
	if err := httputil.WriteJSON(w, http.StatusOK, result); err != nil {
		h.config.Logger.Error("failed to write response", goexplain.Field{Key: "error", Value: err})
	}
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, err error, status int, reason string) {
	h.config.Metrics.RecordRequestRejected(reason)
	h.config.Logger.Debug("request rejected",
		goexplain.Field{Key: "reason", Value: reason},
		goexplain.Field{Key: "status", Value: status},
	)

	if h.config.OnError != nil {
		h.config.OnError(w, r, err, status)
		return
	}
	_ = httputil.WriteError(w, status, err.Error())
}

// Health responds 200 with {"status":"ok"}.
func Health(w http.ResponseWriter, _ *http.Request) {
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
