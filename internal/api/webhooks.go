package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/httpx"
	"github.com/rentfold/esign/pkg/webhooks"
)

const maxWebhookBodyBytes = 5 << 20 // 5MB

// ingressLimiters throttles webhook deliveries per provider, so one vendor's
// redelivery storm cannot starve the others.
type ingressLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newIngressLimiters() *ingressLimiters {
	return &ingressLimiters{limiters: make(map[string]*rate.Limiter)}
}

func (l *ingressLimiters) allow(provider string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[provider]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(25), 50)
		l.limiters[provider] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// handleWebhook ingests one vendor delivery. Per the webhook contract, any
// successfully-authenticated delivery answers 200 — including duplicates and
// business-irrelevant events — and 401 is reserved for signature failure.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	tag := envelope.Provider(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider"))))

	if !h.limiters.allow(string(tag)) {
		w.Header().Set("Retry-After", "1")
		httpx.WriteError(w, 429, "RATE_LIMITED", "too many webhook deliveries", nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpx.WriteError(w, 413, "PAYLOAD_TOO_LARGE", "payload exceeds 5MB limit", nil)
			return
		}
		httpx.WriteError(w, 400, "BAD_BODY", err.Error(), nil)
		return
	}

	headersCanonicalJSON, _, err := webhooks.CanonicalizeHeaders(r.Header)
	if err != nil {
		httpx.WriteError(w, 500, "CANONICALIZATION_ERROR", err.Error(), nil)
		return
	}
	_, _, requestSHA := webhooks.ComputeRequestHashes(r.Method, r.URL.Path, headersCanonicalJSON, rawBody)

	result, err := h.orc.ProcessWebhookEvent(r.Context(), tag, r.Header, rawBody, requestSHA)
	if err != nil {
		httpx.WriteAppError(w, err)
		return
	}

	httpx.WriteJSON(w, 200, map[string]any{
		"status":         "accepted",
		"duplicate":      result.Duplicate,
		"ignored":        result.Ignored,
		"envelope_id":    result.EnvelopeID,
		"request_sha256": requestSHA,
	})
}
