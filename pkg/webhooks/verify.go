package webhooks

import (
	"net/http"
	"time"
)

// VerificationResult reports the outcome of one inbound webhook signature
// check, plus whatever event metadata the scheme exposes in headers.
type VerificationResult struct {
	Valid           bool           `json:"valid"`
	Scheme          string         `json:"scheme"`
	Details         map[string]any `json:"details"`
	ProviderEventID string         `json:"provider_event_id,omitempty"`
	EventType       string         `json:"event_type,omitempty"`
}

// Verifier authenticates a raw vendor webhook delivery. Implementations must
// compare signatures in constant time and must not error on a mere mismatch;
// an error means the check itself could not be performed.
type Verifier interface {
	Provider() string
	Verify(headers http.Header, rawBody []byte, receivedAt time.Time, secret string) (VerificationResult, error)
}
