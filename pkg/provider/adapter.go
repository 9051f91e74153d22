// Package provider hides vendor wire protocols behind a uniform capability
// set. Vendor adapters are stateless translators; all workflow state lives in
// the envelope domain model and its store.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/webhooks"
)

// CreateResult carries the vendor-assigned envelope id plus point-in-time
// signing URLs keyed by signer id. The URLs are short-lived and never stored.
type CreateResult struct {
	ProviderEnvelopeID string
	SigningURLs        map[string]string
}

// Adapter is the capability set every signing provider implements.
// CreateEnvelope, SendEnvelope and VoidEnvelope are not creation-idempotent at
// most vendors and must not be retried blindly; the read-path calls are safe
// to retry.
type Adapter interface {
	Provider() envelope.Provider

	CreateEnvelope(ctx context.Context, env *envelope.Envelope) (CreateResult, error)
	SendEnvelope(ctx context.Context, providerEnvelopeID string) error
	VoidEnvelope(ctx context.Context, providerEnvelopeID, reason string) error

	GetEnvelopeStatus(ctx context.Context, providerEnvelopeID string) (envelope.StatusSnapshot, error)
	GetSigningURL(ctx context.Context, providerEnvelopeID, signerID, returnURL string) (string, error)
	DownloadDocument(ctx context.Context, providerEnvelopeID, documentID string) ([]byte, error)

	VerifyWebhook(headers http.Header, rawBody []byte, receivedAt time.Time) (webhooks.VerificationResult, error)
	ParseWebhookEvent(rawBody []byte) (envelope.Event, error)
}

// Error is a vendor-facing failure. Retryable marks transport-level faults
// where the operation may not have reached the vendor; vendor rejections and
// malformed responses are permanent.
type Error struct {
	Provider  envelope.Provider
	Op        string
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func retryableErr(p envelope.Provider, op string, err error) *Error {
	return &Error{Provider: p, Op: op, Retryable: true, Err: err}
}

func permanentErr(p envelope.Provider, op string, err error) *Error {
	return &Error{Provider: p, Op: op, Retryable: false, Err: err}
}

// Config is the per-provider wiring loaded from the provider profiles file.
type Config struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	Timeout       time.Duration
}

func (c Config) timeoutOrDefault() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 15 * time.Second
}
