package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/webhooks"
)

// ErrIgnoredEvent marks an authenticated webhook delivery that carries no
// state change we track. The ingestion path treats it as an accepted no-op.
var ErrIgnoredEvent = errors.New("ignored webhook event")

// docuSign translates the DocuSign-style REST vocabulary into the universal
// envelope model. It holds no mutable state beyond its HTTP client.
type docuSign struct {
	cfg      Config
	client   *http.Client
	verifier webhooks.Verifier
}

func newDocuSign(cfg Config) *docuSign {
	return &docuSign{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.timeoutOrDefault()},
		verifier: webhooks.NewGenericHMACVerifier(string(envelope.ProviderDocuSign)),
	}
}

func (d *docuSign) Provider() envelope.Provider { return envelope.ProviderDocuSign }

type dsRecipient struct {
	RecipientID  string `json:"recipientId"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	RoutingOrder int    `json:"routingOrder"`
	Status       string `json:"status,omitempty"`
}

type dsDocument struct {
	DocumentID string `json:"documentId"`
	Name       string `json:"name"`
	RemoteURL  string `json:"remoteUrl"`
}

func (d *docuSign) CreateEnvelope(ctx context.Context, env *envelope.Envelope) (CreateResult, error) {
	recipients := make([]dsRecipient, 0, len(env.Signers))
	for _, s := range env.Signers {
		recipients = append(recipients, dsRecipient{
			RecipientID:  s.ID,
			Name:         s.Name,
			Email:        s.Email,
			RoutingOrder: s.Order,
		})
	}
	documents := make([]dsDocument, 0, len(env.Documents))
	for _, doc := range env.Documents {
		documents = append(documents, dsDocument{DocumentID: doc.ID, Name: doc.Name, RemoteURL: doc.FileURL})
	}
	req := map[string]any{
		"emailSubject": env.Title,
		"emailBlurb":   env.Message,
		"status":       "created",
		"documents":    documents,
		"recipients":   map[string]any{"signers": recipients},
	}
	var resp struct {
		EnvelopeID string `json:"envelopeId"`
	}
	if err := d.doJSON(ctx, "create", http.MethodPost, "/envelopes", req, &resp); err != nil {
		return CreateResult{}, err
	}
	if resp.EnvelopeID == "" {
		return CreateResult{}, permanentErr(d.Provider(), "create", fmt.Errorf("response missing envelopeId"))
	}

	urls := make(map[string]string, len(env.Signers))
	for _, s := range env.Signers {
		url, err := d.GetSigningURL(ctx, resp.EnvelopeID, s.ID, "")
		if err != nil {
			return CreateResult{}, err
		}
		urls[s.ID] = url
	}
	return CreateResult{ProviderEnvelopeID: resp.EnvelopeID, SigningURLs: urls}, nil
}

func (d *docuSign) SendEnvelope(ctx context.Context, providerEnvelopeID string) error {
	req := map[string]any{"status": "sent"}
	return d.doJSON(ctx, "send", http.MethodPut, "/envelopes/"+providerEnvelopeID, req, nil)
}

func (d *docuSign) VoidEnvelope(ctx context.Context, providerEnvelopeID, reason string) error {
	req := map[string]any{"status": "voided", "voidedReason": reason}
	return d.doJSON(ctx, "void", http.MethodPut, "/envelopes/"+providerEnvelopeID, req, nil)
}

func (d *docuSign) GetEnvelopeStatus(ctx context.Context, providerEnvelopeID string) (envelope.StatusSnapshot, error) {
	var resp struct {
		Status     string `json:"status"`
		Recipients struct {
			Signers []dsRecipient `json:"signers"`
		} `json:"recipients"`
	}
	if err := d.doJSON(ctx, "status", http.MethodGet, "/envelopes/"+providerEnvelopeID+"?include=recipients", nil, &resp); err != nil {
		return envelope.StatusSnapshot{}, err
	}
	status, ok := dsEnvelopeStatus(resp.Status)
	if !ok {
		return envelope.StatusSnapshot{}, permanentErr(d.Provider(), "status", fmt.Errorf("unknown envelope status %q", resp.Status))
	}
	snap := envelope.StatusSnapshot{Status: status, Signers: make(map[string]envelope.SignerStatus)}
	for _, r := range resp.Recipients.Signers {
		if st, ok := dsSignerStatus(r.Status); ok {
			snap.Signers[r.RecipientID] = st
		}
	}
	return snap, nil
}

func (d *docuSign) GetSigningURL(ctx context.Context, providerEnvelopeID, signerID, returnURL string) (string, error) {
	req := map[string]any{"recipientId": signerID, "returnUrl": returnURL}
	var resp struct {
		URL string `json:"url"`
	}
	if err := d.doJSON(ctx, "signing-url", http.MethodPost, "/envelopes/"+providerEnvelopeID+"/views/recipient", req, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", permanentErr(d.Provider(), "signing-url", fmt.Errorf("response missing url"))
	}
	return resp.URL, nil
}

func (d *docuSign) DownloadDocument(ctx context.Context, providerEnvelopeID, documentID string) ([]byte, error) {
	return d.doRaw(ctx, "download", "/envelopes/"+providerEnvelopeID+"/documents/"+documentID)
}

func (d *docuSign) VerifyWebhook(headers http.Header, rawBody []byte, receivedAt time.Time) (webhooks.VerificationResult, error) {
	return d.verifier.Verify(headers, rawBody, receivedAt, d.cfg.WebhookSecret)
}

func (d *docuSign) ParseWebhookEvent(rawBody []byte) (envelope.Event, error) {
	var payload struct {
		Event             string `json:"event"`
		EventID           string `json:"eventId"`
		GeneratedDateTime string `json:"generatedDateTime"`
		Data              struct {
			EnvelopeID  string `json:"envelopeId"`
			RecipientID string `json:"recipientId"`
			ClientIP    string `json:"clientIp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return envelope.Event{}, permanentErr(d.Provider(), "parse-webhook", err)
	}
	if payload.EventID == "" || payload.Data.EnvelopeID == "" {
		return envelope.Event{}, permanentErr(d.Provider(), "parse-webhook", fmt.Errorf("eventId and envelopeId are required"))
	}

	kind, ok := dsEventKind(payload.Event)
	if !ok {
		return envelope.Event{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, payload.Event)
	}
	occurredAt, _ := time.Parse(time.RFC3339, payload.GeneratedDateTime)
	return envelope.Event{
		ID:                 payload.EventID,
		Kind:               kind,
		ProviderEnvelopeID: payload.Data.EnvelopeID,
		SignerID:           payload.Data.RecipientID,
		OccurredAt:         occurredAt,
		IPAddress:          payload.Data.ClientIP,
	}, nil
}

func dsEnvelopeStatus(s string) (envelope.Status, bool) {
	switch s {
	case "created":
		return envelope.StatusDraft, true
	case "sent":
		return envelope.StatusSent, true
	case "delivered":
		return envelope.StatusDelivered, true
	case "completed":
		return envelope.StatusCompleted, true
	case "declined":
		return envelope.StatusDeclined, true
	case "voided":
		return envelope.StatusVoided, true
	case "expired":
		return envelope.StatusExpired, true
	}
	return "", false
}

func dsSignerStatus(s string) (envelope.SignerStatus, bool) {
	switch s {
	case "created":
		return envelope.SignerPending, true
	case "sent":
		return envelope.SignerSent, true
	case "delivered":
		return envelope.SignerDelivered, true
	case "completed":
		return envelope.SignerSigned, true
	case "declined":
		return envelope.SignerDeclined, true
	}
	return "", false
}

func dsEventKind(event string) (envelope.EventKind, bool) {
	switch event {
	case "recipient-delivered":
		return envelope.EventSignerDelivered, true
	case "recipient-viewed":
		return envelope.EventSignerViewed, true
	case "recipient-completed":
		return envelope.EventSignerSigned, true
	case "recipient-declined":
		return envelope.EventSignerDeclined, true
	case "envelope-completed":
		return envelope.EventEnvelopeComplete, true
	case "envelope-declined":
		return envelope.EventEnvelopeDeclined, true
	case "envelope-voided":
		return envelope.EventEnvelopeVoided, true
	case "envelope-expired":
		return envelope.EventEnvelopeExpired, true
	}
	return "", false
}

func (d *docuSign) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	return jsonRequest(ctx, d.client, d.Provider(), op, method, d.cfg.BaseURL+path, d.cfg.APIKey, body, out)
}

func (d *docuSign) doRaw(ctx context.Context, op, path string) ([]byte, error) {
	return rawRequest(ctx, d.client, d.Provider(), op, d.cfg.BaseURL+path, d.cfg.APIKey)
}
