package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/webhooks"
)

// dropboxSign translates a Dropbox-Sign-style signature-request API. Signers
// are correlated by the client id we supply at creation; the vendor echoes it
// on signatures and webhook events, so the translator stays stateless.
type dropboxSign struct {
	cfg      Config
	client   *http.Client
	verifier webhooks.Verifier
}

func newDropboxSign(cfg Config) *dropboxSign {
	return &dropboxSign{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.timeoutOrDefault()},
		verifier: webhooks.NewTimestampedHMACVerifier(string(envelope.ProviderDropboxSign)),
	}
}

func (d *dropboxSign) Provider() envelope.Provider { return envelope.ProviderDropboxSign }

type dbxSignature struct {
	SignerClientID string `json:"signer_client_id"`
	SignerEmail    string `json:"signer_email_address"`
	SignerName     string `json:"signer_name"`
	Order          int    `json:"order"`
	StatusCode     string `json:"status_code,omitempty"`
	SignURL        string `json:"sign_url,omitempty"`
}

type dbxSignatureRequest struct {
	SignatureRequestID string         `json:"signature_request_id"`
	State              string         `json:"state"`
	Signatures         []dbxSignature `json:"signatures"`
}

func (d *dropboxSign) CreateEnvelope(ctx context.Context, env *envelope.Envelope) (CreateResult, error) {
	signatures := make([]dbxSignature, 0, len(env.Signers))
	for _, s := range env.Signers {
		signatures = append(signatures, dbxSignature{
			SignerClientID: s.ID,
			SignerEmail:    s.Email,
			SignerName:     s.Name,
			Order:          s.Order,
		})
	}
	fileURLs := make([]string, 0, len(env.Documents))
	for _, doc := range env.Documents {
		fileURLs = append(fileURLs, doc.FileURL)
	}
	req := map[string]any{
		"title":     env.Title,
		"message":   env.Message,
		"draft":     true,
		"file_urls": fileURLs,
		"signers":   signatures,
	}
	var resp struct {
		SignatureRequest dbxSignatureRequest `json:"signature_request"`
	}
	if err := d.doJSON(ctx, "create", http.MethodPost, "/signature_request", req, &resp); err != nil {
		return CreateResult{}, err
	}
	sr := resp.SignatureRequest
	if sr.SignatureRequestID == "" {
		return CreateResult{}, permanentErr(d.Provider(), "create", fmt.Errorf("response missing signature_request_id"))
	}
	urls := make(map[string]string, len(sr.Signatures))
	for _, sig := range sr.Signatures {
		if sig.SignerClientID != "" && sig.SignURL != "" {
			urls[sig.SignerClientID] = sig.SignURL
		}
	}
	return CreateResult{ProviderEnvelopeID: sr.SignatureRequestID, SigningURLs: urls}, nil
}

func (d *dropboxSign) SendEnvelope(ctx context.Context, providerEnvelopeID string) error {
	return d.doJSON(ctx, "send", http.MethodPost, "/signature_request/"+providerEnvelopeID+"/send", map[string]any{}, nil)
}

func (d *dropboxSign) VoidEnvelope(ctx context.Context, providerEnvelopeID, reason string) error {
	req := map[string]any{"reason": reason}
	return d.doJSON(ctx, "void", http.MethodPost, "/signature_request/"+providerEnvelopeID+"/cancel", req, nil)
}

func (d *dropboxSign) GetEnvelopeStatus(ctx context.Context, providerEnvelopeID string) (envelope.StatusSnapshot, error) {
	var resp struct {
		SignatureRequest dbxSignatureRequest `json:"signature_request"`
	}
	if err := d.doJSON(ctx, "status", http.MethodGet, "/signature_request/"+providerEnvelopeID, nil, &resp); err != nil {
		return envelope.StatusSnapshot{}, err
	}
	status, ok := dbxEnvelopeStatus(resp.SignatureRequest.State)
	if !ok {
		return envelope.StatusSnapshot{}, permanentErr(d.Provider(), "status", fmt.Errorf("unknown state %q", resp.SignatureRequest.State))
	}
	snap := envelope.StatusSnapshot{Status: status, Signers: make(map[string]envelope.SignerStatus)}
	for _, sig := range resp.SignatureRequest.Signatures {
		if sig.SignerClientID == "" {
			continue
		}
		if st, ok := dbxSignerStatus(sig.StatusCode); ok {
			snap.Signers[sig.SignerClientID] = st
		}
	}
	return snap, nil
}

func (d *dropboxSign) GetSigningURL(ctx context.Context, providerEnvelopeID, signerID, returnURL string) (string, error) {
	req := map[string]any{
		"signature_request_id": providerEnvelopeID,
		"signer_client_id":     signerID,
		"redirect_url":         returnURL,
	}
	var resp struct {
		Embedded struct {
			SignURL string `json:"sign_url"`
		} `json:"embedded"`
	}
	if err := d.doJSON(ctx, "signing-url", http.MethodPost, "/embedded/sign_url", req, &resp); err != nil {
		return "", err
	}
	if resp.Embedded.SignURL == "" {
		return "", permanentErr(d.Provider(), "signing-url", fmt.Errorf("response missing sign_url"))
	}
	return resp.Embedded.SignURL, nil
}

func (d *dropboxSign) DownloadDocument(ctx context.Context, providerEnvelopeID, documentID string) ([]byte, error) {
	url := d.cfg.BaseURL + "/signature_request/files/" + providerEnvelopeID + "?document_id=" + documentID
	return rawRequest(ctx, d.client, d.Provider(), "download", url, d.cfg.APIKey)
}

func (d *dropboxSign) VerifyWebhook(headers http.Header, rawBody []byte, receivedAt time.Time) (webhooks.VerificationResult, error) {
	return d.verifier.Verify(headers, rawBody, receivedAt, d.cfg.WebhookSecret)
}

func (d *dropboxSign) ParseWebhookEvent(rawBody []byte) (envelope.Event, error) {
	var payload struct {
		Event struct {
			EventID   string `json:"event_id"`
			EventType string `json:"event_type"`
			EventTime int64  `json:"event_time"`
		} `json:"event"`
		SignatureRequest struct {
			SignatureRequestID string `json:"signature_request_id"`
		} `json:"signature_request"`
		Signature struct {
			SignerClientID string `json:"signer_client_id"`
			IPAddress      string `json:"ip_address"`
		} `json:"signature"`
	}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return envelope.Event{}, permanentErr(d.Provider(), "parse-webhook", err)
	}
	if payload.Event.EventID == "" || payload.SignatureRequest.SignatureRequestID == "" {
		return envelope.Event{}, permanentErr(d.Provider(), "parse-webhook", fmt.Errorf("event_id and signature_request_id are required"))
	}

	kind, ok := dbxEventKind(payload.Event.EventType)
	if !ok {
		return envelope.Event{}, fmt.Errorf("%w: %s", ErrIgnoredEvent, payload.Event.EventType)
	}
	var occurredAt time.Time
	if payload.Event.EventTime > 0 {
		occurredAt = time.Unix(payload.Event.EventTime, 0).UTC()
	}
	return envelope.Event{
		ID:                 payload.Event.EventID,
		Kind:               kind,
		ProviderEnvelopeID: payload.SignatureRequest.SignatureRequestID,
		SignerID:           payload.Signature.SignerClientID,
		OccurredAt:         occurredAt,
		IPAddress:          payload.Signature.IPAddress,
	}, nil
}

func dbxEnvelopeStatus(s string) (envelope.Status, bool) {
	switch s {
	case "draft":
		return envelope.StatusDraft, true
	case "sent", "awaiting_signature":
		return envelope.StatusSent, true
	case "delivered":
		return envelope.StatusDelivered, true
	case "viewed":
		return envelope.StatusViewed, true
	case "complete":
		return envelope.StatusCompleted, true
	case "declined":
		return envelope.StatusDeclined, true
	case "canceled":
		return envelope.StatusVoided, true
	case "expired":
		return envelope.StatusExpired, true
	}
	return "", false
}

func dbxSignerStatus(s string) (envelope.SignerStatus, bool) {
	switch s {
	case "awaiting_signature":
		return envelope.SignerSent, true
	case "delivered":
		return envelope.SignerDelivered, true
	case "viewed":
		return envelope.SignerViewed, true
	case "signed":
		return envelope.SignerSigned, true
	case "declined":
		return envelope.SignerDeclined, true
	}
	return "", false
}

func dbxEventKind(eventType string) (envelope.EventKind, bool) {
	switch eventType {
	case "signature_request_delivered":
		return envelope.EventSignerDelivered, true
	case "signature_request_viewed":
		return envelope.EventSignerViewed, true
	case "signature_request_signed":
		return envelope.EventSignerSigned, true
	case "signature_request_declined":
		return envelope.EventSignerDeclined, true
	case "signature_request_all_signed":
		return envelope.EventEnvelopeComplete, true
	case "signature_request_canceled":
		return envelope.EventEnvelopeVoided, true
	case "signature_request_expired":
		return envelope.EventEnvelopeExpired, true
	}
	return "", false
}

func (d *dropboxSign) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	return jsonRequest(ctx, d.client, d.Provider(), op, method, d.cfg.BaseURL+path, d.cfg.APIKey, body, out)
}
