package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/esign/internal/dedup"
	"github.com/rentfold/esign/internal/orchestrator"
	"github.com/rentfold/esign/internal/store"
	"github.com/rentfold/esign/pkg/audit"
	"github.com/rentfold/esign/pkg/auth"
	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/provider"
)

func newTestHandler(t *testing.T) (*Handler, *orchestrator.Orchestrator) {
	t.Helper()
	orc := orchestrator.New(store.NewMemory(), provider.NewRegistry(nil),
		audit.NewLoggerWithWriter(io.Discard), dedup.NewMemory())
	return NewHandler(orc, auth.NewValidator([]byte("test-secret"))), orc
}

func createViaOrchestrator(t *testing.T, orc *orchestrator.Orchestrator) *orchestrator.CreateResult {
	t.Helper()
	created, err := orc.Create(context.Background(), orchestrator.CreateRequest{
		Provider:     envelope.ProviderMock,
		DocumentType: "lease_agreement",
		Title:        "Lease for 12 Elm St",
		Documents:    []orchestrator.DocumentInput{{Name: "lease.pdf", FileURL: "https://files.local/lease.pdf"}},
		Signers: []orchestrator.SignerInput{
			{Name: "Tenant One", Email: "tenant@example.com", Role: envelope.RoleTenant, Order: 1},
		},
	}, auth.Actor{ID: "usr_owner", Email: "owner@example.com"})
	require.NoError(t, err)
	_, err = orc.Send(context.Background(), created.Envelope.ID, auth.Actor{ID: "usr_owner", Email: "owner@example.com"})
	require.NoError(t, err)
	return created
}

func signedWebhookRequest(t *testing.T, ev envelope.Event) *http.Request {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, []byte("mock-webhook-secret"))
	_, _ = mac.Write(body)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/mock", bytes.NewReader(body))
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	return req
}

func TestHandleWebhook_ValidDelivery(t *testing.T) {
	h, orc := newTestHandler(t)
	router := h.Router()
	created := createViaOrchestrator(t, orc)

	req := signedWebhookRequest(t, envelope.Event{
		ID:                 "evt_1",
		Kind:               envelope.EventSignerSigned,
		ProviderEnvelopeID: created.Envelope.ProviderEnvelopeID,
		SignerID:           created.Envelope.Signers[0].ID,
		OccurredAt:         time.Now().UTC(),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	var resp struct {
		Status     string `json:"status"`
		Duplicate  bool   `json:"duplicate"`
		EnvelopeID string `json:"envelope_id"`
		RequestSHA string `json:"request_sha256"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.False(t, resp.Duplicate)
	assert.Equal(t, created.Envelope.ID, resp.EnvelopeID)
	assert.Len(t, resp.RequestSHA, 64)
}

func TestHandleWebhook_DuplicateAnswers200(t *testing.T) {
	h, orc := newTestHandler(t)
	router := h.Router()
	created := createViaOrchestrator(t, orc)

	ev := envelope.Event{
		ID:                 "evt_1",
		Kind:               envelope.EventSignerSigned,
		ProviderEnvelopeID: created.Envelope.ProviderEnvelopeID,
		SignerID:           created.Envelope.Signers[0].ID,
	}
	first := httptest.NewRecorder()
	router.ServeHTTP(first, signedWebhookRequest(t, ev))
	require.Equal(t, 200, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, signedWebhookRequest(t, ev))
	require.Equal(t, 200, second.Code)
	var resp struct {
		Duplicate bool `json:"duplicate"`
	}
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &resp))
	assert.True(t, resp.Duplicate)
}

func TestHandleWebhook_InvalidSignatureAnswers401(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	body := []byte(`{"id":"evt_1","kind":"signer_signed","provider_envelope_id":"mock-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/mock", bytes.NewReader(body))
	req.Header.Set("X-Signature", "deadbeef")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, 401, rec.Code)
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "WEBHOOK_AUTH", resp.Error.Code)
}

func TestHandleWebhook_UnknownProviderAnswers404(t *testing.T) {
	h, _ := newTestHandler(t)
	router := h.Router()

	req := httptest.NewRequest(http.MethodPost, "/webhooks/pandadoc", bytes.NewReader([]byte("{}")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 404, rec.Code)
}

func TestIngressLimiters_ExhaustBurst(t *testing.T) {
	l := newIngressLimiters()

	allowed := 0
	for i := 0; i < 60; i++ {
		if l.allow("docusign") {
			allowed++
		}
	}
	assert.GreaterOrEqual(t, allowed, 50)
	assert.Less(t, allowed, 60, "burst must be bounded")

	// Other providers have their own budget.
	assert.True(t, l.allow("dropboxsign"))
}
