package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/esign/pkg/envelope"
)

func mockLease() *envelope.Envelope {
	return &envelope.Envelope{
		ID:       "env_1",
		Provider: envelope.ProviderMock,
		Title:    "Lease for 12 Elm St",
		Documents: []envelope.Document{
			{ID: "doc_1", Name: "lease.pdf", FileURL: "https://files.local/lease.pdf"},
		},
		Signers: []envelope.Signer{
			{ID: "sgn_a", Name: "Tenant One", Email: "tenant@example.com", Role: envelope.RoleTenant, Order: 1},
			{ID: "sgn_b", Name: "Landlord One", Email: "landlord@example.com", Role: envelope.RoleLandlord, Order: 2},
		},
	}
}

func TestMock_Lifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMock("")

	created, err := m.CreateEnvelope(ctx, mockLease())
	require.NoError(t, err)
	require.NotEmpty(t, created.ProviderEnvelopeID)
	assert.Len(t, created.SigningURLs, 2)
	assert.Contains(t, created.SigningURLs["sgn_a"], created.ProviderEnvelopeID)

	require.NoError(t, m.SendEnvelope(ctx, created.ProviderEnvelopeID))
	snap, err := m.GetEnvelopeStatus(ctx, created.ProviderEnvelopeID)
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusSent, snap.Status)
	assert.Equal(t, envelope.SignerSent, snap.Signers["sgn_a"])

	require.NoError(t, m.SimulateSign(created.ProviderEnvelopeID, "sgn_a"))
	snap, err = m.GetEnvelopeStatus(ctx, created.ProviderEnvelopeID)
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusSent, snap.Status)
	assert.Equal(t, envelope.SignerSigned, snap.Signers["sgn_a"])

	require.NoError(t, m.SimulateSign(created.ProviderEnvelopeID, "sgn_b"))
	snap, err = m.GetEnvelopeStatus(ctx, created.ProviderEnvelopeID)
	require.NoError(t, err)
	assert.Equal(t, envelope.StatusCompleted, snap.Status)

	data, err := m.DownloadDocument(ctx, created.ProviderEnvelopeID, "doc_1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "doc_1")
}

func TestMock_SigningURLWithReturnURL(t *testing.T) {
	ctx := context.Background()
	m := NewMock("")
	created, err := m.CreateEnvelope(ctx, mockLease())
	require.NoError(t, err)

	url, err := m.GetSigningURL(ctx, created.ProviderEnvelopeID, "sgn_a", "https://app.local/done")
	require.NoError(t, err)
	assert.Contains(t, url, "return_url=https://app.local/done")

	_, err = m.GetSigningURL(ctx, created.ProviderEnvelopeID, "sgn_ghost", "")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.False(t, perr.Retryable)
}

func TestMock_UnknownEnvelope(t *testing.T) {
	ctx := context.Background()
	m := NewMock("")

	var perr *Error
	require.ErrorAs(t, m.SendEnvelope(ctx, "mock-missing"), &perr)
	assert.False(t, perr.Retryable)
	assert.Equal(t, envelope.ProviderMock, perr.Provider)
}

func TestMock_VerifyWebhook(t *testing.T) {
	m := NewMock("")
	body := []byte(`{"id":"evt_1","kind":"signer_signed","provider_envelope_id":"mock-1","signer_id":"sgn_a"}`)

	mac := hmac.New(sha256.New, []byte("mock-webhook-secret"))
	_, _ = mac.Write(body)
	headers := http.Header{}
	headers.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))

	res, err := m.VerifyWebhook(headers, body, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Valid)

	headers.Set("X-Signature", "deadbeef")
	res, err = m.VerifyWebhook(headers, body, time.Now())
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestMock_ParseWebhookEvent(t *testing.T) {
	m := NewMock("")

	ev, err := m.ParseWebhookEvent([]byte(`{"id":"evt_1","kind":"signer_signed","provider_envelope_id":"mock-1","signer_id":"sgn_a"}`))
	require.NoError(t, err)
	assert.Equal(t, envelope.EventSignerSigned, ev.Kind)
	assert.Equal(t, "mock-1", ev.ProviderEnvelopeID)

	_, err = m.ParseWebhookEvent([]byte(`{"kind":"signer_signed"}`))
	require.Error(t, err)

	_, err = m.ParseWebhookEvent([]byte(`not-json`))
	require.Error(t, err)
}
