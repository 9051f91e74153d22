package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	now := time.Unix(2000, 0).UTC()
	future := now.Add(24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name    string
		mutate  func(*Envelope)
		wantErr string
	}{
		{"valid", func(e *Envelope) {}, ""},
		{"valid with expiry", func(e *Envelope) { e.ExpiresAt = &future }, ""},
		{"unknown provider", func(e *Envelope) { e.Provider = "pandadoc" }, "unknown provider"},
		{"blank title", func(e *Envelope) { e.Title = "  " }, "title is required"},
		{"no documents", func(e *Envelope) { e.Documents = nil }, "at least one document"},
		{"no signers", func(e *Envelope) { e.Signers = nil }, "at least one signer"},
		{"blank signer email", func(e *Envelope) { e.Signers[0].Email = "" }, "email is required"},
		{"zero order", func(e *Envelope) { e.Signers[0].Order = 0 }, "order must be >= 1"},
		{"duplicate signer id", func(e *Envelope) { e.Signers[1].ID = e.Signers[0].ID }, "duplicate signer id"},
		{"duplicate email differing in case", func(e *Envelope) { e.Signers[1].Email = "TENANT@example.com" }, "duplicate signer email"},
		{"expiry in the past", func(e *Envelope) { e.ExpiresAt = &past }, "expires_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := leaseEnvelope()
			tt.mutate(e)
			err := e.Validate(now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSignerByEmail(t *testing.T) {
	e := leaseEnvelope()
	require.NotNil(t, e.SignerByEmail(" Tenant@Example.com "))
	assert.Equal(t, "sgn_a", e.SignerByEmail("tenant@example.com").ID)
	assert.Nil(t, e.SignerByEmail("stranger@example.com"))
}

func TestClone_IsDeep(t *testing.T) {
	now := time.Unix(2000, 0).UTC()
	e := leaseEnvelope()
	e.Metadata = map[string]string{"lease_id": "lease_42"}
	require.NoError(t, e.MarkSent(now))

	cp := e.Clone()
	cp.Signers[0].Status = SignerSigned
	cp.Documents[0].Name = "changed.pdf"
	cp.Metadata["lease_id"] = "other"
	*cp.SentAt = cp.SentAt.Add(time.Hour)

	assert.Equal(t, SignerSent, e.Signers[0].Status)
	assert.Equal(t, "lease.pdf", e.Documents[0].Name)
	assert.Equal(t, "lease_42", e.Metadata["lease_id"])
	assert.Equal(t, now, *e.SentAt)
}
