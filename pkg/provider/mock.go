package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/webhooks"
)

// Mock is the deterministic in-memory provider used in tests and demos. Every
// call succeeds synchronously; SimulateSign is a test-only escape hatch that
// advances a signer the way a real vendor webhook would.
type Mock struct {
	mu        sync.Mutex
	envelopes map[string]*mockEnvelope
	secret    string
	verifier  webhooks.Verifier
}

type mockEnvelope struct {
	status  envelope.Status
	signers map[string]envelope.SignerStatus
	docs    map[string]bool
}

func NewMock(webhookSecret string) *Mock {
	if webhookSecret == "" {
		webhookSecret = "mock-webhook-secret"
	}
	return &Mock{
		envelopes: make(map[string]*mockEnvelope),
		secret:    webhookSecret,
		verifier:  webhooks.NewGenericHMACVerifier(string(envelope.ProviderMock)),
	}
}

func (m *Mock) Provider() envelope.Provider { return envelope.ProviderMock }

func (m *Mock) CreateEnvelope(_ context.Context, env *envelope.Envelope) (CreateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "mock-" + uuid.NewString()
	me := &mockEnvelope{
		status:  envelope.StatusDraft,
		signers: make(map[string]envelope.SignerStatus, len(env.Signers)),
		docs:    make(map[string]bool, len(env.Documents)),
	}
	urls := make(map[string]string, len(env.Signers))
	for _, s := range env.Signers {
		me.signers[s.ID] = envelope.SignerPending
		urls[s.ID] = fmt.Sprintf("https://mock.esign.local/sign/%s/%s", id, s.ID)
	}
	for _, d := range env.Documents {
		me.docs[d.ID] = true
	}
	m.envelopes[id] = me
	return CreateResult{ProviderEnvelopeID: id, SigningURLs: urls}, nil
}

func (m *Mock) SendEnvelope(_ context.Context, providerEnvelopeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return permanentErr(m.Provider(), "send", fmt.Errorf("envelope %s not found", providerEnvelopeID))
	}
	me.status = envelope.StatusSent
	for id := range me.signers {
		me.signers[id] = envelope.SignerSent
	}
	return nil
}

func (m *Mock) VoidEnvelope(_ context.Context, providerEnvelopeID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return permanentErr(m.Provider(), "void", fmt.Errorf("envelope %s not found", providerEnvelopeID))
	}
	me.status = envelope.StatusVoided
	return nil
}

func (m *Mock) GetEnvelopeStatus(_ context.Context, providerEnvelopeID string) (envelope.StatusSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return envelope.StatusSnapshot{}, permanentErr(m.Provider(), "status", fmt.Errorf("envelope %s not found", providerEnvelopeID))
	}
	snap := envelope.StatusSnapshot{
		Status:  me.status,
		Signers: make(map[string]envelope.SignerStatus, len(me.signers)),
	}
	for id, st := range me.signers {
		snap.Signers[id] = st
	}
	return snap, nil
}

func (m *Mock) GetSigningURL(_ context.Context, providerEnvelopeID, signerID, returnURL string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return "", permanentErr(m.Provider(), "signing-url", fmt.Errorf("envelope %s not found", providerEnvelopeID))
	}
	if _, ok := me.signers[signerID]; !ok {
		return "", permanentErr(m.Provider(), "signing-url", fmt.Errorf("signer %s not found", signerID))
	}
	url := fmt.Sprintf("https://mock.esign.local/sign/%s/%s", providerEnvelopeID, signerID)
	if returnURL != "" {
		url += "?return_url=" + returnURL
	}
	return url, nil
}

func (m *Mock) DownloadDocument(_ context.Context, providerEnvelopeID, documentID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return nil, permanentErr(m.Provider(), "download", fmt.Errorf("envelope %s not found", providerEnvelopeID))
	}
	if !me.docs[documentID] {
		return nil, permanentErr(m.Provider(), "download", fmt.Errorf("document %s not found", documentID))
	}
	return []byte("%PDF-1.4 mock document " + documentID), nil
}

func (m *Mock) VerifyWebhook(headers http.Header, rawBody []byte, receivedAt time.Time) (webhooks.VerificationResult, error) {
	return m.verifier.Verify(headers, rawBody, receivedAt, m.secret)
}

// ParseWebhookEvent decodes the universal event shape directly; the mock has
// no vendor vocabulary to translate.
func (m *Mock) ParseWebhookEvent(rawBody []byte) (envelope.Event, error) {
	var ev envelope.Event
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return envelope.Event{}, permanentErr(m.Provider(), "parse-webhook", err)
	}
	if ev.ID == "" || ev.ProviderEnvelopeID == "" {
		return envelope.Event{}, permanentErr(m.Provider(), "parse-webhook", fmt.Errorf("event id and provider_envelope_id are required"))
	}
	return ev, nil
}

// SimulateSign marks a signer as signed inside the mock vendor, so a later
// status poll observes the change. Test-only.
func (m *Mock) SimulateSign(providerEnvelopeID, signerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	me, ok := m.envelopes[providerEnvelopeID]
	if !ok {
		return fmt.Errorf("envelope %s not found", providerEnvelopeID)
	}
	if _, ok := me.signers[signerID]; !ok {
		return fmt.Errorf("signer %s not found", signerID)
	}
	me.signers[signerID] = envelope.SignerSigned
	for _, st := range me.signers {
		if st != envelope.SignerSigned {
			return nil
		}
	}
	me.status = envelope.StatusCompleted
	return nil
}
