// Package orchestrator drives multi-party signing workflows. All state
// mutation on one envelope — user actions, status polls, webhook events and
// the expiry sweep — funnels through the same per-envelope serialized
// transition path, so the two asynchronous update channels can never
// interleave into an inconsistent intermediate state.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/esign/internal/dedup"
	"github.com/rentfold/esign/internal/store"
	"github.com/rentfold/esign/pkg/apperr"
	"github.com/rentfold/esign/pkg/audit"
	"github.com/rentfold/esign/pkg/auth"
	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/provider"
)

type Orchestrator struct {
	store    store.Store
	registry *provider.Registry
	audit    audit.Logger
	dedup    dedup.Store
	log      *slog.Logger
	locks    *envelopeLocks
	now      func() time.Time

	// enforceOrder gates signing URLs on all lower-order signers having
	// signed. Off by default: the order field is advisory.
	enforceOrder bool
}

type Option func(*Orchestrator)

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

func WithEnforcedSigningOrder() Option {
	return func(o *Orchestrator) { o.enforceOrder = true }
}

func New(st store.Store, registry *provider.Registry, auditLog audit.Logger, dedupStore dedup.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    st,
		registry: registry,
		audit:    auditLog,
		dedup:    dedupStore,
		log:      slog.Default(),
		locks:    newEnvelopeLocks(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type DocumentInput struct {
	Name    string `json:"name"`
	FileURL string `json:"file_url"`
}

type SignerInput struct {
	Name  string              `json:"name"`
	Email string              `json:"email"`
	Role  envelope.SignerRole `json:"role"`
	Order int                 `json:"order"`
}

type CreateRequest struct {
	Provider        envelope.Provider `json:"provider"`
	DocumentType    string            `json:"document_type"`
	RelatedEntityID string            `json:"related_entity_id,omitempty"`
	Title           string            `json:"title"`
	Message         string            `json:"message,omitempty"`
	Documents       []DocumentInput   `json:"documents"`
	Signers         []SignerInput     `json:"signers"`
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// CreateResult pairs the persisted envelope with the point-in-time signing
// URLs. The URLs are returned exactly once and never persisted.
type CreateResult struct {
	Envelope    *envelope.Envelope `json:"envelope"`
	SigningURLs map[string]string  `json:"signing_urls"`
}

// Create validates the request, registers the envelope with the provider, and
// persists it in draft. The provider call is never retried: envelope creation
// is not idempotent at most vendors, and a duplicate vendor-side envelope is
// worse than a surfaced failure.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest, actor auth.Actor) (*CreateResult, error) {
	now := o.now().UTC()

	env := &envelope.Envelope{
		ID:              "env_" + uuid.NewString(),
		OwnerID:         actor.ID,
		Provider:        req.Provider,
		DocumentType:    req.DocumentType,
		RelatedEntityID: req.RelatedEntityID,
		Title:           strings.TrimSpace(req.Title),
		Message:         req.Message,
		Status:          envelope.StatusDraft,
		ExpiresAt:       req.ExpiresAt,
		CreatedAt:       now,
		UpdatedAt:       now,
		Metadata:        req.Metadata,
	}
	for _, d := range req.Documents {
		env.Documents = append(env.Documents, envelope.Document{
			ID:      "doc_" + uuid.NewString(),
			Name:    d.Name,
			FileURL: d.FileURL,
		})
	}
	for _, s := range req.Signers {
		env.Signers = append(env.Signers, envelope.Signer{
			ID:     "sgn_" + uuid.NewString(),
			Name:   s.Name,
			Email:  strings.ToLower(strings.TrimSpace(s.Email)),
			Role:   s.Role,
			Order:  s.Order,
			Status: envelope.SignerPending,
		})
	}
	if err := env.Validate(now); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "invalid create request")
	}

	adapter, err := o.registry.Adapter(env.Provider)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "provider not available")
	}

	created, err := adapter.CreateEnvelope(ctx, env)
	if err != nil {
		return nil, o.mapProviderErr(err, "create envelope")
	}
	env.ProviderEnvelopeID = created.ProviderEnvelopeID

	if err := o.store.Create(ctx, env); err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "persisting envelope")
	}
	o.recordTransition(ctx, actor.ID, env, "created", nil)

	return &CreateResult{Envelope: env, SigningURLs: created.SigningURLs}, nil
}

// Send moves a draft envelope into the signing flow: owner-only, draft-only.
func (o *Orchestrator) Send(ctx context.Context, envelopeID string, actor auth.Actor) (*envelope.Envelope, error) {
	env, adapter, err := o.snapshotForMutation(ctx, envelopeID, actor, "send")
	if err != nil {
		return nil, err
	}
	if env.Status != envelope.StatusDraft {
		return nil, apperr.New(apperr.KindInvalidState, "cannot send envelope in status %s", env.Status)
	}

	if err := adapter.SendEnvelope(ctx, env.ProviderEnvelopeID); err != nil {
		return nil, o.mapProviderErr(err, "send envelope")
	}

	return o.applyMutation(ctx, envelopeID, actor.ID, "sent", nil, func(env *envelope.Envelope) error {
		if err := env.MarkSent(o.now().UTC()); err != nil {
			return apperr.Wrap(apperr.KindInvalidState, err, "send raced with a concurrent transition")
		}
		return nil
	})
}

// Void cancels a non-terminal envelope: owner-only.
func (o *Orchestrator) Void(ctx context.Context, envelopeID string, actor auth.Actor, reason string) (*envelope.Envelope, error) {
	env, adapter, err := o.snapshotForMutation(ctx, envelopeID, actor, "void")
	if err != nil {
		return nil, err
	}
	if env.Status.Terminal() {
		return nil, apperr.New(apperr.KindInvalidState, "cannot void envelope in status %s", env.Status)
	}

	if err := adapter.VoidEnvelope(ctx, env.ProviderEnvelopeID, reason); err != nil {
		return nil, o.mapProviderErr(err, "void envelope")
	}

	meta := map[string]any{"reason": reason}
	return o.applyMutation(ctx, envelopeID, actor.ID, "voided", meta, func(env *envelope.Envelope) error {
		if err := env.MarkVoided(o.now().UTC()); err != nil {
			return apperr.Wrap(apperr.KindInvalidState, err, "void raced with a concurrent transition")
		}
		return nil
	})
}

// RefreshStatus reconciles local state against a provider poll. The merge is
// monotonic: a slow poll response can never regress state a webhook already
// advanced, it is silently discarded instead.
func (o *Orchestrator) RefreshStatus(ctx context.Context, envelopeID string) (*envelope.Envelope, error) {
	unlock := o.locks.acquire(envelopeID)
	env, err := o.load(ctx, envelopeID)
	unlock()
	if err != nil {
		return nil, err
	}
	if env.Status.Terminal() {
		return env, nil
	}

	adapter, err := o.registry.Adapter(env.Provider)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "provider not available")
	}

	var snap envelope.StatusSnapshot
	err = withRetry(ctx, func() error {
		var callErr error
		snap, callErr = adapter.GetEnvelopeStatus(ctx, env.ProviderEnvelopeID)
		return callErr
	})
	if err != nil {
		return nil, o.mapProviderErr(err, "refresh status")
	}

	unlock = o.locks.acquire(envelopeID)
	defer unlock()
	env, err = o.load(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if !env.Merge(snap, o.now().UTC()) {
		return env, nil
	}
	if err := o.store.Update(ctx, env); err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "persisting envelope")
	}
	o.recordTransition(ctx, "", env, "status_refreshed", map[string]any{"provider_status": string(snap.Status)})
	return env, nil
}

// SigningURL returns a short-lived signing link for one signer. Allowed for
// the envelope owner or the targeted signer themselves; everyone else gets an
// explicit denial, never an empty result.
func (o *Orchestrator) SigningURL(ctx context.Context, envelopeID, signerID string, actor auth.Actor, returnURL string) (string, error) {
	unlock := o.locks.acquire(envelopeID)
	env, err := o.load(ctx, envelopeID)
	unlock()
	if err != nil {
		return "", err
	}

	// Authorize before resolving the signer, so an unrelated actor cannot
	// probe which signer ids exist on someone else's envelope.
	signer := env.Signer(signerID)
	if !canAct(actor, env, signer) {
		o.recordDenial(ctx, actor, env, "signing_url", signerID)
		return "", apperr.New(apperr.KindForbidden, "actor may not request a signing url for signer %s", signerID)
	}
	if signer == nil {
		return "", apperr.New(apperr.KindNotFound, "signer %s not found", signerID)
	}
	if env.Status.Terminal() {
		return "", apperr.New(apperr.KindInvalidState, "envelope is %s and can no longer be signed", env.Status)
	}
	if o.enforceOrder {
		for i := range env.Signers {
			s := &env.Signers[i]
			if s.Order < signer.Order && s.Status != envelope.SignerSigned {
				return "", apperr.New(apperr.KindInvalidState, "signer %s must wait for earlier signers to sign", signerID)
			}
		}
	}

	adapter, err := o.registry.Adapter(env.Provider)
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, err, "provider not available")
	}

	var url string
	err = withRetry(ctx, func() error {
		var callErr error
		url, callErr = adapter.GetSigningURL(ctx, env.ProviderEnvelopeID, signerID, returnURL)
		return callErr
	})
	if err != nil {
		return "", o.mapProviderErr(err, "signing url")
	}
	return url, nil
}

// DownloadDocument streams one document's bytes. Same authorization surface
// as SigningURL: the owner or any signer on the envelope.
func (o *Orchestrator) DownloadDocument(ctx context.Context, envelopeID, documentID string, actor auth.Actor) ([]byte, error) {
	unlock := o.locks.acquire(envelopeID)
	env, err := o.load(ctx, envelopeID)
	unlock()
	if err != nil {
		return nil, err
	}

	if !canAct(actor, env, env.SignerByEmail(actor.Email)) {
		o.recordDenial(ctx, actor, env, "download_document", documentID)
		return nil, apperr.New(apperr.KindForbidden, "actor may not download documents for this envelope")
	}
	found := false
	for _, d := range env.Documents {
		if d.ID == documentID {
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.New(apperr.KindNotFound, "document %s not found", documentID)
	}

	adapter, err := o.registry.Adapter(env.Provider)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err, "provider not available")
	}

	var data []byte
	err = withRetry(ctx, func() error {
		var callErr error
		data, callErr = adapter.DownloadDocument(ctx, env.ProviderEnvelopeID, documentID)
		return callErr
	})
	if err != nil {
		return nil, o.mapProviderErr(err, "download document")
	}
	return data, nil
}

// Get returns one envelope to its owner or any of its signers.
func (o *Orchestrator) Get(ctx context.Context, envelopeID string, actor auth.Actor) (*envelope.Envelope, error) {
	env, err := o.load(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, env, env.SignerByEmail(actor.Email)) {
		o.recordDenial(ctx, actor, env, "get", "")
		return nil, apperr.New(apperr.KindForbidden, "actor may not view this envelope")
	}
	return env, nil
}

// List returns the actor's own envelopes.
func (o *Orchestrator) List(ctx context.Context, actor auth.Actor) ([]*envelope.Envelope, error) {
	envs, err := o.store.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "listing envelopes")
	}
	return envs, nil
}

// WebhookResult tells the route layer how to answer the vendor. Accepted
// covers genuine transitions, duplicates and business-irrelevant events
// alike: only signature failure may produce a non-200.
type WebhookResult struct {
	Duplicate  bool
	Ignored    bool
	EnvelopeID string
	Status     envelope.Status
}

// ProcessWebhookEvent authenticates and applies one inbound vendor event,
// through the same transition-legality path as every other mutator.
func (o *Orchestrator) ProcessWebhookEvent(ctx context.Context, tag envelope.Provider, headers http.Header, rawBody []byte, requestSHA string) (*WebhookResult, error) {
	adapter, err := o.registry.Adapter(tag)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindNotFound, err, "unknown webhook provider")
	}

	now := o.now().UTC()
	verification, err := adapter.VerifyWebhook(headers, rawBody, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "webhook verification failed to run")
	}
	if !verification.Valid {
		_ = o.audit.Record(ctx, audit.Entry{
			Type:   audit.EventDenial,
			Action: "webhook_rejected",
			Metadata: map[string]any{
				"provider":    string(tag),
				"scheme":      verification.Scheme,
				"request_sha": requestSHA,
				"details":     verification.Details,
			},
		})
		return nil, apperr.New(apperr.KindWebhookAuth, "webhook signature verification failed")
	}

	ev, err := adapter.ParseWebhookEvent(rawBody)
	if err != nil {
		if errors.Is(err, provider.ErrIgnoredEvent) {
			o.log.Debug("ignoring webhook event", "provider", tag, "reason", err)
			return &WebhookResult{Ignored: true}, nil
		}
		// Authenticated but unparseable: acknowledge so the vendor does not
		// redeliver forever, and leave a trace for reconciliation.
		o.log.Warn("unparseable webhook payload", "provider", tag, "error", err)
		return &WebhookResult{Ignored: true}, nil
	}

	fresh, err := o.dedup.MarkIfNew(ctx, string(tag), ev.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "webhook dedup store")
	}
	if !fresh {
		return &WebhookResult{Duplicate: true}, nil
	}

	env, err := o.store.GetByProviderEnvelopeID(ctx, tag, ev.ProviderEnvelopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.log.Warn("webhook for unknown envelope", "provider", tag, "provider_envelope_id", ev.ProviderEnvelopeID)
			return &WebhookResult{Ignored: true}, nil
		}
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "loading envelope")
	}

	unlock := o.locks.acquire(env.ID)
	defer unlock()
	env, err = o.load(ctx, env.ID)
	if err != nil {
		return nil, err
	}

	changed, err := env.Apply(ev, o.now().UTC())
	if err != nil {
		if errors.Is(err, envelope.ErrUnknownSigner) {
			o.log.Warn("webhook references unknown signer", "envelope_id", env.ID, "signer_id", ev.SignerID)
			return &WebhookResult{Ignored: true, EnvelopeID: env.ID, Status: env.Status}, nil
		}
		return nil, apperr.Wrap(apperr.KindInvalidState, err, "applying webhook event")
	}
	if changed {
		if err := o.store.Update(ctx, env); err != nil {
			return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "persisting envelope")
		}
		o.recordTransition(ctx, "", env, "webhook_"+string(ev.Kind), map[string]any{
			"event_id":    ev.ID,
			"signer_id":   ev.SignerID,
			"request_sha": requestSHA,
		})
	}
	return &WebhookResult{EnvelopeID: env.ID, Status: env.Status}, nil
}

// Expire reclaims one envelope past its deadline, via the same transition
// path and the same per-envelope lock as every other mutator.
func (o *Orchestrator) Expire(ctx context.Context, envelopeID string) (bool, error) {
	unlock := o.locks.acquire(envelopeID)
	defer unlock()

	env, err := o.load(ctx, envelopeID)
	if err != nil {
		return false, err
	}
	now := o.now().UTC()
	if env.ExpiresAt == nil || env.ExpiresAt.After(now) {
		return false, nil
	}
	if !env.MarkExpired(now) {
		return false, nil
	}
	if err := o.store.Update(ctx, env); err != nil {
		return false, apperr.Wrap(apperr.KindProviderUnavailable, err, "persisting envelope")
	}
	o.recordTransition(ctx, "", env, "expired", nil)
	return true, nil
}

func (o *Orchestrator) load(ctx context.Context, envelopeID string) (*envelope.Envelope, error) {
	env, err := o.store.Get(ctx, envelopeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "envelope %s not found", envelopeID)
		}
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "loading envelope")
	}
	return env, nil
}

// snapshotForMutation does the pre-call phase of an owner mutation: read the
// snapshot under the lock, authorize, resolve the adapter — then release, so
// the vendor call below runs lock-free.
func (o *Orchestrator) snapshotForMutation(ctx context.Context, envelopeID string, actor auth.Actor, action string) (*envelope.Envelope, provider.Adapter, error) {
	unlock := o.locks.acquire(envelopeID)
	env, err := o.load(ctx, envelopeID)
	unlock()
	if err != nil {
		return nil, nil, err
	}
	if actor.ID != env.OwnerID {
		o.recordDenial(ctx, actor, env, action, "")
		return nil, nil, apperr.New(apperr.KindForbidden, "only the envelope owner may %s", action)
	}
	adapter, err := o.registry.Adapter(env.Provider)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.KindValidation, err, "provider not available")
	}
	return env, adapter, nil
}

func (o *Orchestrator) applyMutation(ctx context.Context, envelopeID, actorID, action string, meta map[string]any, apply func(*envelope.Envelope) error) (*envelope.Envelope, error) {
	unlock := o.locks.acquire(envelopeID)
	defer unlock()

	env, err := o.load(ctx, envelopeID)
	if err != nil {
		return nil, err
	}
	if err := apply(env); err != nil {
		return nil, err
	}
	if err := o.store.Update(ctx, env); err != nil {
		return nil, apperr.Wrap(apperr.KindProviderUnavailable, err, "persisting envelope")
	}
	o.recordTransition(ctx, actorID, env, action, meta)
	return env, nil
}

func (o *Orchestrator) mapProviderErr(err error, action string) error {
	var pe *provider.Error
	if errors.As(err, &pe) {
		if pe.Retryable {
			return apperr.Wrap(apperr.KindProviderUnavailable, err, "%s: provider unavailable", action)
		}
		return apperr.Wrap(apperr.KindProviderRejected, err, "%s: provider rejected the request", action)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.KindProviderUnavailable, err, "%s failed", action)
}

func (o *Orchestrator) recordTransition(ctx context.Context, actorID string, env *envelope.Envelope, action string, meta map[string]any) {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["status"] = string(env.Status)
	if err := o.audit.Record(ctx, audit.Entry{
		Type:       audit.EventTransition,
		ActorID:    actorID,
		EnvelopeID: env.ID,
		Action:     action,
		Metadata:   meta,
	}); err != nil {
		o.log.Error("audit record failed", "envelope_id", env.ID, "action", action, "error", err)
	}
}

func (o *Orchestrator) recordDenial(ctx context.Context, actor auth.Actor, env *envelope.Envelope, action, target string) {
	if err := o.audit.Record(ctx, audit.Entry{
		Type:       audit.EventDenial,
		ActorID:    actor.ID,
		EnvelopeID: env.ID,
		Action:     action,
		Metadata:   map[string]any{"target": target},
	}); err != nil {
		o.log.Error("audit record failed", "envelope_id", env.ID, "action", action, "error", err)
	}
}

// canAct is the single authorization predicate: the envelope owner, or the
// targeted signer acting on their own behalf.
func canAct(actor auth.Actor, env *envelope.Envelope, signer *envelope.Signer) bool {
	if actor.ID == env.OwnerID {
		return true
	}
	return signer != nil && strings.EqualFold(actor.Email, signer.Email)
}
