package envelope

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrUnknownSigner     = errors.New("unknown signer")
)

// EventKind classifies a universal transition event. Vendor adapters translate
// their own webhook vocabulary into these kinds.
type EventKind string

const (
	EventSignerDelivered  EventKind = "signer_delivered"
	EventSignerViewed     EventKind = "signer_viewed"
	EventSignerSigned     EventKind = "signer_signed"
	EventSignerDeclined   EventKind = "signer_declined"
	EventEnvelopeComplete EventKind = "envelope_completed"
	EventEnvelopeDeclined EventKind = "envelope_declined"
	EventEnvelopeVoided   EventKind = "envelope_voided"
	EventEnvelopeExpired  EventKind = "envelope_expired"
)

// Event is the provider-agnostic form of one state-change notification. ID is
// the vendor's own event identifier and is the deduplication key.
type Event struct {
	ID                 string    `json:"id"`
	Kind               EventKind `json:"kind"`
	ProviderEnvelopeID string    `json:"provider_envelope_id"`
	SignerID           string    `json:"signer_id,omitempty"`
	OccurredAt         time.Time `json:"occurred_at"`
	IPAddress          string    `json:"ip_address,omitempty"`
}

// StatusSnapshot is a point-in-time provider view of an envelope, used by the
// pull-path reconciliation.
type StatusSnapshot struct {
	Status  Status
	Signers map[string]SignerStatus
}

// MarkSent applies the send transition: legal only from draft, moves the
// envelope and every signer to sent.
func (e *Envelope) MarkSent(now time.Time) error {
	if e.Status != StatusDraft {
		return fmt.Errorf("%w: cannot send envelope in status %s", ErrIllegalTransition, e.Status)
	}
	e.Status = StatusSent
	e.SentAt = &now
	e.UpdatedAt = now
	for i := range e.Signers {
		e.Signers[i].Status = SignerSent
	}
	return nil
}

// MarkVoided is legal from any non-terminal state.
func (e *Envelope) MarkVoided(now time.Time) error {
	if e.Status.Terminal() {
		return fmt.Errorf("%w: cannot void envelope in status %s", ErrIllegalTransition, e.Status)
	}
	e.Status = StatusVoided
	e.UpdatedAt = now
	return nil
}

// MarkExpired reclaims a non-terminal envelope whose deadline has passed. A
// terminal envelope is left untouched, so the sweep can safely re-run.
func (e *Envelope) MarkExpired(now time.Time) bool {
	if e.Status.Terminal() {
		return false
	}
	e.Status = StatusExpired
	e.UpdatedAt = now
	return true
}

// Apply folds one universal event into the envelope. Re-applying an event that
// has already taken effect is a no-op, never an error: both the webhook and the
// poll channel funnel through here, and either may deliver late or twice.
func (e *Envelope) Apply(ev Event, now time.Time) (bool, error) {
	if e.Status.Terminal() {
		return false, nil
	}

	switch ev.Kind {
	case EventSignerDelivered:
		return e.applySigner(ev, SignerDelivered, StatusDelivered, now)
	case EventSignerViewed:
		return e.applySigner(ev, SignerViewed, StatusViewed, now)
	case EventSignerSigned:
		s := e.Signer(ev.SignerID)
		if s == nil {
			return false, fmt.Errorf("%w: %s", ErrUnknownSigner, ev.SignerID)
		}
		next, changed := s.Status.advance(SignerSigned)
		if !changed {
			return false, nil
		}
		s.Status = next
		signedAt := ev.OccurredAt
		if signedAt.IsZero() {
			signedAt = now
		}
		s.SignedAt = &signedAt
		if ev.IPAddress != "" {
			s.IPAddress = ev.IPAddress
		}
		e.completeIfAllSigned(now)
		e.UpdatedAt = now
		return true, nil
	case EventSignerDeclined:
		s := e.Signer(ev.SignerID)
		if s == nil {
			return false, fmt.Errorf("%w: %s", ErrUnknownSigner, ev.SignerID)
		}
		if s.Status.Terminal() && e.Status == StatusDeclined {
			return false, nil
		}
		if !s.Status.Terminal() {
			s.Status = SignerDeclined
		}
		// One decline terminates the whole workflow. Remaining signers are
		// left as-is: the envelope state already says nothing more happens.
		e.Status = StatusDeclined
		e.UpdatedAt = now
		return true, nil
	case EventEnvelopeComplete:
		for i := range e.Signers {
			if e.Signers[i].Status.Terminal() {
				continue
			}
			e.Signers[i].Status = SignerSigned
			signedAt := ev.OccurredAt
			if signedAt.IsZero() {
				signedAt = now
			}
			e.Signers[i].SignedAt = &signedAt
		}
		e.Status = StatusCompleted
		e.CompletedAt = &now
		e.UpdatedAt = now
		return true, nil
	case EventEnvelopeDeclined:
		e.Status = StatusDeclined
		e.UpdatedAt = now
		return true, nil
	case EventEnvelopeVoided:
		e.Status = StatusVoided
		e.UpdatedAt = now
		return true, nil
	case EventEnvelopeExpired:
		e.Status = StatusExpired
		e.UpdatedAt = now
		return true, nil
	default:
		return false, fmt.Errorf("%w: unsupported event kind %s", ErrIllegalTransition, ev.Kind)
	}
}

func (e *Envelope) applySigner(ev Event, signerNext SignerStatus, envNext Status, now time.Time) (bool, error) {
	s := e.Signer(ev.SignerID)
	if s == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownSigner, ev.SignerID)
	}
	changed := false
	if next, ok := s.Status.advance(signerNext); ok {
		s.Status = next
		changed = true
	}
	// A signer reaching the vendor's inbox implies the envelope did too.
	if next, ok := e.Status.advance(envNext); ok {
		e.Status = next
		changed = true
	}
	if changed {
		e.UpdatedAt = now
	}
	return changed, nil
}

// Merge reconciles a polled provider snapshot into local state. Stale or
// out-of-order snapshots are discarded field by field: a slow poll response
// can never regress state a webhook already advanced.
func (e *Envelope) Merge(snap StatusSnapshot, now time.Time) bool {
	changed := false
	for id, st := range snap.Signers {
		s := e.Signer(id)
		if s == nil {
			continue
		}
		if next, ok := s.Status.advance(st); ok {
			s.Status = next
			if next == SignerSigned && s.SignedAt == nil {
				s.SignedAt = &now
			}
			changed = true
		}
	}
	if next, ok := e.Status.advance(snap.Status); ok {
		e.Status = next
		changed = true
	}
	// The snapshot's envelope status can lag its own signer records. Derive
	// the envelope-level consequences the same way the event path does, so
	// both channels land on the same state.
	if !e.Status.Terminal() {
		for i := range e.Signers {
			if e.Signers[i].Status == SignerDeclined {
				e.Status = StatusDeclined
				changed = true
				break
			}
		}
	}
	if !e.Status.Terminal() {
		before := e.Status
		e.completeIfAllSigned(now)
		if e.Status != before {
			changed = true
		}
	}
	if e.Status == StatusCompleted {
		// Keep the completion invariant even when the vendor reports the
		// envelope done before every per-signer record caught up.
		for i := range e.Signers {
			if !e.Signers[i].Status.Terminal() {
				e.Signers[i].Status = SignerSigned
				if e.Signers[i].SignedAt == nil {
					e.Signers[i].SignedAt = &now
				}
				changed = true
			}
		}
		if e.CompletedAt == nil {
			e.CompletedAt = &now
			changed = true
		}
	}
	if changed {
		e.UpdatedAt = now
	}
	return changed
}

func (e *Envelope) completeIfAllSigned(now time.Time) {
	for i := range e.Signers {
		if e.Signers[i].Status != SignerSigned {
			return
		}
	}
	e.Status = StatusCompleted
	e.CompletedAt = &now
}
