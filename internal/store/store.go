// Package store is the persistence collaborator for envelope records.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rentfold/esign/pkg/envelope"
)

var ErrNotFound = errors.New("envelope not found")

// Store offers create/read/update-by-id for envelopes. Implementations return
// detached copies; the orchestrator owns all mutation under its own locking.
type Store interface {
	Create(ctx context.Context, env *envelope.Envelope) error
	Get(ctx context.Context, id string) (*envelope.Envelope, error)
	GetByProviderEnvelopeID(ctx context.Context, p envelope.Provider, providerEnvelopeID string) (*envelope.Envelope, error)
	Update(ctx context.Context, env *envelope.Envelope) error
	ListByOwner(ctx context.Context, ownerID string) ([]*envelope.Envelope, error)
	// ListExpiredIDs returns ids of non-terminal envelopes whose expires_at
	// has passed, for the expiry sweep.
	ListExpiredIDs(ctx context.Context, now time.Time, limit int) ([]string, error)
}
