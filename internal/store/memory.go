package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rentfold/esign/pkg/envelope"
)

// Memory is a thread-safe in-memory store used by tests and demos.
type Memory struct {
	mu        sync.RWMutex
	envelopes map[string]*envelope.Envelope
}

func NewMemory() *Memory {
	return &Memory{envelopes: make(map[string]*envelope.Envelope)}
}

func (m *Memory) Create(_ context.Context, env *envelope.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envelopes[env.ID] = env.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*envelope.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.envelopes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return env.Clone(), nil
}

func (m *Memory) GetByProviderEnvelopeID(_ context.Context, p envelope.Provider, providerEnvelopeID string) (*envelope.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, env := range m.envelopes {
		if env.Provider == p && env.ProviderEnvelopeID == providerEnvelopeID {
			return env.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) Update(_ context.Context, env *envelope.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.envelopes[env.ID]; !ok {
		return ErrNotFound
	}
	m.envelopes[env.ID] = env.Clone()
	return nil
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string) ([]*envelope.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*envelope.Envelope
	for _, env := range m.envelopes {
		if env.OwnerID == ownerID {
			out = append(out, env.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListExpiredIDs(_ context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, env := range m.envelopes {
		if env.Status.Terminal() || env.ExpiresAt == nil {
			continue
		}
		if env.ExpiresAt.Before(now) {
			ids = append(ids, id)
			if limit > 0 && len(ids) >= limit {
				break
			}
		}
	}
	return ids, nil
}
