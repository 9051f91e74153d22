package provider

import (
	"fmt"
	"sync"

	"github.com/rentfold/esign/pkg/envelope"
)

// Registry constructs one shared adapter per provider tag, lazily on first
// use. Construction happens with the lock held so concurrent first access
// cannot double-build stateful clients.
type Registry struct {
	mu       sync.Mutex
	configs  map[envelope.Provider]Config
	adapters map[envelope.Provider]Adapter
}

func NewRegistry(configs map[envelope.Provider]Config) *Registry {
	if configs == nil {
		configs = map[envelope.Provider]Config{}
	}
	return &Registry{
		configs:  configs,
		adapters: make(map[envelope.Provider]Adapter),
	}
}

// Adapter returns the memoized adapter for the tag, building it on first use.
func (r *Registry) Adapter(tag envelope.Provider) (Adapter, error) {
	if !tag.Valid() {
		return nil, fmt.Errorf("unknown provider %q", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.adapters[tag]; ok {
		return a, nil
	}

	a, err := r.build(tag)
	if err != nil {
		return nil, err
	}
	r.adapters[tag] = a
	return a, nil
}

// Register installs a pre-built adapter, replacing lazy construction for that
// tag. Tests use this to install the mock under a vendor tag.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Provider()] = a
}

func (r *Registry) build(tag envelope.Provider) (Adapter, error) {
	cfg := r.configs[tag]
	switch tag {
	case envelope.ProviderMock:
		return NewMock(cfg.WebhookSecret), nil
	case envelope.ProviderDocuSign:
		if cfg.BaseURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s is not configured", tag)
		}
		return newDocuSign(cfg), nil
	case envelope.ProviderDropboxSign:
		if cfg.BaseURL == "" || cfg.APIKey == "" {
			return nil, fmt.Errorf("provider %s is not configured", tag)
		}
		return newDropboxSign(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", tag)
	}
}
