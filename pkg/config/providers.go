package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rentfold/esign/pkg/envelope"
	"github.com/rentfold/esign/pkg/provider"
)

// ProviderProfile is one provider's wiring as written in the profiles file.
type ProviderProfile struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	APIKeyEnv      string `yaml:"api_key_env"`
	WebhookSecret  string `yaml:"webhook_secret"`
	WebhookSecEnv  string `yaml:"webhook_secret_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type providersFile struct {
	Providers map[string]ProviderProfile `yaml:"providers"`
}

// LoadProviderProfiles reads the YAML profiles file and resolves env-indirect
// credentials. A missing file yields an empty set: only the mock works then.
func LoadProviderProfiles(path string) (map[envelope.Provider]provider.Config, error) {
	out := make(map[envelope.Provider]provider.Config)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("reading provider profiles: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing provider profiles: %w", err)
	}

	for tag, p := range file.Providers {
		pt := envelope.Provider(tag)
		if !pt.Valid() {
			return nil, fmt.Errorf("provider profiles: unknown provider %q", tag)
		}
		apiKey := p.APIKey
		if p.APIKeyEnv != "" {
			apiKey = os.Getenv(p.APIKeyEnv)
		}
		secret := p.WebhookSecret
		if p.WebhookSecEnv != "" {
			secret = os.Getenv(p.WebhookSecEnv)
		}
		out[pt] = provider.Config{
			BaseURL:       p.BaseURL,
			APIKey:        apiKey,
			WebhookSecret: secret,
			Timeout:       time.Duration(p.TimeoutSeconds) * time.Second,
		}
	}
	return out, nil
}
