package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Roster lists the merchants a backfill run covers.
type Roster struct {
	Merchants []MerchantEntry `yaml:"merchants"`
}

// MerchantEntry configures one merchant's provider connections.
type MerchantEntry struct {
	ID         string          `yaml:"id"`
	PlatformID string          `yaml:"platform_id,omitempty"`
	Timezone   string          `yaml:"timezone,omitempty"`
	Currency   string          `yaml:"currency,omitempty"`
	Providers  []ProviderEntry `yaml:"providers"`
}

// ProviderEntry names a provider and where its credential lives.
// CredentialEnv is the name of an environment variable; secrets never
// appear in the roster itself.
type ProviderEntry struct {
	Name          string            `yaml:"name"`
	CredentialEnv string            `yaml:"credential_env"`
	Params        map[string]string `yaml:"params,omitempty"`
	BaseURL       string            `yaml:"base_url,omitempty"`
}

// Credential resolves the provider's credential from the environment.
func (p ProviderEntry) Credential() (string, error) {
	if p.CredentialEnv == "" {
		return "", fmt.Errorf("provider %s: credential_env not set", p.Name)
	}
	val := strings.TrimSpace(os.Getenv(p.CredentialEnv))
	if val == "" {
		return "", fmt.Errorf("provider %s: environment variable %s is empty", p.Name, p.CredentialEnv)
	}
	return val, nil
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(data)
}

// ParseRoster decodes roster YAML. Unknown keys are rejected.
func ParseRoster(data []byte) (*Roster, error) {
	var r Roster
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	seen := make(map[string]bool)
	for i, m := range r.Merchants {
		if m.ID == "" {
			return nil, fmt.Errorf("merchant %d: missing id", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("merchant %s: duplicate id", m.ID)
		}
		seen[m.ID] = true
		if len(m.Providers) == 0 {
			return nil, fmt.Errorf("merchant %s: no providers", m.ID)
		}
		for j, p := range m.Providers {
			if p.Name == "" {
				return nil, fmt.Errorf("merchant %s provider %d: missing name", m.ID, j)
			}
		}
	}
	return &r, nil
}

// Merchant returns the entry for id.
func (r *Roster) Merchant(id string) (MerchantEntry, bool) {
	for _, m := range r.Merchants {
		if m.ID == id {
			return m, true
		}
	}
	return MerchantEntry{}, false
}
