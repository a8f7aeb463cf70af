// Package credentials stores per-provider API keys in credentials.toml and
// resolves the key a client sends with each relay request.
package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/llm/provider"
)

const (
	credentialsFile = "credentials.toml"

	currentVersion = 0
)

// Key sources reported by Resolve.
const (
	SourceFlag  = "flag"
	SourceEnv   = "env"
	SourceStore = "credentials"
)

// ErrNoKey is returned by Resolve when no source holds a key.
var ErrNoKey = errors.New("no API key configured")

// providerEnvVars maps provider names to their expected environment variables.
var providerEnvVars = map[string]string{
	provider.Anthropic: "ANTHROPIC_API_KEY",
	provider.OpenAI:    "OPENAI_API_KEY",
}

// Manager reads and writes credentials.toml in the .relay/ directory.
type Manager struct {
	targetPath string
	getenv     func(string) string
}

// NewManager creates a Manager. A non-empty override is used as the .relay/
// directory; otherwise the standard dotdir resolution applies.
func NewManager(override string) (*Manager, error) {
	target, err := dotdir.NewManager().File(override, credentialsFile)
	if err != nil {
		return nil, err
	}

	return &Manager{targetPath: target, getenv: os.Getenv}, nil
}

// Load reads credentials.toml. A missing file yields empty Credentials.
func (m *Manager) Load() (*Credentials, error) {
	creds := &Credentials{Version: currentVersion}

	data, err := os.ReadFile(m.targetPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading credentials: %w", err)
	default:
		if err := toml.Unmarshal(data, creds); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
	}

	if creds.Providers == nil {
		creds.Providers = make(map[string]ProviderCredential)
	}
	return creds, nil
}

// Save writes credentials.toml with 0600 permissions.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil {
		return errors.New("cannot save nil credentials")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(creds); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	if err := os.WriteFile(m.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}

// SetKey stores an API key for the given provider.
func (m *Manager) SetKey(providerName, key string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	creds.Providers[providerName] = ProviderCredential{APIKey: key}
	return m.Save(creds)
}

// GetKey returns the stored API key for the given provider, or "".
func (m *Manager) GetKey(providerName string) (string, error) {
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	return creds.Providers[providerName].APIKey, nil
}

// RemoveKey deletes the stored credential for a provider.
func (m *Manager) RemoveKey(providerName string) error {
	creds, err := m.Load()
	if err != nil {
		return err
	}

	delete(creds.Providers, providerName)
	return m.Save(creds)
}

// ListProviders returns the sorted names of providers with stored keys.
func (m *Manager) ListProviders() ([]string, error) {
	creds, err := m.Load()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(creds.Providers))
	for name := range creds.Providers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Resolve picks the key to send for providerName: explicit first, then the
// provider's environment variable, then the stored key. It returns the key
// and the name of the source it came from.
func (m *Manager) Resolve(providerName, explicit string) (string, string, error) {
	if explicit != "" {
		return explicit, SourceFlag, nil
	}

	if envVar := EnvVarForProvider(providerName); envVar != "" {
		if key := m.getenv(envVar); key != "" {
			return key, SourceEnv, nil
		}
	}

	key, err := m.GetKey(providerName)
	if err != nil {
		return "", "", err
	}
	if key == "" {
		return "", "", fmt.Errorf("%w for %s: run `relay auth %s`", ErrNoKey, providerName, providerName)
	}
	return key, SourceStore, nil
}

// GetTarget returns the resolved path to the credentials file.
func (m *Manager) GetTarget() string {
	return m.targetPath
}

// EnvVarForProvider returns the environment variable name for a given provider.
// Returns an empty string for providers that take no key.
func EnvVarForProvider(providerName string) string {
	return providerEnvVars[providerName]
}

// SupportedProviders returns the providers that require API keys.
func SupportedProviders() []string {
	return []string{provider.Anthropic, provider.OpenAI}
}

// IsSupportedProvider reports whether keys can be stored for providerName.
func IsSupportedProvider(providerName string) bool {
	return slices.Contains(SupportedProviders(), providerName)
}
