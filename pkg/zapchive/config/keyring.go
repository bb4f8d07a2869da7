// Package config – keyring.go stores provider API keys in the operating
// system's native keyring (Linux: Secret Service, macOS: Keychain, Windows:
// Credential Manager) so they stay out of config files.
package config

import (
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// keyringService is the service name used in the OS keyring.
const keyringService = "zapchive"

// providerKeyEnvNames maps provider IDs to their conventional env var names.
var providerKeyEnvNames = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// ProviderKeyEnvName returns the standard API key env var for a provider,
// falling back to "API_KEY" for unknown providers.
func ProviderKeyEnvName(provider string) string {
	if name, ok := providerKeyEnvNames[strings.ToLower(provider)]; ok {
		return name
	}
	return "API_KEY"
}

// StoreKeyring saves a secret under the given provider name.
func StoreKeyring(provider, value string) error {
	return keyring.Set(keyringService, strings.ToLower(provider), value)
}

// GetKeyring retrieves a provider secret, empty when absent or the keyring
// is unavailable.
func GetKeyring(provider string) string {
	val, err := keyring.Get(keyringService, strings.ToLower(provider))
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a provider secret.
func DeleteKeyring(provider string) error {
	return keyring.Delete(keyringService, strings.ToLower(provider))
}

// ResolveSecret resolves an API key through the chain:
// explicit config value, OS keyring, provider env var.
func ResolveSecret(configured, provider string) string {
	if configured != "" {
		return configured
	}
	if val := GetKeyring(provider); val != "" {
		return val
	}
	return os.Getenv(ProviderKeyEnvName(provider))
}
