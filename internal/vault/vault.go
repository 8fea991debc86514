package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const serviceName = "promptvault"

// knownSecrets is the list of secret names checked by List().
var knownSecrets = []string{
	"jwt", "openai", "telegram",
	"stripe", "stripe-webhook",
	"lemonsqueezy", "lemonsqueezy-webhook",
}

// Vault provides secure secret storage using the OS keychain,
// with fallback to environment variables.
type Vault struct{}

// New creates a new Vault instance.
func New() *Vault {
	return &Vault{}
}

// envKey maps a secret name to its fallback environment variable, e.g.
// "stripe-webhook" becomes PROMPTVAULT_KEY_STRIPE_WEBHOOK.
func envKey(name string) string {
	return "PROMPTVAULT_KEY_" + strings.ReplaceAll(strings.ToUpper(name), "-", "_")
}

// Set stores a secret under the given name in the OS keychain.
func (v *Vault) Set(name, secret string) error {
	return keyring.Set(serviceName, name, secret)
}

// Get retrieves the secret for the given name. It first checks the
// OS keychain, then falls back to the environment variable
// PROMPTVAULT_KEY_{UPPER(name)}.
func (v *Vault) Get(name string) (string, error) {
	secret, err := keyring.Get(serviceName, name)
	if err == nil && secret != "" {
		return secret, nil
	}

	// Fallback to environment variable.
	if val := os.Getenv(envKey(name)); val != "" {
		return val, nil
	}

	return "", fmt.Errorf("no secret found for %q: not in keychain and %s not set", name, envKey(name))
}

// Delete removes the secret for the given name from the OS keychain.
func (v *Vault) Delete(name string) error {
	return keyring.Delete(serviceName, name)
}

// List returns the known secret names that currently have values stored.
// It checks both the keychain and environment variables for each name.
func (v *Vault) List() ([]string, error) {
	var names []string

	for _, name := range knownSecrets {
		// Check keychain.
		secret, err := keyring.Get(serviceName, name)
		if err == nil && secret != "" {
			names = append(names, name)
			continue
		}

		// Check environment variable.
		if val := os.Getenv(envKey(name)); val != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

// ResolveKeyRef parses a key reference and retrieves the corresponding secret.
// Supported formats:
//   - "keyring://promptvault/<name>" (preferred)
//   - "keychain:promptvault/<name>" (legacy)
//   - "env:VARIABLE_NAME" (environment variable)
//   - "file:///path/to/key" (plain-text file)
func (v *Vault) ResolveKeyRef(keyRef string) (string, error) {
	// Format 1: keyring://promptvault/<name>
	if strings.HasPrefix(keyRef, "keyring://") {
		path := strings.TrimPrefix(keyRef, "keyring://")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://promptvault/<name>\")", keyRef)
		}
		return v.Get(parts[1])
	}

	// Format 2: keychain:promptvault/<name> (legacy)
	if strings.HasPrefix(keyRef, "keychain:") {
		path := strings.TrimPrefix(keyRef, "keychain:")
		parts := strings.SplitN(path, "/", 2)
		if len(parts) != 2 || parts[0] != serviceName || parts[1] == "" {
			return "", fmt.Errorf("invalid key reference path: %q (expected \"promptvault/<name>\")", path)
		}
		return v.Get(parts[1])
	}

	// Format 3: env:VARIABLE_NAME
	if strings.HasPrefix(keyRef, "env:") {
		envVar := strings.TrimPrefix(keyRef, "env:")
		if val := os.Getenv(envVar); val != "" {
			return val, nil
		}
		return "", fmt.Errorf("environment variable %q is not set", envVar)
	}

	// Format 4: file:///path/to/key
	if strings.HasPrefix(keyRef, "file://") {
		filePath := strings.TrimPrefix(keyRef, "file://")
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading key file %q: %w", filePath, err)
		}
		key := strings.TrimSpace(string(data))
		if key == "" {
			return "", fmt.Errorf("key file %q is empty", filePath)
		}
		return key, nil
	}

	return "", fmt.Errorf("invalid key reference format: %q (expected \"keyring://promptvault/<name>\", \"keychain:promptvault/<name>\", \"env:VARIABLE_NAME\", or \"file:///path/to/key\")", keyRef)
}
