// Package secrets resolves credentials from Vault with an environment fallback.
package secrets

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Manager provides access to secrets
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)
	// GetSecretWithDefault retrieves a secret, or defaultValue if it is missing
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Keys read by the application
const (
	KeyTURNCredential = "turn_credential"
	KeyDatabasePass   = "db_password"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// EnvKey maps a secret key onto its environment variable name:
// turn-credential and turn.credential both become TURN_CREDENTIAL.
func EnvKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))
}

// EnvManager reads secrets from the environment only
type EnvManager struct{}

func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	if v := os.Getenv(EnvKey(key)); v != "" {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (m EnvManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	if v, err := m.GetSecret(ctx, key); err == nil {
		return v
	}
	return defaultValue
}
