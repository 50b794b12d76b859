package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrCredentialMissing is returned when a credential reference resolves to nothing.
var ErrCredentialMissing = errors.New("credential_missing")

// CredentialStore resolves opaque credential references to secret material.
// Provider and gateway configs never store secrets directly, only references.
type CredentialStore interface {
	Resolve(ref string) (string, error)
}

// EnvCredentials resolves credential references against the process environment.
type EnvCredentials struct{}

func NewEnvCredentials() CredentialStore {
	return EnvCredentials{}
}

func (EnvCredentials) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: empty reference", ErrCredentialMissing)
	}
	value := strings.TrimSpace(os.Getenv(ref))
	if value == "" {
		return "", fmt.Errorf("%w: %s", ErrCredentialMissing, ref)
	}
	return value, nil
}
