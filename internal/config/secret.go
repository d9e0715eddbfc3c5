package config

import (
	"errors"
	"fmt"
)

const minSecretLength = 32

// Known weak/default secrets that should never be used in production.
var knownWeakSecrets = []string{
	"dev-secret",
	"changeme",
	"secret",
	"password",
	"test",
	"dev",
	"development",
}

// ErrWeakSecret is returned for default or guessable secrets outside development.
var ErrWeakSecret = errors.New("default/weak JWT secret not allowed outside development")

// ValidateSecret checks the signing secret. An empty secret is always fatal;
// weak or short secrets are tolerated only in development.
func ValidateSecret(secret string, isDev bool) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if isDev {
		return nil
	}

	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return ErrWeakSecret
		}
	}

	if len(secret) < minSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters (got %d)", minSecretLength, len(secret))
	}
	return nil
}
