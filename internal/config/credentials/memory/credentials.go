package memory

import (
	"fmt"

	"github.com/ahrav/telemetry-armada/internal/config"
	"github.com/ahrav/telemetry-armada/internal/config/credentials"
)

var _ credentials.Store = (*CredentialStore)(nil)

// CredentialStore provides centralized access to provider authentication
// material. It maps auth references to their corresponding credentials.
type CredentialStore struct {
	credentials map[string]*credentials.ProviderCredentials
}

// NewCredentialStore initializes a store from the config's auth table.
// It validates and transforms each entry into concrete credentials.
func NewCredentialStore(authConfigs map[string]config.AuthConfig) (*CredentialStore, error) {
	store := &CredentialStore{
		credentials: make(map[string]*credentials.ProviderCredentials),
	}

	for name, auth := range authConfigs {
		creds, err := credentials.CreateCredentials(credentials.Type(auth.Type), auth.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to create credentials for %s: %w", name, err)
		}
		store.credentials[name] = creds
	}

	return store, nil
}

// GetCredentials looks up credentials by their reference name.
// Returns an error if the reference doesn't exist.
func (s *CredentialStore) GetCredentials(authRef string) (*credentials.ProviderCredentials, error) {
	creds, ok := s.credentials[authRef]
	if !ok {
		return nil, fmt.Errorf("no credentials found for auth_ref: %s", authRef)
	}
	return creds, nil
}
