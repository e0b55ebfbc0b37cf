// Package credentials resolves the auth references named by provider entries
// in the relay configuration.
package credentials

import "fmt"

// Type identifies how a provider authenticates.
type Type string

const (
	// TypeNone marks providers that need no authentication, e.g. a local
	// postgres provider.
	TypeNone Type = "none"
	// TypeAPIKey marks providers authenticated with a bearer key.
	TypeAPIKey Type = "api_key"
)

// ProviderCredentials carries the secret material for one auth reference.
type ProviderCredentials struct {
	Type Type
	Key  string
}

// Store resolves auth references to provider credentials.
type Store interface {
	GetCredentials(authRef string) (*ProviderCredentials, error)
}

// CreateCredentials validates one auth config entry and converts it into
// concrete credentials.
func CreateCredentials(credType Type, cfg map[string]any) (*ProviderCredentials, error) {
	switch credType {
	case TypeNone, "":
		return &ProviderCredentials{Type: TypeNone}, nil
	case TypeAPIKey:
		key, ok := cfg["key"].(string)
		if !ok || key == "" {
			return nil, fmt.Errorf("api_key credentials require a non-empty key")
		}
		return &ProviderCredentials{Type: TypeAPIKey, Key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported credential type: %s", credType)
	}
}
