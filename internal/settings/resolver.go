package settings

import (
	"errors"
	"os"
	"strings"
)

// Environment variables consulted before the settings file.
const (
	EnvAPIToken = "DISTROPACK_API_TOKEN"
	EnvAPIURL   = "DISTROPACK_API_URL"
)

const (
	// DefaultBaseURL is used when neither the environment nor the settings file names an endpoint.
	DefaultBaseURL = "https://distropack.dev"

	tokenNotConfiguredMessageConstant = "API token not set. Use 'distropack config set-token <token>' or set the " + EnvAPIToken + " environment variable"
	baseURLTrailingSeparatorConstant  = "/"
)

// ErrTokenNotConfigured indicates that no API token is available from any source.
var ErrTokenNotConfigured = errors.New(tokenNotConfiguredMessageConstant)

// EnvironmentLookup obtains an environment variable value.
type EnvironmentLookup func(key string) (string, bool)

// Connection carries the resolved values needed to reach the DistroPack API.
type Connection struct {
	APIToken string
	BaseURL  string
}

// Resolver layers environment overrides over persisted settings.
type Resolver struct {
	environmentLookup EnvironmentLookup
	persisted         Settings
}

// NewResolver constructs a Resolver; a nil lookup falls back to os.LookupEnv.
func NewResolver(environmentLookup EnvironmentLookup, persisted Settings) *Resolver {
	if environmentLookup == nil {
		environmentLookup = os.LookupEnv
	}
	return &Resolver{environmentLookup: environmentLookup, persisted: persisted}
}

// ResolveToken returns the environment token, then the persisted token, or ErrTokenNotConfigured.
func (resolver *Resolver) ResolveToken() (string, error) {
	if environmentToken, found := resolver.lookupNonBlank(EnvAPIToken); found {
		return environmentToken, nil
	}

	persistedToken := strings.TrimSpace(resolver.persisted.APIToken)
	if len(persistedToken) > 0 {
		return persistedToken, nil
	}

	return "", ErrTokenNotConfigured
}

// ResolveBaseURL returns the environment URL, then the persisted URL, then DefaultBaseURL.
func (resolver *Resolver) ResolveBaseURL() string {
	if environmentURL, found := resolver.lookupNonBlank(EnvAPIURL); found {
		return strings.TrimRight(environmentURL, baseURLTrailingSeparatorConstant)
	}

	persistedURL := strings.TrimSpace(resolver.persisted.BaseURL)
	if len(persistedURL) > 0 {
		return strings.TrimRight(persistedURL, baseURLTrailingSeparatorConstant)
	}

	return DefaultBaseURL
}

// ResolveConnection resolves both the token and the base URL.
func (resolver *Resolver) ResolveConnection() (Connection, error) {
	token, tokenError := resolver.ResolveToken()
	if tokenError != nil {
		return Connection{}, tokenError
	}
	return Connection{APIToken: token, BaseURL: resolver.ResolveBaseURL()}, nil
}

func (resolver *Resolver) lookupNonBlank(key string) (string, bool) {
	value, found := resolver.environmentLookup(key)
	if !found {
		return "", false
	}
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return "", false
	}
	return trimmedValue, true
}
