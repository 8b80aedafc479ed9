package settings

import (
	"context"
	"errors"
	"fmt"
)

// LoadConnection reads the settings store supplied by provider and resolves the API connection.
func LoadConnection(executionContext context.Context, provider StoreProvider, environmentLookup EnvironmentLookup) (Connection, error) {
	if provider == nil {
		return Connection{}, errors.New(storeProviderMissingErrorMessageConstant)
	}

	store, storeError := provider(executionContext)
	if storeError != nil {
		return Connection{}, storeError
	}

	persisted, loadError := store.Load()
	if loadError != nil {
		return Connection{}, fmt.Errorf(loadSettingsErrorTemplateConstant, loadError)
	}

	return NewResolver(environmentLookup, persisted).ResolveConnection()
}
