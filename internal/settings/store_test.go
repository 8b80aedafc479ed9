package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/temirov/distropack/internal/settings"
)

func TestStoreLoadMissingFileReturnsEmptySettings(testInstance *testing.T) {
	store, storeError := settings.NewStore(filepath.Join(testInstance.TempDir(), "missing", "config.yaml"))
	require.NoError(testInstance, storeError)

	loaded, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, settings.Settings{}, loaded)
}

func TestStoreSaveRoundTripPreservesUnrelatedKeys(testInstance *testing.T) {
	settingsFilePath := filepath.Join(testInstance.TempDir(), "distropack", "config.yaml")
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(settingsFilePath), 0o700))
	require.NoError(testInstance, os.WriteFile(settingsFilePath, []byte("common:\n  log_level: debug\n"), 0o600))

	store, storeError := settings.NewStore(settingsFilePath)
	require.NoError(testInstance, storeError)

	require.NoError(testInstance, store.Save(settings.Settings{APIToken: testPersistedTokenConstant, BaseURL: testPersistedURLConstant}))

	loaded, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, settings.Settings{APIToken: testPersistedTokenConstant, BaseURL: testPersistedURLConstant}, loaded)

	contents, readError := os.ReadFile(settingsFilePath)
	require.NoError(testInstance, readError)
	document := map[string]any{}
	require.NoError(testInstance, yaml.Unmarshal(contents, &document))
	require.Equal(testInstance, map[string]any{"log_level": "debug"}, document["common"])

	fileInfo, statError := os.Stat(settingsFilePath)
	require.NoError(testInstance, statError)
	require.Equal(testInstance, os.FileMode(0o600), fileInfo.Mode().Perm())
}

func TestStoreSaveClearsEmptyValues(testInstance *testing.T) {
	store, storeError := settings.NewStore(filepath.Join(testInstance.TempDir(), "config.yaml"))
	require.NoError(testInstance, storeError)

	require.NoError(testInstance, store.Save(settings.Settings{APIToken: testPersistedTokenConstant, BaseURL: testPersistedURLConstant}))
	require.NoError(testInstance, store.Save(settings.Settings{APIToken: testPersistedTokenConstant}))

	loaded, loadError := store.Load()
	require.NoError(testInstance, loadError)
	require.Empty(testInstance, loaded.BaseURL)
	require.Equal(testInstance, testPersistedTokenConstant, loaded.APIToken)
}

func TestStoreLoadKeepsUnquotedScalarsVerbatim(testInstance *testing.T) {
	testCases := []struct {
		name          string
		contents      string
		expectedToken string
	}{
		{name: "long_numeric_token", contents: "api_token: 12345678901234567890\n", expectedToken: "12345678901234567890"},
		{name: "exponent_like_token", contents: "api_token: 1e10\n", expectedToken: "1e10"},
		{name: "quoted_token", contents: "api_token: \"0001234\"\n", expectedToken: "0001234"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			settingsFilePath := filepath.Join(subTest.TempDir(), "config.yaml")
			require.NoError(subTest, os.WriteFile(settingsFilePath, []byte(testCase.contents+"common:\n  log_level: info\n"), 0o600))

			store, storeError := settings.NewStore(settingsFilePath)
			require.NoError(subTest, storeError)

			loaded, loadError := store.Load()
			require.NoError(subTest, loadError)
			require.Equal(subTest, testCase.expectedToken, loaded.APIToken)

			require.NoError(subTest, store.Save(loaded))
			reloaded, reloadError := store.Load()
			require.NoError(subTest, reloadError)
			require.Equal(subTest, testCase.expectedToken, reloaded.APIToken)

			contents, readError := os.ReadFile(settingsFilePath)
			require.NoError(subTest, readError)
			document := map[string]any{}
			require.NoError(subTest, yaml.Unmarshal(contents, &document))
			require.Equal(subTest, testCase.expectedToken, document["api_token"])
			require.Equal(subTest, map[string]any{"log_level": "info"}, document["common"])
		})
	}
}

func TestStoreLoadRejectsMalformedFile(testInstance *testing.T) {
	settingsFilePath := filepath.Join(testInstance.TempDir(), "config.yaml")
	require.NoError(testInstance, os.WriteFile(settingsFilePath, []byte("api_token: [broken\n"), 0o600))

	store, storeError := settings.NewStore(settingsFilePath)
	require.NoError(testInstance, storeError)

	_, loadError := store.Load()
	require.Error(testInstance, loadError)
	require.Contains(testInstance, loadError.Error(), "failed to parse settings file")
}

func TestNewStoreRequiresPath(testInstance *testing.T) {
	_, storeError := settings.NewStore("  ")
	require.Error(testInstance, storeError)
}
