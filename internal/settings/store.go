package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	settingsDirectoryNameConstant                   = "distropack"
	settingsFileNameConstant                        = "config.yaml"
	apiTokenKeyConstant                             = "api_token"
	baseURLKeyConstant                              = "base_url"
	settingsDirectoryPermissionsConstant            = 0o700
	settingsFilePermissionsConstant                 = 0o600
	userConfigurationDirectoryErrorTemplateConstant = "could not determine the user configuration directory: %w"
	settingsReadErrorTemplateConstant               = "failed to read settings file %s: %w"
	settingsParseErrorTemplateConstant              = "failed to parse settings file %s: %w"
	settingsEncodeErrorTemplateConstant             = "failed to encode settings: %w"
	settingsDirectoryErrorTemplateConstant          = "failed to create settings directory %s: %w"
	settingsWriteErrorTemplateConstant              = "failed to write settings file %s: %w"
	settingsPathMissingErrorMessageConstant         = "settings file path must be provided"
)

// Settings holds the persisted connection values. Empty fields are treated as unset.
type Settings struct {
	APIToken string `yaml:"api_token,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// Store reads and writes Settings to a single YAML file.
type Store struct {
	filePath string
}

// DefaultSettingsFilePath returns <user config dir>/distropack/config.yaml.
func DefaultSettingsFilePath() (string, error) {
	userConfigurationDirectory, directoryError := os.UserConfigDir()
	if directoryError != nil {
		return "", fmt.Errorf(userConfigurationDirectoryErrorTemplateConstant, directoryError)
	}
	return filepath.Join(userConfigurationDirectory, settingsDirectoryNameConstant, settingsFileNameConstant), nil
}

// NewStore constructs a Store for the provided file path.
func NewStore(filePath string) (*Store, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return nil, errors.New(settingsPathMissingErrorMessageConstant)
	}
	return &Store{filePath: trimmedPath}, nil
}

// Path reports the settings file location.
func (store *Store) Path() string {
	return store.filePath
}

// Load returns the persisted settings. A missing file yields empty settings.
func (store *Store) Load() (Settings, error) {
	contents, readError := store.readContents()
	if readError != nil {
		return Settings{}, readError
	}

	persisted := Settings{}
	if unmarshalError := yaml.Unmarshal(contents, &persisted); unmarshalError != nil {
		return Settings{}, fmt.Errorf(settingsParseErrorTemplateConstant, store.filePath, unmarshalError)
	}

	return Settings{
		APIToken: strings.TrimSpace(persisted.APIToken),
		BaseURL:  strings.TrimSpace(persisted.BaseURL),
	}, nil
}

// Save writes settings, keeping any other keys present in the file such as the common logging section.
func (store *Store) Save(settings Settings) error {
	document, loadError := store.loadDocument()
	if loadError != nil {
		return loadError
	}

	assignOrDelete(document, apiTokenKeyConstant, settings.APIToken)
	assignOrDelete(document, baseURLKeyConstant, settings.BaseURL)

	encodedDocument, encodeError := yaml.Marshal(document)
	if encodeError != nil {
		return fmt.Errorf(settingsEncodeErrorTemplateConstant, encodeError)
	}

	settingsDirectory := filepath.Dir(store.filePath)
	if directoryError := os.MkdirAll(settingsDirectory, settingsDirectoryPermissionsConstant); directoryError != nil {
		return fmt.Errorf(settingsDirectoryErrorTemplateConstant, settingsDirectory, directoryError)
	}

	if writeError := os.WriteFile(store.filePath, encodedDocument, settingsFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(settingsWriteErrorTemplateConstant, store.filePath, writeError)
	}

	return nil
}

func (store *Store) readContents() ([]byte, error) {
	contents, readError := os.ReadFile(store.filePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(settingsReadErrorTemplateConstant, store.filePath, readError)
	}
	return contents, nil
}

// loadDocument decodes the whole file so Save can write back keys it does not own.
func (store *Store) loadDocument() (map[string]any, error) {
	contents, readError := store.readContents()
	if readError != nil {
		return nil, readError
	}

	document := map[string]any{}
	if unmarshalError := yaml.Unmarshal(contents, &document); unmarshalError != nil {
		return nil, fmt.Errorf(settingsParseErrorTemplateConstant, store.filePath, unmarshalError)
	}
	if document == nil {
		document = map[string]any{}
	}

	return document, nil
}

func assignOrDelete(document map[string]any, key string, value string) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		delete(document, key)
		return
	}
	document[key] = trimmedValue
}
