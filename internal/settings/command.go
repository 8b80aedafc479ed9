package settings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	configCommandUseConstant                  = "config"
	configCommandShortDescriptionConstant     = "Manage configuration"
	configCommandLongDescriptionConstant      = "config stores the API token and base URL used to reach DistroPack and shows the resolved values."
	setTokenCommandUseConstant                = "set-token <token>"
	setTokenCommandShortDescriptionConstant   = "Set API token"
	setBaseURLCommandUseConstant              = "set-base-url <url>"
	setBaseURLCommandShortDescriptionConstant = "Set API base URL"
	showCommandUseConstant                    = "show"
	showCommandShortDescriptionConstant       = "Show current configuration"
	tokenSavedMessageConstant                 = "API token saved successfully!"
	baseURLSavedTemplateConstant              = "Base URL set to: %s\n"
	showHeaderConstant                        = "Configuration:"
	showBaseURLTemplateConstant               = "  Base URL: %s\n"
	showTokenTemplateConstant                 = "  API Token: %s\n"
	showTokenNotSetConstant                   = "Not set"
	showSettingsFileTemplateConstant          = "  Settings file: %s\n"
	emptyTokenErrorMessageConstant            = "API token must not be empty"
	invalidBaseURLTemplateConstant            = "invalid base URL %q: expected an absolute http or https URL"
	storeProviderMissingErrorMessageConstant  = "settings store provider not configured"
	loadSettingsErrorTemplateConstant         = "unable to load settings: %w"
	saveSettingsErrorTemplateConstant         = "unable to save settings: %w"
	tokenFormatWarningMessageConstant         = "API token looks shorter than expected"
	settingsSavedLogMessageConstant           = "settings saved"
	logFieldSettingsFileConstant              = "settings_file"
	logFieldTokenLengthConstant               = "token_length"
	httpSchemeConstant                        = "http"
	httpsSchemeConstant                       = "https"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// StoreProvider returns the settings store for the current command execution.
type StoreProvider func(executionContext context.Context) (*Store, error)

// CommandBuilder assembles the config command hierarchy.
type CommandBuilder struct {
	LoggerProvider    LoggerProvider
	StoreProvider     StoreProvider
	EnvironmentLookup EnvironmentLookup
}

// Build constructs the config command with its set-token, set-base-url, and show subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	configCommand := &cobra.Command{
		Use:   configCommandUseConstant,
		Short: configCommandShortDescriptionConstant,
		Long:  configCommandLongDescriptionConstant,
	}

	setTokenCommand := &cobra.Command{
		Use:   setTokenCommandUseConstant,
		Short: setTokenCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runSetToken,
	}

	setBaseURLCommand := &cobra.Command{
		Use:   setBaseURLCommandUseConstant,
		Short: setBaseURLCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runSetBaseURL,
	}

	showCommand := &cobra.Command{
		Use:   showCommandUseConstant,
		Short: showCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runShow,
	}

	configCommand.AddCommand(setTokenCommand, setBaseURLCommand, showCommand)

	return configCommand, nil
}

func (builder *CommandBuilder) runSetToken(command *cobra.Command, arguments []string) error {
	token := strings.TrimSpace(arguments[0])
	if len(token) == 0 {
		return errors.New(emptyTokenErrorMessageConstant)
	}

	logger := builder.resolveLogger()
	if !ValidateTokenFormat(token) {
		logger.Warn(tokenFormatWarningMessageConstant, zap.Int(logFieldTokenLengthConstant, len(token)))
	}

	if updateError := builder.updateSettings(command.Context(), logger, func(current *Settings) {
		current.APIToken = token
	}); updateError != nil {
		return updateError
	}

	fmt.Fprintln(command.OutOrStdout(), tokenSavedMessageConstant)
	return nil
}

func (builder *CommandBuilder) runSetBaseURL(command *cobra.Command, arguments []string) error {
	baseURL, validationError := NormalizeBaseURL(arguments[0])
	if validationError != nil {
		return validationError
	}

	if updateError := builder.updateSettings(command.Context(), builder.resolveLogger(), func(current *Settings) {
		current.BaseURL = baseURL
	}); updateError != nil {
		return updateError
	}

	fmt.Fprintf(command.OutOrStdout(), baseURLSavedTemplateConstant, baseURL)
	return nil
}

func (builder *CommandBuilder) runShow(command *cobra.Command, arguments []string) error {
	store, storeError := builder.resolveStore(command.Context())
	if storeError != nil {
		return storeError
	}

	persisted, loadError := store.Load()
	if loadError != nil {
		return fmt.Errorf(loadSettingsErrorTemplateConstant, loadError)
	}

	resolver := NewResolver(builder.EnvironmentLookup, persisted)
	writeConfigurationSummary(command.OutOrStdout(), resolver, store.Path())
	return nil
}

func writeConfigurationSummary(output io.Writer, resolver *Resolver, settingsFilePath string) {
	tokenDisplay := showTokenNotSetConstant
	if token, tokenError := resolver.ResolveToken(); tokenError == nil {
		tokenDisplay = MaskToken(token)
	}

	fmt.Fprintln(output, showHeaderConstant)
	fmt.Fprintf(output, showBaseURLTemplateConstant, resolver.ResolveBaseURL())
	fmt.Fprintf(output, showTokenTemplateConstant, tokenDisplay)
	fmt.Fprintf(output, showSettingsFileTemplateConstant, settingsFilePath)
}

func (builder *CommandBuilder) updateSettings(executionContext context.Context, logger *zap.Logger, mutate func(current *Settings)) error {
	store, storeError := builder.resolveStore(executionContext)
	if storeError != nil {
		return storeError
	}

	current, loadError := store.Load()
	if loadError != nil {
		return fmt.Errorf(loadSettingsErrorTemplateConstant, loadError)
	}

	mutate(&current)

	if saveError := store.Save(current); saveError != nil {
		return fmt.Errorf(saveSettingsErrorTemplateConstant, saveError)
	}

	logger.Debug(settingsSavedLogMessageConstant, zap.String(logFieldSettingsFileConstant, store.Path()))
	return nil
}

func (builder *CommandBuilder) resolveStore(executionContext context.Context) (*Store, error) {
	if builder.StoreProvider == nil {
		return nil, errors.New(storeProviderMissingErrorMessageConstant)
	}
	return builder.StoreProvider(executionContext)
}

func (builder *CommandBuilder) resolveLogger() *zap.Logger {
	if builder.LoggerProvider == nil {
		return zap.NewNop()
	}

	logger := builder.LoggerProvider()
	if logger == nil {
		return zap.NewNop()
	}

	return logger
}

// NormalizeBaseURL trims rawURL and requires an absolute http(s) URL with a host.
func NormalizeBaseURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(rawURL), baseURLTrailingSeparatorConstant)
	parsedURL, parseError := url.Parse(trimmedURL)
	if parseError != nil || len(parsedURL.Host) == 0 {
		return "", fmt.Errorf(invalidBaseURLTemplateConstant, rawURL)
	}

	switch strings.ToLower(parsedURL.Scheme) {
	case httpSchemeConstant, httpsSchemeConstant:
		return trimmedURL, nil
	default:
		return "", fmt.Errorf(invalidBaseURLTemplateConstant, rawURL)
	}
}
