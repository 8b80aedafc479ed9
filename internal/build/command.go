package build

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/distropack/internal/distropack"
	"github.com/temirov/distropack/internal/settings"
	"github.com/temirov/distropack/internal/utils/flags"
)

const (
	buildCommandUseConstant                  = "build"
	buildCommandShortDescriptionConstant     = "Trigger a package build and follow its jobs"
	buildCommandLongDescriptionConstant      = "build asks DistroPack to build a package version for one or all enabled targets and reports job progress until every job finishes."
	unexpectedArgumentsErrorMessageConstant  = "build does not accept positional arguments"
	packageIDFlagNameConstant                = "package-id"
	packageIDFlagDescriptionConstant         = "Package identifier"
	versionFlagNameConstant                  = "version"
	versionFlagDescriptionConstant           = "Version to build"
	targetFlagNameConstant                   = "target"
	targetFlagDescriptionConstant            = "Build a single target instead of every enabled one"
	targetFlagLabelConstant                  = "target"
	pollIntervalFlagNameConstant             = "poll-interval"
	pollIntervalFlagDescriptionConstant      = "Delay between status checks"
	timeoutFlagNameConstant                  = "timeout"
	timeoutFlagDescriptionConstant           = "Give up waiting after this duration (0 waits indefinitely)"
	missingPackageIDErrorMessageConstant     = "--package-id is required"
	missingVersionErrorMessageConstant       = "--version is required"
	clientConstructionErrorTemplateConstant  = "unable to construct DistroPack client: %w"
	monitorConstructionErrorTemplateConstant = "unable to construct build monitor: %w"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// ConfigurationProvider returns the current build configuration.
type ConfigurationProvider func() CommandConfiguration

// ClientFactory creates the API client used by a build run.
type ClientFactory func(connection settings.Connection, logger *zap.Logger) (StatusClient, error)

// CommandBuilder assembles the build command.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider ConfigurationProvider
	StoreProvider         settings.StoreProvider
	EnvironmentLookup     settings.EnvironmentLookup
	ClientFactory         ClientFactory
	Sleeper               Sleeper
}

// Build constructs the cobra command for triggering builds.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	buildCommand := &cobra.Command{
		Use:   buildCommandUseConstant,
		Short: buildCommandShortDescriptionConstant,
		Long:  buildCommandLongDescriptionConstant,
		RunE:  builder.run,
	}

	targetChoices := make([]string, 0, len(distropack.SupportedTargets()))
	for _, supportedTarget := range distropack.SupportedTargets() {
		targetChoices = append(targetChoices, supportedTarget.String())
	}

	buildCommand.Flags().String(packageIDFlagNameConstant, "", packageIDFlagDescriptionConstant)
	buildCommand.Flags().String(versionFlagNameConstant, "", versionFlagDescriptionConstant)
	buildCommand.Flags().String(targetFlagNameConstant, "", flags.FormatChoiceUsage("", targetChoices, targetFlagDescriptionConstant))
	buildCommand.Flags().Duration(pollIntervalFlagNameConstant, 0, pollIntervalFlagDescriptionConstant)
	buildCommand.Flags().Duration(timeoutFlagNameConstant, 0, timeoutFlagDescriptionConstant)

	return buildCommand, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	request, requestError := parseBuildRequest(command)
	if requestError != nil {
		return requestError
	}

	configuration, configurationError := builder.resolveCommandConfiguration(command)
	if configurationError != nil {
		return configurationError
	}

	connection, connectionError := settings.LoadConnection(command.Context(), builder.StoreProvider, builder.EnvironmentLookup)
	if connectionError != nil {
		return connectionError
	}

	logger := builder.resolveLogger()
	client, clientError := builder.resolveClientFactory()(connection, logger)
	if clientError != nil {
		return fmt.Errorf(clientConstructionErrorTemplateConstant, clientError)
	}

	monitor, monitorError := NewMonitor(MonitorOptions{
		Client:        client,
		Reporter:      NewConsoleReporter(command.OutOrStdout(), command.ErrOrStderr()),
		Logger:        logger,
		Configuration: configuration,
		Sleeper:       builder.Sleeper,
	})
	if monitorError != nil {
		return fmt.Errorf(monitorConstructionErrorTemplateConstant, monitorError)
	}

	_, runError := monitor.Run(command.Context(), request)
	return runError
}

func parseBuildRequest(command *cobra.Command) (distropack.BuildRequest, error) {
	packageIDValue, packageIDError := command.Flags().GetString(packageIDFlagNameConstant)
	if packageIDError != nil {
		return distropack.BuildRequest{}, packageIDError
	}
	packageIDValue = strings.TrimSpace(packageIDValue)
	if len(packageIDValue) == 0 {
		return distropack.BuildRequest{}, errors.New(missingPackageIDErrorMessageConstant)
	}

	versionValue, versionError := command.Flags().GetString(versionFlagNameConstant)
	if versionError != nil {
		return distropack.BuildRequest{}, versionError
	}
	versionValue = strings.TrimSpace(versionValue)
	if len(versionValue) == 0 {
		return distropack.BuildRequest{}, errors.New(missingVersionErrorMessageConstant)
	}

	request := distropack.BuildRequest{PackageID: packageIDValue, Version: versionValue}

	targetValue, targetError := command.Flags().GetString(targetFlagNameConstant)
	if targetError != nil {
		return distropack.BuildRequest{}, targetError
	}
	if command.Flags().Changed(targetFlagNameConstant) {
		parsedTarget, parseError := distropack.ParseTarget(targetValue)
		if parseError != nil {
			return distropack.BuildRequest{}, parseError
		}
		request.Target = &parsedTarget
	}

	return request, nil
}

func (builder *CommandBuilder) resolveCommandConfiguration(command *cobra.Command) (CommandConfiguration, error) {
	configuration := DefaultCommandConfiguration()
	if builder.ConfigurationProvider != nil {
		configuration = builder.ConfigurationProvider()
	}

	if command.Flags().Changed(pollIntervalFlagNameConstant) {
		pollInterval, pollIntervalError := command.Flags().GetDuration(pollIntervalFlagNameConstant)
		if pollIntervalError != nil {
			return CommandConfiguration{}, pollIntervalError
		}
		configuration.PollInterval = pollInterval
	}

	if command.Flags().Changed(timeoutFlagNameConstant) {
		timeout, timeoutError := command.Flags().GetDuration(timeoutFlagNameConstant)
		if timeoutError != nil {
			return CommandConfiguration{}, timeoutError
		}
		configuration.Timeout = timeout
	}

	return configuration.sanitize(), nil
}

func (builder *CommandBuilder) resolveClientFactory() ClientFactory {
	if builder.ClientFactory != nil {
		return builder.ClientFactory
	}
	return NewDistroPackClient
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

// NewDistroPackClient is the default ClientFactory.
func NewDistroPackClient(connection settings.Connection, logger *zap.Logger) (StatusClient, error) {
	client, clientError := distropack.NewClient(distropack.ClientOptions{
		BaseURL:  connection.BaseURL,
		APIToken: connection.APIToken,
		Logger:   logger,
	})
	if clientError != nil {
		return nil, clientError
	}
	return client, nil
}
