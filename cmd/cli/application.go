package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/distropack/internal/build"
	"github.com/temirov/distropack/internal/settings"
	"github.com/temirov/distropack/internal/upload"
	"github.com/temirov/distropack/internal/utils"
	"github.com/temirov/distropack/internal/utils/flags"
	pathutils "github.com/temirov/distropack/internal/utils/path"
)

const (
	applicationNameConstant                  = "distropack"
	applicationShortDescriptionConstant      = "Command-line client for the DistroPack package build service"
	applicationLongDescriptionConstant       = "distropack uploads package sources, triggers builds for deb, rpm, and pacman targets, and follows build jobs until they finish."
	configFileFlagNameConstant               = "config"
	configFileFlagUsageConstant              = "Path to the settings file (defaults to the user configuration directory)."
	logLevelFlagNameConstant                 = "log-level"
	logLevelFlagUsageConstant                = "Override the configured log level."
	logFormatFlagNameConstant                = "log-format"
	logFormatFlagDescriptionConstant         = "Override the configured log format."
	logFormatFlagLabelConstant               = "log format"
	environmentFileFlagNameConstant          = "env-file"
	environmentFileFlagUsageConstant         = "Load environment variables from this file when it exists; variables already set are kept."
	defaultEnvironmentFileConstant           = ".env"
	commonConfigurationKeyConstant           = "common"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	buildConfigurationKeyConstant            = "build"
	environmentPrefixConstant                = "DISTROPACK"
	configurationNameConstant                = "config"
	configurationTypeConstant                = "yaml"
	configurationInitializedMessageConstant  = "configuration initialized"
	configurationLogLevelFieldConstant       = "log_level"
	configurationLogFormatFieldConstant      = "log_format"
	configurationFileFieldConstant           = "config_file"
	settingsFileFieldConstant                = "settings_file"
	environmentFileFieldConstant             = "env_file"
	environmentFileLoadedMessageConstant     = "environment file loaded"
	configurationLoadErrorTemplateConstant   = "unable to load configuration: %w"
	environmentFileLoadErrorTemplateConstant = "unable to load environment file %s: %w"
	settingsPathErrorTemplateConstant        = "unable to resolve settings file: %w"
	loggerCreationErrorTemplateConstant      = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant          = "unable to flush logger: %w"
	versionTemplateConstant                  = "{{.Name}} version: {{.Version}}\n"
	developmentVersionConstant               = "dev"
	buildInfoDevelopmentVersionConstant      = "(devel)"
	rootCommandHelpMessageConstant           = "no subcommand provided"
)

// applicationVersion is injected at link time with -ldflags "-X".
var applicationVersion string

// ApplicationConfiguration describes the configuration file sections consumed by the CLI.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Build  build.CommandConfiguration     `mapstructure:"build"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// Application wires the Cobra root command, configuration loader, settings store, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	environmentFilePath    string
	commandContextAccessor utils.CommandContextAccessor
	homeExpander           *pathutils.HomeExpander
	environmentLookup      settings.EnvironmentLookup
	defaultSettingsPath    func() (string, error)
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		nil,
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		homeExpander:           pathutils.NewHomeExpander(),
		environmentLookup:      os.LookupEnv,
		defaultSettingsPath:    settings.DefaultSettingsFilePath,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       resolveApplicationVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runRootCommand(command, arguments)
		},
	}

	cobraCommand.SetVersionTemplate(versionTemplateConstant)
	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", flags.FormatChoiceUsage("", utils.SupportedLogFormats(), logFormatFlagDescriptionConstant))
	cobraCommand.PersistentFlags().StringVar(&application.environmentFilePath, environmentFileFlagNameConstant, defaultEnvironmentFileConstant, environmentFileFlagUsageConstant)

	loggerProvider := func() *zap.Logger {
		return application.logger
	}
	environmentLookup := func(key string) (string, bool) {
		return application.environmentLookup(key)
	}

	uploadBuilder := upload.CommandBuilder{
		LoggerProvider:    loggerProvider,
		StoreProvider:     application.settingsStore,
		EnvironmentLookup: environmentLookup,
		HomeExpander:      application.homeExpander,
	}
	uploadCommand, uploadBuildError := uploadBuilder.Build()
	if uploadBuildError == nil {
		cobraCommand.AddCommand(uploadCommand)
	}

	buildBuilder := build.CommandBuilder{
		LoggerProvider: loggerProvider,
		ConfigurationProvider: func() build.CommandConfiguration {
			return application.configuration.Build
		},
		StoreProvider:     application.settingsStore,
		EnvironmentLookup: environmentLookup,
	}
	buildCommand, buildBuildError := buildBuilder.Build()
	if buildBuildError == nil {
		cobraCommand.AddCommand(buildCommand)
	}

	configBuilder := settings.CommandBuilder{
		LoggerProvider:    loggerProvider,
		StoreProvider:     application.settingsStore,
		EnvironmentLookup: environmentLookup,
	}
	configCommand, configBuildError := configBuilder.Build()
	if configBuildError == nil {
		cobraCommand.AddCommand(configCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedEnvironmentFile, environmentError := application.loadEnvironmentFile(command)
	if environmentError != nil {
		return environmentError
	}

	settingsFilePath, settingsPathError := application.resolveSettingsFilePath()
	if settingsPathError != nil {
		return fmt.Errorf(settingsPathErrorTemplateConstant, settingsPathError)
	}

	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelWarn),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatConsole),
	}
	for configurationKey, configurationValue := range build.DefaultConfigurationValues(buildConfigurationKeyConstant) {
		defaultValues[configurationKey] = configurationValue
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(settingsFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		normalizedLogFormat, logFormatError := flags.NormalizeChoice(logFormatFlagLabelConstant, application.logFormatFlagValue, utils.SupportedLogFormats())
		if logFormatError != nil {
			return logFormatError
		}
		application.configuration.Common.LogFormat = normalizedLogFormat
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogLevel))),
		utils.LogFormat(strings.ToLower(strings.TrimSpace(application.configuration.Common.LogFormat))),
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	if len(loadedEnvironmentFile) > 0 {
		application.logger.Debug(environmentFileLoadedMessageConstant, zap.String(environmentFileFieldConstant, loadedEnvironmentFile))
	}

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
		zap.String(settingsFileFieldConstant, settingsFilePath),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithSettingsFilePath(command.Context(), settingsFilePath)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

// loadEnvironmentFile applies the --env-file contents without overriding variables already present.
// A missing default file is ignored; a missing file named explicitly is an error.
func (application *Application) loadEnvironmentFile(command *cobra.Command) (string, error) {
	environmentFilePath := application.homeExpander.Expand(application.environmentFilePath)
	if len(environmentFilePath) == 0 {
		return "", nil
	}

	if _, statError := os.Stat(environmentFilePath); statError != nil {
		if errors.Is(statError, fs.ErrNotExist) && !application.persistentFlagChanged(command, environmentFileFlagNameConstant) {
			return "", nil
		}
		return "", fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFilePath, statError)
	}

	if loadError := godotenv.Load(environmentFilePath); loadError != nil {
		return "", fmt.Errorf(environmentFileLoadErrorTemplateConstant, environmentFilePath, loadError)
	}

	return environmentFilePath, nil
}

func (application *Application) resolveSettingsFilePath() (string, error) {
	explicitPath := application.homeExpander.Expand(application.configurationFilePath)
	if len(explicitPath) > 0 {
		return explicitPath, nil
	}
	return application.defaultSettingsPath()
}

func (application *Application) settingsStore(executionContext context.Context) (*settings.Store, error) {
	settingsFilePath, available := application.commandContextAccessor.SettingsFilePath(executionContext)
	if !available {
		resolvedPath, resolveError := application.resolveSettingsFilePath()
		if resolveError != nil {
			return nil, fmt.Errorf(settingsPathErrorTemplateConstant, resolveError)
		}
		settingsFilePath = resolvedPath
	}
	return settings.NewStore(settingsFilePath)
}

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	application.logger.Debug(rootCommandHelpMessageConstant)
	return command.Help()
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func resolveApplicationVersion() string {
	if len(applicationVersion) > 0 {
		return applicationVersion
	}
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 || buildInformation.Main.Version == buildInfoDevelopmentVersionConstant {
		return developmentVersionConstant
	}
	return buildInformation.Main.Version
}
