package upload

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/distropack/internal/distropack"
	"github.com/temirov/distropack/internal/settings"
	pathutils "github.com/temirov/distropack/internal/utils/path"
)

const (
	uploadCommandUseConstant                = "upload"
	uploadCommandShortDescriptionConstant   = "Upload a file to a package"
	uploadCommandLongDescriptionConstant    = "upload sends a local file to DistroPack and attaches it to the named reference slot of a package."
	unexpectedArgumentsErrorMessageConstant = "upload does not accept positional arguments"
	packageIDFlagNameConstant               = "package-id"
	packageIDFlagDescriptionConstant        = "Package identifier"
	referenceIDFlagNameConstant             = "ref-id"
	referenceIDFlagDescriptionConstant      = "Reference slot (access name) the file is attached to"
	fileFlagNameConstant                    = "file"
	fileFlagDescriptionConstant             = "Path of the file to upload"
	missingFlagErrorTemplateConstant        = "--%s is required"
	clientConstructionErrorTemplateConstant = "unable to construct DistroPack client: %w"
	uploadStartedTemplateConstant           = "Uploading file %s to package %s (ref: %s)...\n"
	uploadSucceededMessageConstant          = "File uploaded successfully!"
	uploadCompletedLogMessageConstant       = "file uploaded"
	logFieldPackageIDConstant               = "package_id"
	logFieldReferenceIDConstant             = "ref_id"
	logFieldFileConstant                    = "file"
)

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// FileUploader sends one file to the service.
type FileUploader interface {
	UploadFile(executionContext context.Context, request distropack.UploadRequest) error
}

// ClientFactory creates the uploader used by the command.
type ClientFactory func(connection settings.Connection, logger *zap.Logger) (FileUploader, error)

// CommandBuilder assembles the upload command.
type CommandBuilder struct {
	LoggerProvider    LoggerProvider
	StoreProvider     settings.StoreProvider
	EnvironmentLookup settings.EnvironmentLookup
	ClientFactory     ClientFactory
	HomeExpander      *pathutils.HomeExpander
}

// Build constructs the cobra command for uploading files.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	uploadCommand := &cobra.Command{
		Use:   uploadCommandUseConstant,
		Short: uploadCommandShortDescriptionConstant,
		Long:  uploadCommandLongDescriptionConstant,
		RunE:  builder.run,
	}

	uploadCommand.Flags().String(packageIDFlagNameConstant, "", packageIDFlagDescriptionConstant)
	uploadCommand.Flags().String(referenceIDFlagNameConstant, "", referenceIDFlagDescriptionConstant)
	uploadCommand.Flags().String(fileFlagNameConstant, "", fileFlagDescriptionConstant)

	return uploadCommand, nil
}

func (builder *CommandBuilder) run(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return errors.New(unexpectedArgumentsErrorMessageConstant)
	}

	request, requestError := builder.parseUploadRequest(command)
	if requestError != nil {
		return requestError
	}

	connection, connectionError := settings.LoadConnection(command.Context(), builder.StoreProvider, builder.EnvironmentLookup)
	if connectionError != nil {
		return connectionError
	}

	logger := builder.resolveLogger()
	uploader, clientError := builder.resolveClientFactory()(connection, logger)
	if clientError != nil {
		return fmt.Errorf(clientConstructionErrorTemplateConstant, clientError)
	}

	fmt.Fprintf(command.OutOrStdout(), uploadStartedTemplateConstant, request.FilePath, request.PackageID, request.ReferenceID)

	if uploadError := uploader.UploadFile(command.Context(), request); uploadError != nil {
		return uploadError
	}

	logger.Info(
		uploadCompletedLogMessageConstant,
		zap.String(logFieldPackageIDConstant, request.PackageID),
		zap.String(logFieldReferenceIDConstant, request.ReferenceID),
		zap.String(logFieldFileConstant, request.FilePath),
	)
	fmt.Fprintln(command.OutOrStdout(), uploadSucceededMessageConstant)
	return nil
}

func (builder *CommandBuilder) parseUploadRequest(command *cobra.Command) (distropack.UploadRequest, error) {
	packageIDValue, packageIDError := requiredFlagValue(command, packageIDFlagNameConstant)
	if packageIDError != nil {
		return distropack.UploadRequest{}, packageIDError
	}

	referenceIDValue, referenceIDError := requiredFlagValue(command, referenceIDFlagNameConstant)
	if referenceIDError != nil {
		return distropack.UploadRequest{}, referenceIDError
	}

	fileValue, fileError := requiredFlagValue(command, fileFlagNameConstant)
	if fileError != nil {
		return distropack.UploadRequest{}, fileError
	}

	homeExpander := builder.HomeExpander
	if homeExpander == nil {
		homeExpander = pathutils.NewHomeExpander()
	}

	return distropack.UploadRequest{
		PackageID:   packageIDValue,
		ReferenceID: referenceIDValue,
		FilePath:    homeExpander.Expand(fileValue),
	}, nil
}

func requiredFlagValue(command *cobra.Command, flagName string) (string, error) {
	flagValue, flagError := command.Flags().GetString(flagName)
	if flagError != nil {
		return "", flagError
	}
	trimmedValue := strings.TrimSpace(flagValue)
	if len(trimmedValue) == 0 {
		return "", fmt.Errorf(missingFlagErrorTemplateConstant, flagName)
	}
	return trimmedValue, nil
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
func NewDistroPackClient(connection settings.Connection, logger *zap.Logger) (FileUploader, error) {
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
