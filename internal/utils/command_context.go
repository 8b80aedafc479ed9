package utils

import "context"

const (
	settingsFilePathContextKeyConstant = commandContextKey("settingsFilePath")
)

type commandContextKey string

// CommandContextAccessor manages values stored in command execution contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithSettingsFilePath attaches the resolved settings file path to the provided context.
func (accessor CommandContextAccessor) WithSettingsFilePath(parentContext context.Context, settingsFilePath string) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, settingsFilePathContextKeyConstant, settingsFilePath)
}

// SettingsFilePath extracts the settings file path from the provided context.
func (accessor CommandContextAccessor) SettingsFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	settingsFilePath, settingsFilePathAvailable := executionContext.Value(settingsFilePathContextKeyConstant).(string)
	if !settingsFilePathAvailable || len(settingsFilePath) == 0 {
		return "", false
	}
	return settingsFilePath, true
}
