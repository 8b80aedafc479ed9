package build

import "time"

const (
	defaultPollIntervalConstant       = 5 * time.Second
	defaultHeartbeatEveryConstant     = 3
	pollIntervalKeyConstant           = "poll_interval"
	timeoutKeyConstant                = "timeout"
	heartbeatEveryKeyConstant         = "heartbeat_every"
	configurationKeySeparatorConstant = "."
)

// CommandConfiguration captures configuration values for the build command.
type CommandConfiguration struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Timeout        time.Duration `mapstructure:"timeout"`
	HeartbeatEvery int           `mapstructure:"heartbeat_every"`
}

// DefaultCommandConfiguration polls every five seconds, repeats running lines every third poll, and never times out.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		PollInterval:   defaultPollIntervalConstant,
		Timeout:        0,
		HeartbeatEvery: defaultHeartbeatEveryConstant,
	}
}

// DefaultConfigurationValues returns Viper defaults keyed beneath prefix.
func DefaultConfigurationValues(prefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		prefix + configurationKeySeparatorConstant + pollIntervalKeyConstant:   defaults.PollInterval.String(),
		prefix + configurationKeySeparatorConstant + timeoutKeyConstant:        defaults.Timeout.String(),
		prefix + configurationKeySeparatorConstant + heartbeatEveryKeyConstant: defaults.HeartbeatEvery,
	}
}

// sanitize replaces non-positive values with defaults; a negative timeout means no timeout.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	if sanitized.PollInterval <= 0 {
		sanitized.PollInterval = defaultPollIntervalConstant
	}
	if sanitized.HeartbeatEvery <= 0 {
		sanitized.HeartbeatEvery = defaultHeartbeatEveryConstant
	}
	if sanitized.Timeout < 0 {
		sanitized.Timeout = 0
	}
	return sanitized
}
