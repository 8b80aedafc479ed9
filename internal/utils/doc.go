// Package utils exposes reusable helpers consumed by the distropack commands.
//
// It houses the ConfigurationLoader that layers embedded defaults, the settings
// file, and DISTROPACK_ environment variables through Viper, the LoggerFactory
// that builds zap diagnostics loggers, and small output and context helpers.
package utils
