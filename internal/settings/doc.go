// Package settings resolves and persists the DistroPack connection settings.
//
// Store reads and writes the YAML settings file kept in the user configuration
// directory, Resolver applies the DISTROPACK_API_TOKEN and DISTROPACK_API_URL
// environment overrides on top of it, and CommandBuilder exposes the
// `config set-token`, `config set-base-url`, and `config show` commands.
package settings
