package cli

import _ "embed"

//go:embed default_config.yaml
var builtInSettingsYAML []byte

// EmbeddedDefaultConfiguration hands out the shipped common and build defaults that sit beneath
// the user's settings file. Callers get their own copy, so the embedded bytes stay untouched.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return append([]byte(nil), builtInSettingsYAML...), configurationTypeConstant
}
