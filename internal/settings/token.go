package settings

import "strings"

const (
	minimumTokenLengthConstant = 20
	maskedEdgeLengthConstant   = 4
	maskedSeparatorConstant    = "..."
	fullyMaskedTokenConstant   = "****"
)

// MaskToken hides all but the first and last four characters of token.
// Tokens too short to keep both edges are masked entirely.
func MaskToken(token string) string {
	trimmedToken := strings.TrimSpace(token)
	if len(trimmedToken) <= 2*maskedEdgeLengthConstant {
		return fullyMaskedTokenConstant
	}
	return trimmedToken[:maskedEdgeLengthConstant] + maskedSeparatorConstant + trimmedToken[len(trimmedToken)-maskedEdgeLengthConstant:]
}

// ValidateTokenFormat reports whether token looks like a DistroPack API token.
func ValidateTokenFormat(token string) bool {
	return len(strings.TrimSpace(token)) >= minimumTokenLengthConstant
}
