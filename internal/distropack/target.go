package distropack

import (
	"errors"
	"fmt"
	"strings"
)

const (
	targetEmptyErrorMessageConstant = "target must be provided"
	targetInvalidTemplateConstant   = "target %q is not supported (expected deb, rpm, or pacman)"
)

// Target identifies a distribution package format a build can be restricted to.
type Target string

// Supported build targets.
const (
	TargetDeb    Target = "deb"
	TargetRPM    Target = "rpm"
	TargetPacman Target = "pacman"
)

// SupportedTargets lists every Target in display order.
func SupportedTargets() []Target {
	return []Target{TargetDeb, TargetRPM, TargetPacman}
}

// ParseTarget normalizes textual target values.
func ParseTarget(targetValue string) (Target, error) {
	trimmedValue := strings.TrimSpace(targetValue)
	if len(trimmedValue) == 0 {
		return "", errors.New(targetEmptyErrorMessageConstant)
	}

	candidate := Target(strings.ToLower(trimmedValue))
	for _, supportedTarget := range SupportedTargets() {
		if candidate == supportedTarget {
			return supportedTarget, nil
		}
	}

	return "", fmt.Errorf(targetInvalidTemplateConstant, targetValue)
}

// String returns the wire value of the target.
func (target Target) String() string {
	return string(target)
}
