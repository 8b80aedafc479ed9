// Package cli constructs the distropack command-line interface, wiring the
// Cobra command hierarchy, configuration loader, settings store, and
// structured logging. Execute runs the default command set.
package cli
