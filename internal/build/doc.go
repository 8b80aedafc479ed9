// Package build triggers DistroPack builds and follows them to completion.
//
// Monitor triggers the build, polls the status of every created job on a
// fixed interval, reports each job's transitions through a ProgressReporter,
// and returns JobsFailedError when the service reports any failed job.
// CommandBuilder wires the monitor into the `build` Cobra command.
package build
