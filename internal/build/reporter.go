package build

import (
	"fmt"
	"io"

	"github.com/temirov/distropack/internal/distropack"
	"github.com/temirov/distropack/internal/utils"
)

const (
	buildRequestedSingleTemplateConstant = "Triggering build for package %s version %s (target: %s)...\n"
	buildRequestedAllTemplateConstant    = "Triggering build for package %s version %s (all targets)...\n"
	buildTriggeredTemplateConstant       = "Build triggered successfully for package %s version %s (%d job(s))\n"
	jobRunningTemplateConstant           = "  [running] %s\n"
	jobFinishedTemplateConstant          = "  [finished] %s\n"
	jobFailedTemplateConstant            = "  [failed] %s\n"
	jobFailedWithMessageTemplateConstant = "  [failed] %s: %s\n"
	jobsInitializingTemplateConstant     = "  %d job(s) still initializing...\n"
	buildSucceededTemplateConstant       = "All %d build job(s) completed successfully!\n"
	failureHeaderTemplateConstant        = "Build failed for %s (job %s)\n"
	failureMessageTemplateConstant       = "  Error: %s\n"
	failureTechnicalTemplateConstant     = "  Technical details: %s\n"
)

// ProgressReporter receives the human-facing events of a build run.
type ProgressReporter interface {
	BuildRequested(request distropack.BuildRequest)
	BuildTriggered(request distropack.BuildRequest, jobCount int)
	JobRunning(job distropack.JobStatus)
	JobFinished(job distropack.JobStatus)
	JobFailed(job distropack.JobStatus)
	JobsInitializing(missingJobCount int)
	BuildSucceeded(jobCount int)
	FailureDetails(failedJobs []distropack.JobStatus)
}

// ConsoleReporter writes progress to an output stream and failure details to an error stream.
type ConsoleReporter struct {
	output      io.Writer
	errorOutput io.Writer
}

// NewConsoleReporter wraps both streams so each line is flushed as soon as it is written.
func NewConsoleReporter(output io.Writer, errorOutput io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		output:      utils.NewFlushingWriter(output),
		errorOutput: utils.NewFlushingWriter(errorOutput),
	}
}

// BuildRequested announces the trigger call.
func (reporter *ConsoleReporter) BuildRequested(request distropack.BuildRequest) {
	if request.Target != nil {
		fmt.Fprintf(reporter.output, buildRequestedSingleTemplateConstant, request.PackageID, request.Version, request.Target.String())
		return
	}
	fmt.Fprintf(reporter.output, buildRequestedAllTemplateConstant, request.PackageID, request.Version)
}

// BuildTriggered reports how many jobs the service created.
func (reporter *ConsoleReporter) BuildTriggered(request distropack.BuildRequest, jobCount int) {
	fmt.Fprintf(reporter.output, buildTriggeredTemplateConstant, request.PackageID, request.Version, jobCount)
}

// JobRunning reports a running job.
func (reporter *ConsoleReporter) JobRunning(job distropack.JobStatus) {
	fmt.Fprintf(reporter.output, jobRunningTemplateConstant, displayName(job))
}

// JobFinished reports a job that completed successfully.
func (reporter *ConsoleReporter) JobFinished(job distropack.JobStatus) {
	fmt.Fprintf(reporter.output, jobFinishedTemplateConstant, displayName(job))
}

// JobFailed reports a failed job with its message when the service supplied one.
func (reporter *ConsoleReporter) JobFailed(job distropack.JobStatus) {
	if job.FailMessage != nil {
		fmt.Fprintf(reporter.output, jobFailedWithMessageTemplateConstant, displayName(job), *job.FailMessage)
		return
	}
	fmt.Fprintf(reporter.output, jobFailedTemplateConstant, displayName(job))
}

// JobsInitializing reports jobs not yet visible in the status endpoint.
func (reporter *ConsoleReporter) JobsInitializing(missingJobCount int) {
	fmt.Fprintf(reporter.output, jobsInitializingTemplateConstant, missingJobCount)
}

// BuildSucceeded prints the success summary.
func (reporter *ConsoleReporter) BuildSucceeded(jobCount int) {
	fmt.Fprintf(reporter.output, buildSucceededTemplateConstant, jobCount)
}

// FailureDetails writes each failed job's message and technical error to the error stream.
func (reporter *ConsoleReporter) FailureDetails(failedJobs []distropack.JobStatus) {
	for _, failedJob := range failedJobs {
		fmt.Fprintf(reporter.errorOutput, failureHeaderTemplateConstant, displayName(failedJob), failedJob.JobID)
		if failedJob.FailMessage != nil {
			fmt.Fprintf(reporter.errorOutput, failureMessageTemplateConstant, *failedJob.FailMessage)
		}
		if failedJob.TechnicalError != nil {
			fmt.Fprintf(reporter.errorOutput, failureTechnicalTemplateConstant, *failedJob.TechnicalError)
		}
	}
}
