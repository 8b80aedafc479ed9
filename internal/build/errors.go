package build

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/temirov/distropack/internal/distropack"
)

const (
	noJobsCreatedMessageConstant      = "build request created no jobs"
	jobsFailedTemplateConstant        = "%d of %d build job(s) failed: %s"
	jobsFailedUnnamedTemplateConstant = "build reported failure for %d job(s)"
	timeoutTemplateConstant           = "build did not finish within %s (%d status poll(s))"
	jobNameSeparatorConstant          = ", "
)

// ErrNoJobsCreated indicates that the trigger call succeeded but returned no job identifiers.
var ErrNoJobsCreated = errors.New(noJobsCreatedMessageConstant)

// JobsFailedError reports that every job reached a terminal state and at least one failed.
type JobsFailedError struct {
	FailedJobs []distropack.JobStatus
	TotalJobs  int
}

// Error summarizes the failed jobs by display name.
func (failedError *JobsFailedError) Error() string {
	if len(failedError.FailedJobs) == 0 {
		return fmt.Sprintf(jobsFailedUnnamedTemplateConstant, failedError.TotalJobs)
	}

	jobNames := make([]string, 0, len(failedError.FailedJobs))
	for _, failedJob := range failedError.FailedJobs {
		jobNames = append(jobNames, displayName(failedJob))
	}
	return fmt.Sprintf(jobsFailedTemplateConstant, len(failedError.FailedJobs), failedError.TotalJobs, strings.Join(jobNames, jobNameSeparatorConstant))
}

// TimeoutError reports that the configured build timeout elapsed before all jobs finished.
type TimeoutError struct {
	Timeout time.Duration
	Polls   int
	Cause   error
}

// Error describes the elapsed timeout.
func (timeoutError *TimeoutError) Error() string {
	return fmt.Sprintf(timeoutTemplateConstant, timeoutError.Timeout, timeoutError.Polls)
}

// Unwrap exposes the interrupted operation's error.
func (timeoutError *TimeoutError) Unwrap() error {
	return timeoutError.Cause
}

func displayName(job distropack.JobStatus) string {
	trimmedName := strings.TrimSpace(job.Name)
	if len(trimmedName) == 0 {
		return job.JobID
	}
	return trimmedName
}
