package build

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/distropack/internal/distropack"
)

const (
	clientMissingErrorMessageConstant   = "build status client not configured"
	reporterMissingErrorMessageConstant = "build progress reporter not configured"
	buildTriggeredLogMessageConstant    = "build triggered"
	statusPolledLogMessageConstant      = "build status polled"
	statusRegressedLogMessageConstant   = "job status left a terminal state"
	logFieldPackageIDConstant           = "package_id"
	logFieldVersionConstant             = "version"
	logFieldJobIDsConstant              = "job_ids"
	logFieldJobIDConstant               = "job_id"
	logFieldIterationConstant           = "iteration"
	logFieldReportedJobsConstant        = "reported_jobs"
	logFieldAllFinishedConstant         = "all_finished"
	logFieldAnyFailedConstant           = "any_failed"
	logFieldPreviousStatusConstant      = "previous_status"
	logFieldCurrentStatusConstant       = "current_status"
)

// StatusClient is the subset of the DistroPack client the monitor drives.
type StatusClient interface {
	TriggerBuild(executionContext context.Context, request distropack.BuildRequest) ([]string, error)
	QueryStatus(executionContext context.Context, jobIDs []string) (distropack.BuildStatusResponse, error)
}

// Sleeper pauses between polls and returns early with the context error on cancellation.
type Sleeper func(executionContext context.Context, duration time.Duration) error

// MonitorOptions configures NewMonitor.
type MonitorOptions struct {
	Client        StatusClient
	Reporter      ProgressReporter
	Logger        *zap.Logger
	Configuration CommandConfiguration
	Sleeper       Sleeper
}

// Result describes a build whose jobs all finished successfully.
type Result struct {
	JobIDs []string
	Jobs   []distropack.JobStatus
	Polls  int
}

// Monitor triggers a build and polls it until every job reaches a terminal state.
type Monitor struct {
	client        StatusClient
	reporter      ProgressReporter
	logger        *zap.Logger
	configuration CommandConfiguration
	sleeper       Sleeper
}

// NewMonitor validates options and constructs a Monitor.
func NewMonitor(options MonitorOptions) (*Monitor, error) {
	if options.Client == nil {
		return nil, errors.New(clientMissingErrorMessageConstant)
	}
	if options.Reporter == nil {
		return nil, errors.New(reporterMissingErrorMessageConstant)
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sleeper := options.Sleeper
	if sleeper == nil {
		sleeper = sleepWithContext
	}

	return &Monitor{
		client:        options.Client,
		reporter:      options.Reporter,
		logger:        logger,
		configuration: options.Configuration.sanitize(),
		sleeper:       sleeper,
	}, nil
}

// Run triggers the build described by request and follows its jobs.
//
// It returns ErrNoJobsCreated without polling when the trigger yields no jobs,
// *JobsFailedError once all jobs are finished and any failed, and *TimeoutError
// when a configured timeout elapses first. Trigger and status errors abort the run.
func (monitor *Monitor) Run(executionContext context.Context, request distropack.BuildRequest) (Result, error) {
	runContext, cancelRun := monitor.runContext(executionContext)
	defer cancelRun()

	monitor.reporter.BuildRequested(request)

	jobIDs, triggerError := monitor.client.TriggerBuild(runContext, request)
	if triggerError != nil {
		return Result{}, monitor.interpretError(executionContext, runContext, triggerError, 0)
	}
	if len(jobIDs) == 0 {
		return Result{}, ErrNoJobsCreated
	}

	monitor.reporter.BuildTriggered(request, len(jobIDs))
	monitor.logger.Info(
		buildTriggeredLogMessageConstant,
		zap.String(logFieldPackageIDConstant, request.PackageID),
		zap.String(logFieldVersionConstant, request.Version),
		zap.Strings(logFieldJobIDsConstant, jobIDs),
	)

	seenStatuses := make(map[string]distropack.JobState, len(jobIDs))
	for iteration := 0; ; iteration++ {
		statusResponse, queryError := monitor.client.QueryStatus(runContext, jobIDs)
		if queryError != nil {
			return Result{}, monitor.interpretError(executionContext, runContext, queryError, iteration)
		}

		monitor.logger.Debug(
			statusPolledLogMessageConstant,
			zap.Int(logFieldIterationConstant, iteration),
			zap.Int(logFieldReportedJobsConstant, len(statusResponse.Jobs)),
			zap.Bool(logFieldAllFinishedConstant, statusResponse.AllFinished),
			zap.Bool(logFieldAnyFailedConstant, statusResponse.AnyFailed),
		)

		heartbeat := iteration%monitor.configuration.HeartbeatEvery == 0
		monitor.reportTransitions(statusResponse.Jobs, seenStatuses, heartbeat)

		if missingJobCount := countMissingJobs(jobIDs, statusResponse.Jobs); missingJobCount > 0 && heartbeat {
			monitor.reporter.JobsInitializing(missingJobCount)
		}

		if statusResponse.AllFinished {
			if statusResponse.AnyFailed {
				failedJobs := filterFailedJobs(statusResponse.Jobs)
				monitor.reporter.FailureDetails(failedJobs)
				return Result{}, &JobsFailedError{FailedJobs: failedJobs, TotalJobs: len(jobIDs)}
			}

			monitor.reporter.BuildSucceeded(len(jobIDs))
			return Result{JobIDs: jobIDs, Jobs: statusResponse.Jobs, Polls: iteration + 1}, nil
		}

		if sleepError := monitor.sleeper(runContext, monitor.configuration.PollInterval); sleepError != nil {
			return Result{}, monitor.interpretError(executionContext, runContext, sleepError, iteration+1)
		}
	}
}

// reportTransitions emits one line per status change. Running jobs are also repeated on heartbeat polls.
func (monitor *Monitor) reportTransitions(jobs []distropack.JobStatus, seenStatuses map[string]distropack.JobState, heartbeat bool) {
	for _, job := range jobs {
		previousStatus, seen := seenStatuses[job.JobID]
		changed := !seen || previousStatus != job.Status

		if seen && changed && previousStatus.IsTerminal() {
			monitor.logger.Warn(
				statusRegressedLogMessageConstant,
				zap.String(logFieldJobIDConstant, job.JobID),
				zap.String(logFieldPreviousStatusConstant, string(previousStatus)),
				zap.String(logFieldCurrentStatusConstant, string(job.Status)),
			)
		}

		switch job.Status {
		case distropack.JobStateRunning:
			if changed || heartbeat {
				monitor.reporter.JobRunning(job)
			}
		case distropack.JobStateFinished:
			if changed {
				monitor.reporter.JobFinished(job)
			}
		case distropack.JobStateFailed:
			if changed {
				monitor.reporter.JobFailed(job)
			}
		}

		seenStatuses[job.JobID] = job.Status
	}
}

func (monitor *Monitor) runContext(executionContext context.Context) (context.Context, context.CancelFunc) {
	if executionContext == nil {
		executionContext = context.Background()
	}
	if monitor.configuration.Timeout > 0 {
		return context.WithTimeout(executionContext, monitor.configuration.Timeout)
	}
	return context.WithCancel(executionContext)
}

// interpretError converts failures caused by the run's own deadline into TimeoutError.
func (monitor *Monitor) interpretError(parentContext context.Context, runContext context.Context, failure error, polls int) error {
	if monitor.configuration.Timeout <= 0 {
		return failure
	}
	if parentContext != nil && parentContext.Err() != nil {
		return failure
	}
	if errors.Is(runContext.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Timeout: monitor.configuration.Timeout, Polls: polls, Cause: failure}
	}
	return failure
}

func countMissingJobs(requestedJobIDs []string, reportedJobs []distropack.JobStatus) int {
	reportedJobIDs := make(map[string]struct{}, len(reportedJobs))
	for _, reportedJob := range reportedJobs {
		reportedJobIDs[reportedJob.JobID] = struct{}{}
	}

	missingJobCount := 0
	for _, requestedJobID := range requestedJobIDs {
		if _, reported := reportedJobIDs[requestedJobID]; !reported {
			missingJobCount++
		}
	}
	return missingJobCount
}

func filterFailedJobs(jobs []distropack.JobStatus) []distropack.JobStatus {
	failedJobs := make([]distropack.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == distropack.JobStateFailed {
			failedJobs = append(failedJobs, job)
		}
	}
	return failedJobs
}

func sleepWithContext(executionContext context.Context, duration time.Duration) error {
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}
