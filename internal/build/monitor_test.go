package build_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/distropack/internal/build"
	"github.com/temirov/distropack/internal/distropack"
)

const (
	testPackageIDConstant = "42"
	testVersionConstant   = "1.2.3"
)

type scriptedStatusClient struct {
	jobIDs          []string
	triggerError    error
	responses       []distropack.BuildStatusResponse
	queryErrors     []error
	triggerRequests []distropack.BuildRequest
	queriedJobIDs   [][]string
}

func (client *scriptedStatusClient) TriggerBuild(_ context.Context, request distropack.BuildRequest) ([]string, error) {
	client.triggerRequests = append(client.triggerRequests, request)
	if client.triggerError != nil {
		return nil, client.triggerError
	}
	return client.jobIDs, nil
}

func (client *scriptedStatusClient) QueryStatus(_ context.Context, jobIDs []string) (distropack.BuildStatusResponse, error) {
	pollIndex := len(client.queriedJobIDs)
	client.queriedJobIDs = append(client.queriedJobIDs, append([]string(nil), jobIDs...))
	if pollIndex < len(client.queryErrors) && client.queryErrors[pollIndex] != nil {
		return distropack.BuildStatusResponse{}, client.queryErrors[pollIndex]
	}
	if pollIndex >= len(client.responses) {
		return client.responses[len(client.responses)-1], nil
	}
	return client.responses[pollIndex], nil
}

type recordingSleeper struct {
	durations []time.Duration
}

func (sleeper *recordingSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	sleeper.durations = append(sleeper.durations, duration)
	return executionContext.Err()
}

type monitorHarness struct {
	client  *scriptedStatusClient
	sleeper *recordingSleeper
	output  *bytes.Buffer
	errors  *bytes.Buffer
	monitor *build.Monitor
}

func newMonitorHarness(testInstance *testing.T, client *scriptedStatusClient, configuration build.CommandConfiguration) monitorHarness {
	testInstance.Helper()

	sleeper := &recordingSleeper{}
	outputBuffer := &bytes.Buffer{}
	errorBuffer := &bytes.Buffer{}

	monitor, monitorError := build.NewMonitor(build.MonitorOptions{
		Client:        client,
		Reporter:      build.NewConsoleReporter(outputBuffer, errorBuffer),
		Logger:        zap.NewNop(),
		Configuration: configuration,
		Sleeper:       sleeper.Sleep,
	})
	require.NoError(testInstance, monitorError)

	return monitorHarness{client: client, sleeper: sleeper, output: outputBuffer, errors: errorBuffer, monitor: monitor}
}

func job(jobID string, name string, state distropack.JobState) distropack.JobStatus {
	return distropack.JobStatus{JobID: jobID, Name: name, Status: state}
}

func stringPointer(value string) *string {
	return &value
}

func allTargetsRequest() distropack.BuildRequest {
	return distropack.BuildRequest{PackageID: testPackageIDConstant, Version: testVersionConstant}
}

func TestMonitorRunWithoutJobsSkipsStatusQueries(testInstance *testing.T) {
	client := &scriptedStatusClient{jobIDs: []string{}}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())
	require.ErrorIs(testInstance, runError, build.ErrNoJobsCreated)
	require.Empty(testInstance, client.queriedJobIDs)
	require.Empty(testInstance, harness.sleeper.durations)
	require.NotContains(testInstance, harness.output.String(), "Build triggered successfully")
}

func TestMonitorRunPropagatesTriggerError(testInstance *testing.T) {
	triggerFailure := &distropack.RemoteError{Operation: distropack.OperationBuildRequest, StatusCode: 403, Body: "forbidden"}
	client := &scriptedStatusClient{triggerError: triggerFailure}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())

	var remoteError *distropack.RemoteError
	require.ErrorAs(testInstance, runError, &remoteError)
	require.Equal(testInstance, 403, remoteError.StatusCode)
	require.Empty(testInstance, client.queriedJobIDs)
}

func TestMonitorRunReportsSuccess(testInstance *testing.T) {
	client := &scriptedStatusClient{
		jobIDs: []string{"job-a", "job-b"},
		responses: []distropack.BuildStatusResponse{
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning), job("job-b", "rpm", distropack.JobStatePending)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), job("job-b", "rpm", distropack.JobStateRunning)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), job("job-b", "rpm", distropack.JobStateFinished)}, AllFinished: true},
		},
	}
	configuration := build.DefaultCommandConfiguration()
	configuration.PollInterval = 2 * time.Second
	harness := newMonitorHarness(testInstance, client, configuration)

	result, runError := harness.monitor.Run(context.Background(), allTargetsRequest())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, []string{"job-a", "job-b"}, result.JobIDs)
	require.Equal(testInstance, 3, result.Polls)
	require.Equal(testInstance, []time.Duration{2 * time.Second, 2 * time.Second}, harness.sleeper.durations)

	for _, queried := range client.queriedJobIDs {
		require.Equal(testInstance, []string{"job-a", "job-b"}, queried)
	}

	expectedOutput := strings.Join([]string{
		"Triggering build for package 42 version 1.2.3 (all targets)...",
		"Build triggered successfully for package 42 version 1.2.3 (2 job(s))",
		"  [running] deb",
		"  [finished] deb",
		"  [running] rpm",
		"  [finished] rpm",
		"All 2 build job(s) completed successfully!",
		"",
	}, "\n")
	require.Equal(testInstance, expectedOutput, harness.output.String())
	require.Empty(testInstance, harness.errors.String())
}

func TestMonitorRunRepeatsRunningLinesOnlyOnHeartbeat(testInstance *testing.T) {
	runningResponse := distropack.BuildStatusResponse{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}}
	finishedResponse := distropack.BuildStatusResponse{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished)}, AllFinished: true}

	testCases := []struct {
		name                 string
		runningPolls         int
		heartbeatEvery       int
		expectedRunningLines int
	}{
		{name: "single_running_poll", runningPolls: 1, heartbeatEvery: 3, expectedRunningLines: 1},
		{name: "below_heartbeat", runningPolls: 3, heartbeatEvery: 3, expectedRunningLines: 1},
		{name: "reaches_heartbeat", runningPolls: 4, heartbeatEvery: 3, expectedRunningLines: 2},
		{name: "two_heartbeats", runningPolls: 7, heartbeatEvery: 3, expectedRunningLines: 3},
		{name: "every_poll", runningPolls: 3, heartbeatEvery: 1, expectedRunningLines: 3},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			responses := make([]distropack.BuildStatusResponse, 0, testCase.runningPolls+1)
			for pollIndex := 0; pollIndex < testCase.runningPolls; pollIndex++ {
				responses = append(responses, runningResponse)
			}
			responses = append(responses, finishedResponse)

			client := &scriptedStatusClient{jobIDs: []string{"job-a"}, responses: responses}
			configuration := build.DefaultCommandConfiguration()
			configuration.HeartbeatEvery = testCase.heartbeatEvery
			harness := newMonitorHarness(subTest, client, configuration)

			_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())
			require.NoError(subTest, runError)
			require.Equal(subTest, testCase.expectedRunningLines, strings.Count(harness.output.String(), "  [running] deb\n"))
			require.Equal(subTest, 1, strings.Count(harness.output.String(), "  [finished] deb\n"))
			require.Equal(subTest, 1, strings.Count(harness.output.String(), "completed successfully!"))
		})
	}
}

func TestMonitorRunReportsInitializingJobsOnHeartbeat(testInstance *testing.T) {
	client := &scriptedStatusClient{
		jobIDs: []string{"job-a", "job-b"},
		responses: []distropack.BuildStatusResponse{
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), job("job-b", "rpm", distropack.JobStateFinished)}, AllFinished: true},
		},
	}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, strings.Count(harness.output.String(), "  1 job(s) still initializing...\n"))
	require.Equal(testInstance, 1, strings.Count(harness.output.String(), "  [finished] rpm\n"))
}

func TestMonitorRunReportsFailures(testInstance *testing.T) {
	failedJob := job("job-b", "rpm", distropack.JobStateFailed)
	failedJob.FailMessage = stringPointer("dependency missing")
	failedJob.TechnicalError = stringPointer("exit status 2")

	client := &scriptedStatusClient{
		jobIDs: []string{"job-a", "job-b"},
		responses: []distropack.BuildStatusResponse{
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), failedJob}, AllFinished: true, AnyFailed: true},
		},
	}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())

	var jobsFailedError *build.JobsFailedError
	require.ErrorAs(testInstance, runError, &jobsFailedError)
	require.Len(testInstance, jobsFailedError.FailedJobs, 1)
	require.Equal(testInstance, 2, jobsFailedError.TotalJobs)
	require.Equal(testInstance, "1 of 2 build job(s) failed: rpm", runError.Error())

	require.Contains(testInstance, harness.output.String(), "  [failed] rpm: dependency missing\n")
	require.NotContains(testInstance, harness.output.String(), "completed successfully")
	require.Equal(testInstance, "Build failed for rpm (job job-b)\n  Error: dependency missing\n  Technical details: exit status 2\n", harness.errors.String())
}

func TestMonitorRunKeepsPollingAfterJobFailure(testInstance *testing.T) {
	testCases := []struct {
		name                string
		failMessage         *string
		expectedFailedLine  string
		expectedErrorOutput string
	}{
		{
			name:                "empty_fail_message",
			failMessage:         stringPointer(""),
			expectedFailedLine:  "  [failed] rpm: \n",
			expectedErrorOutput: "Build failed for rpm (job job-b)\n  Error: \n",
		},
		{
			name:                "absent_fail_message",
			failMessage:         nil,
			expectedFailedLine:  "  [failed] rpm\n",
			expectedErrorOutput: "Build failed for rpm (job job-b)\n",
		},
		{
			name:                "present_fail_message",
			failMessage:         stringPointer("signing key expired"),
			expectedFailedLine:  "  [failed] rpm: signing key expired\n",
			expectedErrorOutput: "Build failed for rpm (job job-b)\n  Error: signing key expired\n",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			failedJob := job("job-b", "rpm", distropack.JobStateFailed)
			failedJob.FailMessage = testCase.failMessage

			client := &scriptedStatusClient{
				jobIDs: []string{"job-a", "job-b"},
				responses: []distropack.BuildStatusResponse{
					{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning), failedJob}, AnyFailed: true},
					{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning), failedJob}, AnyFailed: true},
					{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), failedJob}, AllFinished: true, AnyFailed: true},
				},
			}
			harness := newMonitorHarness(subTest, client, build.DefaultCommandConfiguration())

			_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())

			var jobsFailedError *build.JobsFailedError
			require.ErrorAs(subTest, runError, &jobsFailedError)
			require.Len(subTest, jobsFailedError.FailedJobs, 1)
			require.Len(subTest, client.queriedJobIDs, 3)
			require.Len(subTest, harness.sleeper.durations, 2)

			output := harness.output.String()
			require.Equal(subTest, 1, strings.Count(output, "  [failed] rpm"))
			require.Equal(subTest, 1, strings.Count(output, testCase.expectedFailedLine))
			require.Equal(subTest, 1, strings.Count(output, "  [finished] deb\n"))
			require.NotContains(subTest, output, "completed successfully")
			require.Equal(subTest, testCase.expectedErrorOutput, harness.errors.String())
		})
	}
}

func TestMonitorRunAbortsOnStatusError(testInstance *testing.T) {
	statusFailure := &distropack.TransportError{Operation: distropack.OperationStatusCheck, Cause: errors.New("connection reset")}
	client := &scriptedStatusClient{
		jobIDs: []string{"job-a"},
		responses: []distropack.BuildStatusResponse{
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}},
		},
		queryErrors: []error{nil, statusFailure},
	}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	_, runError := harness.monitor.Run(context.Background(), allTargetsRequest())
	require.ErrorIs(testInstance, runError, statusFailure)
	require.Len(testInstance, client.queriedJobIDs, 2)
}

func TestMonitorRunStopsWhenContextCancelled(testInstance *testing.T) {
	client := &scriptedStatusClient{
		jobIDs:    []string{"job-a"},
		responses: []distropack.BuildStatusResponse{{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}}},
	}
	harness := newMonitorHarness(testInstance, client, build.DefaultCommandConfiguration())

	executionContext, cancel := context.WithCancel(context.Background())
	cancel()

	_, runError := harness.monitor.Run(executionContext, allTargetsRequest())
	require.ErrorIs(testInstance, runError, context.Canceled)

	var timeoutError *build.TimeoutError
	require.False(testInstance, errors.As(runError, &timeoutError))
}

func TestMonitorRunTimesOut(testInstance *testing.T) {
	client := &scriptedStatusClient{
		jobIDs:    []string{"job-a"},
		responses: []distropack.BuildStatusResponse{{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning)}}},
	}
	monitor, monitorError := build.NewMonitor(build.MonitorOptions{
		Client:   client,
		Reporter: build.NewConsoleReporter(&bytes.Buffer{}, &bytes.Buffer{}),
		Configuration: build.CommandConfiguration{
			PollInterval:   time.Millisecond,
			Timeout:        20 * time.Millisecond,
			HeartbeatEvery: 3,
		},
	})
	require.NoError(testInstance, monitorError)

	_, runError := monitor.Run(context.Background(), allTargetsRequest())

	var timeoutError *build.TimeoutError
	require.ErrorAs(testInstance, runError, &timeoutError)
	require.Equal(testInstance, 20*time.Millisecond, timeoutError.Timeout)
	require.ErrorIs(testInstance, runError, context.DeadlineExceeded)
	require.NotEmpty(testInstance, client.queriedJobIDs)
}

func TestMonitorRunWarnsOnTerminalRegression(testInstance *testing.T) {
	client := &scriptedStatusClient{
		jobIDs: []string{"job-a", "job-b"},
		responses: []distropack.BuildStatusResponse{
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), job("job-b", "rpm", distropack.JobStateRunning)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateRunning), job("job-b", "rpm", distropack.JobStateRunning)}},
			{Jobs: []distropack.JobStatus{job("job-a", "deb", distropack.JobStateFinished), job("job-b", "rpm", distropack.JobStateFinished)}, AllFinished: true},
		},
	}
	observedCore, observedLogs := observer.New(zap.WarnLevel)
	monitor, monitorError := build.NewMonitor(build.MonitorOptions{
		Client:        client,
		Reporter:      build.NewConsoleReporter(&bytes.Buffer{}, &bytes.Buffer{}),
		Logger:        zap.New(observedCore),
		Configuration: build.DefaultCommandConfiguration(),
		Sleeper:       (&recordingSleeper{}).Sleep,
	})
	require.NoError(testInstance, monitorError)

	_, runError := monitor.Run(context.Background(), allTargetsRequest())
	require.NoError(testInstance, runError)
	require.Equal(testInstance, 1, observedLogs.FilterMessage("job status left a terminal state").Len())
}

func TestNewMonitorValidatesOptions(testInstance *testing.T) {
	testCases := []struct {
		name    string
		options build.MonitorOptions
	}{
		{name: "missing_client", options: build.MonitorOptions{Reporter: build.NewConsoleReporter(nil, nil)}},
		{name: "missing_reporter", options: build.MonitorOptions{Client: &scriptedStatusClient{}}},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			monitor, monitorError := build.NewMonitor(testCase.options)
			require.Error(subTest, monitorError)
			require.Nil(subTest, monitor)
		})
	}
}
