package distropack

// JobState is the status string reported for a build job.
type JobState string

// Known job states. Other values may appear and are preserved as-is.
const (
	JobStatePending  JobState = "pending"
	JobStateRunning  JobState = "running"
	JobStateFinished JobState = "finished"
	JobStateFailed   JobState = "failed"
)

// IsTerminal reports whether no further transitions are expected.
func (state JobState) IsTerminal() bool {
	return state == JobStateFinished || state == JobStateFailed
}

// JobStatus is one job's snapshot from a status query.
// FailMessage and TechnicalError are nil when the service omits them.
type JobStatus struct {
	JobID          string   `json:"jobId"`
	Status         JobState `json:"status"`
	Name           string   `json:"name"`
	FailMessage    *string  `json:"failMessage,omitempty"`
	TechnicalError *string  `json:"technicalError,omitempty"`
}

// BuildStatusResponse is the body returned by the build status endpoint.
type BuildStatusResponse struct {
	Jobs        []JobStatus `json:"jobs"`
	AllFinished bool        `json:"allFinished"`
	AnyFailed   bool        `json:"anyFailed"`
}

// UploadRequest names the file to attach to a package slot.
type UploadRequest struct {
	PackageID   string
	ReferenceID string
	FilePath    string
}

// BuildRequest describes a build to trigger. A nil Target builds every enabled target.
type BuildRequest struct {
	PackageID string
	Version   string
	Target    *Target
}

type buildResponse struct {
	JobIDs []string `json:"jobIds"`
}
