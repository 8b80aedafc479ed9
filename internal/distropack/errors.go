package distropack

import (
	"fmt"
	"strings"
)

const (
	operationErrorMessageTemplateConstant = "%s failed: %v"
	responseDecodingErrorTemplateConstant = "%s response decoding failed: %v"
	remoteErrorTemplateConstant           = "%s failed with status %d: %s"
	remoteErrorEmptyBodyTemplateConstant  = "%s failed with status %d"
	fileNotFoundErrorTemplateConstant     = "file not found: %s"
	fileReadErrorTemplateConstant         = "failed to read file %s: %v"
	invalidInputErrorTemplateConstant     = "%s: %s"
)

// OperationName labels the API call an error came from.
type OperationName string

// Operations reported in errors.
const (
	OperationUpload       OperationName = "upload"
	OperationBuildRequest OperationName = "build request"
	OperationStatusCheck  OperationName = "status check"
)

// TransportError reports that no usable response was obtained: the connection failed,
// the request timed out, or the body could not be read.
type TransportError struct {
	Operation OperationName
	Cause     error
}

// Error describes the transport failure.
func (transportError *TransportError) Error() string {
	return fmt.Sprintf(operationErrorMessageTemplateConstant, transportError.Operation, transportError.Cause)
}

// Unwrap exposes the underlying cause.
func (transportError *TransportError) Unwrap() error {
	return transportError.Cause
}

// ResponseDecodingError reports a success response whose body is not the expected JSON.
// It is a transport-class failure: errors.As with *TransportError also matches it.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError *ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap returns the failure as a TransportError so callers can branch on one type.
func (decodingError *ResponseDecodingError) Unwrap() error {
	return &TransportError{Operation: decodingError.Operation, Cause: decodingError.Cause}
}

// RemoteError reports a non-success HTTP status from the service.
type RemoteError struct {
	Operation  OperationName
	StatusCode int
	Body       string
}

// Error describes the rejected request.
func (remoteError *RemoteError) Error() string {
	trimmedBody := strings.TrimSpace(remoteError.Body)
	if len(trimmedBody) == 0 {
		return fmt.Sprintf(remoteErrorEmptyBodyTemplateConstant, remoteError.Operation, remoteError.StatusCode)
	}
	return fmt.Sprintf(remoteErrorTemplateConstant, remoteError.Operation, remoteError.StatusCode, trimmedBody)
}

// FileNotFoundError reports that the upload source does not exist.
type FileNotFoundError struct {
	Path string
}

// Error describes the missing file.
func (notFoundError *FileNotFoundError) Error() string {
	return fmt.Sprintf(fileNotFoundErrorTemplateConstant, notFoundError.Path)
}

// FileReadError reports that the upload source exists but could not be read.
type FileReadError struct {
	Path  string
	Cause error
}

// Error describes the read failure.
func (readError *FileReadError) Error() string {
	return fmt.Sprintf(fileReadErrorTemplateConstant, readError.Path, readError.Cause)
}

// Unwrap exposes the underlying I/O error.
func (readError *FileReadError) Unwrap() error {
	return readError.Cause
}

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}
