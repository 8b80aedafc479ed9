package distropack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiPathPrefixConstant               = "/api/"
	uploadEndpointConstant              = "upload_file"
	buildAllTargetsEndpointConstant     = "build_package"
	buildSingleTargetEndpointConstant   = "build_package_single"
	statusEndpointConstant              = "build_status"
	packageIDQueryParameterConstant     = "packageId"
	accessNameQueryParameterConstant    = "accessName"
	distroTypeQueryParameterConstant    = "distroType"
	jobIDsQueryParameterConstant        = "jobIds"
	jobIDsSeparatorConstant             = ","
	encodedJobIDsSeparatorConstant      = "%2C"
	fileFormFieldConstant               = "file"
	versionFormFieldConstant            = "version"
	authorizationHeaderConstant         = "Authorization"
	bearerPrefixConstant                = "Bearer "
	userAgentHeaderConstant             = "User-Agent"
	userAgentValueConstant              = "distropack-cli"
	requestIDHeaderConstant             = "X-Request-Id"
	acceptHeaderConstant                = "Accept"
	contentTypeHeaderConstant           = "Content-Type"
	jsonMediaTypeConstant               = "application/json"
	defaultHTTPTimeoutConstant          = 5 * time.Minute
	requiredValueMessageConstant        = "value required"
	directoryPathMessageConstant        = "path is a directory"
	invalidBaseURLMessageConstant       = "must be an absolute http or https URL"
	apiTokenFieldNameConstant           = "api_token"
	baseURLFieldNameConstant            = "base_url"
	packageIDFieldNameConstant          = "package_id"
	referenceIDFieldNameConstant        = "ref_id"
	filePathFieldNameConstant           = "file"
	versionFieldNameConstant            = "version"
	jobIDsFieldNameConstant             = "job_ids"
	requestConstructionTemplateConstant = "unable to construct %s request: %w"
	payloadEncodingTemplateConstant     = "unable to encode %s payload: %w"
	requestSentLogMessageConstant       = "api request sent"
	responseReceivedLogMessageConstant  = "api response received"
	logFieldOperationConstant           = "operation"
	logFieldMethodConstant              = "method"
	logFieldPathConstant                = "path"
	logFieldRequestIDConstant           = "request_id"
	logFieldStatusCodeConstant          = "status_code"
	logFieldDurationConstant            = "duration"
	logFieldPayloadBytesConstant        = "payload_bytes"
)

// HTTPClient is the subset of *http.Client used by Client.
type HTTPClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// RequestIdentifierGenerator produces the X-Request-Id value for each request.
type RequestIdentifierGenerator func() string

// ClientOptions configures NewClient.
type ClientOptions struct {
	BaseURL                    string
	APIToken                   string
	HTTPClient                 HTTPClient
	Logger                     *zap.Logger
	RequestIdentifierGenerator RequestIdentifierGenerator
}

// Client issues authenticated requests against a single DistroPack base URL.
// Requests are attempted once; failures are returned to the caller unchanged.
type Client struct {
	baseURL                    *url.URL
	apiToken                   string
	httpClient                 HTTPClient
	logger                     *zap.Logger
	requestIdentifierGenerator RequestIdentifierGenerator
}

// NewClient validates options and constructs a Client.
func NewClient(options ClientOptions) (*Client, error) {
	apiToken := strings.TrimSpace(options.APIToken)
	if len(apiToken) == 0 {
		return nil, InvalidInputError{FieldName: apiTokenFieldNameConstant, Message: requiredValueMessageConstant}
	}

	parsedBaseURL, parseError := url.Parse(strings.TrimRight(strings.TrimSpace(options.BaseURL), "/"))
	if parseError != nil || len(parsedBaseURL.Host) == 0 || (parsedBaseURL.Scheme != "http" && parsedBaseURL.Scheme != "https") {
		return nil, InvalidInputError{FieldName: baseURLFieldNameConstant, Message: invalidBaseURLMessageConstant}
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeoutConstant}
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	requestIdentifierGenerator := options.RequestIdentifierGenerator
	if requestIdentifierGenerator == nil {
		requestIdentifierGenerator = uuid.NewString
	}

	return &Client{
		baseURL:                    parsedBaseURL,
		apiToken:                   apiToken,
		httpClient:                 httpClient,
		logger:                     logger,
		requestIdentifierGenerator: requestIdentifierGenerator,
	}, nil
}

// UploadFile attaches the file at request.FilePath to the package slot named by request.ReferenceID.
// The file is checked and read before any network I/O.
func (client *Client) UploadFile(executionContext context.Context, request UploadRequest) error {
	if validationError := requireValues(
		fieldValue{packageIDFieldNameConstant, request.PackageID},
		fieldValue{referenceIDFieldNameConstant, request.ReferenceID},
		fieldValue{filePathFieldNameConstant, request.FilePath},
	); validationError != nil {
		return validationError
	}

	fileContents, readError := readUploadSource(request.FilePath)
	if readError != nil {
		return readError
	}

	payload := &bytes.Buffer{}
	multipartWriter := multipart.NewWriter(payload)
	filePart, partError := multipartWriter.CreateFormFile(fileFormFieldConstant, filepath.Base(request.FilePath))
	if partError != nil {
		return fmt.Errorf(payloadEncodingTemplateConstant, OperationUpload, partError)
	}
	if _, writeError := filePart.Write(fileContents); writeError != nil {
		return fmt.Errorf(payloadEncodingTemplateConstant, OperationUpload, writeError)
	}
	if closeError := multipartWriter.Close(); closeError != nil {
		return fmt.Errorf(payloadEncodingTemplateConstant, OperationUpload, closeError)
	}

	queryValues := url.Values{}
	queryValues.Set(packageIDQueryParameterConstant, strings.TrimSpace(request.PackageID))
	queryValues.Set(accessNameQueryParameterConstant, strings.TrimSpace(request.ReferenceID))

	_, sendError := client.send(executionContext, OperationUpload, http.MethodPost, client.endpoint(uploadEndpointConstant, queryValues), payload, multipartWriter.FormDataContentType())
	return sendError
}

// TriggerBuild starts a build of request.Version and returns the identifiers of the created jobs.
func (client *Client) TriggerBuild(executionContext context.Context, request BuildRequest) ([]string, error) {
	if validationError := requireValues(
		fieldValue{packageIDFieldNameConstant, request.PackageID},
		fieldValue{versionFieldNameConstant, request.Version},
	); validationError != nil {
		return nil, validationError
	}

	queryValues := url.Values{}
	queryValues.Set(packageIDQueryParameterConstant, strings.TrimSpace(request.PackageID))
	endpointName := buildAllTargetsEndpointConstant
	if request.Target != nil {
		endpointName = buildSingleTargetEndpointConstant
		queryValues.Set(distroTypeQueryParameterConstant, request.Target.String())
	}

	payload := &bytes.Buffer{}
	multipartWriter := multipart.NewWriter(payload)
	if fieldError := multipartWriter.WriteField(versionFormFieldConstant, strings.TrimSpace(request.Version)); fieldError != nil {
		return nil, fmt.Errorf(payloadEncodingTemplateConstant, OperationBuildRequest, fieldError)
	}
	if closeError := multipartWriter.Close(); closeError != nil {
		return nil, fmt.Errorf(payloadEncodingTemplateConstant, OperationBuildRequest, closeError)
	}

	responseBody, sendError := client.send(executionContext, OperationBuildRequest, http.MethodPost, client.endpoint(endpointName, queryValues), payload, multipartWriter.FormDataContentType())
	if sendError != nil {
		return nil, sendError
	}

	var response buildResponse
	if decodeError := json.Unmarshal(responseBody, &response); decodeError != nil {
		return nil, &ResponseDecodingError{Operation: OperationBuildRequest, Cause: decodeError}
	}

	return response.JobIDs, nil
}

// QueryStatus fetches the status of every job in jobIDs with a single request.
func (client *Client) QueryStatus(executionContext context.Context, jobIDs []string) (BuildStatusResponse, error) {
	if len(jobIDs) == 0 {
		return BuildStatusResponse{}, InvalidInputError{FieldName: jobIDsFieldNameConstant, Message: requiredValueMessageConstant}
	}

	queryValues := url.Values{}
	queryValues.Set(jobIDsQueryParameterConstant, strings.Join(jobIDs, jobIDsSeparatorConstant))

	responseBody, sendError := client.send(executionContext, OperationStatusCheck, http.MethodGet, client.endpoint(statusEndpointConstant, queryValues), nil, "")
	if sendError != nil {
		return BuildStatusResponse{}, sendError
	}

	var response BuildStatusResponse
	if decodeError := json.Unmarshal(responseBody, &response); decodeError != nil {
		return BuildStatusResponse{}, &ResponseDecodingError{Operation: OperationStatusCheck, Cause: decodeError}
	}

	return response, nil
}

func (client *Client) endpoint(endpointName string, queryValues url.Values) *url.URL {
	endpointURL := *client.baseURL
	endpointURL.Path = strings.TrimRight(client.baseURL.Path, "/") + apiPathPrefixConstant + endpointName
	endpointURL.RawPath = ""
	// Commas are legal in a query and the status endpoint expects them unescaped in jobIds.
	endpointURL.RawQuery = strings.ReplaceAll(queryValues.Encode(), encodedJobIDsSeparatorConstant, jobIDsSeparatorConstant)
	return &endpointURL
}

func (client *Client) send(executionContext context.Context, operation OperationName, method string, endpoint *url.URL, payload *bytes.Buffer, contentType string) ([]byte, error) {
	var requestBody io.Reader
	payloadBytes := 0
	if payload != nil {
		requestBody = payload
		payloadBytes = payload.Len()
	}

	request, requestError := http.NewRequestWithContext(executionContext, method, endpoint.String(), requestBody)
	if requestError != nil {
		return nil, fmt.Errorf(requestConstructionTemplateConstant, operation, requestError)
	}

	requestIdentifier := client.requestIdentifierGenerator()
	request.Header.Set(authorizationHeaderConstant, bearerPrefixConstant+client.apiToken)
	request.Header.Set(userAgentHeaderConstant, userAgentValueConstant)
	request.Header.Set(acceptHeaderConstant, jsonMediaTypeConstant)
	request.Header.Set(requestIDHeaderConstant, requestIdentifier)
	if len(contentType) > 0 {
		request.Header.Set(contentTypeHeaderConstant, contentType)
	}

	client.logger.Debug(
		requestSentLogMessageConstant,
		zap.String(logFieldOperationConstant, string(operation)),
		zap.String(logFieldMethodConstant, method),
		zap.String(logFieldPathConstant, endpoint.Path),
		zap.String(logFieldRequestIDConstant, requestIdentifier),
		zap.Int(logFieldPayloadBytesConstant, payloadBytes),
	)

	startedAt := time.Now()
	response, doError := client.httpClient.Do(request)
	if doError != nil {
		return nil, &TransportError{Operation: operation, Cause: doError}
	}
	defer response.Body.Close()

	responseBody, readError := io.ReadAll(response.Body)

	client.logger.Debug(
		responseReceivedLogMessageConstant,
		zap.String(logFieldOperationConstant, string(operation)),
		zap.String(logFieldRequestIDConstant, requestIdentifier),
		zap.Int(logFieldStatusCodeConstant, response.StatusCode),
		zap.Duration(logFieldDurationConstant, time.Since(startedAt)),
	)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, &RemoteError{Operation: operation, StatusCode: response.StatusCode, Body: string(responseBody)}
	}
	if readError != nil {
		return nil, &TransportError{Operation: operation, Cause: readError}
	}

	return responseBody, nil
}

func readUploadSource(filePath string) ([]byte, error) {
	fileInfo, statError := os.Stat(filePath)
	if statError != nil {
		if errors.Is(statError, fs.ErrNotExist) {
			return nil, &FileNotFoundError{Path: filePath}
		}
		return nil, &FileReadError{Path: filePath, Cause: statError}
	}
	if fileInfo.IsDir() {
		return nil, &FileReadError{Path: filePath, Cause: errors.New(directoryPathMessageConstant)}
	}

	fileContents, readError := os.ReadFile(filePath)
	if readError != nil {
		return nil, &FileReadError{Path: filePath, Cause: readError}
	}

	return fileContents, nil
}

type fieldValue struct {
	name  string
	value string
}

func requireValues(fields ...fieldValue) error {
	for _, field := range fields {
		if len(strings.TrimSpace(field.value)) == 0 {
			return InvalidInputError{FieldName: field.name, Message: requiredValueMessageConstant}
		}
	}
	return nil
}
