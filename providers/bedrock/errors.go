package bedrock

import (
	"errors"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"

	"github.com/cronus42/goose"
)

// classifyError converts an SDK error into a provider-neutral Failure.
//
// Bedrock reports service exceptions as smithy.APIError values with a stable
// error code. Exceptions raised mid-stream (ModelStreamErrorException) arrive
// through the event stream's Err and carry the same code.
func classifyError(err error) llmprovider.Failure {
	f := llmprovider.Failure{Code: llmprovider.FailureUnknown, Err: err}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		f.StatusCode = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		switch f.StatusCode {
		case http.StatusTooManyRequests:
			f.Code = llmprovider.FailureThrottling
		case http.StatusUnauthorized, http.StatusForbidden:
			f.Code = llmprovider.FailureAccessDenied
		}
		return f
	}

	f.WireCode = apiErr.ErrorCode()
	f.Message = apiErr.ErrorMessage()

	switch apiErr.ErrorCode() {
	case "ThrottlingException", "TooManyRequestsException":
		f.Code = llmprovider.FailureThrottling
	case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
		f.Code = llmprovider.FailureAccessDenied
	case "ValidationException":
		f.Code = llmprovider.FailureValidation
	case "ModelStreamErrorException":
		f.Code = llmprovider.FailureModelStream
	case "ModelErrorException", "ModelTimeoutException", "ModelNotReadyException":
		f.Code = llmprovider.FailureModel
	}
	return f
}

// MapError is the ErrorMapper for Bedrock streams and calls.
func MapError(provider string, err error) *llmprovider.ProviderError {
	var pe *llmprovider.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return llmprovider.MapFailure(provider, classifyError(err))
}
