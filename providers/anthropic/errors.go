package anthropic

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/cronus42/goose"
)

// statusOverloaded is Anthropic's non-standard "overloaded" status.
const statusOverloaded = 529

// classifyError converts an SDK error into a provider-neutral Failure.
//
// HTTP failures arrive as *anthropic.Error with the JSON error body
// ({"type":"error","error":{"type":"rate_limit_error","message":"..."}}).
// Error events received mid-stream only carry that body in the error text.
func classifyError(err error) llmprovider.Failure {
	f := llmprovider.Failure{Code: llmprovider.FailureUnknown, Err: err}

	var body string
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		f.StatusCode = apiErr.StatusCode
		body = apiErr.RawJSON()
	} else {
		body = embeddedJSON(err.Error())
	}

	if body != "" {
		f.WireCode = gjson.Get(body, "error.type").String()
		f.Message = gjson.Get(body, "error.message").String()
	}

	switch f.WireCode {
	case "rate_limit_error", "overloaded_error":
		f.Code = llmprovider.FailureThrottling
	case "authentication_error", "permission_error":
		f.Code = llmprovider.FailureAccessDenied
	case "invalid_request_error", "request_too_large", "not_found_error":
		f.Code = llmprovider.FailureValidation
	case "":
		switch f.StatusCode {
		case http.StatusTooManyRequests, statusOverloaded:
			f.Code = llmprovider.FailureThrottling
		case http.StatusUnauthorized, http.StatusForbidden:
			f.Code = llmprovider.FailureAccessDenied
		case http.StatusBadRequest, http.StatusNotFound, http.StatusRequestEntityTooLarge:
			f.Code = llmprovider.FailureValidation
		}
	}
	return f
}

// embeddedJSON returns the JSON object at the end of msg, or "".
func embeddedJSON(msg string) string {
	i := strings.Index(msg, "{")
	if i < 0 {
		return ""
	}
	if raw := msg[i:]; gjson.Valid(raw) {
		return raw
	}
	return ""
}

// MapError is the ErrorMapper for Anthropic streams and calls.
func MapError(provider string, err error) *llmprovider.ProviderError {
	var pe *llmprovider.ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return llmprovider.MapFailure(provider, classifyError(err))
}
