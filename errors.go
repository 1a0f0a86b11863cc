package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure modes.
// These can be checked with errors.Is().
var (
	// ErrInvalidModel indicates the requested model is not supported by the provider.
	ErrInvalidModel = errors.New("llmprovider: invalid or unsupported model")

	// ErrInvalidRequest indicates the request parameters are invalid.
	ErrInvalidRequest = errors.New("llmprovider: invalid request")

	// ErrRateLimited indicates the provider's rate limit has been exceeded.
	ErrRateLimited = errors.New("llmprovider: rate limit exceeded")

	// ErrAuthenticationFailed indicates missing, expired, or unauthorized credentials.
	ErrAuthenticationFailed = errors.New("llmprovider: authentication failed")

	// ErrContextLengthExceeded indicates the input does not fit the model's context window.
	ErrContextLengthExceeded = errors.New("llmprovider: context length exceeded")

	// ErrExecutionFailed indicates a model-side runtime error.
	ErrExecutionFailed = errors.New("llmprovider: model execution failed")

	// ErrTransportFailed indicates any other failure talking to the provider,
	// including a stream that ended before its message stop.
	ErrTransportFailed = errors.New("llmprovider: transport failed")

	// ErrStreamTruncated is the cause reported when a stream ends without a message stop.
	ErrStreamTruncated = errors.New("stream ended before message stop")
)

// ErrorKind is the closed set of stream failure classes.
type ErrorKind int

// Error kinds
const (
	KindTransportFailed ErrorKind = iota
	KindRateLimited
	KindAuthenticationFailed
	KindContextLengthExceeded
	KindExecutionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindAuthenticationFailed:
		return "authentication_failed"
	case KindContextLengthExceeded:
		return "context_length_exceeded"
	case KindExecutionFailed:
		return "execution_failed"
	default:
		return "transport_failed"
	}
}

// Sentinel returns the sentinel error matching the kind.
func (k ErrorKind) Sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindAuthenticationFailed:
		return ErrAuthenticationFailed
	case KindContextLengthExceeded:
		return ErrContextLengthExceeded
	case KindExecutionFailed:
		return ErrExecutionFailed
	default:
		return ErrTransportFailed
	}
}

// ModelError represents an error related to model validation or availability.
type ModelError struct {
	Model    string // The model that was requested
	Provider string // The provider name
	Reason   string // Human-readable explanation
	Err      error  // Wrapped error (usually ErrInvalidModel)
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model '%s' for provider '%s': %s (%v)", e.Model, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("model '%s' for provider '%s': %s", e.Model, e.Provider, e.Reason)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// ValidationError represents an error in request parameter validation.
type ValidationError struct {
	Field  string // The parameter field that failed validation
	Value  any    // The invalid value
	Reason string // Human-readable explanation
	Err    error  // Wrapped error (usually ErrInvalidRequest)
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed for '%s' (value: %v): %s (%v)", e.Field, e.Value, e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed for '%s' (value: %v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ProviderError is a classified failure from the underlying provider API.
// It matches both the sentinel of its Kind and its cause with errors.Is.
type ProviderError struct {
	Kind       ErrorKind // Failure class
	Provider   string    // The provider name
	StatusCode int       // HTTP status code (if applicable)
	Code       string    // Provider error code (e.g. "ThrottlingException")
	Message    string    // Error message from provider
	Err        error     // Underlying SDK or transport error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "provider '%s' %s", e.Provider, e.Kind)
	if e.StatusCode > 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&sb, " [%s]", e.Code)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.Sentinel()}
	}
	return []error{e.Kind.Sentinel(), e.Err}
}

// FailureCode is a provider-neutral classification of a wire-level failure,
// produced by each provider's error classifier.
type FailureCode string

// Failure codes
const (
	FailureThrottling   FailureCode = "throttling"
	FailureAccessDenied FailureCode = "access_denied"
	FailureValidation   FailureCode = "validation"
	FailureModelStream  FailureCode = "model_stream"
	FailureModel        FailureCode = "model"
	FailureUnknown      FailureCode = "unknown"
)

// Failure describes a wire-level failure before it is mapped to an ErrorKind.
type Failure struct {
	Code       FailureCode
	StatusCode int    // HTTP status, 0 if unknown
	WireCode   string // Provider's own error code, for display
	Message    string // Provider's error text
	Err        error  // Original error
}

// ContextLengthMarkers are lower-case substrings that identify a validation
// failure as a context-length violation. Matching on provider text is a
// heuristic: upstream wording is not a stable contract and this list is not
// exhaustive. Use WithErrorMapper to override the classification.
var ContextLengthMarkers = []string{
	"too long",
	"input is too long",
	"prompt is too long",
	"context length",
	"context window",
	"maximum context",
	"too many tokens",
}

// IsContextLengthMessage reports whether msg matches one of ContextLengthMarkers.
func IsContextLengthMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range ContextLengthMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// MapFailure maps a classified failure to a ProviderError. It is pure.
func MapFailure(provider string, f Failure) *ProviderError {
	kind := KindTransportFailed
	switch f.Code {
	case FailureThrottling:
		kind = KindRateLimited
	case FailureAccessDenied:
		kind = KindAuthenticationFailed
	case FailureValidation:
		if IsContextLengthMessage(f.Message) {
			kind = KindContextLengthExceeded
		}
	case FailureModelStream, FailureModel:
		kind = KindExecutionFailed
	}

	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}

	return &ProviderError{
		Kind:       kind,
		Provider:   provider,
		StatusCode: f.StatusCode,
		Code:       f.WireCode,
		Message:    msg,
		Err:        f.Err,
	}
}

// ErrorMapper converts any error raised by an event source into a ProviderError.
type ErrorMapper func(provider string, err error) *ProviderError

// DefaultErrorMapper passes through errors that are already classified and
// treats everything else as a transport failure.
func DefaultErrorMapper(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe
	}
	return MapFailure(provider, Failure{Code: FailureUnknown, Err: err})
}

// IsRetryable checks if an error is potentially retryable.
// Rate limits and transport failures are retryable, context cancellation is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, ErrRateLimited) {
		return true
	}

	// A rejected request fails the same way again
	if status := statusCodeOf(err); status >= 400 && status < 500 && status != 408 && status != 429 {
		return false
	}

	if errors.Is(err, ErrTransportFailed) {
		return true
	}

	return false
}

func statusCodeOf(err error) int {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode
	}
	return 0
}

// IsInvalidRequest checks if an error indicates invalid request parameters.
// These errors are not retryable and require request changes.
func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrInvalidRequest) {
		return true
	}

	if errors.Is(err, ErrInvalidModel) {
		return true
	}

	if errors.Is(err, ErrContextLengthExceeded) {
		return true
	}

	switch statusCodeOf(err) {
	case 400, 404, 413, 422:
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsAuthError checks if an error is related to authentication.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrAuthenticationFailed) {
		return true
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		// HTTP 401/403 indicate auth issues
		return providerErr.StatusCode == 401 || providerErr.StatusCode == 403
	}

	return false
}

// IsContextLengthExceeded checks if an error reports an oversized input.
func IsContextLengthExceeded(err error) bool {
	return errors.Is(err, ErrContextLengthExceeded)
}

// ErrorKindOf returns the kind of a classified error, and false for other errors.
func ErrorKindOf(err error) (ErrorKind, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind, true
	}
	return KindTransportFailed, false
}
