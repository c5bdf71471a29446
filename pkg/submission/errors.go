package submission

import (
	"errors"
	"net/http"
)

// Code is a machine-readable submission failure class.
type Code string

const (
	// CodeOK is reported to observers for successful submissions.
	CodeOK Code = "OK"
	// CodeUnknown is used for failures that were not classified.
	CodeUnknown Code = "UNKNOWN"
	// CodeMalformedInput means the payload could not be parsed or its top
	// level is not an object.
	CodeMalformedInput Code = "MALFORMED_INPUT"
	// CodeStoreUnavailable means the store could not be reached (missing
	// credentials, network, throttling).
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	// CodeStoreRejected means the store answered and refused the row.
	CodeStoreRejected Code = "STORE_REJECTED"
)

// HTTPStatus maps the code onto the status used by the submission endpoint.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeOK:
		return http.StatusOK
	case CodeMalformedInput:
		return http.StatusBadRequest
	case CodeStoreRejected:
		return http.StatusBadGateway
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// CodeForStatus is the inverse of HTTPStatus for non-2xx responses.
func CodeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return CodeMalformedInput
	case http.StatusBadGateway:
		return CodeStoreRejected
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusTooManyRequests:
		return CodeStoreUnavailable
	default:
		return CodeUnknown
	}
}

// Error is the submission failure type. Two errors match under errors.Is
// when their codes are equal, so the sentinels below can be used as targets.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return "submission: " + e.Message + ": " + e.Cause.Error()
	}
	return "submission: " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Detail returns the technical detail shown to callers. It carries the
// message and the cause text but never configuration values.
func (e *Error) Detail() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// ErrNoAnswers is the cause attached when a well-formed answers object
// flattens to zero cells. It is reported under CodeMalformedInput.
var ErrNoAnswers = errors.New("answers object has no fields to submit")

var (
	ErrMalformedInput   = &Error{Code: CodeMalformedInput, Message: "malformed input"}
	ErrStoreUnavailable = &Error{Code: CodeStoreUnavailable, Message: "store unavailable"}
	ErrStoreRejected    = &Error{Code: CodeStoreRejected, Message: "store rejected row"}
)

// NewError creates a submission error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a submission error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from err, or CodeUnknown.
func CodeOf(err error) Code {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Code
	}
	return CodeUnknown
}
