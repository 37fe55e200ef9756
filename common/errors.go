package common

import "fmt"

// Workflow error codes; every failure surfaced by a scholarship workflow
// operation carries exactly one of these
const (
	ErrCodeNotConnected       = "not_connected"
	ErrCodeNotAuthorized      = "not_authorized"
	ErrCodeValidationFailed   = "validation_failed"
	ErrCodeInvalidState       = "invalid_state"
	ErrCodeAlreadyDone        = "already_done"
	ErrCodeNotFound           = "not_found"
	ErrCodeWalletUnavailable  = "wallet_unavailable"
	ErrCodePaymentRejected    = "payment_rejected"
	ErrCodePaymentFailed      = "payment_failed"
	ErrCodeBackendUnavailable = "backend_unavailable"
)

var errStatuses = map[string]int{
	ErrCodeNotConnected:       401,
	ErrCodeNotAuthorized:      403,
	ErrCodeValidationFailed:   422,
	ErrCodeInvalidState:       409,
	ErrCodeAlreadyDone:        200,
	ErrCodeNotFound:           404,
	ErrCodeWalletUnavailable:  502,
	ErrCodePaymentRejected:    402,
	ErrCodePaymentFailed:      502,
	ErrCodeBackendUnavailable: 503,
}

// Error is a coded workflow error; the code maps onto an HTTP status and the
// message is safe to surface to the caller verbatim
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s; %s", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status resolves the HTTP status associated with the error code
func (e *Error) Status() int {
	if status, statusOk := errStatuses[e.Code]; statusOk {
		return status
	}
	return 500
}

// NewError returns a coded error with the given user-facing message
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError returns a coded error wrapping an underlying collaborator failure
func WrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the workflow code from an error, or an empty string when
// the error is not a coded workflow error
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if coded, codedOk := err.(*Error); codedOk {
		return coded.Code
	}
	return ""
}

// IsErrorCode reports whether the given error carries the given workflow code
func IsErrorCode(err error, code string) bool {
	return ErrorCode(err) == code
}
