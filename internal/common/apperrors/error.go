// Package apperrors provides chainable application errors that carry an HTTP
// status code and an optional machine-readable code. Errors derived from a
// sentinel with New, Msg, MsgErr or Err stay matchable with errors.Is against
// every ancestor and every attached error.
package apperrors

// Error is the error type returned across service boundaries. All methods
// that modify an error return a copy so sentinels can be shared safely.
type Error interface {
	error
	Unwrap() error

	New(msg string) Error                  // fresh error using the current one as template
	Msg(msg string) Error                  // new message, wraps the current error
	MsgErr(msg string, err ...error) Error // new message, wraps the current error and errs
	Err(err ...error) Error                // same message, attaches errs
	SetExpandError(bool) Error             // ErrorAll includes wrapped errors when set
	SetStatusCode(int) Error
	StatusCode() int
	SetCode(string) Error // machine-readable code surfaced to API callers
	Code() string
	Prefix(string) Error
	Suffix(string) Error
	ErrorAll() string
	UnwrapAll() []error
}
