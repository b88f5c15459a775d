package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg           string
	base          error
	wrappedErrors []error
	statuscode    int
	code          string
	expandError   bool
	prefix        string
	suffix        string
}

// New creates a root error. Sentinels are usually built from it.
func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

func (e *appError) Error() string {
	msg := e.msg
	if e.prefix != "" {
		msg = e.prefix + ": " + msg
	}
	if e.suffix != "" {
		msg = msg + ": " + e.suffix
	}
	return msg
}

// ErrorAll appends wrapped error messages when expansion is enabled.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		// the template itself is always the first wrapped error of Msg/Err
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

// derive builds a child error that inherits status code, code and expansion.
func (e *appError) derive(msg string, wrapped []error) *appError {
	return &appError{
		msg:           msg,
		base:          e,
		wrappedErrors: wrapped,
		statuscode:    e.statuscode,
		code:          e.code,
		expandError:   e.expandError,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.wrappedErrors...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) Prefix(p string) Error {
	cp := *e
	cp.prefix = p
	return &cp
}

func (e *appError) Suffix(s string) Error {
	cp := *e
	cp.suffix = s
	return &cp
}

func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetCode(code string) Error {
	cp := *e
	cp.code = code
	return &cp
}

func (e *appError) Code() string {
	return e.code
}

// Is matches the base chain and every attached error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
