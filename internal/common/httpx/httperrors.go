package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

// Error is an HTTP error response.
type Error struct {
	Description string `json:"description"`
	StatusCode  int    `json:"http_status_code"`
	Code        string `json:"code,omitempty"`
}

type errorRsp struct {
	Result int    `json:"result"`
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
}

// Failure is the result value of every error body.
const Failure int = 0

func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{
		Result: Failure,
		Error:  e.Description,
		Code:   e.Code,
	})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error. A missing status code becomes 500.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
		Code:        err.Code(),
	}
	httperror.Send(w)
}

func ErrReqMethodNotSupported() *Error {
	return &Error{
		Description: "request method not supported",
		StatusCode:  http.StatusMethodNotAllowed,
	}
}

func ErrUnableToParseReqData() *Error {
	return &Error{
		Description: "unable to parse request data",
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrUnableToReadRequest() *Error {
	return &Error{
		Description: "unable to read request data",
		StatusCode:  http.StatusBadRequest,
	}
}

// ErrApplicationError is a 500 with an optional message.
func ErrApplicationError(err ...string) *Error {
	s := "unable to process request"
	if len(err) > 0 {
		s = err[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusInternalServerError,
	}
}

func ErrUnAuthorized(str ...string) *Error {
	s := "unable to authenticate request"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusUnauthorized,
	}
}

func ErrForbidden(str ...string) *Error {
	s := "request not permitted"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusForbidden,
	}
}

func ErrInvalidRequest(str ...string) *Error {
	s := "invalid request data or empty request values"
	if len(str) > 0 {
		s = str[0]
	}
	return &Error{
		Description: s,
		StatusCode:  http.StatusBadRequest,
	}
}

func ErrInvalidUser() *Error {
	return &Error{
		Description: "invalid user",
		StatusCode:  http.StatusUnauthorized,
	}
}

func ErrRequestTimeout() *Error {
	return &Error{
		Description: "request timed out",
		StatusCode:  http.StatusRequestTimeout,
	}
}

func ErrRequestTooLarge(limit int64) *Error {
	return &Error{
		Description: fmt.Sprintf("request body too large (limit: %d bytes)", limit),
		StatusCode:  http.StatusRequestEntityTooLarge,
	}
}
