// Package httpx provides the request/response plumbing shared by the HTTP
// handlers: JSON request decoding, a handler signature that returns a
// response value or an error, and the mapping of application errors to
// JSON error bodies.
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/common/apperrors"
)

// GetRequestData decodes a JSON request body into data. Only POST and PUT
// carry bodies in this API.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil || r.Body == http.NoBody {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrRequestTooLarge(maxErr.Limit)
		}
		return ErrUnableToParseReqData()
	}
	return nil
}

// Response is what a RequestHandler returns on success.
type Response struct {
	StatusCode  int
	Location    string
	Headers     map[string]string
	Response    any
	ContentType string
}

// RequestHandler handles a request and returns either a response or an error.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to http.HandlerFunc. Errors are sent
// as JSON error bodies with the status code carried by the error.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendErr(w, err)
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		for k, v := range rsp.Headers {
			w.Header().Set(k, v)
		}
		if rsp.ContentType == "" {
			rsp.ContentType = "application/json"
		}
		var location []string
		if rsp.Location != "" {
			location = append(location, rsp.Location)
		}
		switch rsp.ContentType {
		case "application/json":
			SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response, location...)
		case "text/plain", "text/markdown":
			w.Header().Set("Content-Type", rsp.ContentType)
			w.WriteHeader(rsp.StatusCode)
			s, _ := rsp.Response.(string)
			w.Write([]byte(s))
		default:
			ErrApplicationError("unsupported response type").Send(w)
		}
	})
}

// SendErr writes any error as a JSON error body. Application errors keep
// their status and code; anything else is a 500.
func SendErr(w http.ResponseWriter, err error) {
	var httperror *Error
	if errors.As(err, &httperror) {
		httperror.Send(w)
		return
	}
	if appErr, ok := err.(apperrors.Error); ok {
		SendError(w, appErr)
		return
	}
	ErrApplicationError(err.Error()).Send(w)
}
