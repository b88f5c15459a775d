package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/atlas/internal/common/apperrors"
)

func TestWrapHttpRspErrors(t *testing.T) {
	ErrValidation := apperrors.New("validation failed").SetStatusCode(http.StatusBadRequest)
	ErrSize := ErrValidation.New("file too large").SetCode("size")

	tests := []struct {
		name     string
		err      error
		status   int
		expected string
	}{
		{
			name:     "app error with code",
			err:      ErrSize,
			status:   http.StatusBadRequest,
			expected: `{"result":0,"error":"file too large","code":"size"}`,
		},
		{
			name:     "http error",
			err:      ErrUnAuthorized("invalid signature"),
			status:   http.StatusUnauthorized,
			expected: `{"result":0,"error":"invalid signature"}`,
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			status:   http.StatusInternalServerError,
			expected: `{"result":0,"error":"` + assert.AnError.Error() + `"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := WrapHttpRsp(func(r *http.Request) (*Response, error) {
				return nil, tt.err
			})
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, tt.status, rr.Code)
			assert.JSONEq(t, tt.expected, rr.Body.String())
		})
	}
}

func TestWrapHttpRspHeaders(t *testing.T) {
	h := WrapHttpRsp(func(r *http.Request) (*Response, error) {
		return &Response{
			StatusCode: http.StatusCreated,
			Location:   "/catalog/1",
			Headers:    map[string]string{"Retry-After": "5"},
			Response:   map[string]int{"created": 1},
		}, nil
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "/catalog/1", rr.Header().Get("Location"))
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"created":1}`, rr.Body.String())
}

func TestGetRequestData(t *testing.T) {
	var body struct {
		Content string `json:"content"`
	}
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"content":"hello"}`))
	require.NoError(t, GetRequestData(req, &body))
	assert.Equal(t, "hello", body.Content)

	req = httptest.NewRequest(http.MethodGet, "/", strings.NewReader(`{}`))
	assert.Error(t, GetRequestData(req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	err := GetRequestData(req, &body)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, err.(*Error).StatusCode)

	rr := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"content":"`+strings.Repeat("x", 64)+`"}`))
	req.Body = http.MaxBytesReader(rr, req.Body, 16)
	err = GetRequestData(req, &body)
	require.Error(t, err)
	assert.Equal(t, http.StatusRequestEntityTooLarge, err.(*Error).StatusCode)
}
