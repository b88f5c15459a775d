package httpclient

import (
	"fmt"
	"net/http"
	"net/http/httptest"
)

// TestHTTPClient sends requests straight to an http.Handler.
// It uses httptest.NewRecorder to capture responses without making network calls.
type TestHTTPClient struct {
	config  Configurator
	handler http.Handler
}

// NewTestClient creates a test client that serves every request with handler.
func NewTestClient(config Configurator, handler http.Handler) (*TestHTTPClient, error) {
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return &TestHTTPClient{
		config:  config,
		handler: handler,
	}, nil
}

// DoRequest makes an HTTP request with the given options directly to the handler.
// Returns the response body, Location header (if present), and any error that occurred.
func (c *TestHTTPClient) DoRequest(opts RequestOptions) ([]byte, string, error) {
	req, err := newRequest(c.config, opts)
	if err != nil {
		return nil, "", err
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)

	body := rr.Body.Bytes()
	if rr.Code >= 400 {
		return nil, "", parseError(rr.Code, body)
	}
	return body, rr.Header().Get("Location"), nil
}

func (c *TestHTTPClient) GetResource(resourcePath string, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(RequestOptions{
		Method:      http.MethodGet,
		Path:        resourcePath,
		QueryParams: queryParams,
	})
	return body, err
}

func (c *TestHTTPClient) CreateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, string, error) {
	return c.DoRequest(RequestOptions{
		Method:      http.MethodPost,
		Path:        resourcePath,
		QueryParams: queryParams,
		Body:        data,
	})
}

func (c *TestHTTPClient) UpdateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(RequestOptions{
		Method:      http.MethodPut,
		Path:        resourcePath,
		QueryParams: queryParams,
		Body:        data,
	})
	return body, err
}

func (c *TestHTTPClient) UploadFile(resourcePath, field, filename string, data []byte) ([]byte, error) {
	body, contentType, err := MultipartBody(field, filename, data)
	if err != nil {
		return nil, err
	}
	rsp, _, err := c.DoRequest(RequestOptions{
		Method:      http.MethodPost,
		Path:        resourcePath,
		Body:        body,
		ContentType: contentType,
	})
	return rsp, err
}
