// Package httpclient provides a small HTTP client for the Atlas REST API.
// It attaches the configured bearer token, builds request URLs from the
// configured server and turns error responses into HTTPError values. The
// package requires a Configurator implementation for the server address and
// credentials.
package httpclient

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Configurator provides the server address and the bearer token.
type Configurator interface {
	GetServerURL() string
	GetToken() string
	GetTokenExpiry() time.Time
}

// HTTPError represents an error response from the server.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Server error message or raw response body
	Code       string // Optional machine-readable code, e.g. "extension"
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

// HTTPClient makes requests to the Atlas server.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	DisableCertValidation bool          // If true, skips TLS certificate validation
	Timeout               time.Duration // Zero means no client-side timeout
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{Timeout: 60 * time.Second}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	return NewClientWithOptions(config, clientOpts)
}

// NewClientWithOptions creates a new HTTP client using the provided configuration and options.
func NewClientWithOptions(config Configurator, opts ClientOptions) *HTTPClient {
	httpClient := &http.Client{Timeout: opts.Timeout}

	if opts.DisableCertValidation {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions contains options for making HTTP requests.
// Method and Path are required.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PUT)
	Path        string            // API endpoint path
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
	ContentType string            // Defaults to application/json
}

// DoRequest makes an HTTP request with the given options.
// Returns the response body, Location header (if present), and any error that occurred.
func (c *HTTPClient) DoRequest(opts RequestOptions) ([]byte, string, error) {
	req, err := newRequest(c.config, opts)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %v", err)
	}

	if resp.StatusCode >= 400 {
		return nil, "", parseError(resp.StatusCode, body)
	}

	return body, resp.Header.Get("Location"), nil
}

// UploadFile posts a single file as a multipart form under the given field name.
func (c *HTTPClient) UploadFile(resourcePath, field, filename string, data []byte) ([]byte, error) {
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

// GetResource retrieves the resource at the given path.
func (c *HTTPClient) GetResource(resourcePath string, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(RequestOptions{
		Method:      http.MethodGet,
		Path:        resourcePath,
		QueryParams: queryParams,
	})
	return body, err
}

// CreateResource posts JSON data to the given path.
// Returns the response body and the Location header.
func (c *HTTPClient) CreateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, string, error) {
	return c.DoRequest(RequestOptions{
		Method:      http.MethodPost,
		Path:        resourcePath,
		QueryParams: queryParams,
		Body:        data,
	})
}

// UpdateResource puts JSON data to the given path.
func (c *HTTPClient) UpdateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, error) {
	body, _, err := c.DoRequest(RequestOptions{
		Method:      http.MethodPut,
		Path:        resourcePath,
		QueryParams: queryParams,
		Body:        data,
	})
	return body, err
}

// MultipartBody encodes one file as a multipart form and returns the body
// and its content type.
func MultipartBody(field, filename string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %v", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func newRequest(config Configurator, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(config.GetServerURL())
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)

	// An expired token is not sent; the server would reject it anyway.
	if token := config.GetToken(); token != "" {
		expiry := config.GetTokenExpiry()
		if expiry.IsZero() || time.Now().Before(expiry) {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

func parseError(status int, body []byte) *HTTPError {
	msg := gjson.GetBytes(body, "error")
	if msg.Exists() && msg.String() != "" {
		return &HTTPError{
			StatusCode: status,
			Message:    msg.String(),
			Code:       gjson.GetBytes(body, "code").String(),
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(status)
	}
	return &HTTPError{
		StatusCode: status,
		Message:    text,
	}
}
