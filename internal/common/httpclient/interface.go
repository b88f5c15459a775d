package httpclient

// HTTPClientInterface defines the interface for HTTP client implementations.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options.
	// Returns the response body, Location header (if present), and any error that occurred.
	DoRequest(opts RequestOptions) ([]byte, string, error)

	// GetResource retrieves the resource at resourcePath.
	GetResource(resourcePath string, queryParams map[string]string) ([]byte, error)

	// CreateResource posts JSON data to resourcePath and returns the body and Location header.
	CreateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, string, error)

	// UpdateResource puts JSON data to resourcePath.
	UpdateResource(resourcePath string, data []byte, queryParams map[string]string) ([]byte, error)

	// UploadFile posts a single file as multipart form data.
	UploadFile(resourcePath, field, filename string, data []byte) ([]byte, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
