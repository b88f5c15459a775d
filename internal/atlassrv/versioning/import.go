package versioning

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/common/uuid"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Codes returned with import validation errors, one per check.
const (
	CheckExtension = "extension"
	CheckSize      = "size"
	CheckEncoding  = "encoding"
)

const (
	MaxImportSize = 1 << 20
	ImportMessage = "Import configuration from local file"
)

var allowedExtensions = []string{".md", ".markdown"}

// ValidateImport checks extension, size and encoding in that order and
// returns the content with any UTF-8 byte order mark removed.
func ValidateImport(raw []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	allowed := false
	for _, a := range allowedExtensions {
		if ext == a {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", ErrInvalidExtension.Msg(fmt.Sprintf("%q is not one of %s", filepath.Base(filename), strings.Join(allowedExtensions, ", ")))
	}

	if len(raw) > MaxImportSize {
		return "", ErrFileTooLarge.Msg(fmt.Sprintf("file is %d bytes; the limit is %d", len(raw), MaxImportSize))
	}

	if kind, _ := filetype.Match(raw); kind != filetype.Unknown {
		return "", ErrInvalidEncoding.Msg("file looks like " + kind.MIME.Value + ", not text")
	}
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", ErrInvalidEncoding
	}
	content, _, err := transform.Bytes(unicode.UTF8BOM.NewDecoder(), raw)
	if err != nil {
		return "", ErrInvalidEncoding.Err(err)
	}
	return string(content), nil
}

// Import validates an uploaded file and saves it as the user's configuration.
func (s *Service) Import(ctx context.Context, userID uuid.UUID, raw []byte, filename string) (*contentstore.Revision, error) {
	content, err := ValidateImport(raw, filename)
	if err != nil {
		return nil, err
	}
	return s.Save(ctx, userID, content, ImportMessage)
}
