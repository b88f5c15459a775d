package versioning

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrVersioning            apperrors.Error = apperrors.New("configuration error").SetStatusCode(http.StatusInternalServerError)
	ErrConfigurationNotFound apperrors.Error = ErrVersioning.New("configuration not found").SetStatusCode(http.StatusNotFound)
	ErrRevisionNotFound      apperrors.Error = ErrVersioning.New("revision not found").SetStatusCode(http.StatusNotFound)

	ErrImportValidation apperrors.Error = ErrVersioning.New("invalid import").SetStatusCode(http.StatusBadRequest)
	ErrInvalidExtension apperrors.Error = ErrImportValidation.New("unsupported file extension").SetCode(CheckExtension)
	ErrFileTooLarge     apperrors.Error = ErrImportValidation.New("file exceeds the 1 MiB limit").SetCode(CheckSize)
	ErrInvalidEncoding  apperrors.Error = ErrImportValidation.New("file is not UTF-8 text").SetCode(CheckEncoding)
)
