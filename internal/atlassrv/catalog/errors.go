package catalog

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrCatalog       apperrors.Error = apperrors.New("catalog error").SetStatusCode(http.StatusInternalServerError)
	ErrEntryNotFound apperrors.Error = ErrCatalog.New("catalog entry not found").SetStatusCode(http.StatusNotFound)
	ErrEntryExists   apperrors.Error = ErrCatalog.New("a catalog entry already exists at this path").SetStatusCode(http.StatusConflict)
	ErrInvalidEntry  apperrors.Error = ErrCatalog.New("invalid catalog entry").SetStatusCode(http.StatusBadRequest)
	ErrNotOwner      apperrors.Error = ErrCatalog.New("only the owner or an admin can change this entry").SetStatusCode(http.StatusForbidden)
)
