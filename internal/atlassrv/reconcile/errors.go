package reconcile

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrReconcile      apperrors.Error = apperrors.New("reconciliation error").SetStatusCode(http.StatusInternalServerError)
	ErrScanFailed     apperrors.Error = ErrReconcile.New("reconciliation failed").SetStatusCode(http.StatusBadGateway).SetExpandError(true)
	ErrScanInProgress apperrors.Error = ErrReconcile.New("a reconciliation run is already in progress").SetStatusCode(http.StatusConflict)
	ErrInvalidEntry   apperrors.Error = ErrReconcile.New("invalid catalog entry").SetStatusCode(http.StatusBadRequest)
)
