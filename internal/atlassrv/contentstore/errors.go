package contentstore

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrContentStore        apperrors.Error = apperrors.New("content store error").SetStatusCode(http.StatusInternalServerError)
	ErrNotFound            apperrors.Error = ErrContentStore.New("path not found").SetStatusCode(http.StatusNotFound)
	ErrRevisionNotFound    apperrors.Error = ErrNotFound.New("revision not found")
	ErrInvalidPath         apperrors.Error = ErrContentStore.New("invalid path").SetStatusCode(http.StatusBadRequest)
	ErrUpstreamUnavailable apperrors.Error = ErrContentStore.New("content store unavailable").SetStatusCode(http.StatusServiceUnavailable).SetExpandError(true)
	ErrListingFailed       apperrors.Error = ErrContentStore.New("unable to list repository").SetStatusCode(http.StatusBadGateway).SetExpandError(true)
	ErrWriteRejected       apperrors.Error = ErrContentStore.New("content store rejected the write").SetStatusCode(http.StatusBadGateway).SetExpandError(true)
)
