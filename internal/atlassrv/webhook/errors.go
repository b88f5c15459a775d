package webhook

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrWebhook               apperrors.Error = apperrors.New("webhook error").SetStatusCode(http.StatusInternalServerError)
	ErrSignatureVerification apperrors.Error = ErrWebhook.New("signature verification failed").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidPayload        apperrors.Error = ErrWebhook.New("invalid webhook payload").SetStatusCode(http.StatusBadRequest)
	ErrQueueFull             apperrors.Error = ErrWebhook.New("webhook queue is full").SetStatusCode(http.StatusTooManyRequests)
	ErrWorkerStopped         apperrors.Error = ErrWebhook.New("webhook worker is stopped").SetStatusCode(http.StatusServiceUnavailable)
)
