package auth

import (
	"net/http"

	"github.com/tansive/atlas/internal/common/apperrors"
)

var (
	ErrAuth               apperrors.Error = apperrors.New("auth error").SetStatusCode(http.StatusInternalServerError)
	ErrUnauthorized       apperrors.Error = ErrAuth.New("unauthorized access").SetStatusCode(http.StatusUnauthorized)
	ErrInvalidToken       apperrors.Error = ErrAuth.New("invalid token").SetStatusCode(http.StatusUnauthorized)
	ErrUnableToParseToken apperrors.Error = ErrAuth.New("unable to parse token").SetStatusCode(http.StatusUnauthorized)
	ErrAdminRequired      apperrors.Error = ErrAuth.New("administrator access required").SetStatusCode(http.StatusForbidden)
	ErrTokenGeneration    apperrors.Error = ErrAuth.New("failed to generate token").SetStatusCode(http.StatusInternalServerError)
)
