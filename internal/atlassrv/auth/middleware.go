package auth

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/common/httpx"
)

// UserMiddleware rejects requests without a valid bearer token and stores
// the caller in the request context.
func (a *Authenticator) UserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).Warn().Msg("missing or invalid authorization header")
			httpx.ErrUnAuthorized("missing or invalid authorization header").Send(w)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))

		user, err := a.ValidateToken(ctx, token)
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("token validation failed")
			httpx.ErrUnAuthorized("invalid authorization. login required").Send(w)
			return
		}
		ctx = atlascommon.WithUserContext(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware must run after UserMiddleware.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := atlascommon.GetUserContext(r.Context())
		if user == nil {
			httpx.ErrUnAuthorized("login required").Send(w)
			return
		}
		if !user.Admin {
			log.Ctx(r.Context()).Warn().Str("user_id", user.UserID.String()).Msg("non-admin attempted admin operation")
			httpx.ErrForbidden(ErrAdminRequired.Error()).Send(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
