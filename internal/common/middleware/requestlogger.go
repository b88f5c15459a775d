// Package middleware holds the HTTP middleware mounted on every router:
// request logging with request ids, panic recovery and request timeouts.
package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/common/httpx"
	"github.com/tansive/atlas/internal/common/logtrace"
	"github.com/tansive/atlas/internal/common/uuid"
)

const RequestIDHeader = "X-Atlas-Request-ID"

// RequestLogger assigns a request id, attaches a request-scoped logger to the
// context and logs the start and end of every request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := newRequestId()
		ctx := logtrace.WithRequestId(r.Context(), requestID)
		ctx = log.With().Str("request_id", requestID).Logger().WithContext(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		rw := httpx.NewResponseWriter(w)

		log.Ctx(ctx).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", r.RemoteAddr).
			Str("proto", r.Proto).
			Msg("incoming request")

		defer func() {
			log.Ctx(ctx).Info().
				Int("status", rw.Status()).
				Str("duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds())).
				Msg("request completed")
		}()

		next.ServeHTTP(rw, r.WithContext(ctx))
	})
}

func newRequestId() string {
	u, err := uuid.NewRandom()
	if err == nil {
		return u.String()
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}
