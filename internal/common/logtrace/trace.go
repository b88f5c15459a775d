package logtrace

import (
	"context"

	"github.com/rs/zerolog"
)

type requestIdKeyType struct{}

var requestIdKey = requestIdKeyType{}

// WithRequestId stores a request id in ctx.
func WithRequestId(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIdKey, id)
}

// RequestIdFromContext returns "" when ctx carries no request id.
func RequestIdFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	r, _ := ctx.Value(requestIdKey).(string)
	return r
}

// IsTraceEnabled reports whether the global level is trace.
func IsTraceEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.TraceLevel
}
