package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/common/logtrace"
)

// SendJsonRsp writes msg as JSON. Strings and byte slices holding valid JSON
// are written as is. Location is set only on 201 responses.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any, location ...string) {
	var body []byte
	switch v := msg.(type) {
	case string:
		if json.Valid([]byte(v)) {
			body = []byte(v)
		}
	case []byte:
		if json.Valid(v) {
			body = v
		}
	}
	if body == nil {
		var err error
		body, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("unable to marshal json")
			ErrApplicationError("request id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if statusCode == http.StatusCreated && len(location) > 0 {
		w.Header().Set("Location", location[0])
	}
	w.WriteHeader(statusCode)
	w.Write(body)
}
