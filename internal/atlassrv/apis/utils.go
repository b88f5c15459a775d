package apis

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/common/httpx"
	"github.com/tansive/atlas/internal/common/uuid"
)

func requireUser(r *http.Request) (uuid.UUID, error) {
	userID := atlascommon.GetUserID(r.Context())
	if userID == uuid.Nil {
		return uuid.Nil, httpx.ErrUnAuthorized("login required")
	}
	return userID, nil
}

func entryIDParam(r *http.Request) (uuid.UUID, error) {
	return uuidParam(r, "entryID", "catalog entry")
}

func uuidParam(r *http.Request, key, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, key))
	if err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid " + what + " id")
	}
	return id, nil
}

func queryUUID(r *http.Request, key string) (uuid.UUID, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, httpx.ErrInvalidRequest("invalid " + key + " id")
	}
	return id, nil
}
