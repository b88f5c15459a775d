package apis

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/catalog"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/httpx"
)

type catalogListRsp struct {
	Items  []*models.CatalogEntry `json:"items"`
	Count  int                    `json:"count"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

type tagsReq struct {
	Tags []string `json:"tags"`
}

type usageRsp struct {
	ID         string `json:"id"`
	UsageCount int64  `json:"usage_count"`
}

type entryContentRsp struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Content   string    `json:"content"`
	CommitSha string    `json:"commit_sha"`
	UpdatedAt time.Time `json:"updated_at"`
}

type entryDeleteRsp struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (s *Services) listCatalogEntries(r *http.Request) (*httpx.Response, error) {
	q := r.URL.Query()
	f := models.EntryFilter{
		Tag:    q.Get("tag"),
		Search: q.Get("q"),
	}
	if v := q.Get("type"); v != "" {
		t, err := atlascommon.ParseEntryType(v)
		if err != nil {
			return nil, httpx.ErrInvalidRequest(err.Error())
		}
		f.Type = t
	}
	var err error
	if f.OwnerID, err = queryUUID(r, "owner"); err != nil {
		return nil, err
	}
	if f.TeamID, err = queryUUID(r, "team"); err != nil {
		return nil, err
	}
	for key, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return nil, httpx.ErrInvalidRequest(key + " must be a non-negative integer")
		}
		*dst = n
	}
	f.Limit = catalog.NormalizeListLimit(f.Limit)

	entries, err := s.Catalog.List(r.Context(), f)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &catalogListRsp{
			Items:  entries,
			Count:  len(entries),
			Limit:  f.Limit,
			Offset: f.Offset,
		},
	}, nil
}

func (s *Services) getCatalogEntry(r *http.Request) (*httpx.Response, error) {
	id, err := entryIDParam(r)
	if err != nil {
		return nil, err
	}
	e, err := s.Catalog.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   e,
	}, nil
}

func (s *Services) createCatalogEntry(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	req := &catalog.SaveRequest{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	e, err := s.Catalog.Save(r.Context(), userID, req)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusCreated,
		Location:   "/catalog/" + e.ID.String(),
		Response:   e,
	}, nil
}

func (s *Services) updateCatalogEntryTags(r *http.Request) (*httpx.Response, error) {
	id, err := entryIDParam(r)
	if err != nil {
		return nil, err
	}
	req := &tagsReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	e, err := s.Catalog.UpdateTags(r.Context(), id, req.Tags)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   e,
	}, nil
}

func (s *Services) recordCatalogEntryUsage(r *http.Request) (*httpx.Response, error) {
	id, err := entryIDParam(r)
	if err != nil {
		return nil, err
	}
	n, err := s.Catalog.RecordUsage(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &usageRsp{ID: id.String(), UsageCount: n},
	}, nil
}

func (s *Services) getCatalogEntryContent(r *http.Request) (*httpx.Response, error) {
	id, err := entryIDParam(r)
	if err != nil {
		return nil, err
	}
	doc, err := s.Catalog.Content(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &entryContentRsp{
			ID:        id.String(),
			Path:      doc.Path,
			Content:   doc.Content,
			CommitSha: doc.Revision.ID,
			UpdatedAt: doc.Revision.Timestamp,
		},
	}, nil
}

func (s *Services) deleteCatalogEntry(r *http.Request) (*httpx.Response, error) {
	id, err := entryIDParam(r)
	if err != nil {
		return nil, err
	}
	user := atlascommon.GetUserContext(r.Context())
	if user == nil {
		return nil, httpx.ErrUnAuthorized("login required")
	}
	if err := s.Catalog.Delete(r.Context(), user.UserID, user.Admin, id); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("entry_id", id.String()).Msg("catalog entry deleted")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &entryDeleteRsp{ID: id.String(), Deleted: true},
	}, nil
}
