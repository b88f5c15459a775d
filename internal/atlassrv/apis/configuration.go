package apis

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/schemavalidator"
	"github.com/tansive/atlas/internal/atlassrv/versioning"
	"github.com/tansive/atlas/internal/common/httpx"
)

// importFormField is the multipart field carrying an imported file.
const importFormField = "file"

type configurationRsp struct {
	Content   string     `json:"content"`
	CommitSha string     `json:"commit_sha"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type configurationUpdateReq struct {
	Content string `json:"content" validate:"max=1048576"`
	Message string `json:"message,omitempty" validate:"max=1024"`
}

type versionHistoryRsp struct {
	Versions []contentstore.Revision `json:"versions"`
	Total    int                     `json:"total"`
}

type versionContentRsp struct {
	contentstore.Revision
	Content string `json:"content"`
}

type rollbackRsp struct {
	CommitSha    string `json:"commit_sha"`
	RestoredFrom string `json:"restored_from"`
	Content      string `json:"content"`
}

func (s *Services) getMyConfiguration(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	doc, err := s.Versioning.Read(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	rsp := &configurationRsp{
		Content:   doc.Content,
		CommitSha: doc.Revision.ID,
	}
	if !doc.Revision.Timestamp.IsZero() {
		ts := doc.Revision.Timestamp
		rsp.UpdatedAt = &ts
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

func (s *Services) putMyConfiguration(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	req := &configurationUpdateReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, httpx.ErrInvalidRequest(schemavalidator.Describe(err))
	}
	rev, err := s.Versioning.Save(r.Context(), userID, req.Content, req.Message)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("revision", rev.ShortID()).Msg("configuration saved")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rev,
	}, nil
}

func (s *Services) getMyConfigurationHistory(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return nil, httpx.ErrInvalidRequest("limit must be an integer")
		}
		limit = n
	}
	versions, err := s.Versioning.History(r.Context(), userID, limit)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &versionHistoryRsp{
			Versions: versions,
			Total:    len(versions),
		},
	}, nil
}

func (s *Services) getMyConfigurationVersion(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	sha := chi.URLParam(r, "commitSha")
	if sha == "" {
		return nil, httpx.ErrInvalidRequest("commit sha is required")
	}
	doc, err := s.Versioning.ReadAt(r.Context(), userID, sha)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &versionContentRsp{
			Revision: doc.Revision,
			Content:  doc.Content,
		},
	}, nil
}

func (s *Services) rollbackMyConfiguration(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	sha := chi.URLParam(r, "commitSha")
	if sha == "" {
		return nil, httpx.ErrInvalidRequest("commit sha is required")
	}
	res, err := s.Versioning.Rollback(r.Context(), userID, sha)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().
		Str("revision", res.Revision.ShortID()).
		Str("restored_from", contentstore.ShortRevision(res.RestoredFrom)).
		Msg("configuration rolled back")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &rollbackRsp{
			CommitSha:    res.Revision.ID,
			RestoredFrom: res.RestoredFrom,
			Content:      res.Content,
		},
	}, nil
}

func (s *Services) importMyConfiguration(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	if err := r.ParseMultipartForm(2 * versioning.MaxImportSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, httpx.ErrRequestTooLarge(maxErr.Limit)
		}
		return nil, httpx.ErrInvalidRequest("expected a multipart form with a " + importFormField + " field")
	}
	file, header, err := r.FormFile(importFormField)
	if err != nil {
		return nil, httpx.ErrInvalidRequest("missing " + importFormField + " field")
	}
	defer file.Close()

	// One byte past the limit is enough for the size check to reject.
	raw, err := io.ReadAll(io.LimitReader(file, versioning.MaxImportSize+1))
	if err != nil {
		return nil, httpx.ErrUnableToReadRequest()
	}
	rev, err := s.Versioning.Import(r.Context(), userID, raw, header.Filename)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("file", header.Filename).Str("revision", rev.ShortID()).Msg("configuration imported")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rev,
	}, nil
}

func (s *Services) getEffectiveConfiguration(r *http.Request) (*httpx.Response, error) {
	userID, err := requireUser(r)
	if err != nil {
		return nil, err
	}
	ec, err := s.Resolver.GetEffective(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   ec,
	}, nil
}
