// Package versioning stores each user's personal configuration document in
// the content store and tracks its latest revision in the index.
package versioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/uuid"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

type Service struct {
	store contentstore.Store
	index db.ConfigurationManager
}

func NewService(store contentstore.Store, index db.ConfigurationManager) *Service {
	return &Service{store: store, index: index}
}

// RollbackResult describes a rollback commit.
type RollbackResult struct {
	Revision     *contentstore.Revision
	RestoredFrom string
	Content      string
}

func (s *Service) record(ctx context.Context, userID uuid.UUID) (*models.UserConfiguration, bool, error) {
	rec, err := s.index.GetUserConfiguration(ctx, userID)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

// Read returns the current document. A user who never saved gets an empty
// document with no revision.
func (s *Service) Read(ctx context.Context, userID uuid.UUID) (*contentstore.Document, error) {
	path := atlascommon.UserConfigPath(userID.String())
	rec, ok, err := s.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &contentstore.Document{Path: path}, nil
	}
	doc, err := s.store.Read(ctx, rec.Path)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			log.Ctx(ctx).Debug().Str("path", rec.Path).Msg("configuration recorded but missing from content store")
			return &contentstore.Document{Path: rec.Path, Revision: contentstore.Revision{ID: rec.LastRevision}}, nil
		}
		return nil, err
	}
	return doc, nil
}

// Save writes content as a new revision. Concurrent saves for the same user
// are last-write-wins.
func (s *Service) Save(ctx context.Context, userID uuid.UUID, content, message string) (*contentstore.Revision, error) {
	if message == "" {
		message = fmt.Sprintf("Update configuration for user %s", userID)
	}
	path := atlascommon.UserConfigPath(userID.String())
	rev, err := s.store.Write(ctx, path, content, message)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("path", path).Msg("failed to write configuration")
		return nil, err
	}
	if err := s.index.UpsertUserConfiguration(ctx, &models.UserConfiguration{
		UserID:       userID,
		Path:         path,
		LastRevision: rev.ID,
	}); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("revision", rev.ID).Msg("configuration written but index update failed")
		return nil, err
	}
	return rev, nil
}

// NormalizeLimit applies the history default and bounds.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	}
	return limit
}

// History lists revisions newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]contentstore.Revision, error) {
	rec, ok, err := s.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []contentstore.Revision{}, nil
	}
	return s.store.History(ctx, rec.Path, NormalizeLimit(limit))
}

// ReadAt returns the document as of revision, which must touch the user's
// configuration path.
func (s *Service) ReadAt(ctx context.Context, userID uuid.UUID, revision string) (*contentstore.Document, error) {
	rec, ok, err := s.record(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConfigurationNotFound
	}
	doc, err := s.store.ReadAt(ctx, rec.Path, revision)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return nil, ErrRevisionNotFound.Msg("revision " + revision + " not found for this configuration")
		}
		return nil, err
	}
	return doc, nil
}

// Rollback commits the content of an earlier revision as a new revision.
// History is never rewritten.
func (s *Service) Rollback(ctx context.Context, userID uuid.UUID, revision string) (*RollbackResult, error) {
	old, err := s.ReadAt(ctx, userID, revision)
	if err != nil {
		return nil, err
	}
	msg := "Rollback to version " + contentstore.ShortRevision(revision)
	rev, err := s.Save(ctx, userID, old.Content, msg)
	if err != nil {
		return nil, err
	}
	return &RollbackResult{Revision: rev, RestoredFrom: old.Revision.ID, Content: old.Content}, nil
}
