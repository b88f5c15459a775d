// Package catalog implements the direct catalog operations: saving a new
// entry together with its content, browsing the index and curating tags and
// usage counts. Content-derived fields of existing entries are owned by the
// reconciliation engine.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/atlascommon"
	"github.com/tansive/atlas/internal/atlassrv/contentstore"
	"github.com/tansive/atlas/internal/atlassrv/db"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/frontmatter"
	"github.com/tansive/atlas/internal/atlassrv/schemavalidator"
	"github.com/tansive/atlas/internal/common/uuid"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500
)

// SaveRequest is the body of a direct save. Name and Description fall back to
// the content's front matter, then to the file name.
type SaveRequest struct {
	Path        string     `json:"path" validate:"required,max=1024,trackedPath"`
	Content     string     `json:"content" validate:"required"`
	Name        string     `json:"name,omitempty" validate:"max=255"`
	Description string     `json:"description,omitempty" validate:"max=4096"`
	Tags        []string   `json:"tags,omitempty" validate:"max=32,dive,tag"`
	TeamID      *uuid.UUID `json:"team_id,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Serializer runs fn while no reconciliation run is active.
type Serializer interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store  contentstore.Store
	index  db.CatalogManager
	serial Serializer
}

type Option func(*Service)

// WithSerializer makes saves and deletes wait for running reconciliations.
// Without it a push notification for a fresh save can index the path under
// the system user before the save does.
func WithSerializer(sr Serializer) Option {
	return func(s *Service) { s.serial = sr }
}

func NewService(store contentstore.Store, index db.CatalogManager, opts ...Option) *Service {
	s := &Service{store: store, index: index}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) exclusive(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.serial == nil {
		return fn(ctx)
	}
	return s.serial.Exclusive(ctx, fn)
}

// Save writes the content to the store and creates the index entry owned by
// owner. A path that is already indexed is a conflict.
func (s *Service) Save(ctx context.Context, owner uuid.UUID, req *SaveRequest) (*models.CatalogEntry, error) {
	var entry *models.CatalogEntry
	err := s.exclusive(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.save(ctx, owner, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) save(ctx context.Context, owner uuid.UUID, req *SaveRequest) (*models.CatalogEntry, error) {
	if req == nil {
		return nil, ErrInvalidEntry.Msg("empty request")
	}
	p, err := contentstore.CleanPath(req.Path)
	if err != nil {
		return nil, ErrInvalidEntry.Msg(err.Error())
	}
	req.Path = p
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, ErrInvalidEntry.Msg(schemavalidator.Describe(err))
	}

	if _, err := s.index.GetEntryByPath(ctx, p); err == nil {
		return nil, ErrEntryExists
	} else if !errors.Is(err, dberror.ErrNotFound) {
		return nil, err
	}

	typ, _ := atlascommon.EntryTypeForPath(p)
	name, description := frontmatter.Describe(p, req.Content)
	if n := strings.TrimSpace(req.Name); n != "" {
		name = n
	}
	if d := strings.TrimSpace(req.Description); d != "" {
		description = d
	}
	tags := req.Tags
	if md, ok := frontmatter.Parse(req.Content); ok && len(tags) == 0 {
		tags = md.Tags
	}
	entry := &models.CatalogEntry{
		ID:          uuid.UUID7(),
		Type:        typ,
		Name:        name,
		Description: description,
		Path:        p,
		OwnerID:     owner,
		TeamID:      req.TeamID,
		Tags:        models.NormalizeTags(tags),
	}
	if err := schemavalidator.V().Struct(entry); err != nil {
		return nil, ErrInvalidEntry.Msg(schemavalidator.Describe(err))
	}

	message := req.Message
	if message == "" {
		message = fmt.Sprintf("Add %s %s", strings.ToLower(string(typ)), name)
	}
	rev, err := s.store.Write(ctx, p, req.Content, message)
	if err != nil {
		return nil, err
	}
	entry.ContentRevision = rev.ID

	if err := s.index.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, dberror.ErrAlreadyExists) {
			return nil, ErrEntryExists
		}
		return nil, err
	}
	log.Ctx(ctx).Info().
		Str("path", p).
		Str("type", string(typ)).
		Str("revision", rev.ShortID()).
		Msg("catalog entry saved")
	return entry, nil
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CatalogEntry, error) {
	e, err := s.index.GetEntry(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// Content returns the current content of an entry.
func (s *Service) Content(ctx context.Context, id uuid.UUID) (*contentstore.Document, error) {
	e, getErr := s.index.GetEntry(ctx, id)
	if getErr != nil {
		return nil, notFound(getErr)
	}
	doc, err := s.store.Read(ctx, e.Path)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			return nil, ErrEntryNotFound.Msg("no content at " + e.Path)
		}
		return nil, err
	}
	return doc, nil
}

// Delete removes the content of an entry from the store and drops the entry.
// Only the owner or an admin may delete.
func (s *Service) Delete(ctx context.Context, actor uuid.UUID, admin bool, id uuid.UUID) error {
	return s.exclusive(ctx, func(ctx context.Context) error {
		e, getErr := s.index.GetEntry(ctx, id)
		if getErr != nil {
			return notFound(getErr)
		}
		if e.OwnerID != actor && !admin {
			return ErrNotOwner
		}
		message := fmt.Sprintf("Remove %s %s", strings.ToLower(string(e.Type)), e.Name)
		rev, err := s.store.Delete(ctx, e.Path, message)
		if err != nil && !errors.Is(err, contentstore.ErrNotFound) {
			return err
		}
		if err := s.index.DeleteEntry(ctx, id); err != nil && !errors.Is(err, dberror.ErrNotFound) {
			return err
		}
		ev := log.Ctx(ctx).Info().Str("path", e.Path)
		if rev != nil {
			ev = ev.Str("revision", rev.ShortID())
		}
		ev.Msg("catalog entry deleted")
		return nil
	})
}

// NormalizeListLimit bounds a requested page size.
func NormalizeListLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// List returns the entries matching f.
func (s *Service) List(ctx context.Context, f models.EntryFilter) ([]*models.CatalogEntry, error) {
	f.Limit = NormalizeListLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Tag = strings.ToLower(strings.TrimSpace(f.Tag))
	entries, err := s.index.ListEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*models.CatalogEntry{}
	}
	return entries, nil
}

// UpdateTags replaces the curated tags of an entry.
func (s *Service) UpdateTags(ctx context.Context, id uuid.UUID, tags []string) (*models.CatalogEntry, error) {
	req := struct {
		Tags []string `validate:"max=32,dive,tag"`
	}{Tags: tags}
	if err := schemavalidator.V().Struct(req); err != nil {
		return nil, ErrInvalidEntry.Msg(schemavalidator.Describe(err))
	}
	e, err := s.index.UpdateEntryTags(ctx, id, models.NormalizeTags(tags))
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// RecordUsage increments the usage counter and returns the new value.
func (s *Service) RecordUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.index.IncrementUsage(ctx, id)
	if err != nil {
		return 0, notFound(err)
	}
	return n, nil
}

func notFound(err error) error {
	if errors.Is(err, dberror.ErrNotFound) {
		return ErrEntryNotFound
	}
	return err
}
