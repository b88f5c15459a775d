// Package db defines the metadata index used by the catalog service.
// It is split into three managers:
//   - CatalogManager: catalog entries derived from content plus
//     platform-managed attributes (owner, team, tags, usage)
//   - ConfigurationManager: pointers from users to their configuration documents
//   - TeamManager: teams and team membership
//
// All operations return apperrors.Error with a status code suitable for HTTP
// responses.
package db

import (
	"context"
	"fmt"

	"github.com/tansive/atlas/internal/atlassrv/config"
	"github.com/tansive/atlas/internal/atlassrv/db/dbmanager"
	"github.com/tansive/atlas/internal/atlassrv/db/memory"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/atlassrv/db/postgresql"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

type CatalogManager interface {
	// CreateEntry assigns an ID when none is set and fails with
	// dberror.ErrAlreadyExists if the path is already indexed.
	CreateEntry(ctx context.Context, entry *models.CatalogEntry) apperrors.Error
	GetEntry(ctx context.Context, id uuid.UUID) (*models.CatalogEntry, apperrors.Error)
	GetEntryByPath(ctx context.Context, path string) (*models.CatalogEntry, apperrors.Error)
	// UpdateEntryContent replaces only the content-derived attributes.
	UpdateEntryContent(ctx context.Context, id uuid.UUID, fields models.ContentFields) apperrors.Error
	UpdateEntryTags(ctx context.Context, id uuid.UUID, tags []string) (*models.CatalogEntry, apperrors.Error)
	IncrementUsage(ctx context.Context, id uuid.UUID) (int64, apperrors.Error)
	DeleteEntry(ctx context.Context, id uuid.UUID) apperrors.Error
	ListEntries(ctx context.Context, filter models.EntryFilter) ([]*models.CatalogEntry, apperrors.Error)
}

type ConfigurationManager interface {
	GetUserConfiguration(ctx context.Context, userID uuid.UUID) (*models.UserConfiguration, apperrors.Error)
	UpsertUserConfiguration(ctx context.Context, cfg *models.UserConfiguration) apperrors.Error
}

type TeamManager interface {
	CreateTeam(ctx context.Context, team *models.Team) apperrors.Error
	GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, apperrors.Error)
	// ListTeams returns every team ordered by name.
	ListTeams(ctx context.Context) ([]models.Team, apperrors.Error)
	AddTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error
	// RemoveTeamMember fails with dberror.ErrNotFound when the team does not
	// exist or userID is not a member.
	RemoveTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error
	ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, apperrors.Error)
	ListTeamsForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, apperrors.Error)
}

// Index combines the managers with lifecycle operations.
type Index interface {
	CatalogManager
	ConfigurationManager
	TeamManager

	Ping(ctx context.Context) error
	Close()
}

// NewIndex creates the index selected by cfg.DB.Kind. The PostgreSQL index
// creates its tables if they do not exist.
func NewIndex(ctx context.Context, cfg *config.ConfigParam) (Index, error) {
	switch cfg.DB.Kind {
	case config.IndexKindMemory:
		return memory.NewIndex(), nil
	case config.IndexKindPostgres, "":
		pool, err := dbmanager.NewPostgresPool(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		idx := postgresql.NewIndex(pool)
		if err := idx.EnsureSchema(ctx); err != nil {
			idx.Close()
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown index kind: %s", cfg.DB.Kind)
}

var (
	_ Index = (*postgresql.Index)(nil)
	_ Index = (*memory.Index)(nil)
)
