package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

func (i *Index) GetUserConfiguration(ctx context.Context, userID uuid.UUID) (*models.UserConfiguration, apperrors.Error) {
	var uc models.UserConfiguration
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `
			SELECT id, user_id, path, last_revision, created_at, updated_at
			FROM user_configurations WHERE user_id = $1`
		err := conn.QueryRowContext(ctx, query, userID).Scan(
			&uc.ID, &uc.UserID, &uc.Path, &uc.LastRevision, &uc.CreatedAt, &uc.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("user configuration not found")
			}
			log.Ctx(ctx).Error().Err(err).Str("user_id", userID.String()).Msg("failed to get user configuration")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &uc, nil
}

// UpsertUserConfiguration records the latest revision for the user. The
// stored ID and creation time win over the ones passed in.
func (i *Index) UpsertUserConfiguration(ctx context.Context, uc *models.UserConfiguration) apperrors.Error {
	if uc.UserID == uuid.Nil || uc.Path == "" {
		return dberror.ErrInvalidInput.Msg("user id and path are required")
	}
	if uc.ID == uuid.Nil {
		uc.ID = uuid.New()
	}
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `
			INSERT INTO user_configurations (id, user_id, path, last_revision)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE
			SET path = EXCLUDED.path, last_revision = EXCLUDED.last_revision, updated_at = NOW()
			RETURNING id, created_at, updated_at`
		err := conn.QueryRowContext(ctx, query, uc.ID, uc.UserID, uc.Path, uc.LastRevision).
			Scan(&uc.ID, &uc.CreatedAt, &uc.UpdatedAt)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("user_id", uc.UserID.String()).Msg("failed to upsert user configuration")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}
