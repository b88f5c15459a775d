package postgresql

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

func (i *Index) CreateTeam(ctx context.Context, t *models.Team) apperrors.Error {
	if t.Name == "" {
		return dberror.ErrInvalidInput.Msg("team name is required")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		err := conn.QueryRowContext(ctx,
			`INSERT INTO teams (id, name) VALUES ($1, $2) RETURNING created_at`, t.ID, t.Name).
			Scan(&t.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return dberror.ErrAlreadyExists.Msg("team already exists")
			}
			log.Ctx(ctx).Error().Err(err).Str("team", t.Name).Msg("failed to create team")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (i *Index) GetTeam(ctx context.Context, id uuid.UUID) (*models.Team, apperrors.Error) {
	var t models.Team
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		err := conn.QueryRowContext(ctx, `SELECT id, name, created_at FROM teams WHERE id = $1`, id).
			Scan(&t.ID, &t.Name, &t.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return dberror.ErrNotFound.Msg("team not found")
		}
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (i *Index) ListTeams(ctx context.Context) ([]models.Team, apperrors.Error) {
	return i.queryTeams(ctx, `SELECT id, name, created_at FROM teams ORDER BY name`)
}

func (i *Index) AddTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error {
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, teamID, userID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
				return dberror.ErrNotFound.Msg("team not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (i *Index) RemoveTeamMember(ctx context.Context, teamID, userID uuid.UUID) apperrors.Error {
	if _, err := i.GetTeam(ctx, teamID); err != nil {
		return err
	}
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		res, err := conn.ExecContext(ctx,
			`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return dberror.ErrNotFound.Msg("user is not a member of the team")
		}
		return nil
	})
}

func (i *Index) ListTeamMembers(ctx context.Context, teamID uuid.UUID) ([]uuid.UUID, apperrors.Error) {
	if _, err := i.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	users := []uuid.UUID{}
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx,
			`SELECT user_id FROM team_members WHERE team_id = $1 ORDER BY user_id::text`, teamID)
		if err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var u uuid.UUID
			if err := rows.Scan(&u); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			users = append(users, u)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	return users, err
}

// ListTeamsForUser returns the user's teams ordered by name.
func (i *Index) ListTeamsForUser(ctx context.Context, userID uuid.UUID) ([]models.Team, apperrors.Error) {
	query := `
		SELECT t.id, t.name, t.created_at
		FROM teams t JOIN team_members m ON m.team_id = t.id
		WHERE m.user_id = $1
		ORDER BY t.name`
	return i.queryTeams(ctx, query, userID)
}

func (i *Index) queryTeams(ctx context.Context, query string, args ...any) ([]models.Team, apperrors.Error) {
	teams := []models.Team{}
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to list teams")
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			var t models.Team
			if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			teams = append(teams, t)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	return teams, err
}
