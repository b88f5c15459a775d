package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgtype"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/models"
	"github.com/tansive/atlas/internal/common/apperrors"
	"github.com/tansive/atlas/internal/common/uuid"
)

const entryColumns = `id, type, name, description, path, owner_id, team_id, tags,
	usage_count, content_revision, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.CatalogEntry, error) {
	var (
		e      models.CatalogEntry
		teamID pgtype.UUID
		tags   pgtype.TextArray
	)
	err := row.Scan(&e.ID, &e.Type, &e.Name, &e.Description, &e.Path, &e.OwnerID, &teamID, &tags,
		&e.UsageCount, &e.ContentRevision, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if teamID.Status == pgtype.Present {
		id := uuid.UUID(teamID.Bytes)
		e.TeamID = &id
	}
	e.Tags = []string{}
	if tags.Status == pgtype.Present {
		if err := tags.AssignTo(&e.Tags); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func nullableUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{Status: pgtype.Null}
	}
	return pgtype.UUID{Bytes: [16]byte(*id), Status: pgtype.Present}
}

func textArray(values []string) (pgtype.TextArray, error) {
	var ta pgtype.TextArray
	if values == nil {
		values = []string{}
	}
	err := ta.Set(values)
	return ta, err
}

func (i *Index) CreateEntry(ctx context.Context, e *models.CatalogEntry) apperrors.Error {
	if e.Path == "" || !e.Type.Valid() {
		return dberror.ErrInvalidInput.Msg("entry path and type are required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Tags = models.NormalizeTags(e.Tags)
	tags, err := textArray(e.Tags)
	if err != nil {
		return dberror.ErrInvalidInput.Err(err)
	}

	return i.withTx(ctx, func(tx *sql.Tx) apperrors.Error {
		query := `
			INSERT INTO catalog_entries (id, type, name, description, path, owner_id, team_id, tags, content_revision)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING usage_count, created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			e.ID, e.Type, e.Name, e.Description, e.Path, e.OwnerID,
			nullableUUID(e.TeamID), tags, e.ContentRevision,
		).Scan(&e.UsageCount, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return dberror.ErrAlreadyExists.Msg("catalog entry already exists for path " + e.Path)
			}
			log.Ctx(ctx).Error().Err(err).Str("path", e.Path).Msg("failed to insert catalog entry")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (i *Index) getEntry(ctx context.Context, where string, arg any) (*models.CatalogEntry, apperrors.Error) {
	var entry *models.CatalogEntry
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `SELECT ` + entryColumns + ` FROM catalog_entries WHERE ` + where
		e, err := scanEntry(conn.QueryRowContext(ctx, query, arg))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("catalog entry not found")
			}
			log.Ctx(ctx).Error().Err(err).Msg("failed to get catalog entry")
			return dberror.ErrDatabase.Err(err)
		}
		entry = e
		return nil
	})
	return entry, err
}

func (i *Index) GetEntry(ctx context.Context, id uuid.UUID) (*models.CatalogEntry, apperrors.Error) {
	return i.getEntry(ctx, "id = $1", id)
}

func (i *Index) GetEntryByPath(ctx context.Context, path string) (*models.CatalogEntry, apperrors.Error) {
	return i.getEntry(ctx, "path = $1", path)
}

func (i *Index) UpdateEntryContent(ctx context.Context, id uuid.UUID, f models.ContentFields) apperrors.Error {
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `
			UPDATE catalog_entries
			SET name = $2, description = $3, content_revision = $4, updated_at = $5
			WHERE id = $1`
		res, err := conn.ExecContext(ctx, query, id, f.Name, f.Description, f.ContentRevision, time.Now().UTC())
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("id", id.String()).Msg("failed to update catalog entry")
			return dberror.ErrDatabase.Err(err)
		}
		return requireRow(res, "catalog entry not found")
	})
}

func (i *Index) UpdateEntryTags(ctx context.Context, id uuid.UUID, tags []string) (*models.CatalogEntry, apperrors.Error) {
	ta, err := textArray(models.NormalizeTags(tags))
	if err != nil {
		return nil, dberror.ErrInvalidInput.Err(err)
	}
	var entry *models.CatalogEntry
	appErr := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `
			UPDATE catalog_entries SET tags = $2, updated_at = $3
			WHERE id = $1
			RETURNING ` + entryColumns
		e, err := scanEntry(conn.QueryRowContext(ctx, query, id, ta, time.Now().UTC()))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("catalog entry not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		entry = e
		return nil
	})
	return entry, appErr
}

func (i *Index) IncrementUsage(ctx context.Context, id uuid.UUID) (int64, apperrors.Error) {
	var count int64
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		query := `UPDATE catalog_entries SET usage_count = usage_count + 1 WHERE id = $1 RETURNING usage_count`
		if err := conn.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return dberror.ErrNotFound.Msg("catalog entry not found")
			}
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	return count, err
}

func (i *Index) DeleteEntry(ctx context.Context, id uuid.UUID) apperrors.Error {
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		res, err := conn.ExecContext(ctx, `DELETE FROM catalog_entries WHERE id = $1`, id)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("id", id.String()).Msg("failed to delete catalog entry")
			return dberror.ErrDatabase.Err(err)
		}
		return requireRow(res, "catalog entry not found")
	})
}

func (i *Index) ListEntries(ctx context.Context, f models.EntryFilter) ([]*models.CatalogEntry, apperrors.Error) {
	query, args := buildListQuery(f)
	var entries []*models.CatalogEntry
	err := i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to list catalog entries")
			return dberror.ErrDatabase.Err(err)
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return dberror.ErrDatabase.Err(err)
			}
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
	return entries, err
}

// buildListQuery renders the filter as a parameterized query.
func buildListQuery(f models.EntryFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Type != "" {
		conds = append(conds, "type = "+arg(string(f.Type)))
	}
	if f.OwnerID != uuid.Nil {
		conds = append(conds, "owner_id = "+arg(f.OwnerID))
	}
	if f.TeamID != uuid.Nil {
		conds = append(conds, "team_id = "+arg(f.TeamID))
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		conds = append(conds, arg(tag)+" = ANY(tags)")
	}
	if f.Search != "" {
		p := arg("%" + escapeLike(f.Search) + "%")
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if len(f.PathPrefixes) > 0 {
		patterns := make([]string, len(f.PathPrefixes))
		for n, p := range f.PathPrefixes {
			patterns[n] = escapeLike(p) + "%"
		}
		conds = append(conds, "path LIKE ANY("+arg(pq.Array(patterns))+")")
	}

	query := `SELECT ` + entryColumns + ` FROM catalog_entries`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name, path"
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	return query, args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func requireRow(res sql.Result, msg string) apperrors.Error {
	n, err := res.RowsAffected()
	if err != nil {
		return dberror.ErrDatabase.Err(err)
	}
	if n == 0 {
		return dberror.ErrNotFound.Msg(msg)
	}
	return nil
}
