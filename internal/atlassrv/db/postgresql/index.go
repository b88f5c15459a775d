// Package postgresql implements the metadata index on PostgreSQL.
package postgresql

import (
	"context"
	"database/sql"
	_ "embed"

	"github.com/rs/zerolog/log"
	"github.com/tansive/atlas/internal/atlassrv/db/dberror"
	"github.com/tansive/atlas/internal/atlassrv/db/dbmanager"
	"github.com/tansive/atlas/internal/common/apperrors"
)

//go:embed schema.sql
var schema string

// Index acquires one pooled connection per operation.
type Index struct {
	pool dbmanager.Pool
}

func NewIndex(pool dbmanager.Pool) *Index {
	return &Index{pool: pool}
}

// EnsureSchema creates the index tables if they are missing.
func (i *Index) EnsureSchema(ctx context.Context) error {
	return i.withConn(ctx, func(conn *sql.Conn) apperrors.Error {
		if _, err := conn.ExecContext(ctx, schema); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("failed to create schema")
			return dberror.ErrDatabase.Err(err)
		}
		return nil
	})
}

func (i *Index) Ping(ctx context.Context) error {
	return i.pool.Ping(ctx)
}

func (i *Index) Close() {
	if err := i.pool.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close db pool")
	}
}

func (i *Index) withConn(ctx context.Context, fn func(conn *sql.Conn) apperrors.Error) apperrors.Error {
	conn, err := i.pool.Conn(ctx)
	if err != nil {
		return dberror.ErrUnavailable.Err(err)
	}
	defer i.pool.Release(conn)
	return fn(conn)
}

// withTx runs fn in a transaction that is rolled back when fn fails.
func (i *Index) withTx(ctx context.Context, fn func(tx *sql.Tx) apperrors.Error) apperrors.Error {
	return i.withConn(ctx, func(conn *sql.Conn) (err apperrors.Error) {
		tx, errStd := conn.BeginTx(ctx, nil)
		if errStd != nil {
			log.Ctx(ctx).Error().Err(errStd).Msg("failed to begin transaction")
			return dberror.ErrDatabase.Err(errStd)
		}
		defer func() {
			if err != nil {
				if rollbackErr := tx.Rollback(); rollbackErr != nil {
					log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
				}
			}
		}()

		if err = fn(tx); err != nil {
			return err
		}
		if errStd := tx.Commit(); errStd != nil {
			log.Ctx(ctx).Error().Err(errStd).Msg("failed to commit transaction")
			return dberror.ErrDatabase.Err(errStd)
		}
		return nil
	})
}
