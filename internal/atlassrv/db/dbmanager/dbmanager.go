// Package dbmanager owns the PostgreSQL connection pool used by the
// metadata index.
package dbmanager

import (
	"context"
	"database/sql"
)

// Pool hands out connections with session limits applied.
type Pool interface {
	// Conn returns a connection from the pool. Close it with Release.
	Conn(ctx context.Context) (*sql.Conn, error)
	// Release returns a connection to the pool.
	Release(conn *sql.Conn)
	Ping(ctx context.Context) error
	Stats() (requests, returns uint64)
	Close() error
}
