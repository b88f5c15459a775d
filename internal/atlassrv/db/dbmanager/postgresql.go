package dbmanager

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// sessionParams are applied to every connection handed out by the pool.
var sessionParams = map[string]string{
	"lock_timeout":                        "5s",
	"statement_timeout":                   "5s",
	"idle_in_transaction_session_timeout": "5s",
}

type postgresPool struct {
	db           *sql.DB
	connRequests uint64
	connReturns  uint64
	attempts     uint
}

// NewPostgresPool opens a pool for dsn and verifies it with a ping.
func NewPostgresPool(ctx context.Context, dsn string) (Pool, error) {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to open db")
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	p := &postgresPool{db: sqlDB, attempts: 3}
	if err := p.Ping(ctx); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to ping db")
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return p, nil
}

func (p *postgresPool) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Conn acquires a connection, retrying briefly when the pool is exhausted or
// the server is restarting.
func (p *postgresPool) Conn(ctx context.Context) (*sql.Conn, error) {
	var conn *sql.Conn
	err := retry.Do(
		func() error {
			c, err := p.db.Conn(ctx)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(p.attempts),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warn().Err(err).Uint("attempt", n+1).Msg("retrying db connection")
		}),
	)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to obtain connection")
		return nil, fmt.Errorf("failed to obtain database connection: %w", err)
	}

	keys := make([]string, 0, len(sessionParams))
	for k := range sessionParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, param := range keys {
		query := fmt.Sprintf("SET %s = %s", pq.QuoteIdentifier(param), pq.QuoteLiteral(sessionParams[param]))
		if _, err := conn.ExecContext(ctx, query); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set %s: %w", param, err)
		}
	}

	atomic.AddUint64(&p.connRequests, 1)
	return conn, nil
}

func (p *postgresPool) Release(conn *sql.Conn) {
	if conn == nil {
		return
	}
	conn.Close()
	atomic.AddUint64(&p.connReturns, 1)
}

func (p *postgresPool) Stats() (requests, returns uint64) {
	return atomic.LoadUint64(&p.connRequests), atomic.LoadUint64(&p.connReturns)
}

func (p *postgresPool) Close() error {
	return p.db.Close()
}
