// Package db provides a pgxpool-based connection pool with prepared
// statement registration, schema bootstrap, and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/X-404JPG/furtagph/internal/config"
)

// schemaSQL is embedded so the service can self-bootstrap its tables.
//
//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the hot-path read statements.
// Statements issued inside the per-pet scan transaction stay inline in
// internal/postgres because they run on whichever connection holds the
// advisory lock.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Resolution
		"get_pet":   "SELECT id, COALESCE(name, ''), COALESCE(owner_id, ''), COALESCE(photo_url, '') FROM pets WHERE id = $1",
		"get_owner": "SELECT id, COALESCE(full_name, ''), COALESCE(email, '') FROM owners WHERE id = $1",

		// Audit trail reads
		"recent_scans": `
			SELECT id, pet_id, lat, lng, COALESCE(ua, ''), outcome, emailed, created_at
			FROM scan_events
			WHERE pet_id = $1
			ORDER BY created_at DESC
			LIMIT $2`,

		// Retention
		"purge_scans": "DELETE FROM scan_events WHERE created_at < $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
