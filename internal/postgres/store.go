// Package postgres implements the scan.Store against Postgres.
//
// The throttle gate and the scan-event record are fenced by a
// transaction-scoped advisory lock keyed on the pet ID, so concurrent
// requests for the same pet serialize between gate check and record. A
// crash mid-flight rolls the transaction back and releases the lock.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/X-404JPG/furtagph/internal/scan"
)

// Store is the Postgres-backed scan.Store.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a store on top of an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Pet returns the pet with the given ID.
func (s *Store) Pet(ctx context.Context, id string) (scan.Pet, error) {
	var p scan.Pet
	err := s.pool.QueryRow(ctx, "get_pet", id).
		Scan(&p.ID, &p.Name, &p.OwnerID, &p.PhotoURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return scan.Pet{}, scan.ErrPetNotFound
	}
	if err != nil {
		return scan.Pet{}, fmt.Errorf("get pet: %w", err)
	}
	return p, nil
}

// Owner returns the owner with the given ID.
func (s *Store) Owner(ctx context.Context, id string) (scan.Owner, error) {
	var o scan.Owner
	err := s.pool.QueryRow(ctx, "get_owner", id).
		Scan(&o.ID, &o.FullName, &o.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return scan.Owner{}, scan.ErrOwnerNotFound
	}
	if err != nil {
		return scan.Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

// BeginScan opens the per-pet critical section and evaluates the gate.
// The advisory lock is transaction-scoped: it is released by Record's
// commit or by Rollback, never leaked.
func (s *Store) BeginScan(ctx context.Context, petID string, window time.Duration) (scan.ScanTx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", petID); err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("acquire pet lock: %w", err)
	}

	// Any event inside the window denies, regardless of outcome.
	threshold := time.Now().UTC().Add(-window)
	var recent bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM scan_events WHERE pet_id = $1 AND created_at > $2)",
		petID, threshold).Scan(&recent)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("evaluate throttle gate: %w", err)
	}

	return &scanTx{tx: tx, throttled: recent}, nil
}

// RecentScans returns up to limit scan events for a pet, newest first.
func (s *Store) RecentScans(ctx context.Context, petID string, limit int) ([]scan.ScanEvent, error) {
	rows, err := s.pool.Query(ctx, "recent_scans", petID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	defer rows.Close()

	var events []scan.ScanEvent
	for rows.Next() {
		var ev scan.ScanEvent
		if err := rows.Scan(&ev.ID, &ev.PetID, &ev.Lat, &ev.Lng,
			&ev.UA, &ev.Outcome, &ev.Emailed, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// PurgeScans deletes scan events created before cutoff.
func (s *Store) PurgeScans(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "purge_scans", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge scans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanTx is one open per-pet claim.
type scanTx struct {
	tx        pgx.Tx
	throttled bool
	done      bool
}

func (t *scanTx) Throttled() bool { return t.throttled }

// Record appends the scan event and commits, releasing the pet lock.
func (t *scanTx) Record(ctx context.Context, ev scan.ScanEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO scan_events (id, pet_id, lat, lng, ua, outcome, emailed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.ID, ev.PetID, ev.Lat, ev.Lng, nullIfEmpty(ev.UA),
		string(ev.Outcome), ev.Emailed, ev.CreatedAt)
	if err != nil {
		_ = t.tx.Rollback(ctx)
		return fmt.Errorf("insert scan event: %w", err)
	}

	if err := t.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scan event: %w", err)
	}
	t.done = true
	return nil
}

// Rollback releases the claim without recording. No-op after Record.
func (t *scanTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return err
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
