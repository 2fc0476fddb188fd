package scan

import (
	"context"
	"errors"
	"time"
)

// Store errors. Implementations translate their native not-found conditions
// to these so the resolver and handler can match on them.
var (
	ErrPetNotFound   = errors.New("pet not found")
	ErrOwnerNotFound = errors.New("owner not found")
)

// Store is the persistence boundary for the scan pipeline. Pets and owners
// are read-only; scan events are append-only.
type Store interface {
	// Pet returns the pet with the given ID, or ErrPetNotFound.
	Pet(ctx context.Context, id string) (Pet, error)

	// Owner returns the owner with the given ID, or ErrOwnerNotFound.
	Owner(ctx context.Context, id string) (Owner, error)

	// BeginScan enters the per-pet critical section and evaluates the
	// throttle gate inside it: any scan event newer than now−window,
	// regardless of outcome, denies. The caller must finish the returned
	// ScanTx with exactly one Record or Rollback; the critical section is
	// held until then, so no other request for the same pet can pass the
	// gate in between.
	BeginScan(ctx context.Context, petID string, window time.Duration) (ScanTx, error)

	// RecentScans returns up to limit scan events for a pet, newest first.
	RecentScans(ctx context.Context, petID string, limit int) ([]ScanEvent, error)

	// PurgeScans deletes scan events created before cutoff and returns the
	// number of rows removed.
	PurgeScans(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScanTx is an open per-pet claim produced by Store.BeginScan.
type ScanTx interface {
	// Throttled reports the gate decision taken when the claim was opened.
	Throttled() bool

	// Record appends one immutable scan event and closes the claim.
	Record(ctx context.Context, ev ScanEvent) error

	// Rollback closes the claim without recording. Safe to call after
	// Record; it is then a no-op.
	Rollback(ctx context.Context) error
}
