package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Orchestration errors.
var (
	// ErrNotConfigured means no delivery transport was configured.
	ErrNotConfigured = errors.New("mail transport not configured")

	// ErrRecordLost means the notification was sent but the scan event
	// could not be recorded, so the audit trail no longer matches reality.
	ErrRecordLost = errors.New("scan event lost after successful send")
)

// Mailer is the delivery transport capability the orchestrator depends on.
// Implementations live in internal/mail.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Service orchestrates one scan request end to end:
// resolve → claim → compose → send → record.
type Service struct {
	store    Store
	resolver *Resolver
	mailer   Mailer
	window   time.Duration
	logger   *slog.Logger
}

// NewService wires the pipeline. window <= 0 falls back to
// DefaultThrottleWindow. mailer may be nil (misconfigured deploy); scans
// then resolve and throttle normally but sending fails with
// ErrNotConfigured.
func NewService(store Store, mailer Mailer, window time.Duration, logger *slog.Logger) *Service {
	if window <= 0 {
		window = DefaultThrottleWindow
	}
	return &Service{
		store:    store,
		resolver: NewResolver(store),
		mailer:   mailer,
		window:   window,
		logger:   logger,
	}
}

// Handle runs the pipeline for one scan request. It returns ResultThrottled
// or ResultSent on success. Resolver failures are returned unwrapped and
// leave no scan event behind; once the claim is open, every exit except a
// configuration error records exactly one event.
func (s *Service) Handle(ctx context.Context, req ScanRequest) (Result, error) {
	pet, owner, err := s.resolver.Resolve(ctx, req.PetID)
	if err != nil {
		return "", err
	}

	claim, err := s.store.BeginScan(ctx, req.PetID, s.window)
	if err != nil {
		return "", fmt.Errorf("begin scan claim: %w", err)
	}
	defer claim.Rollback(ctx)

	ev := ScanEvent{
		ID:        uuid.NewString(),
		PetID:     req.PetID,
		Lat:       req.Lat,
		Lng:       req.Lng,
		UA:        req.UA,
		CreatedAt: time.Now().UTC(),
	}

	if claim.Throttled() {
		ev.Outcome = OutcomeThrottled
		if err := claim.Record(ctx, ev); err != nil {
			return "", fmt.Errorf("record throttled scan: %w", err)
		}
		s.logger.Info("Scan throttled", "pet_id", req.PetID)
		return ResultThrottled, nil
	}

	if s.mailer == nil {
		return "", ErrNotConfigured
	}

	msg := Compose(owner.FullName, pet.Name, req.Lat, req.Lng)

	if sendErr := s.mailer.Send(ctx, owner.Email, msg.Subject, msg.HTMLBody); sendErr != nil {
		ev.Outcome = OutcomeFailed
		if recErr := claim.Record(ctx, ev); recErr != nil {
			s.logger.Error("Failed send also not recorded",
				"pet_id", req.PetID, "send_error", sendErr, "store_error", recErr)
		}
		return "", fmt.Errorf("send notification: %w", sendErr)
	}

	ev.Outcome = OutcomeNotified
	ev.Emailed = true
	if err := claim.Record(ctx, ev); err != nil {
		// The one unresolvable failure mode: mail went out, audit did not.
		s.logger.Error("Scan event lost after successful send",
			"pet_id", req.PetID, "owner_id", owner.ID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrRecordLost, err)
	}

	s.logger.Info("Owner notified", "pet_id", req.PetID, "owner_id", owner.ID)
	return ResultSent, nil
}
