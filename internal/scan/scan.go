// Package scan implements the tag-scan notification pipeline: resolve the
// pet and its owner, decide whether a notification is allowed right now,
// compose the email, send it, and record the scan event.
//
// Pipeline: resolve → claim throttle window → compose → send → record.
// The claim and the record are two halves of one per-pet critical section
// (see Store.BeginScan), which is what keeps concurrent scans of the same
// tag from double-notifying the owner.
package scan

import "time"

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultThrottleWindow is how long a pet stays muted after any
	// recorded scan event.
	DefaultThrottleWindow = 30 * time.Minute

	defaultOwnerName = "Pet owner"
	defaultPetName   = "your pet"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Outcome tags a recorded scan event with how the request ended.
type Outcome string

const (
	OutcomeThrottled Outcome = "throttled"
	OutcomeNotified  Outcome = "notified"
	OutcomeFailed    Outcome = "failed"
)

// Pet is a registered pet. Read-only from this service's perspective.
type Pet struct {
	ID       string
	Name     string
	OwnerID  string
	PhotoURL string
}

// Owner is a pet owner. Read-only from this service's perspective.
type Owner struct {
	ID       string
	FullName string
	Email    string
}

// ScanEvent is one immutable record of a tag-scan request and its outcome.
// Events are append-only; the per-pet sequence ordered by CreatedAt is the
// sole input to the throttle decision.
type ScanEvent struct {
	ID        string    `json:"id"`
	PetID     string    `json:"petId"`
	Lat       *float64  `json:"lat,omitempty"`
	Lng       *float64  `json:"lng,omitempty"`
	UA        string    `json:"ua,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Emailed   bool      `json:"emailed"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScanRequest is the decoded POST /scans payload.
type ScanRequest struct {
	PetID string   `json:"petId"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	UA    string   `json:"ua,omitempty"`
}

// Result is the terminal state of one handled scan request.
type Result string

const (
	ResultSent      Result = "sent"
	ResultThrottled Result = "throttled"
)
