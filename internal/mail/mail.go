// Package mail provides the delivery transports that send owner
// notifications. Two interchangeable variants exist: Gmail (OAuth2
// refresh-token flow against the Gmail REST API) and SendGrid (v3 API key).
// Exactly one is selected at process start via MAIL_PROVIDER.
package mail

import (
	"context"
	"fmt"
)

// Mailer sends one composed message to a single recipient.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Kind classifies a transport failure.
type Kind string

const (
	// KindAuth covers rejected credentials and expired/revoked tokens.
	KindAuth Kind = "auth"
	// KindRateLimited covers provider quota and rate-limit rejections.
	KindRateLimited Kind = "rate_limited"
	// KindBadRecipient covers malformed or rejected recipient addresses.
	KindBadRecipient Kind = "bad_recipient"
	// KindProvider covers every other provider-side failure.
	KindProvider Kind = "provider"
)

// Error is a typed transport failure. Status is the provider HTTP status
// when one was received, 0 otherwise.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Msg      string
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Msg)
}

// IsRetryable reports whether a later attempt could plausibly succeed
// without operator intervention.
func (e *Error) IsRetryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindProvider
}
