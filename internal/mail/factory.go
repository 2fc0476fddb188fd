package mail

import (
	"fmt"

	"github.com/X-404JPG/furtagph/internal/config"
)

// New builds the configured delivery transport. Returns (nil, nil) when no
// provider is configured; the caller decides whether that is fatal.
func New(cfg *config.Config) (Mailer, error) {
	switch cfg.MailProvider {
	case "":
		return nil, nil
	case config.ProviderGmail:
		return NewGmail(cfg.GmailClientID, cfg.GmailClientSecret,
			cfg.GmailRefreshToken, cfg.GmailAddress), nil
	case config.ProviderSendGrid:
		return NewSendGrid(cfg.SendGridAPIKey, cfg.SendGridSender), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
