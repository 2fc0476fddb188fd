package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	sendGridBaseURL = "https://api.sendgrid.com"
	sendGridTimeout = 15 * time.Second
)

// SendGrid sends mail through the SendGrid v3 API with a fixed,
// pre-verified sender address.
type SendGrid struct {
	apiKey     string
	sender     string
	baseURL    string
	httpClient *http.Client
}

// NewSendGrid creates a SendGrid transport. sender must be an address
// verified in the SendGrid account.
func NewSendGrid(apiKey, sender string) *SendGrid {
	return &SendGrid{
		apiKey:  apiKey,
		sender:  sender,
		baseURL: sendGridBaseURL,
		httpClient: &http.Client{
			Timeout: sendGridTimeout,
		},
	}
}

// sgError mirrors SendGrid's error envelope.
type sgError struct {
	Errors []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

// Send posts one message to /v3/mail/send.
func (s *SendGrid) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": s.sender},
		"subject": subject,
		"content": []map[string]string{
			{"type": "text/html", "value": htmlBody},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sendgrid payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v3/mail/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build sendgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &Error{Provider: "sendgrid", Kind: KindProvider, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return s.classify(resp.StatusCode, raw)
}

// classify maps a SendGrid error response to the transport taxonomy.
func (s *SendGrid) classify(status int, raw []byte) *Error {
	msg := strings.TrimSpace(string(raw))

	var env sgError
	if json.Unmarshal(raw, &env) == nil && len(env.Errors) > 0 {
		msg = env.Errors[0].Message

		// Malformed recipients come back as 400 with a field path into
		// personalizations[...].to[...].email.
		for _, e := range env.Errors {
			if strings.Contains(e.Field, ".to.") || strings.Contains(e.Field, "to.0.email") {
				return &Error{Provider: "sendgrid", Kind: KindBadRecipient, Status: status, Msg: e.Message}
			}
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Provider: "sendgrid", Kind: KindAuth, Status: status, Msg: msg}
	case status == http.StatusTooManyRequests:
		return &Error{Provider: "sendgrid", Kind: KindRateLimited, Status: status, Msg: msg}
	default:
		return &Error{Provider: "sendgrid", Kind: KindProvider, Status: status, Msg: msg}
	}
}
