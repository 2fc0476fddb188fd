package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	googleTokenURL = "https://oauth2.googleapis.com/token"
	gmailBaseURL   = "https://gmail.googleapis.com"
	gmailTimeout   = 15 * time.Second
)

// Gmail sends mail through the Gmail REST API as the configured mailbox.
// A short-lived access token is minted from the stored refresh token on
// demand; the oauth2 token source caches it until expiry.
type Gmail struct {
	from       string
	tokens     oauth2.TokenSource
	baseURL    string
	httpClient *http.Client
}

// NewGmail creates a Gmail transport for the mailbox `from`, authenticating
// with an OAuth2 client and a long-lived refresh token.
func NewGmail(clientID, clientSecret, refreshToken, from string) *Gmail {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: googleTokenURL},
	}

	return &Gmail{
		from:    from,
		tokens:  conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken}),
		baseURL: gmailBaseURL,
		httpClient: &http.Client{
			Timeout: gmailTimeout,
		},
	}
}

// gmailError mirrors the Google API error envelope.
type gmailError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// Send posts one message to users/me/messages/send with a base64url-encoded
// MIME payload.
func (g *Gmail) Send(ctx context.Context, to, subject, htmlBody string) error {
	tok, err := g.tokens.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return &Error{Provider: "gmail", Kind: KindAuth, Status: rerr.Response.StatusCode, Msg: rerr.ErrorCode}
		}
		return &Error{Provider: "gmail", Kind: KindAuth, Msg: err.Error()}
	}

	raw := base64.URLEncoding.WithPadding(base64.NoPadding).
		EncodeToString(mime(g.from, to, subject, htmlBody))

	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("marshal gmail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.baseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gmail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &Error{Provider: "gmail", Kind: KindProvider, Msg: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyGmail(resp.StatusCode, respBody)
}

// classifyGmail maps a Gmail API error response to the transport taxonomy.
// Quota rejections arrive as 403 with a rate/quota reason, so the reason is
// checked before the status.
func classifyGmail(status int, raw []byte) *Error {
	msg := strings.TrimSpace(string(raw))
	reason := ""

	var env gmailError
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
		if len(env.Error.Errors) > 0 {
			reason = env.Error.Errors[0].Reason
		}
	}

	lower := strings.ToLower(reason)
	switch {
	case status == http.StatusTooManyRequests,
		strings.Contains(lower, "ratelimit"),
		strings.Contains(lower, "quota"):
		return &Error{Provider: "gmail", Kind: KindRateLimited, Status: status, Msg: msg}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Provider: "gmail", Kind: KindAuth, Status: status, Msg: msg}
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "recipient"):
		return &Error{Provider: "gmail", Kind: KindBadRecipient, Status: status, Msg: msg}
	default:
		return &Error{Provider: "gmail", Kind: KindProvider, Status: status, Msg: msg}
	}
}

// mime renders the RFC 2822 message the Gmail API expects inside `raw`.
func mime(from, to, subject, htmlBody string) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return b.Bytes()
}
