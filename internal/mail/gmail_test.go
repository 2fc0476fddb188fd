package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func testGmail(srv *httptest.Server) *Gmail {
	return &Gmail{
		from:       "tags@furtagph.example",
		tokens:     oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-access-token"}),
		baseURL:    srv.URL,
		httpClient: srv.Client(),
	}
}

func TestGmail_SendEncodesMIME(t *testing.T) {
	var gotAuth string
	var gotRaw string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/gmail/v1/users/me/messages/send" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")

		var payload struct {
			Raw string `json:"raw"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		gotRaw = payload.Raw

		io.WriteString(w, `{"id":"msg-1"}`)
	}))
	defer srv.Close()

	g := testGmail(srv)
	err := g.Send(context.Background(), "alice@example.com", "Your pet Rex may have been found", "<p>hi</p>")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer test-access-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(gotRaw)
	if err != nil {
		t.Fatalf("raw is not unpadded base64url: %v", err)
	}
	mime := string(decoded)
	for _, want := range []string{
		"From: tags@furtagph.example\r\n",
		"To: alice@example.com\r\n",
		"Subject: Your pet Rex may have been found\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(mime, want) {
			t.Errorf("mime missing %q:\n%s", want, mime)
		}
	}
}

func TestGmail_Classify(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
	}{
		{
			name:     "expired token",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"code":401,"message":"Invalid Credentials","errors":[{"reason":"authError"}]}}`,
			wantKind: KindAuth,
		},
		{
			name:     "quota exceeded arrives as 403",
			status:   http.StatusForbidden,
			body:     `{"error":{"code":403,"message":"User-rate limit exceeded","errors":[{"reason":"rateLimitExceeded"}]}}`,
			wantKind: KindRateLimited,
		},
		{
			name:     "daily quota",
			status:   http.StatusForbidden,
			body:     `{"error":{"code":403,"message":"Quota exceeded","errors":[{"reason":"dailyLimitExceeded"}]}}`,
			wantKind: KindRateLimited,
		},
		{
			name:     "plain 429",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"code":429,"message":"Too many requests"}}`,
			wantKind: KindRateLimited,
		},
		{
			name:     "invalid recipient",
			status:   http.StatusBadRequest,
			body:     `{"error":{"code":400,"message":"Invalid recipient address","errors":[{"reason":"invalidArgument"}]}}`,
			wantKind: KindBadRecipient,
		},
		{
			name:     "backend error",
			status:   http.StatusInternalServerError,
			body:     `{"error":{"code":500,"message":"Backend Error","errors":[{"reason":"backendError"}]}}`,
			wantKind: KindProvider,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			err := testGmail(srv).Send(context.Background(), "alice@example.com", "s", "<p>b</p>")
			var merr *Error
			if !errors.As(err, &merr) {
				t.Fatalf("err = %v, want *mail.Error", err)
			}
			if merr.Provider != "gmail" || merr.Kind != tc.wantKind || merr.Status != tc.status {
				t.Errorf("error = %+v, want kind %q status %d", merr, tc.wantKind, tc.status)
			}
		})
	}
}

// A refresh-token exchange rejected by the token endpoint surfaces as an
// auth failure without any API call being made.
func TestGmail_TokenRefreshRejected(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"Token has been revoked."}`)
	}))
	defer tokenSrv.Close()

	apiCalled := false
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiCalled = true
	}))
	defer apiSrv.Close()

	conf := &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenSrv.URL + "/token"},
	}
	g := &Gmail{
		from:       "tags@furtagph.example",
		tokens:     conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: "revoked"}),
		baseURL:    apiSrv.URL,
		httpClient: apiSrv.Client(),
	}

	err := g.Send(context.Background(), "alice@example.com", "s", "<p>b</p>")
	var merr *Error
	if !errors.As(err, &merr) {
		t.Fatalf("err = %v, want *mail.Error", err)
	}
	if merr.Kind != KindAuth {
		t.Errorf("kind = %q, want %q", merr.Kind, KindAuth)
	}
	if apiCalled {
		t.Error("API was called despite the failed token exchange")
	}
}
