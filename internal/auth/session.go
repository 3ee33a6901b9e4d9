package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/starford/ignite/internal/apperr"
)

// ErrSignedOut means there is no session to refresh from.
var ErrSignedOut = fmt.Errorf("auth: signed out: %w", apperr.ErrNotAuthenticated)

// ErrSessionExpired means the token service rejected the session and dropped it.
var ErrSessionExpired = fmt.Errorf("auth: session rejected: %w", apperr.ErrNotAuthenticated)

// Session exchanges a long-lived session token for short-lived access tokens
// at an external token service.
type Session struct {
	baseURL string
	client  *http.Client
	now     func() time.Time

	mu      sync.Mutex
	session string
	cred    Credential
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHTTPClient sets the client used to reach the token service.
func WithHTTPClient(c *http.Client) SessionOption {
	return func(s *Session) { s.client = c }
}

// WithSessionClock overrides time.Now for expiry checks.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// NewSession returns a Session against the token service at baseURL.
func NewSession(baseURL, sessionToken string, opts ...SessionOption) *Session {
	s := &Session{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
		session: sessionToken,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) Current() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred, s.cred.Token != "" && s.cred.ValidAt(s.now())
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

// Refresh calls POST /auth/refresh. A 401 clears the local session as well,
// matching the service, which deletes it on its side.
func (s *Session) Refresh(ctx context.Context) (Credential, error) {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if session == "" {
		return Credential{}, ErrSignedOut
	}

	resp, err := s.post(ctx, "/auth/refresh", session)
	if err != nil {
		return Credential{}, fmt.Errorf("auth: refresh: %w", err)
	}
	defer resp.Body.Close()

	var body refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return Credential{}, fmt.Errorf("auth: refresh: decode: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		s.mu.Lock()
		s.session = ""
		s.cred = Credential{}
		s.mu.Unlock()
		return Credential{}, ErrSessionExpired
	case resp.StatusCode != http.StatusOK:
		return Credential{}, fmt.Errorf("auth: refresh: status %d: %s", resp.StatusCode, body.Error)
	case body.AccessToken == "":
		return Credential{}, fmt.Errorf("auth: refresh: empty access token")
	}

	cred := Credential{
		Token:     body.AccessToken,
		ExpiresAt: s.now().Add(time.Duration(body.ExpiresIn) * time.Second),
	}
	s.mu.Lock()
	s.cred = cred
	s.mu.Unlock()
	return cred, nil
}

// SignOut revokes the session at the service and forgets it locally. The
// local state is cleared even when the revoke call fails.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = ""
	s.cred = Credential{}
	s.mu.Unlock()
	if session == "" {
		return nil
	}
	resp, err := s.post(ctx, "/auth/revoke", session)
	if err != nil {
		return fmt.Errorf("auth: revoke: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: revoke: status %d", resp.StatusCode)
	}
	return nil
}

func (s *Session) post(ctx context.Context, path, session string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+session)
	return s.client.Do(req)
}
