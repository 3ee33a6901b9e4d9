// Package auth supplies the bearer credential used for remote sync. A missing
// or expired credential means "offline for sync purposes".
package auth

import (
	"context"
	"sync"
	"time"
)

// Credential is an opaque bearer token. A zero ExpiresAt never expires.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// ValidAt reports whether c is usable at now.
func (c Credential) ValidAt(now time.Time) bool {
	return c.ExpiresAt.IsZero() || now.Before(c.ExpiresAt)
}

// Source yields the current credential and whether it is valid.
type Source interface {
	Current() (Credential, bool)
	// Refresh obtains a new credential. Sources without a refresh step return
	// the current one.
	Refresh(ctx context.Context) (Credential, error)
	// SignOut discards the credential; Current is invalid afterwards.
	SignOut(ctx context.Context) error
}

// None is a Source for backends that need no credential. It is valid with an
// empty token until signed out.
type None struct {
	mu        sync.Mutex
	signedOut bool
}

func (n *None) Current() (Credential, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Credential{}, !n.signedOut
}

func (n *None) Refresh(context.Context) (Credential, error) {
	cred, _ := n.Current()
	return cred, nil
}

func (n *None) SignOut(context.Context) error {
	n.mu.Lock()
	n.signedOut = true
	n.mu.Unlock()
	return nil
}

// Static is a fixed token, typically from configuration.
type Static struct {
	mu    sync.Mutex
	token string
}

// NewStatic returns a Static source. An empty token is never valid.
func NewStatic(token string) *Static { return &Static{token: token} }

func (s *Static) Current() (Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Credential{Token: s.token}, s.token != ""
}

func (s *Static) Refresh(context.Context) (Credential, error) {
	cred, ok := s.Current()
	if !ok {
		return Credential{}, ErrSignedOut
	}
	return cred, nil
}

func (s *Static) SignOut(context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
	return nil
}
