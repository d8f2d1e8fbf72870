// Package auth holds the client session: the access/refresh token pair, its
// persistence, and expiry introspection used to schedule proactive refresh.
package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenStore persists the token pair across restarts.
type TokenStore interface {
	SaveTokens(access, refresh string) error
	LoadTokens() (access, refresh string, err error)
	ClearTokens() error
}

// Session owns the token pair. It is created on login, the access token is
// silently replaced on refresh, and it is cleared entirely on logout or an
// irrecoverable refresh failure. Last writer wins; the refresh path is the
// only writer during normal operation.
type Session struct {
	mu      sync.RWMutex
	access  string
	refresh string
	store   TokenStore
}

// NewSession restores any persisted token pair from store. A nil store keeps
// the session memory-only.
func NewSession(store TokenStore) (*Session, error) {
	s := &Session{store: store}
	if store == nil {
		return s, nil
	}
	access, refresh, err := store.LoadTokens()
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	s.access = access
	s.refresh = refresh
	return s, nil
}

// Authenticated reports whether an access token is present. The original
// product also honored an iframe/fixed-location bypass here; that bypass is
// deliberately not carried over.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != ""
}

// AccessToken returns the current access token, empty when logged out.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// SetPair installs a fresh pair after login and persists it.
func (s *Session) SetPair(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveTokens(access, refresh); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// SetAccess replaces only the access token after a refresh.
func (s *Session) SetAccess(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveTokens(s.access, s.refresh); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}
	return nil
}

// Clear wipes both tokens, in memory and in the store.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	if s.store == nil {
		return nil
	}
	if err := s.store.ClearTokens(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

// ExpiresAt extracts the exp claim from the access token without verifying
// the signature. Verification is the backend's job; the client only needs
// the instant to schedule a refresh ahead of it. Returns false when there
// is no token or no usable claim.
func (s *Session) ExpiresAt() (time.Time, bool) {
	s.mu.RLock()
	access := s.access
	s.mu.RUnlock()
	if access == "" {
		return time.Time{}, false
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the access token expires within d. An
// unparsable or claim-less token reports false; the 401 path covers it.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	exp, ok := s.ExpiresAt()
	if !ok {
		return false
	}
	return time.Until(exp) <= d
}
