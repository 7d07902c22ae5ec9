// Package session holds the authenticated backend session for the floor core.
//
// The token is obtained by the out-of-scope auth layer (login UI); the core
// only carries it on outbound calls. A Session replaces ambient token lookup
// with an explicit object that has a single process-wide lifecycle:
// Initialize once, pass it to every component, Teardown on shutdown.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotInitialized is returned when the session is used before Initialize
// or after Teardown.
var ErrNotInitialized = errors.New("session: not initialized")

// Session carries the bearer token and derived metadata.
// Safe for concurrent use; the token may be rotated while calls are in flight.
type Session struct {
	mu          sync.RWMutex
	token       string
	subject     string
	role        string
	expiresAt   time.Time
	initialized bool
}

// New returns an empty, uninitialized session.
func New() *Session {
	return &Session{}
}

// Initialize installs the bearer token. Claims are read without signature
// verification purely for expiry/identity display; the backend remains the
// authority on token validity.
func (s *Session) Initialize(token string) error {
	if token == "" {
		return errors.New("session: empty token")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.initialized = true
	s.subject = ""
	s.role = ""
	s.expiresAt = time.Time{}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque tokens are acceptable; the backend will reject bad ones.
		return nil
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.subject = sub
	}
	if role, ok := claims["role"].(string); ok {
		s.role = role
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.expiresAt = exp.Time
	}
	return nil
}

// Rotate swaps the bearer token without tearing down the session.
func (s *Session) Rotate(token string) error {
	return s.Initialize(token)
}

// Teardown clears the session. Subsequent Token calls fail.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.subject = ""
	s.role = ""
	s.expiresAt = time.Time{}
	s.initialized = false
}

// Token returns the current bearer token.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}
	return s.token, nil
}

// Subject returns the token subject, if the token carried one.
func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

// Role returns the role claim, if the token carried one.
func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// ExpiresAt returns the token expiry, zero if unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// ExpiresWithin reports whether the token expires within d.
// Unknown expiry reports false.
func (s *Session) ExpiresWithin(d time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expiresAt.IsZero() {
		return false
	}
	return time.Until(s.expiresAt) < d
}
