package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, subject, role string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  exp.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestLifecycle(t *testing.T) {
	s := New()

	if _, err := s.Token(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Token before Initialize: err = %v, want ErrNotInitialized", err)
	}

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	if err := s.Initialize(signedToken(t, "garson", "waiter", exp)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if got, err := s.Token(); err != nil || got == "" {
		t.Fatalf("Token = %q, %v", got, err)
	}
	if s.Subject() != "garson" {
		t.Errorf("Subject = %q", s.Subject())
	}
	if s.Role() != "waiter" {
		t.Errorf("Role = %q", s.Role())
	}
	if !s.ExpiresAt().Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", s.ExpiresAt(), exp)
	}

	s.Teardown()
	if _, err := s.Token(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Token after Teardown: err = %v, want ErrNotInitialized", err)
	}
	if s.Subject() != "" {
		t.Error("Subject should be cleared on Teardown")
	}
}

func TestOpaqueTokenAccepted(t *testing.T) {
	s := New()
	if err := s.Initialize("not-a-jwt"); err != nil {
		t.Fatalf("opaque token rejected: %v", err)
	}
	got, err := s.Token()
	if err != nil || got != "not-a-jwt" {
		t.Fatalf("Token = %q, %v", got, err)
	}
	if !s.ExpiresAt().IsZero() {
		t.Error("opaque token should have unknown expiry")
	}
	if s.ExpiresWithin(time.Hour) {
		t.Error("unknown expiry must not report as expiring")
	}
}

func TestEmptyTokenRejected(t *testing.T) {
	if err := New().Initialize(""); err == nil {
		t.Fatal("empty token should be rejected")
	}
}

func TestRotate(t *testing.T) {
	s := New()
	if err := s.Initialize(signedToken(t, "a", "waiter", time.Now().Add(time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := s.Rotate(signedToken(t, "b", "admin", time.Now().Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if s.Subject() != "b" || s.Role() != "admin" {
		t.Errorf("after Rotate: Subject=%q Role=%q", s.Subject(), s.Role())
	}
}

func TestExpiresWithin(t *testing.T) {
	s := New()
	if err := s.Initialize(signedToken(t, "a", "", time.Now().Add(30*time.Second))); err != nil {
		t.Fatal(err)
	}
	if !s.ExpiresWithin(time.Minute) {
		t.Error("token expiring in 30s should report ExpiresWithin(1m)")
	}
	if s.ExpiresWithin(time.Second) {
		t.Error("token expiring in 30s should not report ExpiresWithin(1s)")
	}
}
