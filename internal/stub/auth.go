package stub

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"mycafe/internal/core/apperror"
)

// JWTConfig holds token issuing configuration.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// DefaultJWTConfig returns the development defaults.
func DefaultJWTConfig(secret string) JWTConfig {
	return JWTConfig{
		Secret:         secret,
		Issuer:         "mycafe-stub",
		AccessTokenTTL: 12 * time.Hour,
	}
}

// Claims are the token claims the stub issues.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// user is a seeded operator account.
type user struct {
	Username     string
	PasswordHash []byte
	Role         string
}

// authService issues and validates bearer tokens for the stub.
type authService struct {
	cfg   JWTConfig
	users map[string]user
}

func newAuthService(cfg JWTConfig) *authService {
	return &authService{cfg: cfg, users: make(map[string]user)}
}

// addUser registers an account. Called at seed time only.
func (a *authService) addUser(username, password, role string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	a.users[username] = user{Username: username, PasswordHash: hash, Role: role}
	return nil
}

// login checks credentials and issues an access token.
func (a *authService) login(username, password string) (string, error) {
	u, ok := a.users[username]
	if !ok {
		return "", apperror.NewUnauthorized("invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return "", apperror.NewUnauthorized("invalid credentials")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.cfg.Issuer,
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.cfg.AccessTokenTTL)),
		},
		Role: u.Role,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.cfg.Secret))
	if err != nil {
		return "", apperror.NewInternal(fmt.Errorf("sign token: %w", err))
	}
	return signed, nil
}

// validate parses and verifies a bearer token.
func (a *authService) validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperror.NewUnauthorized("invalid token").WithCause(err)
	}
	return claims, nil
}
