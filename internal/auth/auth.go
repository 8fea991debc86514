// Package auth issues and verifies API tokens for the dashboard and the
// browser extension.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/promptvaultdev/promptvault/internal/config"
	"github.com/promptvaultdev/promptvault/internal/vault"
)

// ErrInvalidToken covers expired, malformed, and mis-signed tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims is the JWT payload for issued tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens and knows the instance owner.
type Manager struct {
	secret       []byte
	ttl          time.Duration
	ownerEmail   string
	extensionKey string
}

// NewManager builds a Manager from configuration. When the JWT signing
// secret cannot be resolved from the vault, an ephemeral secret is
// generated; issued tokens then stop working across restarts.
func NewManager(v *vault.Vault, cfg *config.Config) (*Manager, error) {
	secret, err := v.ResolveKeyRef(cfg.Auth.JWTKeyRef)
	if err != nil || secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("auth: generating ephemeral secret: %w", err)
		}
		secret = string(buf)
		log.Warn().Msg("auth: no signing secret in vault, issued tokens will not survive restart")
	}

	return &Manager{
		secret:       []byte(secret),
		ttl:          cfg.Auth.TokenTTL(),
		ownerEmail:   cfg.Auth.OwnerEmail,
		extensionKey: cfg.Auth.ExtensionKey,
	}, nil
}

// OwnerEmail returns the configured instance owner.
func (m *Manager) OwnerEmail() string {
	return m.ownerEmail
}

// Mint issues a signed token for the given account email.
func (m *Manager) Mint(email string) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "promptvault",
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks a token's signature and expiry and returns the account
// email it was issued for.
func (m *Manager) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Email == "" {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

// VerifyExtensionKey checks the static browser-extension key in
// constant time. A valid key maps to the instance owner.
func (m *Manager) VerifyExtensionKey(key string) bool {
	if m.extensionKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.extensionKey)) == 1
}
