// Package auth owns the access credential: liveness checks, persistence,
// the identity fetched with it, and the guard decisions derived from both.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCredentialExpired is returned when a credential is missing, expired or undecodable.
	ErrCredentialExpired = errors.New("auth: credential missing or expired")
	// ErrRejected is returned when the backend rejects a credential.
	ErrRejected = errors.New("auth: credential rejected")
)

// Credential is a bearer JWT with its decoded expiry. The signature is not
// verified here; the backend does that on every request.
type Credential struct {
	Raw       string
	ExpiresAt time.Time
	decoded   bool
}

// ParseCredential decodes the payload of raw. Malformed tokens and tokens
// without an "exp" claim yield a credential that is never live.
func ParseCredential(raw string) Credential {
	c := Credential{Raw: raw}
	if raw == "" {
		return c
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return c
	}
	if claims.ExpiresAt == nil {
		return c
	}
	c.ExpiresAt = claims.ExpiresAt.Time
	c.decoded = true
	return c
}

// Decoded reports whether the payload could be read.
func (c Credential) Decoded() bool { return c.decoded }

// LiveAt reports whether the credential is present, decodable and expires
// strictly after now.
func (c Credential) LiveAt(now time.Time) bool {
	return c.Raw != "" && c.decoded && c.ExpiresAt.After(now)
}

// IsLive is a convenience wrapper around ParseCredential and LiveAt.
func IsLive(raw string, now time.Time) bool {
	return ParseCredential(raw).LiveAt(now)
}
