// Package hostauth authenticates callers at the HTTP edge. The engine takes
// whatever identity the transport hands it; hostauth is how the daemon
// decides that identity in jwt mode, with short-lived bearer tokens signed
// by a shared secret.
package hostauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/halcyonlabs/trustplane/internal/protocol"
)

// CallerClaims are the JWT claims for a trustplane caller token.
type CallerClaims struct {
	jwt.RegisteredClaims
	Caller string `json:"caller"`
}

// Issuer issues and verifies caller tokens signed with HS256.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewIssuer creates an Issuer.
//
//	issuer: the "iss" claim value; typically the daemon's base URL.
//	ttl:    token lifetime (default: 1 hour).
func NewIssuer(secret []byte, issuer string, ttl time.Duration) *Issuer {
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue creates a signed token asserting the caller identity.
func (i *Issuer) Issue(caller protocol.Identity) (string, error) {
	now := time.Now().UTC()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   caller.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
		Caller: caller.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a caller token, returning the asserted
// identity on success.
func (i *Issuer) Verify(tokenStr string) (protocol.Identity, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&CallerClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("verify token: %w", err)
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	caller := protocol.Identity(claims.Caller)
	if caller.IsZero() {
		caller = protocol.Identity(claims.Subject)
	}
	if caller.IsZero() {
		return "", fmt.Errorf("token carries no caller identity")
	}
	return caller, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }
