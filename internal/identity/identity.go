// SPDX-License-Identifier: AGPL-3.0-only

// Package identity verifies the bearer tokens issued by the hosted auth
// service and turns them into an opaque user id.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
)

const clockSkew = time.Minute

var (
	ErrNoToken          = errors.New("identity: no bearer token provided")
	ErrMalformedToken   = errors.New("identity: malformed bearer token")
	ErrInvalidSignature = errors.New("identity: invalid token signature")
	ErrTokenExpired     = errors.New("identity: token expired")
	ErrInvalidClaims    = errors.New("identity: invalid token claims")
)

type User struct {
	ID    string
	Email string
}

// Provider resolves a bearer token to the calling user.
type Provider interface {
	Authenticate(ctx context.Context, token string) (User, error)
}

// HS256Provider accepts compact JWS tokens signed with a shared secret.
type HS256Provider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ Provider = (*HS256Provider)(nil)

// NewHS256Provider checks iss only when issuer is non-empty.
func NewHS256Provider(secret []byte, issuer string) *HS256Provider {
	return &HS256Provider{secret: secret, issuer: issuer, now: time.Now}
}

type claims struct {
	jwt.Claims
	Email string `json:"email,omitempty"`
}

func (p *HS256Provider) Authenticate(ctx context.Context, token string) (User, error) {
	if token == "" {
		return User{}, ErrNoToken
	}

	parsed, err := jwt.ParseSigned(token)
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	for _, h := range parsed.Headers {
		if h.Algorithm != string(jose.HS256) {
			return User{}, fmt.Errorf("%w: unexpected algorithm %q", ErrInvalidSignature, h.Algorithm)
		}
	}

	var c claims
	if err := parsed.Claims(p.secret, &c); err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if c.Expiry == nil {
		return User{}, fmt.Errorf("%w: missing exp claim", ErrMalformedToken)
	}
	err = c.ValidateWithLeeway(jwt.Expected{Issuer: p.issuer, Time: p.now()}, clockSkew)
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return User{}, fmt.Errorf("%w: expired at %v", ErrTokenExpired, c.Expiry.Time())
	case err != nil:
		return User{}, fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}

	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: missing sub claim", ErrInvalidClaims)
	}
	return User{ID: c.Subject, Email: c.Email}, nil
}

// Sign issues a token for subject. It backs the operator CLI and tests.
func (p *HS256Provider) Sign(subject string, ttl time.Duration) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: p.secret}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	now := p.now()
	c := jwt.Claims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ttl)),
	}
	if p.issuer != "" {
		c.Issuer = p.issuer
	}
	return jwt.Signed(signer).Claims(c).CompactSerialize()
}
