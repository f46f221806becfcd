// SPDX-License-Identifier: AGPL-3.0-only
package identity

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var testSecret = []byte(strings.Repeat("j", 32))

func signWith(t *testing.T, alg jose.SignatureAlgorithm, key any, c any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: alg, Key: key}, nil)
	require.NoError(t, err)
	token, err := jwt.Signed(signer).Claims(c).CompactSerialize()
	require.NoError(t, err)
	return token
}

func TestHS256Provider_RoundTrip(t *testing.T) {
	p := NewHS256Provider(testSecret, "auth.test")
	token, err := p.Sign("u1", time.Hour)
	require.NoError(t, err)

	u, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestHS256Provider_EmailClaim(t *testing.T) {
	p := NewHS256Provider(testSecret, "")
	token := signWith(t, jose.HS256, testSecret, struct {
		jwt.Claims
		Email string `json:"email"`
	}{
		Claims: jwt.Claims{Subject: "u2", Expiry: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Email:  "creator@example.com",
	})

	u, err := p.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, User{ID: "u2", Email: "creator@example.com"}, u)
}

func TestHS256Provider_Rejects(t *testing.T) {
	p := NewHS256Provider(testSecret, "auth.test")
	now := time.Now()

	cases := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrNoToken},
		{"garbage", "not.a.jwt", ErrMalformedToken},
		{"wrong secret", signWith(t, jose.HS256, []byte(strings.Repeat("x", 32)), jwt.Claims{
			Subject: "u1", Issuer: "auth.test", Expiry: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ErrInvalidSignature},
		{"expired", signWith(t, jose.HS256, testSecret, jwt.Claims{
			Subject: "u1", Issuer: "auth.test", Expiry: jwt.NewNumericDate(now.Add(-time.Hour)),
		}), ErrTokenExpired},
		{"no expiry", signWith(t, jose.HS256, testSecret, jwt.Claims{
			Subject: "u1", Issuer: "auth.test",
		}), ErrMalformedToken},
		{"wrong issuer", signWith(t, jose.HS256, testSecret, jwt.Claims{
			Subject: "u1", Issuer: "elsewhere", Expiry: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ErrInvalidClaims},
		{"no subject", signWith(t, jose.HS256, testSecret, jwt.Claims{
			Issuer: "auth.test", Expiry: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ErrInvalidClaims},
		{"other algorithm", signWith(t, jose.HS512, []byte(strings.Repeat("k", 64)), jwt.Claims{
			Subject: "u1", Issuer: "auth.test", Expiry: jwt.NewNumericDate(now.Add(time.Hour)),
		}), ErrInvalidSignature},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Authenticate(context.Background(), tc.token)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestHS256Provider_TamperedTokenNeverAuthenticates(t *testing.T) {
	p := NewHS256Provider(testSecret, "")
	token, err := p.Sign("u1", time.Hour)
	require.NoError(t, err)

	rapid.Check(t, func(t *rapid.T) {
		i := rapid.IntRange(0, len(token)-1).Draw(t, "pos")
		c := rapid.SampledFrom([]byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_")).Draw(t, "char")
		if token[i] == c || token[i] == '.' {
			t.Skip("no change")
		}
		mutated := token[:i] + string(c) + token[i+1:]

		u, err := p.Authenticate(context.Background(), mutated)
		if err == nil && u.ID != "u1" {
			t.Fatalf("tampered token authenticated as %q", u.ID)
		}
	})
}
