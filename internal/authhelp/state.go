// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"
)

const (
	StateMaxAge = 10 * time.Minute
	stateName   = "oauth_state"
)

var (
	ErrStateInvalid  = errors.New("OAuth state invalid")
	ErrStateExpired  = errors.New("OAuth state expired")
	ErrCSRFMismatch  = errors.New("CSRF validation failed")
	ErrVerifierEmpty = errors.New("PKCE code verifier missing")
)

// StatePayload travels through the provider inside the state parameter.
type StatePayload struct {
	UserID    string `json:"userId"`
	CSRF      string `json:"csrf"`
	Timestamp int64  `json:"timestamp"`
}

// StateCodec signs the state parameter so it cannot be forged in transit.
// Expiry is enforced against Timestamp, not by the cookie codec.
type StateCodec struct {
	sc  *securecookie.SecureCookie
	now func() time.Time
}

func NewStateCodec(secret string, now func() time.Time) (*StateCodec, error) {
	if secret == "" {
		return nil, errors.New("state secret is empty")
	}
	if now == nil {
		now = time.Now
	}

	hashKey := make([]byte, 64)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte("creatorsync oauth state"))
	if _, err := io.ReadFull(kdf, hashKey); err != nil {
		return nil, fmt.Errorf("derive state key: %w", err)
	}

	sc := securecookie.New(hashKey, nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(0)
	sc.MaxLength(0)

	return &StateCodec{sc: sc, now: now}, nil
}

func NewCSRFToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (c *StateCodec) Encode(userID, csrf string) (string, error) {
	return c.sc.Encode(stateName, StatePayload{
		UserID:    userID,
		CSRF:      csrf,
		Timestamp: c.now().UnixMilli(),
	})
}

func (c *StateCodec) Decode(state string) (StatePayload, error) {
	var p StatePayload
	if err := c.sc.Decode(stateName, state, &p); err != nil {
		return StatePayload{}, fmt.Errorf("%w: %v", ErrStateInvalid, err)
	}
	return p, nil
}

// Validate decodes state and checks it against the CSRF cookie and the
// ten minute window.
func (c *StateCodec) Validate(state, csrfCookie string) (StatePayload, error) {
	p, err := c.Decode(state)
	if err != nil {
		return StatePayload{}, err
	}
	if p.CSRF == "" || p.CSRF != csrfCookie {
		return StatePayload{}, ErrCSRFMismatch
	}
	if c.now().UnixMilli()-p.Timestamp > StateMaxAge.Milliseconds() {
		return StatePayload{}, ErrStateExpired
	}
	return p, nil
}
