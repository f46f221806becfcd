// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestCodec(t *testing.T, clock *fakeClock) *StateCodec {
	t.Helper()
	codec, err := NewStateCodec("state-secret", clock.Now)
	require.NoError(t, err)
	return codec
}

func TestStateCodec_WindowBoundary(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issued}
	codec := newTestCodec(t, clock)

	state, err := codec.Encode("u1", "abc")
	require.NoError(t, err)

	clock.t = issued.Add(500000 * time.Millisecond)
	payload, err := codec.Validate(state, "abc")
	require.NoError(t, err)
	assert.Equal(t, "u1", payload.UserID)
	assert.Equal(t, issued.UnixMilli(), payload.Timestamp)

	clock.t = issued.Add(600000 * time.Millisecond)
	_, err = codec.Validate(state, "abc")
	require.NoError(t, err)

	clock.t = issued.Add(700000 * time.Millisecond)
	_, err = codec.Validate(state, "abc")
	require.ErrorIs(t, err, ErrStateExpired)
	assert.Equal(t, "OAuth state expired", err.Error())
}

func TestStateCodec_CSRFMismatch(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)

	state, err := codec.Encode("u1", "abc")
	require.NoError(t, err)

	_, err = codec.Validate(state, "abd")
	require.ErrorIs(t, err, ErrCSRFMismatch)

	_, err = codec.Validate(state, "")
	require.ErrorIs(t, err, ErrCSRFMismatch)
}

func TestStateCodec_MismatchCheckedBeforeExpiry(t *testing.T) {
	issued := time.Now()
	clock := &fakeClock{t: issued}
	codec := newTestCodec(t, clock)

	state, err := codec.Encode("u1", "abc")
	require.NoError(t, err)

	clock.t = issued.Add(time.Hour)
	_, err = codec.Validate(state, "other")
	require.ErrorIs(t, err, ErrCSRFMismatch)
}

func TestStateCodec_RejectsTamperedState(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	codec := newTestCodec(t, clock)

	state, err := codec.Encode("u1", "abc")
	require.NoError(t, err)

	tampered := []byte(state)
	if tampered[5] == 'A' {
		tampered[5] = 'B'
	} else {
		tampered[5] = 'A'
	}
	_, err = codec.Validate(string(tampered), "abc")
	require.ErrorIs(t, err, ErrStateInvalid)

	other, err := NewStateCodec("different-secret", clock.Now)
	require.NoError(t, err)
	_, err = other.Validate(state, "abc")
	require.ErrorIs(t, err, ErrStateInvalid)
}

func TestNewStateCodec_RequiresSecret(t *testing.T) {
	_, err := NewStateCodec("", nil)
	require.Error(t, err)
}

func TestNewCSRFToken(t *testing.T) {
	a, err := NewCSRFToken()
	require.NoError(t, err)
	b, err := NewCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestNewPKCE(t *testing.T) {
	p := NewPKCE()
	assert.GreaterOrEqual(t, len(p.Verifier), 43)
	assert.NotEqual(t, p.Verifier, p.Challenge)
	assert.NotContains(t, p.Challenge, "=")
	assert.NotContains(t, p.Challenge, "+")
	assert.NotContains(t, p.Challenge, "/")
}
