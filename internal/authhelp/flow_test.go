// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLinker struct {
	platform database.Platform
	pkce     bool
	result   *LinkResult
	err      error
	calls    int
	verifier string
}

func (s *stubLinker) Platform() database.Platform { return s.platform }
func (s *stubLinker) UsesPKCE() bool              { return s.pkce }

func (s *stubLinker) AuthURL(state, challenge string) string {
	v := url.Values{"state": {state}}
	if challenge != "" {
		v.Set("code_challenge", challenge)
	}
	return "https://provider.test/auth?" + v.Encode()
}

func (s *stubLinker) Link(ctx context.Context, code, verifier string) (*LinkResult, error) {
	s.calls++
	s.verifier = verifier
	return s.result, s.err
}

type flowFixture struct {
	flow   *Flow
	linker *stubLinker
	store  *database.MemoryStore
	cipher *auth.TokenCipher
	clock  *fakeClock
	linked []database.Connection
}

func newFlowFixture(t *testing.T, platform database.Platform, pkce bool) *flowFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	cipher, err := auth.NewTokenCipher(make([]byte, auth.KeySize))
	require.NoError(t, err)

	linker := &stubLinker{
		platform: platform,
		pkce:     pkce,
		result: &LinkResult{
			Tokens: TokenSet{
				AccessToken:  "access",
				RefreshToken: "refresh",
				ExpiresAt:    clock.t.Add(time.Hour),
				Scopes:       []string{"read"},
			},
			Profile: database.AccountProfile{
				PlatformAccountID: "acct-1",
				Username:          sql.NullString{String: "creator", Valid: true},
			},
		},
	}

	f := &flowFixture{linker: linker, store: database.NewMemoryStore(), cipher: cipher, clock: clock}
	f.flow = NewFlow(linker, codec, f.store, cipher)
	f.flow.OnLinked = func(conn database.Connection) { f.linked = append(f.linked, conn) }
	return f
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestFlow_CompletePersistsConnection(t *testing.T) {
	f := newFlowFixture(t, database.PlatformYouTube, false)
	ctx := context.Background()

	start, err := f.flow.Start("u1")
	require.NoError(t, err)
	assert.Empty(t, start.Verifier)

	conn, err := f.flow.Complete(ctx,
		CallbackParams{Code: "code", State: stateFrom(t, start.AuthURL)},
		CallbackCookies{CSRF: start.CSRF},
	)
	require.NoError(t, err)

	assert.Equal(t, "u1", conn.UserID)
	assert.Equal(t, "acct-1", conn.PlatformAccountID)
	assert.True(t, conn.IsActive)
	assert.NotEqual(t, "access", conn.AccessTokenEncrypted)

	plain, err := f.cipher.Decrypt(conn.AccessTokenEncrypted)
	require.NoError(t, err)
	assert.Equal(t, "access", plain)

	profile, err := f.store.GetAccountProfileByConnection(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "creator", profile.Username.String)
	assert.Equal(t, database.PlatformYouTube, profile.Platform)

	require.Len(t, f.linked, 1)
	assert.Equal(t, conn.ID, f.linked[0].ID)
}

func TestFlow_ExpiredStateFailsBeforeExchange(t *testing.T) {
	f := newFlowFixture(t, database.PlatformInstagram, false)

	start, err := f.flow.Start("u1")
	require.NoError(t, err)

	f.clock.t = f.clock.t.Add(700 * time.Second)
	_, err = f.flow.Complete(context.Background(),
		CallbackParams{Code: "code", State: stateFrom(t, start.AuthURL)},
		CallbackCookies{CSRF: start.CSRF},
	)

	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonCallbackFailed, fe.Reason)
	assert.ErrorIs(t, err, ErrStateExpired)
	assert.Zero(t, f.linker.calls)
	assert.Empty(t, f.linked)
}

func TestFlow_CSRFMismatchFailsBeforeExchange(t *testing.T) {
	f := newFlowFixture(t, database.PlatformYouTube, false)

	start, err := f.flow.Start("u1")
	require.NoError(t, err)

	_, err = f.flow.Complete(context.Background(),
		CallbackParams{Code: "code", State: stateFrom(t, start.AuthURL)},
		CallbackCookies{CSRF: "forged"},
	)
	require.ErrorIs(t, err, ErrCSRFMismatch)
	assert.Zero(t, f.linker.calls)
}

func TestFlow_PKCERequiresVerifierCookie(t *testing.T) {
	f := newFlowFixture(t, database.PlatformTikTok, true)

	start, err := f.flow.Start("u1")
	require.NoError(t, err)
	require.NotEmpty(t, start.Verifier)

	u, err := url.Parse(start.AuthURL)
	require.NoError(t, err)
	assert.NotEmpty(t, u.Query().Get("code_challenge"))

	params := CallbackParams{Code: "code", State: stateFrom(t, start.AuthURL)}

	_, err = f.flow.Complete(context.Background(), params, CallbackCookies{CSRF: start.CSRF})
	require.ErrorIs(t, err, ErrVerifierEmpty)
	assert.Zero(t, f.linker.calls)

	_, err = f.flow.Complete(context.Background(), params, CallbackCookies{CSRF: start.CSRF, Verifier: start.Verifier})
	require.NoError(t, err)
	assert.Equal(t, start.Verifier, f.linker.verifier)
}

func TestFlow_ProviderErrorAndMissingParams(t *testing.T) {
	f := newFlowFixture(t, database.PlatformInstagram, false)
	ctx := context.Background()

	_, err := f.flow.Complete(ctx, CallbackParams{Error: "access_denied", ErrorReason: "user_denied"}, CallbackCookies{})
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "user_denied", fe.Reason)

	_, err = f.flow.Complete(ctx, CallbackParams{Error: "access_denied"}, CallbackCookies{})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "access_denied", fe.Reason)

	_, err = f.flow.Complete(ctx, CallbackParams{State: "x"}, CallbackCookies{})
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonMissingParams, fe.Reason)
	assert.Zero(t, f.linker.calls)
}

func TestFlow_LinkFailureIsGeneric(t *testing.T) {
	f := newFlowFixture(t, database.PlatformInstagram, false)
	f.linker.err = errors.New("No Facebook Pages found.")

	start, err := f.flow.Start("u1")
	require.NoError(t, err)

	_, err = f.flow.Complete(context.Background(),
		CallbackParams{Code: "code", State: stateFrom(t, start.AuthURL)},
		CallbackCookies{CSRF: start.CSRF},
	)
	var fe *FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, ReasonCallbackFailed, fe.Reason)

	conns, err := f.store.ListConnections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conns)
}
