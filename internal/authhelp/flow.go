// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/database"
)

const (
	ReasonMissingParams  = "missing_params"
	ReasonCallbackFailed = "callback_failed"
)

// LinkResult is what a platform linker resolves from an authorization code.
type LinkResult struct {
	Tokens  TokenSet
	PageID  string
	Profile database.AccountProfile
}

// Linker holds the platform specific half of an authorization round trip.
type Linker interface {
	Platform() database.Platform
	UsesPKCE() bool
	AuthURL(state, challenge string) string
	// Link exchanges the code and resolves the remote account.
	Link(ctx context.Context, code, verifier string) (*LinkResult, error)
}

type StartResult struct {
	AuthURL  string
	CSRF     string
	Verifier string
}

type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
	ErrorReason      string
}

type CallbackCookies struct {
	CSRF     string
	Verifier string
}

// FlowError is a terminal failure of an authorization attempt. Reason is
// what the dashboard gets to see.
type FlowError struct {
	Reason string
	Err    error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth flow failed (%s): %v", e.Reason, e.Err)
	}
	return "oauth flow failed: " + e.Reason
}

func (e *FlowError) Unwrap() error { return e.Err }

type Flow struct {
	linker   Linker
	states   *StateCodec
	store    database.Store
	cipher   *auth.TokenCipher
	OnLinked func(conn database.Connection)
}

func NewFlow(linker Linker, states *StateCodec, store database.Store, cipher *auth.TokenCipher) *Flow {
	return &Flow{
		linker: linker,
		states: states,
		store:  store,
		cipher: cipher,
	}
}

func (f *Flow) Platform() database.Platform { return f.linker.Platform() }

func (f *Flow) UsesPKCE() bool { return f.linker.UsesPKCE() }

func (f *Flow) Start(userID string) (StartResult, error) {
	if userID == "" {
		return StartResult{}, errors.New("user id is required")
	}

	csrf, err := NewCSRFToken()
	if err != nil {
		return StartResult{}, fmt.Errorf("generate csrf token: %w", err)
	}
	state, err := f.states.Encode(userID, csrf)
	if err != nil {
		return StartResult{}, fmt.Errorf("encode state: %w", err)
	}

	res := StartResult{CSRF: csrf}
	challenge := ""
	if f.linker.UsesPKCE() {
		pkce := NewPKCE()
		res.Verifier = pkce.Verifier
		challenge = pkce.Challenge
	}
	res.AuthURL = f.linker.AuthURL(state, challenge)
	return res, nil
}

func providerReason(p CallbackParams) string {
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.ErrorReason != "":
		return p.ErrorReason
	}
	return p.Error
}

// Complete runs the callback half of the flow. Nothing is exchanged with the
// provider until the state has been validated.
func (f *Flow) Complete(ctx context.Context, p CallbackParams, c CallbackCookies) (database.Connection, error) {
	platform := f.linker.Platform()

	if p.Error != "" {
		return database.Connection{}, &FlowError{Reason: providerReason(p)}
	}
	if p.Code == "" || p.State == "" {
		return database.Connection{}, &FlowError{Reason: ReasonMissingParams}
	}

	payload, err := f.states.Validate(p.State, c.CSRF)
	if err != nil {
		return database.Connection{}, f.fail(platform, err)
	}
	if f.linker.UsesPKCE() && c.Verifier == "" {
		return database.Connection{}, f.fail(platform, ErrVerifierEmpty)
	}

	linked, err := f.linker.Link(ctx, p.Code, c.Verifier)
	if err != nil {
		return database.Connection{}, f.fail(platform, err)
	}

	conn, err := f.persist(ctx, payload.UserID, linked)
	if err != nil {
		return database.Connection{}, f.fail(platform, err)
	}

	log.Printf("OAuth: linked %s account %s for user %s", platform, conn.PlatformAccountID, conn.UserID)
	if f.OnLinked != nil {
		f.OnLinked(conn)
	}
	return conn, nil
}

func (f *Flow) fail(platform database.Platform, err error) error {
	log.Printf("OAuth: %s callback error: %v", platform, err)
	return &FlowError{Reason: ReasonCallbackFailed, Err: err}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func (f *Flow) persist(ctx context.Context, userID string, linked *LinkResult) (database.Connection, error) {
	accountID := linked.Profile.PlatformAccountID
	if accountID == "" {
		accountID = linked.Tokens.AccountID
	}
	if accountID == "" {
		return database.Connection{}, errors.New("provider account id is empty")
	}

	access, err := f.cipher.Encrypt(linked.Tokens.AccessToken)
	if err != nil {
		return database.Connection{}, fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, ok, err := f.cipher.EncryptOptional(linked.Tokens.RefreshToken)
	if err != nil {
		return database.Connection{}, fmt.Errorf("encrypt refresh token: %w", err)
	}

	conn, err := f.store.UpsertConnection(ctx, database.UpsertConnectionParams{
		UserID:                userID,
		Platform:              f.linker.Platform(),
		PlatformAccountID:     accountID,
		PlatformPageID:        sql.NullString{String: linked.PageID, Valid: linked.PageID != ""},
		AccessTokenEncrypted:  access,
		RefreshTokenEncrypted: sql.NullString{String: refresh, Valid: ok},
		TokenExpiresAt:        nullTime(linked.Tokens.ExpiresAt),
		RefreshTokenExpiresAt: nullTime(linked.Tokens.RefreshExpiresAt),
		Scopes:                linked.Tokens.Scopes,
	})
	if err != nil {
		return database.Connection{}, fmt.Errorf("store connection: %w", err)
	}

	profile := linked.Profile
	profile.ConnectionID = conn.ID
	profile.Platform = conn.Platform
	profile.PlatformAccountID = accountID
	if _, err := f.store.UpsertAccountProfile(ctx, profile); err != nil {
		return database.Connection{}, fmt.Errorf("store account profile: %w", err)
	}
	return conn, nil
}
