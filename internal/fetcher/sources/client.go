// SPDX-License-Identifier: AGPL-3.0-only
package sources

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/google/uuid"
)

// ErrReconnectRequired means the stored credentials can no longer produce a
// usable access token and the user has to go through OAuth again.
var ErrReconnectRequired = errors.New("reconnect required")

// Deps are the collaborators every platform client is built from.
type Deps struct {
	Store    database.Store
	Cipher   *auth.TokenCipher
	HTTP     *common.Client
	YouTube  *authhelp.YouTubeOAuth
	Facebook *authhelp.FacebookOAuth
	TikTok   *authhelp.TikTokOAuth

	// YouTubeEndpoint and AnalyticsEndpoint override the Google API base
	// URLs. Empty means the library default.
	YouTubeEndpoint   string
	AnalyticsEndpoint string

	Clock func() time.Time
}

func (d Deps) Now() time.Time {
	if d.Clock != nil {
		return d.Clock()
	}
	return time.Now()
}

// loadConnection fetches the connection and decrypts its access token.
func loadConnection(ctx context.Context, d Deps, id uuid.UUID, platform database.Platform) (database.Connection, string, error) {
	conn, err := d.Store.GetConnection(ctx, id)
	if err != nil {
		return database.Connection{}, "", fmt.Errorf("connection %s: %w", id, err)
	}
	if conn.Platform != platform {
		return database.Connection{}, "", fmt.Errorf("connection %s belongs to %s, not %s", id, conn.Platform, platform)
	}

	token, err := d.Cipher.Decrypt(conn.AccessTokenEncrypted)
	if err != nil {
		return database.Connection{}, "", fmt.Errorf("decrypt access token: %w", err)
	}
	return conn, token, nil
}

func decryptRefreshToken(d Deps, conn database.Connection) (string, error) {
	if !conn.RefreshTokenEncrypted.Valid || conn.RefreshTokenEncrypted.String == "" {
		return "", errors.New("no refresh token stored")
	}
	return d.Cipher.Decrypt(conn.RefreshTokenEncrypted.String)
}

// persistTokens stores a refreshed token set. Zero fields leave the stored
// refresh token and its expiry untouched.
func persistTokens(ctx context.Context, d Deps, id uuid.UUID, set authhelp.TokenSet) error {
	access, err := d.Cipher.Encrypt(set.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, ok, err := d.Cipher.EncryptOptional(set.RefreshToken)
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}

	return d.Store.UpdateConnectionTokens(ctx, database.UpdateConnectionTokensParams{
		ID:                    id,
		AccessTokenEncrypted:  access,
		RefreshTokenEncrypted: sql.NullString{String: refresh, Valid: ok},
		TokenExpiresAt:        common.NullTime(set.ExpiresAt),
		RefreshTokenExpiresAt: common.NullTime(set.RefreshExpiresAt),
	})
}

func reconnect(err error) error {
	return fmt.Errorf("%w: %w", ErrReconnectRequired, err)
}

// expired reports whether the stored expiry has passed. A missing expiry is
// treated as expired.
func expired(t sql.NullTime, now time.Time) bool {
	return !t.Valid || !t.Time.After(now)
}
