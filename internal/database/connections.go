// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const connectionColumns = `id, user_id, platform, platform_account_id, platform_page_id,
	access_token_encrypted, refresh_token_encrypted, token_expires_at, refresh_token_expires_at,
	scopes, is_active, last_sync_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConnection(row rowScanner) (Connection, error) {
	var i Connection
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Platform,
		&i.PlatformAccountID,
		&i.PlatformPageID,
		&i.AccessTokenEncrypted,
		&i.RefreshTokenEncrypted,
		&i.TokenExpiresAt,
		&i.RefreshTokenExpiresAt,
		pq.Array(&i.Scopes),
		&i.IsActive,
		&i.LastSyncAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) listConnections(ctx context.Context, query string, args ...interface{}) ([]Connection, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Connection
	for rows.Next() {
		i, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertConnection = `-- name: UpsertConnection :one
INSERT INTO connections (
	id, user_id, platform, platform_account_id, platform_page_id,
	access_token_encrypted, refresh_token_encrypted, token_expires_at, refresh_token_expires_at,
	scopes, is_active, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, $11, $11)
ON CONFLICT (user_id, platform, platform_account_id) DO UPDATE SET
	platform_page_id = EXCLUDED.platform_page_id,
	access_token_encrypted = EXCLUDED.access_token_encrypted,
	refresh_token_encrypted = EXCLUDED.refresh_token_encrypted,
	token_expires_at = EXCLUDED.token_expires_at,
	refresh_token_expires_at = EXCLUDED.refresh_token_expires_at,
	scopes = EXCLUDED.scopes,
	is_active = TRUE,
	updated_at = EXCLUDED.updated_at
RETURNING ` + connectionColumns

func (q *Queries) UpsertConnection(ctx context.Context, arg UpsertConnectionParams) (Connection, error) {
	row := q.db.QueryRowContext(ctx, upsertConnection,
		uuid.New(),
		arg.UserID,
		arg.Platform,
		arg.PlatformAccountID,
		arg.PlatformPageID,
		arg.AccessTokenEncrypted,
		arg.RefreshTokenEncrypted,
		arg.TokenExpiresAt,
		arg.RefreshTokenExpiresAt,
		pq.Array(arg.Scopes),
		time.Now().UTC(),
	)
	return scanConnection(row)
}

const getConnection = `-- name: GetConnection :one
SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

func (q *Queries) GetConnection(ctx context.Context, id uuid.UUID) (Connection, error) {
	i, err := scanConnection(q.db.QueryRowContext(ctx, getConnection, id))
	return i, notFound(err)
}

const getActiveConnectionForUser = `-- name: GetActiveConnectionForUser :one
SELECT ` + connectionColumns + ` FROM connections
WHERE user_id = $1 AND platform = $2 AND is_active
ORDER BY updated_at DESC
LIMIT 1`

func (q *Queries) GetActiveConnectionForUser(ctx context.Context, userID string, platform Platform) (Connection, error) {
	i, err := scanConnection(q.db.QueryRowContext(ctx, getActiveConnectionForUser, userID, platform))
	return i, notFound(err)
}

const listActiveConnections = `-- name: ListActiveConnections :many
SELECT ` + connectionColumns + ` FROM connections
WHERE platform = $1 AND is_active
ORDER BY created_at`

func (q *Queries) ListActiveConnections(ctx context.Context, platform Platform) ([]Connection, error) {
	return q.listConnections(ctx, listActiveConnections, platform)
}

const listUserConnections = `-- name: ListUserConnections :many
SELECT ` + connectionColumns + ` FROM connections
WHERE user_id = $1
ORDER BY platform, created_at`

func (q *Queries) ListUserConnections(ctx context.Context, userID string) ([]Connection, error) {
	return q.listConnections(ctx, listUserConnections, userID)
}

const listConnections = `-- name: ListConnections :many
SELECT ` + connectionColumns + ` FROM connections ORDER BY created_at`

func (q *Queries) ListConnections(ctx context.Context) ([]Connection, error) {
	return q.listConnections(ctx, listConnections)
}

const updateConnectionTokens = `-- name: UpdateConnectionTokens :exec
UPDATE connections SET
	access_token_encrypted = $2,
	refresh_token_encrypted = COALESCE($3, refresh_token_encrypted),
	token_expires_at = $4,
	refresh_token_expires_at = COALESCE($5, refresh_token_expires_at),
	updated_at = $6
WHERE id = $1`

func (q *Queries) UpdateConnectionTokens(ctx context.Context, arg UpdateConnectionTokensParams) error {
	res, err := q.db.ExecContext(ctx, updateConnectionTokens,
		arg.ID,
		arg.AccessTokenEncrypted,
		arg.RefreshTokenEncrypted,
		arg.TokenExpiresAt,
		arg.RefreshTokenExpiresAt,
		time.Now().UTC(),
	)
	return affectedOne(res, err)
}

const updateConnectionLastSync = `-- name: UpdateConnectionLastSync :exec
UPDATE connections SET last_sync_at = $2, updated_at = $2 WHERE id = $1`

func (q *Queries) UpdateConnectionLastSync(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := q.db.ExecContext(ctx, updateConnectionLastSync, id, at.UTC())
	return affectedOne(res, err)
}

const deactivateConnection = `-- name: DeactivateConnection :exec
UPDATE connections SET is_active = FALSE, updated_at = $3 WHERE id = $1 AND user_id = $2`

func (q *Queries) DeactivateConnection(ctx context.Context, id uuid.UUID, userID string) error {
	res, err := q.db.ExecContext(ctx, deactivateConnection, id, userID, time.Now().UTC())
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
