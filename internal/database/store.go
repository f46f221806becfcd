// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence surface used by the OAuth flows and sync engines.
// Every Upsert is keyed on the record's natural key and is last-write-wins.
type Store interface {
	Ping(ctx context.Context) error

	// UpsertConnection is keyed on (user_id, platform, platform_account_id)
	// and reactivates a previously deactivated connection.
	UpsertConnection(ctx context.Context, arg UpsertConnectionParams) (Connection, error)
	GetConnection(ctx context.Context, id uuid.UUID) (Connection, error)
	GetActiveConnectionForUser(ctx context.Context, userID string, platform Platform) (Connection, error)
	ListActiveConnections(ctx context.Context, platform Platform) ([]Connection, error)
	ListUserConnections(ctx context.Context, userID string) ([]Connection, error)
	ListConnections(ctx context.Context) ([]Connection, error)
	UpdateConnectionTokens(ctx context.Context, arg UpdateConnectionTokensParams) error
	UpdateConnectionLastSync(ctx context.Context, id uuid.UUID, at time.Time) error
	DeactivateConnection(ctx context.Context, id uuid.UUID, userID string) error

	// UpsertAccountProfile is keyed on connection_id.
	UpsertAccountProfile(ctx context.Context, arg AccountProfile) (AccountProfile, error)
	GetAccountProfileByConnection(ctx context.Context, connectionID uuid.UUID) (AccountProfile, error)

	// UpsertAccountSnapshot is keyed on (account_id, snapshot_date).
	UpsertAccountSnapshot(ctx context.Context, arg AccountSnapshot) (AccountSnapshot, error)
	ListAccountSnapshots(ctx context.Context, accountID uuid.UUID) ([]AccountSnapshot, error)

	// UpsertContentItem is keyed on (account_id, platform_content_id).
	UpsertContentItem(ctx context.Context, arg ContentItem) (ContentItem, error)
	ListContentItems(ctx context.Context, accountID uuid.UUID) ([]ContentItem, error)

	// UpsertInsightsSnapshot is keyed on (account_id, snapshot_date, period_start, period_end).
	UpsertInsightsSnapshot(ctx context.Context, arg InsightsSnapshot) (InsightsSnapshot, error)
	ListInsightsSnapshots(ctx context.Context, accountID uuid.UUID) ([]InsightsSnapshot, error)
}
