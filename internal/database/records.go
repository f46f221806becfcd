// SPDX-License-Identifier: AGPL-3.0-only
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const profileColumns = `id, connection_id, platform, platform_account_id, username, display_name, bio,
	avatar_url, profile_url, follower_count, following_count, content_count, total_views, total_likes,
	is_verified, account_type, extra, created_at, updated_at`

func scanProfile(row rowScanner) (AccountProfile, error) {
	var i AccountProfile
	err := row.Scan(
		&i.ID,
		&i.ConnectionID,
		&i.Platform,
		&i.PlatformAccountID,
		&i.Username,
		&i.DisplayName,
		&i.Bio,
		&i.AvatarURL,
		&i.ProfileURL,
		&i.FollowerCount,
		&i.FollowingCount,
		&i.ContentCount,
		&i.TotalViews,
		&i.TotalLikes,
		&i.IsVerified,
		&i.AccountType,
		&i.Extra,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertAccountProfile = `-- name: UpsertAccountProfile :one
INSERT INTO account_profiles (
	id, connection_id, platform, platform_account_id, username, display_name, bio,
	avatar_url, profile_url, follower_count, following_count, content_count, total_views, total_likes,
	is_verified, account_type, extra, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18)
ON CONFLICT (connection_id) DO UPDATE SET
	platform_account_id = EXCLUDED.platform_account_id,
	username = EXCLUDED.username,
	display_name = EXCLUDED.display_name,
	bio = EXCLUDED.bio,
	avatar_url = EXCLUDED.avatar_url,
	profile_url = EXCLUDED.profile_url,
	follower_count = EXCLUDED.follower_count,
	following_count = EXCLUDED.following_count,
	content_count = EXCLUDED.content_count,
	total_views = EXCLUDED.total_views,
	total_likes = EXCLUDED.total_likes,
	is_verified = EXCLUDED.is_verified,
	account_type = EXCLUDED.account_type,
	extra = EXCLUDED.extra,
	updated_at = EXCLUDED.updated_at
RETURNING ` + profileColumns

func (q *Queries) UpsertAccountProfile(ctx context.Context, arg AccountProfile) (AccountProfile, error) {
	row := q.db.QueryRowContext(ctx, upsertAccountProfile,
		uuid.New(),
		arg.ConnectionID,
		arg.Platform,
		arg.PlatformAccountID,
		arg.Username,
		arg.DisplayName,
		arg.Bio,
		arg.AvatarURL,
		arg.ProfileURL,
		arg.FollowerCount,
		arg.FollowingCount,
		arg.ContentCount,
		arg.TotalViews,
		arg.TotalLikes,
		arg.IsVerified,
		arg.AccountType,
		arg.Extra,
		time.Now().UTC(),
	)
	return scanProfile(row)
}

const getAccountProfileByConnection = `-- name: GetAccountProfileByConnection :one
SELECT ` + profileColumns + ` FROM account_profiles WHERE connection_id = $1`

func (q *Queries) GetAccountProfileByConnection(ctx context.Context, connectionID uuid.UUID) (AccountProfile, error) {
	i, err := scanProfile(q.db.QueryRowContext(ctx, getAccountProfileByConnection, connectionID))
	return i, notFound(err)
}

const snapshotColumns = `id, account_id, snapshot_date, follower_count, following_count, content_count,
	total_views, total_likes, created_at`

func scanSnapshot(row rowScanner) (AccountSnapshot, error) {
	var i AccountSnapshot
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.SnapshotDate,
		&i.FollowerCount,
		&i.FollowingCount,
		&i.ContentCount,
		&i.TotalViews,
		&i.TotalLikes,
		&i.CreatedAt,
	)
	return i, err
}

const upsertAccountSnapshot = `-- name: UpsertAccountSnapshot :one
INSERT INTO account_snapshots (
	id, account_id, snapshot_date, follower_count, following_count, content_count,
	total_views, total_likes, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (account_id, snapshot_date) DO UPDATE SET
	follower_count = EXCLUDED.follower_count,
	following_count = EXCLUDED.following_count,
	content_count = EXCLUDED.content_count,
	total_views = EXCLUDED.total_views,
	total_likes = EXCLUDED.total_likes
RETURNING ` + snapshotColumns

func (q *Queries) UpsertAccountSnapshot(ctx context.Context, arg AccountSnapshot) (AccountSnapshot, error) {
	row := q.db.QueryRowContext(ctx, upsertAccountSnapshot,
		uuid.New(),
		arg.AccountID,
		SnapshotDay(arg.SnapshotDate),
		arg.FollowerCount,
		arg.FollowingCount,
		arg.ContentCount,
		arg.TotalViews,
		arg.TotalLikes,
		time.Now().UTC(),
	)
	return scanSnapshot(row)
}

const listAccountSnapshots = `-- name: ListAccountSnapshots :many
SELECT ` + snapshotColumns + ` FROM account_snapshots WHERE account_id = $1 ORDER BY snapshot_date`

func (q *Queries) ListAccountSnapshots(ctx context.Context, accountID uuid.UUID) ([]AccountSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, listAccountSnapshots, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []AccountSnapshot
	for rows.Next() {
		i, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const contentColumns = `id, account_id, platform_content_id, content_type, product_type, title, description,
	published_at, thumbnail_url, media_url, permalink, duration_seconds, privacy_status, tags,
	view_count, like_count, comment_count, share_count, play_count, reach_count, saved_count,
	extra, synced_at, created_at, updated_at`

func scanContentItem(row rowScanner) (ContentItem, error) {
	var i ContentItem
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.PlatformContentID,
		&i.ContentType,
		&i.ProductType,
		&i.Title,
		&i.Description,
		&i.PublishedAt,
		&i.ThumbnailURL,
		&i.MediaURL,
		&i.Permalink,
		&i.DurationSeconds,
		&i.PrivacyStatus,
		pq.Array(&i.Tags),
		&i.ViewCount,
		&i.LikeCount,
		&i.CommentCount,
		&i.ShareCount,
		&i.PlayCount,
		&i.ReachCount,
		&i.SavedCount,
		&i.Extra,
		&i.SyncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertContentItem = `-- name: UpsertContentItem :one
INSERT INTO content_items (
	id, account_id, platform_content_id, content_type, product_type, title, description,
	published_at, thumbnail_url, media_url, permalink, duration_seconds, privacy_status, tags,
	view_count, like_count, comment_count, share_count, play_count, reach_count, saved_count,
	extra, synced_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $23, $23)
ON CONFLICT (account_id, platform_content_id) DO UPDATE SET
	content_type = EXCLUDED.content_type,
	product_type = EXCLUDED.product_type,
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	published_at = EXCLUDED.published_at,
	thumbnail_url = EXCLUDED.thumbnail_url,
	media_url = EXCLUDED.media_url,
	permalink = EXCLUDED.permalink,
	duration_seconds = EXCLUDED.duration_seconds,
	privacy_status = EXCLUDED.privacy_status,
	tags = EXCLUDED.tags,
	view_count = EXCLUDED.view_count,
	like_count = EXCLUDED.like_count,
	comment_count = EXCLUDED.comment_count,
	share_count = EXCLUDED.share_count,
	play_count = EXCLUDED.play_count,
	reach_count = EXCLUDED.reach_count,
	saved_count = EXCLUDED.saved_count,
	extra = EXCLUDED.extra,
	synced_at = EXCLUDED.synced_at,
	updated_at = EXCLUDED.updated_at
RETURNING ` + contentColumns

func (q *Queries) UpsertContentItem(ctx context.Context, arg ContentItem) (ContentItem, error) {
	syncedAt := arg.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = time.Now()
	}
	row := q.db.QueryRowContext(ctx, upsertContentItem,
		uuid.New(),
		arg.AccountID,
		arg.PlatformContentID,
		arg.ContentType,
		arg.ProductType,
		arg.Title,
		arg.Description,
		arg.PublishedAt,
		arg.ThumbnailURL,
		arg.MediaURL,
		arg.Permalink,
		arg.DurationSeconds,
		arg.PrivacyStatus,
		pq.Array(arg.Tags),
		arg.ViewCount,
		arg.LikeCount,
		arg.CommentCount,
		arg.ShareCount,
		arg.PlayCount,
		arg.ReachCount,
		arg.SavedCount,
		arg.Extra,
		syncedAt.UTC(),
	)
	return scanContentItem(row)
}

const listContentItems = `-- name: ListContentItems :many
SELECT ` + contentColumns + ` FROM content_items WHERE account_id = $1 ORDER BY published_at DESC NULLS LAST`

func (q *Queries) ListContentItems(ctx context.Context, accountID uuid.UUID) ([]ContentItem, error) {
	rows, err := q.db.QueryContext(ctx, listContentItems, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ContentItem
	for rows.Next() {
		i, err := scanContentItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insightsColumns = `id, account_id, snapshot_date, period_start, period_end, metrics, breakdowns,
	estimated_revenue_cents, created_at`

func scanInsights(row rowScanner) (InsightsSnapshot, error) {
	var i InsightsSnapshot
	err := row.Scan(
		&i.ID,
		&i.AccountID,
		&i.SnapshotDate,
		&i.PeriodStart,
		&i.PeriodEnd,
		&i.Metrics,
		&i.Breakdowns,
		&i.EstimatedRevenueCents,
		&i.CreatedAt,
	)
	return i, err
}

const upsertInsightsSnapshot = `-- name: UpsertInsightsSnapshot :one
INSERT INTO insights_snapshots (
	id, account_id, snapshot_date, period_start, period_end, metrics, breakdowns,
	estimated_revenue_cents, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (account_id, snapshot_date, period_start, period_end) DO UPDATE SET
	metrics = EXCLUDED.metrics,
	breakdowns = EXCLUDED.breakdowns,
	estimated_revenue_cents = EXCLUDED.estimated_revenue_cents
RETURNING ` + insightsColumns

func (q *Queries) UpsertInsightsSnapshot(ctx context.Context, arg InsightsSnapshot) (InsightsSnapshot, error) {
	row := q.db.QueryRowContext(ctx, upsertInsightsSnapshot,
		uuid.New(),
		arg.AccountID,
		SnapshotDay(arg.SnapshotDate),
		SnapshotDay(arg.PeriodStart),
		SnapshotDay(arg.PeriodEnd),
		arg.Metrics,
		arg.Breakdowns,
		arg.EstimatedRevenueCents,
		time.Now().UTC(),
	)
	return scanInsights(row)
}

const listInsightsSnapshots = `-- name: ListInsightsSnapshots :many
SELECT ` + insightsColumns + ` FROM insights_snapshots WHERE account_id = $1 ORDER BY snapshot_date`

func (q *Queries) ListInsightsSnapshots(ctx context.Context, accountID uuid.UUID) ([]InsightsSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, listInsightsSnapshots, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InsightsSnapshot
	for rows.Next() {
		i, err := scanInsights(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
