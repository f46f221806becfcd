// SPDX-License-Identifier: AGPL-3.0-only
package stats

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	store := database.NewMemoryStore()

	profile, err := store.UpsertAccountProfile(ctx, database.AccountProfile{
		ConnectionID:      uuid.New(),
		Platform:          database.PlatformYouTube,
		PlatformAccountID: "UC1",
		Username:          sql.NullString{String: "@creator", Valid: true},
	})
	require.NoError(t, err)

	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, followers := range []int64{100, 0, 130} {
		snap := database.AccountSnapshot{AccountID: profile.ID, SnapshotDate: day.AddDate(0, 0, i)}
		if followers > 0 {
			snap.FollowerCount = sql.NullInt64{Int64: followers, Valid: true}
		}
		_, err := store.UpsertAccountSnapshot(ctx, snap)
		require.NoError(t, err)
	}

	for id, views := range map[string]int64{"v1": 10, "v2": 32} {
		_, err := store.UpsertContentItem(ctx, database.ContentItem{
			AccountID:         profile.ID,
			PlatformContentID: id,
			ContentType:       "video",
			ViewCount:         sql.NullInt64{Int64: views, Valid: true},
			LikeCount:         sql.NullInt64{Int64: 1, Valid: true},
		})
		require.NoError(t, err)
	}

	_, err = store.UpsertInsightsSnapshot(ctx, database.InsightsSnapshot{
		AccountID:             profile.ID,
		SnapshotDate:          day,
		PeriodStart:           day.AddDate(0, 0, -28),
		PeriodEnd:             day,
		Metrics:               database.JSONMap{"views": 1500.0},
		EstimatedRevenueCents: sql.NullInt64{Int64: 1234, Valid: true},
	})
	require.NoError(t, err)

	got, err := GetStats(ctx, store, profile)
	require.NoError(t, err)

	require.Len(t, got.Points, 3)
	assert.Equal(t, "2024-06-01", got.Points[0].Date)
	assert.Nil(t, got.Points[1].Followers)
	require.NotNil(t, got.FollowerDelta)
	assert.Equal(t, int64(30), *got.FollowerDelta)

	assert.Equal(t, ContentTotals{Items: 2, Views: 42, Likes: 2}, got.Content)
	assert.Equal(t, 1500.0, got.LatestInsight["views"])
	require.NotNil(t, got.RevenueCents)
	assert.Equal(t, int64(1234), *got.RevenueCents)
}

func TestGetStats_EmptyAccount(t *testing.T) {
	got, err := GetStats(context.Background(), database.NewMemoryStore(), database.AccountProfile{ID: uuid.New(), Platform: database.PlatformTikTok})
	require.NoError(t, err)
	assert.Empty(t, got.Points)
	assert.NotNil(t, got.Points)
	assert.Nil(t, got.FollowerDelta)
	assert.Nil(t, got.LatestInsight)
}
