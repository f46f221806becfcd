// SPDX-License-Identifier: AGPL-3.0-only
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/google/uuid"
)

type GrowthPoint struct {
	Date       string `json:"date"`
	Followers  *int64 `json:"followers,omitempty"`
	TotalViews *int64 `json:"totalViews,omitempty"`
	TotalLikes *int64 `json:"totalLikes,omitempty"`
}

type ContentTotals struct {
	Items    int   `json:"items"`
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

type AccountStats struct {
	AccountID uuid.UUID         `json:"accountId"`
	Platform  database.Platform `json:"platform"`
	Username  string            `json:"username,omitempty"`
	Points    []GrowthPoint     `json:"points"`
	// FollowerDelta is the change between the first and last snapshot that
	// both carry a follower count.
	FollowerDelta *int64         `json:"followerDelta,omitempty"`
	Content       ContentTotals  `json:"content"`
	LatestInsight map[string]any `json:"latestInsights,omitempty"`
	RevenueCents  *int64         `json:"estimatedRevenueCents,omitempty"`
}

func nullPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// GetStats builds the daily growth series, content totals and the most
// recent insights of an account profile.
func GetStats(ctx context.Context, store database.Store, profile database.AccountProfile) (AccountStats, error) {
	out := AccountStats{
		AccountID: profile.ID,
		Platform:  profile.Platform,
		Username:  profile.Username.String,
		Points:    []GrowthPoint{},
	}

	snapshots, err := store.ListAccountSnapshots(ctx, profile.ID)
	if err != nil {
		return AccountStats{}, fmt.Errorf("list snapshots: %w", err)
	}

	var first, last *int64
	for _, s := range snapshots {
		out.Points = append(out.Points, GrowthPoint{
			Date:       s.SnapshotDate.UTC().Format(time.DateOnly),
			Followers:  nullPtr(s.FollowerCount),
			TotalViews: nullPtr(s.TotalViews),
			TotalLikes: nullPtr(s.TotalLikes),
		})
		if s.FollowerCount.Valid {
			if first == nil {
				first = nullPtr(s.FollowerCount)
			}
			last = nullPtr(s.FollowerCount)
		}
	}
	if first != nil {
		delta := *last - *first
		out.FollowerDelta = &delta
	}

	items, err := store.ListContentItems(ctx, profile.ID)
	if err != nil {
		return AccountStats{}, fmt.Errorf("list content: %w", err)
	}
	out.Content.Items = len(items)
	for _, it := range items {
		out.Content.Views += it.ViewCount.Int64
		out.Content.Likes += it.LikeCount.Int64
		out.Content.Comments += it.CommentCount.Int64
		out.Content.Shares += it.ShareCount.Int64
	}

	insights, err := store.ListInsightsSnapshots(ctx, profile.ID)
	if err != nil {
		return AccountStats{}, fmt.Errorf("list insights: %w", err)
	}
	if n := len(insights); n > 0 {
		latest := insights[n-1]
		out.LatestInsight = latest.Metrics
		out.RevenueCents = nullPtr(latest.EstimatedRevenueCents)
	}

	return out, nil
}
