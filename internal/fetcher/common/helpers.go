// SPDX-License-Identifier: AGPL-3.0-only
package common

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/google/uuid"
	"github.com/sosodev/duration"
)

const MaxTextLength = 5000

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func NullText(s string) sql.NullString {
	return NullString(Truncate(s, MaxTextLength))
}

func NullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func Int64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: true}
}

func NullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// ParseTime accepts RFC3339 and the graph API offset format.
func ParseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// SaveDailySnapshot writes the account counters for the UTC day of now.
// A second call on the same day overwrites the first.
func SaveDailySnapshot(ctx context.Context, store database.Store, accountID uuid.UUID, stats ProfileStats, now time.Time) error {
	_, err := store.UpsertAccountSnapshot(ctx, database.AccountSnapshot{
		AccountID:      accountID,
		SnapshotDate:   database.SnapshotDay(now),
		FollowerCount:  NullInt64(stats.FollowersCount),
		FollowingCount: NullInt64(stats.FollowingCount),
		ContentCount:   NullInt64(stats.ContentCount),
		TotalViews:     NullInt64(stats.TotalViews),
		TotalLikes:     NullInt64(stats.TotalLikes),
	})
	return err
}

// InsightsWindow is the trailing 28 day period ending today.
func InsightsWindow(now time.Time) (start, end time.Time) {
	end = database.SnapshotDay(now)
	start = end.AddDate(0, 0, -28)
	return start, end
}

// ParseISODuration reads the PnDTnHnMnS form YouTube uses for video length
// and returns whole seconds.
func ParseISODuration(s string) (int64, bool) {
	if !strings.HasPrefix(s, "P") {
		return 0, false
	}
	d, err := duration.Parse(s)
	if err != nil || d.Negative {
		return 0, false
	}
	return int64(d.ToTimeDuration() / time.Second), true
}
