// SPDX-License-Identifier: AGPL-3.0-only
package exports

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/helpers"
)

var contentHeader = []string{
	"content_id",
	"platform",
	"content_type",
	"published_at",
	"synced_at",
	"title",
	"views",
	"likes",
	"comments",
	"shares",
	"plays",
	"reach",
	"saved",
	"duration_seconds",
	"privacy_status",
	"tags",
	"url",
}

func nullInt(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}

func nullTime(v sql.NullTime) string {
	if !v.Valid {
		return ""
	}
	return v.Time.UTC().Format(time.RFC3339)
}

// Filename is the attachment name offered for an account export.
func Filename(profile database.AccountProfile, now time.Time) string {
	return fmt.Sprintf("%s_%s_content_%s.csv", profile.Platform, profile.PlatformAccountID, now.UTC().Format("20060102_150405"))
}

// WriteContentCSV writes one row per content item of profile. Items without
// a stored permalink get a link built from the platform URL scheme when one
// exists.
func WriteContentCSV(w io.Writer, profile database.AccountProfile, items []database.ContentItem) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(contentHeader); err != nil {
		return err
	}

	for _, it := range items {
		link := it.Permalink.String
		if link == "" {
			link, _ = helpers.ContentURL(profile.Platform, profile.Username.String, it.PlatformContentID)
		}

		if err := writer.Write([]string{
			it.PlatformContentID,
			string(profile.Platform),
			it.ContentType,
			nullTime(it.PublishedAt),
			it.SyncedAt.UTC().Format(time.RFC3339),
			it.Title.String,
			nullInt(it.ViewCount),
			nullInt(it.LikeCount),
			nullInt(it.CommentCount),
			nullInt(it.ShareCount),
			nullInt(it.PlayCount),
			nullInt(it.ReachCount),
			nullInt(it.SavedCount),
			nullInt(it.DurationSeconds),
			it.PrivacyStatus.String,
			strings.Join(it.Tags, "|"),
			link,
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
