// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/google/uuid"
)

// TikTokSync has no insights step: the display API exposes no account
// analytics.
type TikTokSync struct {
	deps sources.Deps
	rec  Recorder
}

func NewTikTokSync(d sources.Deps, rec Recorder) *TikTokSync {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &TikTokSync{deps: d, rec: rec}
}

func (s *TikTokSync) Platform() database.Platform { return database.PlatformTikTok }

func (s *TikTokSync) SyncAll(ctx context.Context) BatchResult {
	return syncAll(ctx, s.deps, s)
}

func (s *TikTokSync) SyncAccount(ctx context.Context, connectionID uuid.UUID) (*SyncResult, error) {
	return executeSync(ctx, s.deps, s.rec, database.PlatformTikTok, connectionID, func(res *SyncResult) error {
		client, err := sources.NewTikTokClient(ctx, s.deps, connectionID)
		if err != nil {
			return err
		}

		accountID := s.syncUser(ctx, client, res, connectionID)
		if accountID == uuid.Nil {
			return nil
		}

		s.syncVideos(ctx, client, res, accountID)
		return nil
	})
}

func (s *TikTokSync) syncUser(ctx context.Context, client *sources.TikTokClient, res *SyncResult, connectionID uuid.UUID) uuid.UUID {
	user, err := client.GetUserInfo(ctx)
	if err != nil {
		res.addError("User fetch failed: %v", err)
		id, err := resolveAccount(ctx, s.deps, connectionID)
		if err != nil {
			res.addError("%v", err)
			return uuid.Nil
		}
		return id
	}

	accountID := saveProfile(ctx, s.deps, res, connectionID, sources.TikTokProfile(user))
	if accountID == uuid.Nil {
		return uuid.Nil
	}

	if err := common.SaveDailySnapshot(ctx, s.deps.Store, accountID, sources.TikTokStats(user), s.deps.Now()); err != nil {
		res.addError("Snapshot creation failed: %v", err)
	} else {
		res.SnapshotCreated = true
	}
	return accountID
}

func (s *TikTokSync) syncVideos(ctx context.Context, client *sources.TikTokClient, res *SyncResult, accountID uuid.UUID) {
	videos, err := client.GetAllVideos(ctx, ContentLimit)
	if err != nil {
		res.addError("Video sync failed: %v", err)
		return
	}

	now := s.deps.Now()
	for _, v := range videos {
		item := tiktokContentItem(accountID, v)
		item.SyncedAt = now
		if _, err := s.deps.Store.UpsertContentItem(ctx, item); err != nil {
			res.addError("Video %s save failed: %v", v.ID, err)
			continue
		}
		res.ItemsSynced++
	}
}

func tiktokContentItem(accountID uuid.UUID, v sources.TikTokVideo) database.ContentItem {
	item := database.ContentItem{
		AccountID:         accountID,
		PlatformContentID: v.ID,
		ContentType:       "video",
		Title:             common.NullString(v.Title),
		Description:       common.NullText(v.VideoDescription),
		PublishedAt:       common.NullTime(v.PublishedAt()),
		ThumbnailURL:      common.NullString(v.CoverImageURL),
		Permalink:         common.NullString(v.ShareURL),
		DurationSeconds:   common.NullInt64(v.Duration),
		ViewCount:         common.NullInt64(v.ViewCount),
		LikeCount:         common.NullInt64(v.LikeCount),
		CommentCount:      common.NullInt64(v.CommentCount),
		ShareCount:        common.NullInt64(v.ShareCount),
		Extra:             database.JSONMap{},
	}
	if v.EmbedLink != "" {
		item.Extra["embedLink"] = v.EmbedLink
	}
	if v.Width != nil {
		item.Extra["width"] = *v.Width
	}
	if v.Height != nil {
		item.Extra["height"] = *v.Height
	}
	return item
}
