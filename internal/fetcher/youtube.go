// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"math"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/google/uuid"
	"google.golang.org/api/youtube/v3"
)

type YouTubeSync struct {
	deps sources.Deps
	rec  Recorder
}

func NewYouTubeSync(d sources.Deps, rec Recorder) *YouTubeSync {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &YouTubeSync{deps: d, rec: rec}
}

func (s *YouTubeSync) Platform() database.Platform { return database.PlatformYouTube }

func (s *YouTubeSync) SyncAll(ctx context.Context) BatchResult {
	return syncAll(ctx, s.deps, s)
}

func (s *YouTubeSync) SyncAccount(ctx context.Context, connectionID uuid.UUID) (*SyncResult, error) {
	return executeSync(ctx, s.deps, s.rec, database.PlatformYouTube, connectionID, func(res *SyncResult) error {
		client, err := sources.NewYouTubeClient(ctx, s.deps, connectionID)
		if err != nil {
			return err
		}

		accountID := s.syncChannel(ctx, client, res, connectionID)
		if accountID == uuid.Nil {
			return nil
		}

		s.syncVideos(ctx, client, res, accountID)
		s.syncInsights(ctx, client, res, accountID)
		return nil
	})
}

func (s *YouTubeSync) syncChannel(ctx context.Context, client *sources.YouTubeClient, res *SyncResult, connectionID uuid.UUID) uuid.UUID {
	ch, err := client.GetChannelInfo(ctx)
	if err != nil {
		res.addError("Channel fetch failed: %v", err)
		id, err := resolveAccount(ctx, s.deps, connectionID)
		if err != nil {
			res.addError("%v", err)
			return uuid.Nil
		}
		return id
	}

	accountID := saveProfile(ctx, s.deps, res, connectionID, sources.YouTubeChannelProfile(ch))
	if accountID == uuid.Nil {
		return uuid.Nil
	}

	if err := common.SaveDailySnapshot(ctx, s.deps.Store, accountID, sources.YouTubeChannelStats(ch), s.deps.Now()); err != nil {
		res.addError("Snapshot creation failed: %v", err)
	} else {
		res.SnapshotCreated = true
	}
	return accountID
}

func (s *YouTubeSync) syncVideos(ctx context.Context, client *sources.YouTubeClient, res *SyncResult, accountID uuid.UUID) {
	page, err := client.GetVideos(ctx, ContentLimit)
	if err != nil {
		res.addError("Video sync failed: %v", err)
		return
	}
	for _, msg := range page.MetricErrors {
		res.addError("Video metrics fetch failed: %s", msg)
	}

	now := s.deps.Now()
	for _, v := range page.Videos {
		item := youtubeContentItem(accountID, v)
		item.SyncedAt = now
		if _, err := s.deps.Store.UpsertContentItem(ctx, item); err != nil {
			res.addError("Video %s save failed: %v", v.Id, err)
			continue
		}
		res.ItemsSynced++
	}
}

func (s *YouTubeSync) syncInsights(ctx context.Context, client *sources.YouTubeClient, res *SyncResult, accountID uuid.UUID) {
	start, end := common.InsightsWindow(s.deps.Now())

	report, err := client.GetChannelAnalytics(ctx, start, end, true)
	if err != nil {
		res.addError("Analytics sync failed: %v", err)
		res.setInsights(false)
		return
	}
	if report.Empty() {
		res.setInsights(false)
		return
	}

	snap := database.InsightsSnapshot{
		AccountID:    accountID,
		SnapshotDate: database.SnapshotDay(s.deps.Now()),
		PeriodStart:  start,
		PeriodEnd:    end,
		Metrics:      database.JSONMap(report.Metrics()),
		Breakdowns:   database.JSONMap{},
	}
	if revenue, ok := report.Value("estimatedRevenue"); ok {
		snap.EstimatedRevenueCents = common.Int64(int64(math.Round(revenue * 100)))
	}

	if traffic, err := client.GetTrafficSources(ctx, start, end); err != nil {
		res.addError("Traffic sources fetch failed: %v", err)
	} else if !traffic.Empty() {
		snap.Breakdowns["trafficSources"] = traffic.Table()
	}
	if demo, err := client.GetDemographics(ctx, start, end); err != nil {
		res.addError("Demographics fetch failed: %v", err)
	} else if !demo.Empty() {
		snap.Breakdowns["demographics"] = demo.Table()
	}
	if geo, err := client.GetGeography(ctx, start, end); err != nil {
		res.addError("Geography fetch failed: %v", err)
	} else if !geo.Empty() {
		snap.Breakdowns["geography"] = geo.Table()
	}
	if imp, err := client.GetImpressionMetrics(ctx, start, end); err != nil {
		res.addError("Impressions fetch failed: %v", err)
	} else {
		for k, v := range imp.Metrics() {
			snap.Metrics[k] = v
		}
	}
	if playlists, err := client.GetPlaylists(ctx); err != nil {
		res.addError("Playlists fetch failed: %v", err)
	} else {
		snap.Breakdowns["playlists"] = youtubePlaylists(playlists)
	}

	if _, err := s.deps.Store.UpsertInsightsSnapshot(ctx, snap); err != nil {
		res.addError("Analytics save failed: %v", err)
		res.setInsights(false)
		return
	}
	res.setInsights(true)
}

func youtubeContentItem(accountID uuid.UUID, v *youtube.Video) database.ContentItem {
	item := database.ContentItem{
		AccountID:         accountID,
		PlatformContentID: v.Id,
		ContentType:       "video",
		Permalink:         common.NullString("https://www.youtube.com/watch?v=" + v.Id),
		Extra:             database.JSONMap{},
	}
	if sn := v.Snippet; sn != nil {
		item.Title = common.NullString(sn.Title)
		item.Description = common.NullText(sn.Description)
		item.PublishedAt = common.NullTime(common.ParseTime(sn.PublishedAt))
		item.ThumbnailURL = common.NullString(sources.ThumbnailURL(sn.Thumbnails))
		item.Tags = sn.Tags
		if sn.CategoryId != "" {
			item.Extra["categoryId"] = sn.CategoryId
		}
	}
	if cd := v.ContentDetails; cd != nil {
		if secs, ok := common.ParseISODuration(cd.Duration); ok {
			item.DurationSeconds = common.Int64(secs)
		}
		if cd.Definition != "" {
			item.Extra["definition"] = cd.Definition
		}
	}
	if st := v.Status; st != nil {
		item.PrivacyStatus = common.NullString(st.PrivacyStatus)
	}
	if st := v.Statistics; st != nil {
		item.ViewCount = common.Int64(int64(st.ViewCount))
		item.LikeCount = common.Int64(int64(st.LikeCount))
		item.CommentCount = common.Int64(int64(st.CommentCount))
	}
	return item
}

func youtubePlaylists(list []*youtube.Playlist) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, p := range list {
		entry := map[string]any{"id": p.Id}
		if p.Snippet != nil {
			entry["title"] = p.Snippet.Title
		}
		if p.ContentDetails != nil {
			entry["itemCount"] = p.ContentDetails.ItemCount
		}
		out = append(out, entry)
	}
	return out
}
