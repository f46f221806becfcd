// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const mediaInsightsConcurrency = 5

type InstagramSync struct {
	deps sources.Deps
	rec  Recorder
}

func NewInstagramSync(d sources.Deps, rec Recorder) *InstagramSync {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &InstagramSync{deps: d, rec: rec}
}

func (s *InstagramSync) Platform() database.Platform { return database.PlatformInstagram }

func (s *InstagramSync) SyncAll(ctx context.Context) BatchResult {
	return syncAll(ctx, s.deps, s)
}

func (s *InstagramSync) SyncAccount(ctx context.Context, connectionID uuid.UUID) (*SyncResult, error) {
	return executeSync(ctx, s.deps, s.rec, database.PlatformInstagram, connectionID, func(res *SyncResult) error {
		client, err := sources.NewInstagramClient(ctx, s.deps, connectionID)
		if err != nil {
			return err
		}

		accountID := s.syncAccountInfo(ctx, client, res, connectionID)
		if accountID == uuid.Nil {
			return nil
		}

		s.syncMedia(ctx, client, res, accountID)
		s.syncInsights(ctx, client, res, accountID)
		return nil
	})
}

func (s *InstagramSync) syncAccountInfo(ctx context.Context, client *sources.InstagramClient, res *SyncResult, connectionID uuid.UUID) uuid.UUID {
	acc, err := client.GetAccountInfo(ctx)
	if err != nil {
		res.addError("Account fetch failed: %v", err)
		id, err := resolveAccount(ctx, s.deps, connectionID)
		if err != nil {
			res.addError("%v", err)
			return uuid.Nil
		}
		return id
	}

	accountID := saveProfile(ctx, s.deps, res, connectionID, sources.InstagramProfile(acc))
	if accountID == uuid.Nil {
		return uuid.Nil
	}

	if err := common.SaveDailySnapshot(ctx, s.deps.Store, accountID, sources.InstagramStats(acc), s.deps.Now()); err != nil {
		res.addError("Snapshot creation failed: %v", err)
	} else {
		res.SnapshotCreated = true
	}
	return accountID
}

type mediaInsightsResult struct {
	insights *sources.Insights
	err      error
}

func (s *InstagramSync) syncMedia(ctx context.Context, client *sources.InstagramClient, res *SyncResult, accountID uuid.UUID) {
	media, err := client.GetMedia(ctx, ContentLimit)
	if err != nil {
		res.addError("Media sync failed: %v", err)
		return
	}

	results := make([]mediaInsightsResult, len(media))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mediaInsightsConcurrency)
	for i, m := range media {
		g.Go(func() error {
			in, err := client.GetMediaInsights(gctx, m.ID, m.MediaType)
			results[i] = mediaInsightsResult{insights: in, err: err}
			return nil
		})
	}
	_ = g.Wait()

	now := s.deps.Now()
	for i, m := range media {
		if results[i].err != nil {
			res.addError("Insights for media %s failed: %v", m.ID, results[i].err)
		}
		item := instagramContentItem(accountID, m, results[i].insights)
		item.SyncedAt = now
		if _, err := s.deps.Store.UpsertContentItem(ctx, item); err != nil {
			res.addError("Media %s save failed: %v", m.ID, err)
			continue
		}
		res.ItemsSynced++
	}
}

func (s *InstagramSync) syncInsights(ctx context.Context, client *sources.InstagramClient, res *SyncResult, accountID uuid.UUID) {
	start, end := common.InsightsWindow(s.deps.Now())

	insights, err := client.GetAccountInsights(ctx, "days_28")
	if err != nil {
		res.addError("Insights sync failed: %v", err)
		res.setInsights(false)
		return
	}

	snap := database.InsightsSnapshot{
		AccountID:    accountID,
		SnapshotDate: database.SnapshotDay(s.deps.Now()),
		PeriodStart:  start,
		PeriodEnd:    end,
		Metrics:      database.JSONMap{},
		Breakdowns:   database.JSONMap{},
	}
	for _, m := range insights.Data {
		if v, ok := insights.Raw(m.Name); ok {
			snap.Metrics[m.Name] = v
		}
	}

	if audience, err := client.GetAudienceDemographics(ctx); err != nil {
		res.addError("Audience demographics fetch failed: %v", err)
	} else {
		for _, m := range audience.Data {
			if v, ok := audience.Raw(m.Name); ok {
				snap.Breakdowns[m.Name] = v
			}
		}
	}
	if online, err := client.GetOnlineFollowers(ctx); err != nil {
		res.addError("Online followers fetch failed: %v", err)
	} else if v, ok := online.Raw("online_followers"); ok {
		snap.Breakdowns["online_followers"] = v
	}

	if len(snap.Metrics) == 0 && len(snap.Breakdowns) == 0 {
		res.setInsights(false)
		return
	}

	if _, err := s.deps.Store.UpsertInsightsSnapshot(ctx, snap); err != nil {
		res.addError("Insights save failed: %v", err)
		res.setInsights(false)
		return
	}
	res.setInsights(true)
}

func instagramContentItem(accountID uuid.UUID, m sources.InstagramMedia, in *sources.Insights) database.ContentItem {
	item := database.ContentItem{
		AccountID:         accountID,
		PlatformContentID: m.ID,
		ContentType:       m.MediaType,
		ProductType:       common.NullString(m.MediaProductType),
		Description:       common.NullText(m.Caption),
		PublishedAt:       common.NullTime(common.ParseTime(m.Timestamp)),
		ThumbnailURL:      common.NullString(m.ThumbnailURL),
		MediaURL:          common.NullString(m.MediaURL),
		Permalink:         common.NullString(m.Permalink),
		LikeCount:         common.NullInt64(m.LikeCount),
		CommentCount:      common.NullInt64(m.CommentsCount),
		Extra:             database.JSONMap{},
	}
	if in == nil {
		return item
	}
	if v, ok := in.Int("impressions"); ok {
		item.ViewCount = common.NullInt64(v)
	}
	if v, ok := in.Int("plays"); ok {
		item.PlayCount = common.NullInt64(v)
	}
	if v, ok := in.Int("reach"); ok {
		item.ReachCount = common.NullInt64(v)
	}
	if v, ok := in.Int("saved"); ok {
		item.SavedCount = common.NullInt64(v)
	}
	if v, ok := in.Int("shares"); ok {
		item.ShareCount = common.NullInt64(v)
	}
	return item
}
