// SPDX-License-Identifier: AGPL-3.0-only
package sources

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"
)

const youtubePageSize = 50

var (
	channelParts  = []string{"snippet", "statistics", "brandingSettings", "contentDetails"}
	videoParts    = []string{"snippet", "statistics", "contentDetails", "status"}
	playlistParts = []string{"snippet", "contentDetails", "status"}

	channelMetrics = []string{
		"views",
		"estimatedMinutesWatched",
		"averageViewDuration",
		"averageViewPercentage",
		"subscribersGained",
		"subscribersLost",
		"likes",
		"comments",
		"shares",
	}
	revenueMetrics = []string{"estimatedRevenue", "cpm"}
)

type YouTubeClient struct {
	ConnectionID uuid.UUID
	ChannelID    string

	data      *youtube.Service
	analytics *youtubeanalytics.Service
	uploads   string
}

// NewYouTubeClient loads the connection and refreshes an expired access token
// before any data call is made.
func NewYouTubeClient(ctx context.Context, d Deps, connectionID uuid.UUID) (*YouTubeClient, error) {
	conn, token, err := loadConnection(ctx, d, connectionID, database.PlatformYouTube)
	if err != nil {
		return nil, err
	}

	if expired(conn.TokenExpiresAt, d.Now()) {
		refreshToken, err := decryptRefreshToken(d, conn)
		if err != nil {
			return nil, reconnect(err)
		}
		set, err := d.YouTube.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, reconnect(err)
		}
		if err := persistTokens(ctx, d, conn.ID, set); err != nil {
			return nil, fmt.Errorf("store refreshed token: %w", err)
		}
		token = set.AccessToken
	}

	c, err := newYouTubeServices(ctx, d, token)
	if err != nil {
		return nil, err
	}
	c.ConnectionID = conn.ID
	c.ChannelID = conn.PlatformAccountID
	return c, nil
}

func newYouTubeServices(ctx context.Context, d Deps, token string) (*YouTubeClient, error) {
	hc := d.HTTP.BearerHTTPClient(token)

	dataOpts := []option.ClientOption{option.WithHTTPClient(hc)}
	if d.YouTubeEndpoint != "" {
		dataOpts = append(dataOpts, option.WithEndpoint(d.YouTubeEndpoint))
	}
	data, err := youtube.NewService(ctx, dataOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Youtube service: %w", err)
	}

	analyticsOpts := []option.ClientOption{option.WithHTTPClient(hc)}
	if d.AnalyticsEndpoint != "" {
		analyticsOpts = append(analyticsOpts, option.WithEndpoint(d.AnalyticsEndpoint))
	}
	analytics, err := youtubeanalytics.NewService(ctx, analyticsOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Youtube analytics service: %w", err)
	}

	return &YouTubeClient{data: data, analytics: analytics}, nil
}

// youtubeError normalizes googleapi errors into a ProviderError.
func youtubeError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	pe := &common.ProviderError{
		Platform: "youtube",
		Status:   gerr.Code,
		Message:  gerr.Message,
	}
	if len(gerr.Errors) > 0 {
		pe.Code = gerr.Errors[0].Reason
		if pe.Message == "" {
			pe.Message = gerr.Errors[0].Message
		}
	}
	return pe
}

func (c *YouTubeClient) GetChannelInfo(ctx context.Context) (*youtube.Channel, error) {
	resp, err := c.data.Channels.List(channelParts).Id(c.ChannelID).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 {
		return nil, fmt.Errorf("channel not found for %s", c.ChannelID)
	}
	ch := resp.Items[0]
	if ch.ContentDetails != nil && ch.ContentDetails.RelatedPlaylists != nil {
		c.uploads = ch.ContentDetails.RelatedPlaylists.Uploads
	}
	return ch, nil
}

// GetMyChannel resolves the channel owned by the token holder.
func (c *YouTubeClient) GetMyChannel(ctx context.Context) (*youtube.Channel, error) {
	resp, err := c.data.Channels.List(channelParts).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	if len(resp.Items) == 0 {
		return nil, errors.New("no YouTube channel found for this Google account")
	}
	return resp.Items[0], nil
}

// VideoPage is the result of GetVideos. Videos whose detail batch failed are
// still listed, with snippet data only, and the failure is in MetricErrors.
type VideoPage struct {
	Videos       []*youtube.Video
	MetricErrors []string
}

func videoFromPlaylistItem(item *youtube.PlaylistItem) *youtube.Video {
	v := &youtube.Video{Id: item.ContentDetails.VideoId}
	if s := item.Snippet; s != nil {
		v.Snippet = &youtube.VideoSnippet{
			Title:       s.Title,
			Description: s.Description,
			PublishedAt: s.PublishedAt,
			Thumbnails:  s.Thumbnails,
		}
	}
	if item.ContentDetails.VideoPublishedAt != "" && v.Snippet != nil {
		v.Snippet.PublishedAt = item.ContentDetails.VideoPublishedAt
	}
	return v
}

// GetVideos walks the uploads playlist up to limit videos, loading details
// and statistics in batches of 50.
func (c *YouTubeClient) GetVideos(ctx context.Context, limit int) (*VideoPage, error) {
	if c.uploads == "" {
		if _, err := c.GetChannelInfo(ctx); err != nil {
			return nil, err
		}
	}
	if c.uploads == "" {
		return nil, errors.New("could not find uploads playlist")
	}

	page := &VideoPage{}
	pageSize := int64(min(limit, youtubePageSize))
	nextPageToken := ""
	for len(page.Videos) < limit {
		resp, err := c.data.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(c.uploads).
			MaxResults(pageSize).
			PageToken(nextPageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, youtubeError(err)
		}

		var ids []string
		byID := make(map[string]*youtube.PlaylistItem)
		for _, item := range resp.Items {
			if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
				continue
			}
			ids = append(ids, item.ContentDetails.VideoId)
			byID[item.ContentDetails.VideoId] = item
		}

		if len(ids) > 0 {
			videos, err := c.data.Videos.List(videoParts).Id(ids...).Context(ctx).Do()
			if err != nil {
				page.MetricErrors = append(page.MetricErrors,
					fmt.Sprintf("video details for %s failed: %v", strings.Join(ids, ","), youtubeError(err)))
				for _, id := range ids {
					page.Videos = append(page.Videos, videoFromPlaylistItem(byID[id]))
				}
			} else {
				page.Videos = append(page.Videos, videos.Items...)
			}
		}

		nextPageToken = resp.NextPageToken
		if nextPageToken == "" {
			break
		}
	}

	if len(page.Videos) > limit {
		page.Videos = page.Videos[:limit]
	}
	return page, nil
}

func (c *YouTubeClient) GetPlaylists(ctx context.Context) ([]*youtube.Playlist, error) {
	var all []*youtube.Playlist
	nextPageToken := ""
	for {
		resp, err := c.data.Playlists.List(playlistParts).
			ChannelId(c.ChannelID).
			MaxResults(youtubePageSize).
			PageToken(nextPageToken).
			Context(ctx).
			Do()
		if err != nil {
			return nil, youtubeError(err)
		}
		all = append(all, resp.Items...)

		nextPageToken = resp.NextPageToken
		if nextPageToken == "" {
			return all, nil
		}
	}
}

// Report is an analytics response with its column headers resolved once.
type Report struct {
	Headers []string
	Rows    [][]any
	first   map[string]any
}

func newReport(resp *youtubeanalytics.QueryResponse) *Report {
	r := &Report{Rows: resp.Rows, first: make(map[string]any)}
	for _, h := range resp.ColumnHeaders {
		r.Headers = append(r.Headers, h.Name)
	}
	if len(r.Rows) > 0 {
		row := r.Rows[0]
		for i, name := range r.Headers {
			if i < len(row) {
				r.first[name] = row[i]
			}
		}
	}
	return r
}

func (r *Report) Empty() bool { return r == nil || len(r.Rows) == 0 }

// Value returns a numeric column of the first row.
func (r *Report) Value(name string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	switch v := r.first[name].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Metrics is the first row keyed by column name.
func (r *Report) Metrics() map[string]any {
	out := make(map[string]any, len(r.first))
	for k, v := range r.first {
		out[k] = v
	}
	return out
}

// Table keeps every row, for dimensioned reports.
func (r *Report) Table() map[string]any {
	return map[string]any{"headers": r.Headers, "rows": r.Rows}
}

type reportQuery struct {
	metrics    string
	dimensions string
	sort       string
	maxResults int64
}

func dateParam(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func (c *YouTubeClient) query(ctx context.Context, start, end time.Time, q reportQuery) (*Report, error) {
	call := c.analytics.Reports.Query().
		Ids("channel==" + c.ChannelID).
		StartDate(dateParam(start)).
		EndDate(dateParam(end)).
		Metrics(q.metrics)
	if q.dimensions != "" {
		call = call.Dimensions(q.dimensions)
	}
	if q.sort != "" {
		call = call.Sort(q.sort)
	}
	if q.maxResults > 0 {
		call = call.MaxResults(q.maxResults)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, youtubeError(err)
	}
	return newReport(resp), nil
}

// GetChannelAnalytics returns the channel totals for the window. With revenue
// requested it falls back to the plain metrics when the channel is not
// monetized.
func (c *YouTubeClient) GetChannelAnalytics(ctx context.Context, start, end time.Time, withRevenue bool) (*Report, error) {
	if withRevenue {
		metrics := append(append([]string{}, channelMetrics...), revenueMetrics...)
		report, err := c.query(ctx, start, end, reportQuery{metrics: strings.Join(metrics, ",")})
		if err == nil {
			return report, nil
		}
		log.Printf("YouTube: revenue analytics failed for %s, retrying without revenue: %v", c.ChannelID, err)
	}
	return c.query(ctx, start, end, reportQuery{metrics: strings.Join(channelMetrics, ",")})
}

func (c *YouTubeClient) GetTrafficSources(ctx context.Context, start, end time.Time) (*Report, error) {
	return c.query(ctx, start, end, reportQuery{
		metrics:    "views,estimatedMinutesWatched",
		dimensions: "insightTrafficSourceType",
		sort:       "-views",
	})
}

func (c *YouTubeClient) GetDemographics(ctx context.Context, start, end time.Time) (*Report, error) {
	return c.query(ctx, start, end, reportQuery{
		metrics:    "viewerPercentage",
		dimensions: "ageGroup,gender",
		sort:       "-viewerPercentage",
	})
}

func (c *YouTubeClient) GetGeography(ctx context.Context, start, end time.Time) (*Report, error) {
	return c.query(ctx, start, end, reportQuery{
		metrics:    "views,estimatedMinutesWatched",
		dimensions: "country",
		sort:       "-views",
		maxResults: 25,
	})
}

func (c *YouTubeClient) GetImpressionMetrics(ctx context.Context, start, end time.Time) (*Report, error) {
	return c.query(ctx, start, end, reportQuery{metrics: "impressions,impressionClickThroughRate"})
}

// ThumbnailURL picks the largest of the high, medium and default sizes.
func ThumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

func uint64Ptr(v uint64) *int64 {
	n := int64(v)
	return &n
}

// YouTubeChannelProfile maps a channel onto the account profile record.
func YouTubeChannelProfile(ch *youtube.Channel) database.AccountProfile {
	p := database.AccountProfile{
		Platform:          database.PlatformYouTube,
		PlatformAccountID: ch.Id,
		ProfileURL:        common.NullString("https://www.youtube.com/channel/" + ch.Id),
		Extra:             database.JSONMap{},
	}
	if s := ch.Snippet; s != nil {
		p.DisplayName = common.NullString(s.Title)
		p.Bio = common.NullText(s.Description)
		p.AvatarURL = common.NullString(ThumbnailURL(s.Thumbnails))
		p.Username = common.NullString(s.CustomUrl)
		if s.CustomUrl != "" {
			p.Extra["customUrl"] = s.CustomUrl
		}
		if s.Country != "" {
			p.Extra["country"] = s.Country
		}
		if s.PublishedAt != "" {
			p.Extra["publishedAt"] = s.PublishedAt
		}
	}
	if b := ch.BrandingSettings; b != nil && b.Image != nil && b.Image.BannerExternalUrl != "" {
		p.Extra["bannerUrl"] = b.Image.BannerExternalUrl
	}
	if st := ch.Statistics; st != nil {
		p.FollowerCount = common.NullInt64(uint64Ptr(st.SubscriberCount))
		p.ContentCount = common.NullInt64(uint64Ptr(st.VideoCount))
		p.TotalViews = common.NullInt64(uint64Ptr(st.ViewCount))
	}
	return p
}

// YouTubeChannelStats extracts the counters written to the daily snapshot.
func YouTubeChannelStats(ch *youtube.Channel) common.ProfileStats {
	var stats common.ProfileStats
	if st := ch.Statistics; st != nil {
		stats.FollowersCount = uint64Ptr(st.SubscriberCount)
		stats.ContentCount = uint64Ptr(st.VideoCount)
		stats.TotalViews = uint64Ptr(st.ViewCount)
	}
	return stats
}
