// SPDX-License-Identifier: AGPL-3.0-only
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/google/uuid"
)

const tiktokMaxPerRequest = 20

var (
	tiktokUserFields = []string{
		"open_id",
		"union_id",
		"avatar_url",
		"avatar_url_100",
		"avatar_large_url",
		"display_name",
		"bio_description",
		"profile_deep_link",
		"username",
		"follower_count",
		"following_count",
		"likes_count",
		"video_count",
		"is_verified",
	}
	tiktokVideoFields = []string{
		"id",
		"title",
		"video_description",
		"create_time",
		"cover_image_url",
		"share_url",
		"embed_link",
		"duration",
		"width",
		"height",
		"view_count",
		"like_count",
		"comment_count",
		"share_count",
	}
)

type TikTokUser struct {
	OpenID          string `json:"open_id"`
	UnionID         string `json:"union_id"`
	AvatarURL       string `json:"avatar_url"`
	AvatarURL100    string `json:"avatar_url_100"`
	AvatarLargeURL  string `json:"avatar_large_url"`
	DisplayName     string `json:"display_name"`
	BioDescription  string `json:"bio_description"`
	ProfileDeepLink string `json:"profile_deep_link"`
	Username        string `json:"username"`
	FollowerCount   *int64 `json:"follower_count"`
	FollowingCount  *int64 `json:"following_count"`
	LikesCount      *int64 `json:"likes_count"`
	VideoCount      *int64 `json:"video_count"`
	IsVerified      bool   `json:"is_verified"`
}

type TikTokVideo struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	VideoDescription string `json:"video_description"`
	CreateTime       int64  `json:"create_time"`
	CoverImageURL    string `json:"cover_image_url"`
	ShareURL         string `json:"share_url"`
	EmbedLink        string `json:"embed_link"`
	Duration         *int64 `json:"duration"`
	Width            *int64 `json:"width"`
	Height           *int64 `json:"height"`
	ViewCount        *int64 `json:"view_count"`
	LikeCount        *int64 `json:"like_count"`
	CommentCount     *int64 `json:"comment_count"`
	ShareCount       *int64 `json:"share_count"`
}

type TikTokVideoPage struct {
	Videos  []TikTokVideo `json:"videos"`
	Cursor  int64         `json:"cursor"`
	HasMore bool          `json:"has_more"`
}

// DecodeTikTokError handles the {"error":{"code","message"}} envelope of the
// data endpoints, where code "ok" means success.
func DecodeTikTokError(status int, body []byte) error {
	var payload struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return nil
	}
	if payload.Error.Code == "" || payload.Error.Code == "ok" {
		return nil
	}
	if status < 400 {
		status = http.StatusBadRequest
	}
	msg := payload.Error.Message
	if msg == "" {
		msg = "TikTok API error"
	}
	return &common.ProviderError{
		Platform: "tiktok",
		Status:   status,
		Code:     payload.Error.Code,
		Message:  msg,
	}
}

type TikTokClient struct {
	ConnectionID uuid.UUID
	OpenID       string

	token   string
	baseURL string
	http    *common.Client
}

// NewTikTokClient refreshes an expired access token. TikTok access tokens
// live for a day, so without a working refresh there is nothing to fall
// back to.
func NewTikTokClient(ctx context.Context, d Deps, connectionID uuid.UUID) (*TikTokClient, error) {
	conn, token, err := loadConnection(ctx, d, connectionID, database.PlatformTikTok)
	if err != nil {
		return nil, err
	}

	now := d.Now()
	if expired(conn.TokenExpiresAt, now) {
		if conn.RefreshTokenExpiresAt.Valid && conn.RefreshTokenExpiresAt.Time.Before(now) {
			return nil, reconnect(errors.New("refresh token expired"))
		}
		refreshToken, err := decryptRefreshToken(d, conn)
		if err != nil {
			return nil, reconnect(err)
		}
		set, err := d.TikTok.Refresh(ctx, refreshToken)
		if err != nil {
			return nil, reconnect(err)
		}
		if err := persistTokens(ctx, d, conn.ID, set); err != nil {
			return nil, reconnect(err)
		}
		token = set.AccessToken
	}

	c := newTikTokClient(d, token)
	c.ConnectionID = conn.ID
	c.OpenID = conn.PlatformAccountID
	return c, nil
}

func newTikTokClient(d Deps, token string) *TikTokClient {
	return &TikTokClient{
		token:   token,
		baseURL: strings.TrimRight(d.TikTok.APIBaseURL, "/"),
		http:    d.HTTP,
	}
}

func (c *TikTokClient) GetUserInfo(ctx context.Context) (*TikTokUser, error) {
	var res struct {
		Data struct {
			User TikTokUser `json:"user"`
		} `json:"data"`
	}
	err := c.http.GetBearerJSON(ctx, c.baseURL+"/v2/user/info/",
		url.Values{"fields": {strings.Join(tiktokUserFields, ",")}},
		c.token, DecodeTikTokError, &res)
	if err != nil {
		return nil, err
	}
	if res.Data.User.OpenID == "" {
		res.Data.User.OpenID = c.OpenID
	}
	return &res.Data.User, nil
}

// GetVideos returns one page. A zero cursor starts from the newest video.
func (c *TikTokClient) GetVideos(ctx context.Context, maxCount int, cursor int64) (*TikTokVideoPage, error) {
	body := map[string]any{"max_count": min(maxCount, tiktokMaxPerRequest)}
	if cursor != 0 {
		body["cursor"] = cursor
	}

	endpoint := c.baseURL + "/v2/video/list/?" + url.Values{"fields": {strings.Join(tiktokVideoFields, ",")}}.Encode()
	var res struct {
		Data TikTokVideoPage `json:"data"`
	}
	if err := c.http.PostJSON(ctx, endpoint, c.token, body, DecodeTikTokError, &res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

// GetAllVideos pages with the cursor until has_more is false or limit is hit.
func (c *TikTokClient) GetAllVideos(ctx context.Context, limit int) ([]TikTokVideo, error) {
	var all []TikTokVideo
	var cursor int64
	for len(all) < limit {
		page, err := c.GetVideos(ctx, tiktokMaxPerRequest, cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Videos...)
		if !page.HasMore || len(page.Videos) == 0 {
			break
		}
		cursor = page.Cursor
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func TikTokProfile(u *TikTokUser) database.AccountProfile {
	avatar := u.AvatarLargeURL
	if avatar == "" {
		avatar = u.AvatarURL
	}
	p := database.AccountProfile{
		Platform:          database.PlatformTikTok,
		PlatformAccountID: u.OpenID,
		Username:          common.NullString(u.Username),
		DisplayName:       common.NullString(u.DisplayName),
		Bio:               common.NullText(u.BioDescription),
		AvatarURL:         common.NullString(avatar),
		ProfileURL:        common.NullString(u.ProfileDeepLink),
		FollowerCount:     common.NullInt64(u.FollowerCount),
		FollowingCount:    common.NullInt64(u.FollowingCount),
		ContentCount:      common.NullInt64(u.VideoCount),
		TotalLikes:        common.NullInt64(u.LikesCount),
		IsVerified:        u.IsVerified,
		Extra:             database.JSONMap{},
	}
	if u.UnionID != "" {
		p.Extra["unionId"] = u.UnionID
	}
	if u.AvatarURL100 != "" {
		p.Extra["avatarUrl100"] = u.AvatarURL100
	}
	return p
}

func TikTokStats(u *TikTokUser) common.ProfileStats {
	return common.ProfileStats{
		FollowersCount: u.FollowerCount,
		FollowingCount: u.FollowingCount,
		ContentCount:   u.VideoCount,
		TotalLikes:     u.LikesCount,
	}
}

// PublishedAt converts the unix create_time.
func (v TikTokVideo) PublishedAt() time.Time {
	if v.CreateTime == 0 {
		return time.Time{}
	}
	return time.Unix(v.CreateTime, 0).UTC()
}
