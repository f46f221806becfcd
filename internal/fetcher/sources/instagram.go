// SPDX-License-Identifier: AGPL-3.0-only
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/google/uuid"
)

const (
	instagramRefreshWindow = 7 * 24 * time.Hour
	instagramPageSize      = 50

	accountFields = "username,name,biography,profile_picture_url,followers_count,follows_count,media_count,account_type,website"
	mediaFields   = "id,media_type,media_product_type,caption,permalink,thumbnail_url,media_url,timestamp,like_count,comments_count"
)

var (
	ErrNoFacebookPages         = errors.New("No Facebook Pages found. Instagram Business accounts must be linked to a Facebook Page.")
	ErrNoInstagramBusinessPage = errors.New("No Instagram Business/Creator account found linked to your Facebook Pages.")

	accountInsightMetrics = []string{
		"impressions",
		"reach",
		"profile_views",
		"website_clicks",
		"email_contacts",
		"phone_call_clicks",
		"get_directions_clicks",
	}
	audienceMetrics = []string{
		"audience_city",
		"audience_country",
		"audience_gender_age",
		"audience_locale",
	}
)

type InstagramAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	Biography         string `json:"biography"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    *int64 `json:"followers_count"`
	FollowsCount      *int64 `json:"follows_count"`
	MediaCount        *int64 `json:"media_count"`
	AccountType       string `json:"account_type"`
	Website           string `json:"website"`
}

type InstagramMedia struct {
	ID               string `json:"id"`
	MediaType        string `json:"media_type"`
	MediaProductType string `json:"media_product_type"`
	Caption          string `json:"caption"`
	Permalink        string `json:"permalink"`
	ThumbnailURL     string `json:"thumbnail_url"`
	MediaURL         string `json:"media_url"`
	Timestamp        string `json:"timestamp"`
	LikeCount        *int64 `json:"like_count"`
	CommentsCount    *int64 `json:"comments_count"`
}

type InsightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime string          `json:"end_time"`
}

type InsightMetric struct {
	Name   string         `json:"name"`
	Period string         `json:"period"`
	Values []InsightValue `json:"values"`
}

type Insights struct {
	Data []InsightMetric `json:"data"`
}

// Raw returns the first value of the named metric as decoded JSON.
func (in *Insights) Raw(name string) (any, bool) {
	if in == nil {
		return nil, false
	}
	for _, m := range in.Data {
		if m.Name != name || len(m.Values) == 0 || len(m.Values[0].Value) == 0 {
			continue
		}
		var v any
		if err := json.Unmarshal(m.Values[0].Value, &v); err != nil || v == nil {
			return nil, false
		}
		return v, true
	}
	return nil, false
}

// Int returns the first value of a numeric metric.
func (in *Insights) Int(name string) (*int64, bool) {
	v, ok := in.Raw(name)
	if !ok {
		return nil, false
	}
	f, ok := v.(float64)
	if !ok {
		return nil, false
	}
	n := int64(f)
	return &n, true
}

type mediaPage struct {
	Data   []InstagramMedia `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

type InstagramClient struct {
	ConnectionID uuid.UUID
	UserID       string

	token string
	graph *authhelp.FacebookOAuth
	http  *common.Client
}

// NewInstagramClient renews a long-lived token that expires within seven
// days. A failed renewal is logged and the current token is used.
func NewInstagramClient(ctx context.Context, d Deps, connectionID uuid.UUID) (*InstagramClient, error) {
	conn, token, err := loadConnection(ctx, d, connectionID, database.PlatformInstagram)
	if err != nil {
		return nil, err
	}

	if expired(conn.TokenExpiresAt, d.Now().Add(instagramRefreshWindow)) {
		set, err := d.Facebook.ExchangeLongLivedToken(ctx, token)
		if err != nil {
			log.Printf("Instagram: failed to refresh token for connection %s: %v", conn.ID, err)
		} else if err := persistTokens(ctx, d, conn.ID, set); err != nil {
			log.Printf("Instagram: failed to store refreshed token for connection %s: %v", conn.ID, err)
		} else {
			token = set.AccessToken
		}
	}

	return newInstagramClient(d, token, conn.ID, conn.PlatformAccountID), nil
}

func newInstagramClient(d Deps, token string, connectionID uuid.UUID, userID string) *InstagramClient {
	return &InstagramClient{
		ConnectionID: connectionID,
		UserID:       userID,
		token:        token,
		graph:        d.Facebook,
		http:         d.HTTP,
	}
}

func (c *InstagramClient) get(ctx context.Context, path string, params url.Values, out any) error {
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("access_token", c.token)
	return c.http.GetJSON(ctx, c.graph.GraphURL(path), q, authhelp.DecodeGraphError, out)
}

func (c *InstagramClient) GetAccountInfo(ctx context.Context) (*InstagramAccount, error) {
	var acc InstagramAccount
	if err := c.get(ctx, c.UserID, url.Values{"fields": {accountFields}}, &acc); err != nil {
		return nil, err
	}
	if acc.ID == "" {
		acc.ID = c.UserID
	}
	return &acc, nil
}

// GetMedia follows paging.next until limit items are collected.
func (c *InstagramClient) GetMedia(ctx context.Context, limit int) ([]InstagramMedia, error) {
	var all []InstagramMedia
	var page mediaPage
	err := c.get(ctx, c.UserID+"/media", url.Values{
		"fields": {mediaFields},
		"limit":  {fmt.Sprint(min(limit, instagramPageSize))},
	}, &page)
	if err != nil {
		return nil, err
	}

	for {
		all = append(all, page.Data...)
		if page.Paging.Next == "" || len(all) >= limit || len(page.Data) == 0 {
			break
		}

		next, err := url.Parse(page.Paging.Next)
		if err != nil {
			return nil, fmt.Errorf("bad paging url: %w", err)
		}
		q := next.Query()
		q.Set("access_token", c.token)
		next.RawQuery = ""

		page = mediaPage{}
		if err := c.http.GetJSON(ctx, next.String(), q, authhelp.DecodeGraphError, &page); err != nil {
			return nil, err
		}
	}

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// MediaInsightMetrics is the metric set the graph API accepts per media type.
func MediaInsightMetrics(mediaType string) []string {
	switch mediaType {
	case "VIDEO", "REELS":
		return []string{"impressions", "reach", "plays", "saved", "shares"}
	default:
		return []string{"impressions", "reach", "saved"}
	}
}

func (c *InstagramClient) GetMediaInsights(ctx context.Context, mediaID, mediaType string) (*Insights, error) {
	var in Insights
	err := c.get(ctx, mediaID+"/insights", url.Values{
		"metric": {strings.Join(MediaInsightMetrics(mediaType), ",")},
	}, &in)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// GetAccountInsights accepts day, week, days_28 or lifetime.
func (c *InstagramClient) GetAccountInsights(ctx context.Context, period string) (*Insights, error) {
	var in Insights
	err := c.get(ctx, c.UserID+"/insights", url.Values{
		"metric": {strings.Join(accountInsightMetrics, ",")},
		"period": {period},
	}, &in)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *InstagramClient) GetAudienceDemographics(ctx context.Context) (*Insights, error) {
	var in Insights
	err := c.get(ctx, c.UserID+"/insights", url.Values{
		"metric": {strings.Join(audienceMetrics, ",")},
		"period": {"lifetime"},
	}, &in)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

func (c *InstagramClient) GetOnlineFollowers(ctx context.Context) (*Insights, error) {
	var in Insights
	err := c.get(ctx, c.UserID+"/insights", url.Values{
		"metric": {"online_followers"},
		"period": {"lifetime"},
	}, &in)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

type facebookPage struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	InstagramBusinessAccount *struct {
		ID string `json:"id"`
	} `json:"instagram_business_account"`
}

// DiscoverInstagramAccount walks the pages the token can manage and returns
// the first linked Instagram business account with its page id.
func DiscoverInstagramAccount(ctx context.Context, d Deps, token string) (*InstagramAccount, string, error) {
	c := newInstagramClient(d, token, uuid.Nil, "")

	var pages struct {
		Data []facebookPage `json:"data"`
	}
	if err := c.get(ctx, "me/accounts", nil, &pages); err != nil {
		return nil, "", err
	}
	if len(pages.Data) == 0 {
		return nil, "", ErrNoFacebookPages
	}

	for _, p := range pages.Data {
		var page facebookPage
		if err := c.get(ctx, p.ID, url.Values{"fields": {"instagram_business_account"}}, &page); err != nil {
			log.Printf("Instagram: skipping page %s during account discovery: %v", p.ID, err)
			continue
		}
		if page.InstagramBusinessAccount == nil || page.InstagramBusinessAccount.ID == "" {
			continue
		}

		c.UserID = page.InstagramBusinessAccount.ID
		acc, err := c.GetAccountInfo(ctx)
		if err != nil {
			return nil, "", err
		}
		return acc, p.ID, nil
	}
	return nil, "", ErrNoInstagramBusinessPage
}

func InstagramProfile(acc *InstagramAccount) database.AccountProfile {
	p := database.AccountProfile{
		Platform:          database.PlatformInstagram,
		PlatformAccountID: acc.ID,
		Username:          common.NullString(acc.Username),
		DisplayName:       common.NullString(acc.Name),
		Bio:               common.NullText(acc.Biography),
		AvatarURL:         common.NullString(acc.ProfilePictureURL),
		FollowerCount:     common.NullInt64(acc.FollowersCount),
		FollowingCount:    common.NullInt64(acc.FollowsCount),
		ContentCount:      common.NullInt64(acc.MediaCount),
		AccountType:       common.NullString(acc.AccountType),
		Extra:             database.JSONMap{},
	}
	if acc.Username != "" {
		p.ProfileURL = common.NullString("https://www.instagram.com/" + acc.Username)
	}
	if acc.Website != "" {
		p.Extra["website"] = acc.Website
	}
	return p
}

func InstagramStats(acc *InstagramAccount) common.ProfileStats {
	return common.ProfileStats{
		FollowersCount: acc.FollowersCount,
		FollowingCount: acc.FollowsCount,
		ContentCount:   acc.MediaCount,
	}
}
