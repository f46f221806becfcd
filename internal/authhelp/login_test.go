// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testClient() *common.Client {
	return common.NewClient(5*time.Second, 0, 1)
}

func TestTikTokOAuth_AuthURL(t *testing.T) {
	tt := NewTikTokOAuth("key", "secret", "https://app.test/api/auth/tiktok/callback", testClient())

	raw := tt.AuthURL("st", "ch")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "www.tiktok.com", u.Host)
	assert.Equal(t, "key", q.Get("client_key"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "ch", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, "user.info.basic,user.info.profile,user.info.stats,video.list", q.Get("scope"))
}

func TestTikTokOAuth_ExchangeSendsVerifier(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var form url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/oauth/token/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":       "act",
			"expires_in":         86400,
			"open_id":            "open-1",
			"refresh_token":      "rft",
			"refresh_expires_in": 31536000,
			"scope":              "user.info.basic,video.list",
			"token_type":         "Bearer",
		})
	}))
	defer srv.Close()

	tt := NewTikTokOAuth("key", "secret", "https://app.test/cb", testClient())
	tt.APIBaseURL = srv.URL
	tt.now = func() time.Time { return now }

	set, err := tt.Exchange(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)

	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "verifier-1", form.Get("code_verifier"))
	assert.Equal(t, "key", form.Get("client_key"))
	assert.Equal(t, "act", set.AccessToken)
	assert.Equal(t, "rft", set.RefreshToken)
	assert.Equal(t, "open-1", set.AccountID)
	assert.Equal(t, now.Add(24*time.Hour), set.ExpiresAt)
	assert.Equal(t, now.Add(365*24*time.Hour), set.RefreshExpiresAt)
	assert.Equal(t, []string{"user.info.basic", "video.list"}, set.Scopes)
}

func TestTikTokOAuth_RefreshError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		writeJSON(w, http.StatusOK, map[string]any{
			"error":             "invalid_grant",
			"error_description": "Refresh token is invalid or expired.",
		})
	}))
	defer srv.Close()

	tt := NewTikTokOAuth("key", "secret", "https://app.test/cb", testClient())
	tt.APIBaseURL = srv.URL

	_, err := tt.Refresh(context.Background(), "old")
	var pe *common.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "tiktok", pe.Platform)
	assert.Equal(t, "invalid_grant", pe.Code)
	assert.Equal(t, "Refresh token is invalid or expired.", pe.Message)
}

func TestFacebookOAuth_VersionedEndpoints(t *testing.T) {
	fb := NewFacebookOAuth("app", "secret", "https://app.test/cb", "v18.0", testClient())

	assert.Contains(t, fb.Config.Endpoint.AuthURL, "/v18.0/")
	assert.Contains(t, fb.Config.Endpoint.TokenURL, "/v18.0/")
	assert.Equal(t, "https://graph.facebook.com/v18.0/me/accounts", fb.GraphURL("/me/accounts"))

	u, err := url.Parse(fb.AuthURL("st"))
	require.NoError(t, err)
	assert.Equal(t, "instagram_basic,instagram_manage_insights,pages_show_list,pages_read_engagement,business_management", u.Query().Get("scope"))
}

func TestFacebookOAuth_ExchangeLongLivedToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v18.0/oauth/access_token", r.URL.Path)
		switch r.URL.Query().Get("grant_type") {
		case "fb_exchange_token":
			assert.Equal(t, "short", r.URL.Query().Get("fb_exchange_token"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "long", "token_type": "bearer"})
		default:
			assert.Equal(t, "code-1", r.URL.Query().Get("code"))
			writeJSON(w, http.StatusOK, map[string]any{"access_token": "short", "expires_in": 3600})
		}
	}))
	defer srv.Close()

	fb := NewFacebookOAuth("app", "secret", "https://app.test/cb", "v18.0", testClient())
	fb.BaseURL = srv.URL
	fb.now = func() time.Time { return now }

	short, err := fb.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), short.ExpiresAt)

	long, err := fb.ExchangeLongLivedToken(context.Background(), short.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "long", long.AccessToken)
	assert.Equal(t, now.Add(60*24*time.Hour), long.ExpiresAt)
}

func TestDecodeGraphError(t *testing.T) {
	err := DecodeGraphError(400, []byte(`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`))
	var pe *common.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "OAuthException", pe.Code)
	assert.Equal(t, "Invalid OAuth access token.", pe.Message)

	assert.NoError(t, DecodeGraphError(200, []byte(`{"data":[]}`)))
}

func TestYouTubeOAuth_Exchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token":  "ya29",
				"refresh_token": "1//rt",
				"expires_in":    3599,
				"token_type":    "Bearer",
				"scope":         "https://www.googleapis.com/auth/youtube.readonly",
			})
		case "refresh_token":
			writeJSON(w, http.StatusOK, map[string]any{
				"access_token": "ya29-new",
				"expires_in":   3599,
				"token_type":   "Bearer",
			})
		}
	}))
	defer srv.Close()

	yt := NewYouTubeOAuth("id", "secret", "https://app.test/cb", srv.Client())
	yt.Config.Endpoint.TokenURL = srv.URL

	set, err := yt.Exchange(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "ya29", set.AccessToken)
	assert.Equal(t, "1//rt", set.RefreshToken)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/youtube.readonly"}, set.Scopes)
	assert.WithinDuration(t, time.Now().Add(time.Hour), set.ExpiresAt, 5*time.Second)

	refreshed, err := yt.Refresh(context.Background(), "1//rt")
	require.NoError(t, err)
	assert.Equal(t, "ya29-new", refreshed.AccessToken)
}

func TestYouTubeOAuth_ExchangeRequiresRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "ya29", "token_type": "Bearer", "expires_in": 3599})
	}))
	defer srv.Close()

	yt := NewYouTubeOAuth("id", "secret", "https://app.test/cb", srv.Client())
	yt.Config.Endpoint.TokenURL = srv.URL

	_, err := yt.Exchange(context.Background(), "code-1")
	require.ErrorContains(t, err, "no refresh token")
}

func TestYouTubeOAuth_AuthURL(t *testing.T) {
	yt := NewYouTubeOAuth("id", "secret", "https://app.test/cb", nil)
	u, err := url.Parse(yt.AuthURL("st"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "true", q.Get("include_granted_scopes"))
	assert.Equal(t, "st", q.Get("state"))
}
