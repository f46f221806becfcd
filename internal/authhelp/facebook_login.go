// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const (
	DefaultGraphBaseURL = "https://graph.facebook.com"
	longLivedTokenTTL   = 60 * 24 * time.Hour
)

var InstagramScopes = []string{
	"instagram_basic",
	"instagram_manage_insights",
	"pages_show_list",
	"pages_read_engagement",
	"business_management",
}

type FacebookOAuth struct {
	Config  *oauth2.Config
	Version string
	BaseURL string
	Client  *common.Client
	now     func() time.Time
}

func GenerateFacebookConfig(appID, appSecret, callbackURL, version string) *oauth2.Config {
	endpoint := facebook.Endpoint
	endpoint.AuthURL = strings.Replace(endpoint.AuthURL, "/v3.2/", "/"+version+"/", 1)
	endpoint.TokenURL = strings.Replace(endpoint.TokenURL, "/v3.2/", "/"+version+"/", 1)

	return &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  callbackURL,
		Scopes:       InstagramScopes,
		Endpoint:     endpoint,
	}
}

func NewFacebookOAuth(appID, appSecret, callbackURL, version string, c *common.Client) *FacebookOAuth {
	return &FacebookOAuth{
		Config:  GenerateFacebookConfig(appID, appSecret, callbackURL, version),
		Version: version,
		BaseURL: DefaultGraphBaseURL,
		Client:  c,
		now:     time.Now,
	}
}

// GraphURL joins path onto the versioned graph API base.
func (f *FacebookOAuth) GraphURL(path string) string {
	return strings.TrimRight(f.BaseURL, "/") + "/" + f.Version + "/" + strings.TrimLeft(path, "/")
}

// AuthURL uses comma separated scopes, as the Facebook dialog expects.
func (f *FacebookOAuth) AuthURL(state string) string {
	v := url.Values{
		"client_id":     {f.Config.ClientID},
		"redirect_uri":  {f.Config.RedirectURL},
		"scope":         {strings.Join(f.Config.Scopes, ",")},
		"response_type": {"code"},
		"state":         {state},
	}
	return f.Config.Endpoint.AuthURL + "?" + v.Encode()
}

type graphTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// DecodeGraphError normalizes {"error":{"message","type","code"}} payloads.
func DecodeGraphError(status int, body []byte) error {
	var payload struct {
		Error *struct {
			Message string          `json:"message"`
			Type    string          `json:"type"`
			Code    json.RawMessage `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == nil {
		return nil
	}
	code := payload.Error.Type
	if code == "" {
		code = strings.Trim(string(payload.Error.Code), `"`)
	}
	if status < 400 {
		status = http.StatusBadRequest
	}
	return &common.ProviderError{
		Platform: "instagram",
		Status:   status,
		Code:     code,
		Message:  payload.Error.Message,
	}
}

func (f *FacebookOAuth) tokenCall(ctx context.Context, params url.Values) (TokenSet, error) {
	var res graphTokenResponse
	if err := f.Client.GetJSON(ctx, f.GraphURL("oauth/access_token"), params, DecodeGraphError, &res); err != nil {
		return TokenSet{}, err
	}
	if res.AccessToken == "" {
		return TokenSet{}, fmt.Errorf("no access token in graph response")
	}

	ttl := longLivedTokenTTL
	if res.ExpiresIn > 0 {
		ttl = time.Duration(res.ExpiresIn) * time.Second
	}
	return TokenSet{
		AccessToken: res.AccessToken,
		ExpiresAt:   f.now().Add(ttl),
		Scopes:      f.Config.Scopes,
	}, nil
}

// Exchange trades the authorization code for a short-lived token.
func (f *FacebookOAuth) Exchange(ctx context.Context, code string) (TokenSet, error) {
	return f.tokenCall(ctx, url.Values{
		"client_id":     {f.Config.ClientID},
		"client_secret": {f.Config.ClientSecret},
		"redirect_uri":  {f.Config.RedirectURL},
		"code":          {code},
	})
}

// ExchangeLongLivedToken trades a short-lived or still valid long-lived token
// for a fresh long-lived one (about 60 days).
func (f *FacebookOAuth) ExchangeLongLivedToken(ctx context.Context, token string) (TokenSet, error) {
	return f.tokenCall(ctx, url.Values{
		"grant_type":        {"fb_exchange_token"},
		"client_id":         {f.Config.ClientID},
		"client_secret":     {f.Config.ClientSecret},
		"fb_exchange_token": {token},
	})
}
