// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
)

const (
	DefaultTikTokAuthURL = "https://www.tiktok.com/v2/auth/authorize/"
	DefaultTikTokAPIURL  = "https://open.tiktokapis.com"
)

var TikTokScopes = []string{
	"user.info.basic",
	"user.info.profile",
	"user.info.stats",
	"video.list",
}

type TikTokOAuth struct {
	ClientKey    string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthBaseURL  string
	APIBaseURL   string
	Client       *common.Client
	now          func() time.Time
}

func NewTikTokOAuth(clientKey, clientSecret, callbackURL string, c *common.Client) *TikTokOAuth {
	return &TikTokOAuth{
		ClientKey:    clientKey,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       TikTokScopes,
		AuthBaseURL:  DefaultTikTokAuthURL,
		APIBaseURL:   DefaultTikTokAPIURL,
		Client:       c,
		now:          time.Now,
	}
}

func (t *TikTokOAuth) tokenURL() string {
	return strings.TrimRight(t.APIBaseURL, "/") + "/v2/oauth/token/"
}

func (t *TikTokOAuth) AuthURL(state, challenge string) string {
	v := url.Values{
		"client_key":            {t.ClientKey},
		"redirect_uri":          {t.RedirectURL},
		"scope":                 {strings.Join(t.Scopes, ",")},
		"response_type":         {"code"},
		"state":                 {state},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	return t.AuthBaseURL + "?" + v.Encode()
}

type tiktokTokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
}

// DecodeTikTokTokenError handles the {"error","error_description"} form used
// by the token endpoint.
func DecodeTikTokTokenError(status int, body []byte) error {
	var payload struct {
		Error       json.RawMessage `json:"error"`
		Description string          `json:"error_description"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return nil
	}
	var code string
	if err := json.Unmarshal(payload.Error, &code); err != nil || code == "" {
		return nil
	}
	if status < 400 {
		status = http.StatusBadRequest
	}
	msg := payload.Description
	if msg == "" {
		msg = code
	}
	return &common.ProviderError{
		Platform: "tiktok",
		Status:   status,
		Code:     code,
		Message:  msg,
	}
}

func (t *TikTokOAuth) tokenCall(ctx context.Context, form url.Values) (TokenSet, error) {
	var res tiktokTokenResponse
	if err := t.Client.PostForm(ctx, t.tokenURL(), form, DecodeTikTokTokenError, &res); err != nil {
		return TokenSet{}, err
	}
	if res.AccessToken == "" {
		return TokenSet{}, errors.New("no access token returned by TikTok")
	}

	now := t.now()
	set := TokenSet{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(res.ExpiresIn) * time.Second),
		AccountID:    res.OpenID,
		Scopes:       t.Scopes,
	}
	if res.RefreshExpiresIn > 0 {
		set.RefreshExpiresAt = now.Add(time.Duration(res.RefreshExpiresIn) * time.Second)
	}
	if res.Scope != "" {
		set.Scopes = strings.Split(res.Scope, ",")
	}
	return set, nil
}

func (t *TikTokOAuth) Exchange(ctx context.Context, code, verifier string) (TokenSet, error) {
	return t.tokenCall(ctx, url.Values{
		"client_key":    {t.ClientKey},
		"client_secret": {t.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {t.RedirectURL},
		"code_verifier": {verifier},
	})
}

// Refresh returns a new pair. TikTok rotates the refresh token on every call.
func (t *TikTokOAuth) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	return t.tokenCall(ctx, url.Values{
		"client_key":    {t.ClientKey},
		"client_secret": {t.ClientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
}
