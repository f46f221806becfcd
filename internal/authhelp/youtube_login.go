// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

var YouTubeScopes = []string{
	"https://www.googleapis.com/auth/youtube.readonly",
	"https://www.googleapis.com/auth/yt-analytics.readonly",
}

// TokenSet is the provider-neutral result of a code exchange or refresh.
type TokenSet struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Scopes           []string
	AccountID        string
}

type YouTubeOAuth struct {
	Config *oauth2.Config
	HTTP   *http.Client
}

func NewYouTubeOAuth(clientID, clientSecret, callbackURL string, httpClient *http.Client) *YouTubeOAuth {
	return &YouTubeOAuth{
		Config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       YouTubeScopes,
			Endpoint:     google.Endpoint,
		},
		HTTP: httpClient,
	}
}

func (y *YouTubeOAuth) ctx(ctx context.Context) context.Context {
	if y.HTTP == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, y.HTTP)
}

func (y *YouTubeOAuth) AuthURL(state string) string {
	return y.Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (y *YouTubeOAuth) Exchange(ctx context.Context, code string) (TokenSet, error) {
	tok, err := y.Config.Exchange(y.ctx(ctx), code)
	if err != nil {
		return TokenSet{}, err
	}
	if tok.AccessToken == "" {
		return TokenSet{}, errors.New("no access token returned by Google")
	}
	if tok.RefreshToken == "" {
		return TokenSet{}, errors.New("no refresh token returned by Google")
	}

	scopes := y.Config.Scopes
	if raw, ok := tok.Extra("scope").(string); ok && raw != "" {
		scopes = strings.Fields(raw)
	}

	return TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Scopes:       scopes,
	}, nil
}

// Refresh always hits the token endpoint.
func (y *YouTubeOAuth) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	src := y.Config.TokenSource(y.ctx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenSet{}, err
	}
	return TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}, nil
}
