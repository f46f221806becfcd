// SPDX-License-Identifier: AGPL-3.0-only
package sources

import (
	"context"
	"fmt"

	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/database"
)

// Linkers returns the account linkers for every configured platform.
func Linkers(d Deps) []authhelp.Linker {
	return []authhelp.Linker{
		&YouTubeLinker{deps: d},
		&InstagramLinker{deps: d},
		&TikTokLinker{deps: d},
	}
}

type YouTubeLinker struct {
	deps Deps
}

func NewYouTubeLinker(d Deps) *YouTubeLinker { return &YouTubeLinker{deps: d} }

func (l *YouTubeLinker) Platform() database.Platform { return database.PlatformYouTube }
func (l *YouTubeLinker) UsesPKCE() bool              { return false }

func (l *YouTubeLinker) AuthURL(state, _ string) string {
	return l.deps.YouTube.AuthURL(state)
}

func (l *YouTubeLinker) Link(ctx context.Context, code, _ string) (*authhelp.LinkResult, error) {
	tokens, err := l.deps.YouTube.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	c, err := newYouTubeServices(ctx, l.deps, tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	ch, err := c.GetMyChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve channel: %w", err)
	}

	tokens.AccountID = ch.Id
	return &authhelp.LinkResult{Tokens: tokens, Profile: YouTubeChannelProfile(ch)}, nil
}

type InstagramLinker struct {
	deps Deps
}

func NewInstagramLinker(d Deps) *InstagramLinker { return &InstagramLinker{deps: d} }

func (l *InstagramLinker) Platform() database.Platform { return database.PlatformInstagram }
func (l *InstagramLinker) UsesPKCE() bool              { return false }

func (l *InstagramLinker) AuthURL(state, _ string) string {
	return l.deps.Facebook.AuthURL(state)
}

// Link trades the code for a short-lived token, then for a long-lived one,
// and finds the business account through the user's pages.
func (l *InstagramLinker) Link(ctx context.Context, code, _ string) (*authhelp.LinkResult, error) {
	short, err := l.deps.Facebook.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	long, err := l.deps.Facebook.ExchangeLongLivedToken(ctx, short.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("exchange long-lived token: %w", err)
	}

	acc, pageID, err := DiscoverInstagramAccount(ctx, l.deps, long.AccessToken)
	if err != nil {
		return nil, err
	}

	long.AccountID = acc.ID
	return &authhelp.LinkResult{Tokens: long, PageID: pageID, Profile: InstagramProfile(acc)}, nil
}

type TikTokLinker struct {
	deps Deps
}

func NewTikTokLinker(d Deps) *TikTokLinker { return &TikTokLinker{deps: d} }

func (l *TikTokLinker) Platform() database.Platform { return database.PlatformTikTok }
func (l *TikTokLinker) UsesPKCE() bool              { return true }

func (l *TikTokLinker) AuthURL(state, challenge string) string {
	return l.deps.TikTok.AuthURL(state, challenge)
}

func (l *TikTokLinker) Link(ctx context.Context, code, verifier string) (*authhelp.LinkResult, error) {
	tokens, err := l.deps.TikTok.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	c := newTikTokClient(l.deps, tokens.AccessToken)
	c.OpenID = tokens.AccountID
	user, err := c.GetUserInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	return &authhelp.LinkResult{Tokens: tokens, Profile: TikTokProfile(user)}, nil
}
