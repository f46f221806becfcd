// SPDX-License-Identifier: AGPL-3.0-only
package fetcher

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/auth"
	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher/common"
	"github.com/fluffyriot/creatorsync/internal/fetcher/sources"
	"github.com/stretchr/testify/require"
)

type provider struct {
	srv    *httptest.Server
	mu     sync.Mutex
	routes []func(w http.ResponseWriter, r *http.Request) bool
}

func (p *provider) suffix(s string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes = append(p.routes, func(w http.ResponseWriter, r *http.Request) bool {
		if !strings.HasSuffix(r.URL.Path, s) {
			return false
		}
		h(w, r)
		return true
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type recorded struct {
	platform database.Platform
	success  bool
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *fakeRecorder) SyncFinished(p database.Platform, res *SyncResult, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{platform: p, success: res.Success})
}

type env struct {
	deps     sources.Deps
	store    *database.MemoryStore
	cipher   *auth.TokenCipher
	provider *provider
	rec      *fakeRecorder
	now      time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	p := &provider{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		routes := append([]func(http.ResponseWriter, *http.Request) bool(nil), p.routes...)
		p.mu.Unlock()
		for _, rt := range routes {
			if rt(w, r) {
				return
			}
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.String())
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(p.srv.Close)

	cipher, err := auth.NewTokenCipher([]byte(strings.Repeat("s", auth.KeySize)))
	require.NoError(t, err)

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	httpc := common.NewClient(5*time.Second, 0, 1)

	yt := authhelp.NewYouTubeOAuth("gid", "gsecret", "https://app.test/api/auth/youtube/callback", p.srv.Client())
	yt.Config.Endpoint.TokenURL = p.srv.URL + "/token"
	fb := authhelp.NewFacebookOAuth("app", "secret", "https://app.test/api/auth/instagram/callback", "v18.0", httpc)
	fb.BaseURL = p.srv.URL
	tt := authhelp.NewTikTokOAuth("key", "secret", "https://app.test/api/auth/tiktok/callback", httpc)
	tt.APIBaseURL = p.srv.URL

	store := database.NewMemoryStore()
	return &env{
		deps: sources.Deps{
			Store:             store,
			Cipher:            cipher,
			HTTP:              httpc,
			YouTube:           yt,
			Facebook:          fb,
			TikTok:            tt,
			YouTubeEndpoint:   p.srv.URL + "/",
			AnalyticsEndpoint: p.srv.URL + "/",
			Clock:             func() time.Time { return now },
		},
		store:    store,
		cipher:   cipher,
		provider: p,
		rec:      &fakeRecorder{},
		now:      now,
	}
}

// connect stores an active connection whose access token is valid for a month.
func (e *env) connect(t *testing.T, platform database.Platform, accountID, token string) database.Connection {
	t.Helper()
	access, err := e.cipher.Encrypt(token)
	require.NoError(t, err)

	conn, err := e.store.UpsertConnection(context.Background(), database.UpsertConnectionParams{
		UserID:               "u1",
		Platform:             platform,
		PlatformAccountID:    accountID,
		AccessTokenEncrypted: access,
		TokenExpiresAt:       sql.NullTime{Time: e.now.AddDate(0, 1, 0), Valid: true},
	})
	require.NoError(t, err)
	return conn
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func hasError(res *SyncResult, prefix string) bool {
	for _, e := range res.Errors {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
