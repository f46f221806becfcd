// SPDX-License-Identifier: AGPL-3.0-only
package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_SyncFinishedOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SyncFinished(database.PlatformYouTube, &fetcher.SyncResult{Success: true, AccountUpdated: true, ItemsSynced: 4}, time.Second)
	c.SyncFinished(database.PlatformYouTube, &fetcher.SyncResult{AccountUpdated: true, ItemsSynced: 2, Errors: []string{"a", "b"}}, time.Second)
	c.SyncFinished(database.PlatformTikTok, &fetcher.SyncResult{Errors: []string{"Sync failed: reconnect required"}}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncPasses.WithLabelValues("youtube", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncPasses.WithLabelValues("youtube", OutcomePartial)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.syncPasses.WithLabelValues("tiktok", OutcomeFailed)))
	assert.Equal(t, 6.0, testutil.ToFloat64(c.itemsSynced.WithLabelValues("youtube")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.syncErrors.WithLabelValues("youtube")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.syncDuration.WithLabelValues("tiktok").(prometheus.Histogram)))
}

func TestCollector_OAuthCallback(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OAuthCallback(database.PlatformInstagram, true)
	c.OAuthCallback(database.PlatformInstagram, false)
	c.OAuthCallback(database.PlatformInstagram, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.oauthLinks.WithLabelValues("instagram", OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.oauthLinks.WithLabelValues("instagram", OutcomeFailed)))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.OAuthCallback(database.PlatformTikTok, true)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := rec.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `creatorsync_oauth_callbacks_total{outcome="success",platform="tiktok"} 1`)
}
