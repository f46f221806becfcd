// SPDX-License-Identifier: AGPL-3.0-only

// Package metrics exposes sync and OAuth counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Collector implements fetcher.Recorder.
type Collector struct {
	syncPasses   *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	itemsSynced  *prometheus.CounterVec
	syncErrors   *prometheus.CounterVec
	oauthLinks   *prometheus.CounterVec
}

var _ fetcher.Recorder = (*Collector)(nil)

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncPasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorsync_sync_passes_total",
			Help: "Finished sync passes by platform and outcome.",
		}, []string{"platform", "outcome"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creatorsync_sync_duration_seconds",
			Help:    "Duration of a single account sync pass.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"platform"}),
		itemsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorsync_content_items_synced_total",
			Help: "Content items upserted by sync passes.",
		}, []string{"platform"}),
		syncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorsync_sync_errors_total",
			Help: "Errors recorded in sync results.",
		}, []string{"platform"}),
		oauthLinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creatorsync_oauth_callbacks_total",
			Help: "Completed OAuth callbacks by platform and outcome.",
		}, []string{"platform", "outcome"}),
	}

	reg.MustRegister(
		c.syncPasses,
		c.syncDuration,
		c.itemsSynced,
		c.syncErrors,
		c.oauthLinks,
	)
	return c
}

func (c *Collector) SyncFinished(platform database.Platform, res *fetcher.SyncResult, took time.Duration) {
	p := string(platform)
	outcome := OutcomeSuccess
	switch {
	case res.Success:
	case res.AccountUpdated || res.ItemsSynced > 0:
		outcome = OutcomePartial
	default:
		outcome = OutcomeFailed
	}

	c.syncPasses.WithLabelValues(p, outcome).Inc()
	c.syncDuration.WithLabelValues(p).Observe(took.Seconds())
	c.itemsSynced.WithLabelValues(p).Add(float64(res.ItemsSynced))
	c.syncErrors.WithLabelValues(p).Add(float64(len(res.Errors)))
}

// OAuthCallback counts one finished callback. ok is false for every
// redirect carrying an error reason.
func (c *Collector) OAuthCallback(platform database.Platform, ok bool) {
	outcome := OutcomeSuccess
	if !ok {
		outcome = OutcomeFailed
	}
	c.oauthLinks.WithLabelValues(string(platform), outcome).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
