// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"net/http"

	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/fluffyriot/creatorsync/internal/config"
	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/fetcher"
	"github.com/fluffyriot/creatorsync/internal/identity"
	"github.com/fluffyriot/creatorsync/internal/metrics"
	"github.com/fluffyriot/creatorsync/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Handler struct {
	Store    database.Store
	Config   *config.AppConfig
	Flows    map[database.Platform]*authhelp.Flow
	Registry *fetcher.Registry
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

func NewHandler(store database.Store, cfg *config.AppConfig, flows []*authhelp.Flow, reg *fetcher.Registry, collector *metrics.Collector, gatherer prometheus.Gatherer) *Handler {
	byPlatform := make(map[database.Platform]*authhelp.Flow, len(flows))
	for _, f := range flows {
		byPlatform[f.Platform()] = f
	}
	return &Handler{
		Store:    store,
		Config:   cfg,
		Flows:    byPlatform,
		Registry: reg,
		Metrics:  collector,
		Gatherer: gatherer,
	}
}

// RegisterRoutes mounts the API on r behind the security headers and bearer
// authentication.
func (h *Handler) RegisterRoutes(r *gin.Engine, idp identity.Provider) {
	r.Use(middleware.SecurityHeadersMiddleware(!h.Config.IsDevelopment()), middleware.AuthMiddleware(idp))

	r.GET("/health", h.HealthCheckHandler)
	if h.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(h.Gatherer)))
	}

	api := r.Group("/api")
	api.GET("/auth/:platform", h.AuthStartHandler)
	api.GET("/auth/:platform/callback", h.AuthCallbackHandler)
	api.POST("/:platform/sync", h.TriggerSyncHandler)
	api.GET("/platforms", h.PlatformsHandler)
	api.GET("/connections", h.ConnectionsHandler)
	api.DELETE("/connections/:id", h.DeactivateConnectionHandler)
	api.GET("/connections/:id/stats", h.StatsHandler)
	api.GET("/connections/:id/content", h.ContentHandler)
	api.GET("/connections/:id/export", h.ExportContentHandler)
}

func (h *Handler) platform(c *gin.Context) (database.Platform, bool) {
	p, err := database.ParsePlatform(c.Param("platform"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown platform"})
		return "", false
	}
	return p, true
}

func (h *Handler) userID(c *gin.Context) (string, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
	return id, ok
}
