// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/gin-gonic/gin"
)

// HealthCheckHandler reports the store status and which platforms can be
// linked.
func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failure", "details": "store not initialized"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "failure", "details": "store ping failed: " + err.Error()})
		return
	}

	platforms := make([]string, 0, len(h.Flows))
	for _, p := range database.Platforms {
		if _, ok := h.Flows[p]; ok {
			platforms = append(platforms, string(p))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "platforms": platforms})
}
