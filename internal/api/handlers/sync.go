// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/gin-gonic/gin"
)

// TriggerSyncHandler runs a sync of the caller's connection for the platform
// and returns the SyncResult. Step failures still answer 200 with the errors
// listed; only an unusable client is a 500.
func (h *Handler) TriggerSyncHandler(c *gin.Context) {
	p, ok := h.platform(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	conn, err := h.Store.GetActiveConnectionForUser(ctx, userID, p)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No " + p.DisplayName() + " account connected"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed", "details": err.Error()})
		return
	}

	res, err := h.Registry.SyncConnection(ctx, conn)
	if err != nil {
		log.Printf("Sync: manual %s sync for connection %s failed: %v", p, conn.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sync failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}
