// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"net/http"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionsHandler lists the caller's connections with their profile
// summary. Token material is never included.
func (h *Handler) ConnectionsHandler(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	conns, err := h.Store.ListUserConnections(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load connections", "details": err.Error()})
		return
	}

	out := make([]ConnectionView, 0, len(conns))
	for _, conn := range conns {
		view := newConnectionView(conn)
		profile, err := h.Store.GetAccountProfileByConnection(ctx, conn.ID)
		switch {
		case err == nil:
			view.attachProfile(profile)
		case !errors.Is(err, database.ErrNotFound):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load connections", "details": err.Error()})
			return
		}
		out = append(out, view)
	}

	c.JSON(http.StatusOK, gin.H{"connections": out})
}

// DeactivateConnectionHandler disconnects an account. The row and its
// history are kept.
func (h *Handler) DeactivateConnectionHandler(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection id"})
		return
	}

	err = h.Store.DeactivateConnection(c.Request.Context(), id, userID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to disconnect account", "details": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
