// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/fluffyriot/creatorsync/internal/database"
	"github.com/fluffyriot/creatorsync/internal/exports"
	"github.com/fluffyriot/creatorsync/internal/helpers"
	"github.com/fluffyriot/creatorsync/internal/stats"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ownedProfile resolves the :id connection of the caller and its synced
// profile. Connections of other users answer 404 like missing ones.
func (h *Handler) ownedProfile(c *gin.Context) (database.AccountProfile, bool) {
	userID, ok := h.userID(c)
	if !ok {
		return database.AccountProfile{}, false
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection id"})
		return database.AccountProfile{}, false
	}

	ctx := c.Request.Context()
	conn, err := h.Store.GetConnection(ctx, id)
	if errors.Is(err, database.ErrNotFound) || (err == nil && conn.UserID != userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Connection not found"})
		return database.AccountProfile{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load connection", "details": err.Error()})
		return database.AccountProfile{}, false
	}

	profile, err := h.Store.GetAccountProfileByConnection(ctx, conn.ID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Account has not been synced yet"})
		return database.AccountProfile{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account", "details": err.Error()})
		return database.AccountProfile{}, false
	}
	return profile, true
}

func (h *Handler) StatsHandler(c *gin.Context) {
	profile, ok := h.ownedProfile(c)
	if !ok {
		return
	}

	data, err := stats.GetStats(c.Request.Context(), h.Store, profile)
	if err != nil {
		log.Printf("Error getting stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, data)
}

type ContentView struct {
	ID          string     `json:"id"`
	ContentType string     `json:"contentType"`
	Title       string     `json:"title,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	URL         string     `json:"url,omitempty"`
	Thumbnail   string     `json:"thumbnailUrl,omitempty"`
	Views       *int64     `json:"views,omitempty"`
	Likes       *int64     `json:"likes,omitempty"`
	Comments    *int64     `json:"comments,omitempty"`
	Shares      *int64     `json:"shares,omitempty"`
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func (h *Handler) ContentHandler(c *gin.Context) {
	profile, ok := h.ownedProfile(c)
	if !ok {
		return
	}

	items, err := h.Store.ListContentItems(c.Request.Context(), profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load content", "details": err.Error()})
		return
	}

	out := make([]ContentView, 0, len(items))
	for _, it := range items {
		v := ContentView{
			ID:          it.PlatformContentID,
			ContentType: it.ContentType,
			Title:       it.Title.String,
			URL:         it.Permalink.String,
			Thumbnail:   it.ThumbnailURL.String,
			Views:       int64Ptr(it.ViewCount),
			Likes:       int64Ptr(it.LikeCount),
			Comments:    int64Ptr(it.CommentCount),
			Shares:      int64Ptr(it.ShareCount),
		}
		if it.PublishedAt.Valid {
			t := it.PublishedAt.Time
			v.PublishedAt = &t
		}
		if v.URL == "" {
			v.URL, _ = helpers.ContentURL(profile.Platform, profile.Username.String, it.PlatformContentID)
		}
		out = append(out, v)
	}

	c.JSON(http.StatusOK, gin.H{"content": out})
}

func (h *Handler) ExportContentHandler(c *gin.Context) {
	profile, ok := h.ownedProfile(c)
	if !ok {
		return
	}

	items, err := h.Store.ListContentItems(c.Request.Context(), profile.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load content", "details": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+exports.Filename(profile, time.Now())+`"`)
	c.Status(http.StatusOK)
	if err := exports.WriteContentCSV(c.Writer, profile, items); err != nil {
		log.Printf("Export: writing content csv for account %s failed: %v", profile.ID, err)
	}
}

// PlatformsHandler lists the supported platforms and whether account
// linking is enabled for each.
func (h *Handler) PlatformsHandler(c *gin.Context) {
	type platformView struct {
		helpers.PlatformInfo
		Enabled bool `json:"enabled"`
	}

	out := make([]platformView, 0, len(helpers.AvailablePlatforms))
	for _, p := range helpers.AvailablePlatforms {
		_, enabled := h.Flows[p.Platform]
		out = append(out, platformView{PlatformInfo: p, Enabled: enabled})
	}
	c.JSON(http.StatusOK, gin.H{"platforms": out})
}
