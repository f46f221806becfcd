// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/fluffyriot/creatorsync/internal/identity"
	"github.com/gin-gonic/gin"
)

const userIDKey = "user_id"

// AuthMiddleware resolves the bearer token of every non-public route and
// stores the caller's id in the gin context.
func AuthMiddleware(p identity.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isPublicRoute(c.Request.URL.Path) {
			c.Next()
			return
		}

		user, err := p.Authenticate(c.Request.Context(), bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			if !errors.Is(err, identity.ErrNoToken) {
				log.Printf("Auth: rejected bearer token for %s: %v", c.Request.URL.Path, err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

// UserID returns the id stored by AuthMiddleware.
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(userIDKey)
	return id, id != ""
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// isPublicRoute covers the OAuth callbacks, which arrive as browser redirects
// from the provider without a bearer token.
func isPublicRoute(path string) bool {
	if path == "/health" || path == "/metrics" {
		return true
	}
	return strings.HasPrefix(path, "/api/auth/") && strings.HasSuffix(path, "/callback")
}
