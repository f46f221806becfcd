// SPDX-License-Identifier: AGPL-3.0-only
package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fluffyriot/creatorsync/internal/identity"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(p identity.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeadersMiddleware(true), AuthMiddleware(p))
	whoami := func(c *gin.Context) {
		id, _ := UserID(c)
		c.String(http.StatusOK, id)
	}
	r.GET("/api/connections", whoami)
	r.GET("/api/auth/:platform/callback", whoami)
	r.GET("/health", whoami)
	return r
}

func TestAuthMiddleware(t *testing.T) {
	p := identity.NewHS256Provider([]byte(strings.Repeat("m", 32)), "")
	token, err := p.Sign("u1", time.Hour)
	require.NoError(t, err)
	r := newRouter(p)

	cases := []struct {
		name   string
		path   string
		header string
		status int
		body   string
	}{
		{"valid bearer", "/api/connections", "Bearer " + token, http.StatusOK, "u1"},
		{"lowercase scheme", "/api/connections", "bearer " + token, http.StatusOK, "u1"},
		{"missing header", "/api/connections", "", http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"bad token", "/api/connections", "Bearer abc", http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"basic scheme", "/api/connections", "Basic dTE6cHc=", http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"callback is public", "/api/auth/tiktok/callback", "", http.StatusOK, ""},
		{"health is public", "/health", "", http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.body, w.Body.String())
			assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		})
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(tls bool, path string) http.Header {
		r := gin.New()
		r.Use(SecurityHeadersMiddleware(tls))
		r.GET(path, func(c *gin.Context) { c.Status(http.StatusOK) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w.Header()
	}

	h := serve(true, "/api/connections")
	assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	assert.Equal(t, "no-store", h.Get("Cache-Control"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))

	h = serve(false, "/health")
	assert.Empty(t, h.Get("Strict-Transport-Security"))
	assert.Empty(t, h.Get("Cache-Control"))
}
