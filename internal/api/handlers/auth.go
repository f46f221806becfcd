// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/fluffyriot/creatorsync/internal/authhelp"
	"github.com/gin-gonic/gin"
)

func (h *Handler) flow(c *gin.Context) (*authhelp.Flow, bool) {
	p, ok := h.platform(c)
	if !ok {
		return nil, false
	}
	f, ok := h.Flows[p]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": p.DisplayName() + " is not configured"})
		return nil, false
	}
	return f, true
}

// AuthStartHandler returns the provider authorization URL and sets the
// short lived CSRF (and PKCE verifier) cookies the callback checks.
func (h *Handler) AuthStartHandler(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	start, err := flow.Start(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start authorization", "details": err.Error()})
		return
	}

	secure := !h.Config.IsDevelopment()
	p := flow.Platform()
	http.SetCookie(c.Writer, authhelp.FlowCookie(authhelp.CSRFCookieName(p), start.CSRF, secure))
	if start.Verifier != "" {
		http.SetCookie(c.Writer, authhelp.FlowCookie(authhelp.VerifierCookieName(p), start.Verifier, secure))
	}

	c.JSON(http.StatusOK, gin.H{"authUrl": start.AuthURL})
}

// AuthCallbackHandler always answers with a redirect to the dashboard. The
// flow cookies are cleared only after a successful link; on failure they are
// left to expire.
func (h *Handler) AuthCallbackHandler(c *gin.Context) {
	flow, ok := h.flow(c)
	if !ok {
		return
	}
	p := flow.Platform()

	params := authhelp.CallbackParams{
		Code:             c.Query("code"),
		State:            c.Query("state"),
		Error:            c.Query("error"),
		ErrorDescription: c.Query("error_description"),
		ErrorReason:      c.Query("error_reason"),
	}
	var cookies authhelp.CallbackCookies
	cookies.CSRF, _ = c.Cookie(authhelp.CSRFCookieName(p))
	if flow.UsesPKCE() {
		cookies.Verifier, _ = c.Cookie(authhelp.VerifierCookieName(p))
	}

	_, err := flow.Complete(c.Request.Context(), params, cookies)
	if h.Metrics != nil {
		h.Metrics.OAuthCallback(p, err == nil)
	}
	if err != nil {
		reason := authhelp.ReasonCallbackFailed
		var fe *authhelp.FlowError
		if errors.As(err, &fe) && fe.Reason != "" {
			reason = fe.Reason
		}
		c.Redirect(http.StatusFound, h.dashboardRedirect(string(p)+"_error", reason))
		return
	}

	secure := !h.Config.IsDevelopment()
	http.SetCookie(c.Writer, authhelp.ExpiredCookie(authhelp.CSRFCookieName(p), secure))
	if flow.UsesPKCE() {
		http.SetCookie(c.Writer, authhelp.ExpiredCookie(authhelp.VerifierCookieName(p), secure))
	}
	c.Redirect(http.StatusFound, h.dashboardRedirect(string(p)+"_connected", "true"))
}

func (h *Handler) dashboardRedirect(key, value string) string {
	base := h.Config.DashboardURL()
	u, err := url.Parse(base)
	if err != nil {
		return base + "?" + url.Values{key: {value}}.Encode()
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

