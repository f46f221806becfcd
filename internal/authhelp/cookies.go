// SPDX-License-Identifier: AGPL-3.0-only
package authhelp

import (
	"net/http"

	"github.com/fluffyriot/creatorsync/internal/database"
)

const CookieMaxAge = 600

func CSRFCookieName(p database.Platform) string {
	return string(p) + "_oauth_csrf"
}

func VerifierCookieName(p database.Platform) string {
	return string(p) + "_oauth_verifier"
}

func FlowCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func ExpiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
