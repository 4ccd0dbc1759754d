package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
)

// Cookie names match the original web client's expectations.
const (
	accessCookieName  = "access_token_cookie"
	refreshCookieName = "refresh_token_cookie"
)

// setSessionCookies mirrors the token pair into HttpOnly cookies for
// browser clients. API clients can ignore these and use the JSON body.
func setSessionCookies(w http.ResponseWriter, tokens domain.TokenPair, refreshTTL time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   int(tokens.ExpiresIn.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    tokens.RefreshToken,
		Path:     "/",
		MaxAge:   int(refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearSessionCookies expires both session cookies.
func clearSessionCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// bearerToken pulls the access token from the Authorization header, falling
// back to the access cookie for browser clients.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(accessCookieName); err == nil {
		return c.Value
	}
	return ""
}

// refreshTokenFrom finds the refresh token: explicit body value first, then
// the refresh cookie.
func refreshTokenFrom(r *http.Request, bodyToken string) string {
	if bodyToken != "" {
		return bodyToken
	}
	if c, err := r.Cookie(refreshCookieName); err == nil {
		return c.Value
	}
	return ""
}
