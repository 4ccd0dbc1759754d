package http

import (
	"net/http"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
)

type RefreshHandler struct {
	Sessions      *service.SessionService
	SecureCookies bool
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// The body is optional; browser clients carry the token in a cookie.
	var req refreshRequest
	if r.Body != nil && r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	token := refreshTokenFrom(r, req.RefreshToken)
	if token == "" {
		writeUnauthenticated(w)
		return
	}

	_, tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	// Only the access cookie changes; the refresh token is not rotated.
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    tokens.AccessToken,
		Path:     "/",
		MaxAge:   int(tokens.ExpiresIn.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	httpx.WriteJSON(w, http.StatusOK, newTokenResponse(tokens))
}
