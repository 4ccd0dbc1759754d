package http

import (
	"net/http"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
)

type LogoutHandler struct {
	Sessions      *service.SessionService
	SecureCookies bool
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		token = refreshTokenFrom(r, "")
	}
	if token == "" {
		writeUnauthenticated(w)
		return
	}

	if err := h.Sessions.Logout(ctx, token); err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	clearSessionCookies(w, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "Successfully logged out"})
}
