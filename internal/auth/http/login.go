package http

import (
	"net/http"
	"time"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/validate"
)

type LoginHandler struct {
	Sessions      *service.SessionService
	RefreshTTL    time.Duration
	SecureCookies bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	User identityResponse `json:"user"`
	tokenResponse
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if fields := validate.Struct(req); fields != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation_failed",
			Fields: fields,
		})
		return
	}

	identity, tokens, err := h.Sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	setSessionCookies(w, tokens, h.RefreshTTL, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		User:          newIdentityResponse(identity),
		tokenResponse: newTokenResponse(tokens),
	})
}
