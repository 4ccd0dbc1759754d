package http

import (
	"net/http"
	"time"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/validate"
)

type RegisterHandler struct {
	Sessions      *service.SessionService
	RefreshTTL    time.Duration
	SecureCookies bool
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Name            string `json:"name" validate:"required,min=2,max=50,displayname"`
	Password        string `json:"password" validate:"required,strongpassword"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type registerResponse struct {
	User identityResponse `json:"user"`
	tokenResponse

	// RecoveryCodes are shown here once and never again.
	RecoveryCodes []string `json:"recovery_codes"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
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

	res, err := h.Sessions.Register(ctx, req.Email, req.Name, req.Password, req.ConfirmPassword)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	setSessionCookies(w, res.Tokens, h.RefreshTTL, h.SecureCookies)
	httpx.WriteJSON(w, http.StatusCreated, registerResponse{
		User:          newIdentityResponse(res.Identity),
		tokenResponse: newTokenResponse(res.Tokens),
		RecoveryCodes: res.RecoveryCodes,
	})
}
