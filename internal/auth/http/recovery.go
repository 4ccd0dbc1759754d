package http

import (
	"net/http"
	"time"

	"github.com/pulsehq/pulse/internal/auth/domain"
	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/jwtx"
)

// RecoveryHandler serves the account recovery flow. Every reply that could
// reveal whether an email or code is real uses the same copy and timing
// profile; only the throttle speaks with a different voice.
type RecoveryHandler struct {
	Recovery *service.RecoveryService
	Verifier *service.VerifierService
}

func (h *RecoveryHandler) retryAfter() time.Duration {
	return h.Recovery.Throttle.Window
}

type recoveryStartRequest struct {
	Email string `json:"email"`
}

func (h *RecoveryHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req recoveryStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Recovery.StartRecovery(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err, h.retryAfter())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: recoveryAck})
}

type recoveryVerifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *RecoveryHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req recoveryVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.Recovery.VerifyCode(r.Context(), req.Email, req.Code, originFrom(r))
	if err != nil {
		writeServiceError(w, r, err, h.retryAfter())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: recoveryAck})
}

type recoveryResetRequest struct {
	Email           string `json:"email"`
	Code            string `json:"code"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *RecoveryHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req recoveryResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.Recovery.ResetPassword(r.Context(),
		req.Email, req.Code, req.Password, req.ConfirmPassword, originFrom(r))
	if err != nil {
		writeServiceError(w, r, err, h.retryAfter())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: "Password has been reset. You can now log in."})
}

type regenerateCodesResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

// RegenerateCodes replaces the caller's recovery code set. Requires a valid
// access token; the fresh codes are returned once.
func (h *RecoveryHandler) RegenerateCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := bearerToken(r)
	if token == "" {
		writeUnauthenticated(w)
		return
	}

	identity, _, err := h.Verifier.Verify(ctx, token, jwtx.KindAccess)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	codes, err := h.Recovery.RegenerateCodes(ctx, identity.ID)
	if err != nil {
		writeServiceError(w, r, err, 0)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, regenerateCodesResponse{RecoveryCodes: codes})
}

// originFrom captures the request origin for the attempt audit log.
func originFrom(r *http.Request) domain.AttemptOrigin {
	return domain.AttemptOrigin{
		RemoteAddr: httpx.ClientIP(r),
		ClientSig:  r.UserAgent(),
	}
}
