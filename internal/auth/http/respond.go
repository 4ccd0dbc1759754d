package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/slogx"
)

// recoveryAck is the single reply for every identity-revealing recovery
// outcome. Unknown email, wrong code and used code all read the same, so
// the endpoint cannot be used to enumerate accounts.
const recoveryAck = "If the details provided are correct, you may continue the recovery process."

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeUnauthenticated is the uniform reply for every token verification
// failure. The concrete cause stays in the server log only.
func writeUnauthenticated(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{
		Error:   "unauthenticated",
		Message: "Authentication required.",
	})
}

// writeServiceError translates a service error into its HTTP form. Token
// failures collapse to 401, throttling to 429 and infrastructure failure to
// 503; recovery rejections get the uniform 400.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, retryAfter time.Duration) {
	log := slogx.FromContext(r.Context())

	switch {
	case service.IsUnauthenticated(err):
		log.Info("request rejected as unauthenticated", "cause", err)
		writeUnauthenticated(w)

	case errors.Is(err, service.ErrRateLimited):
		if retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		}
		httpx.WriteJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:   "rate_limited",
			Message: "Too many attempts. Please try again later.",
		})

	case errors.Is(err, service.ErrRecoveryRejected):
		httpx.WriteJSON(w, http.StatusBadRequest, messageResponse{Message: recoveryAck})

	case errors.Is(err, service.ErrPasswordMismatch):
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"confirm_password": "Passwords do not match"},
		})

	case errors.Is(err, service.ErrWeakPassword):
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"password": weakPasswordDetail(err)},
		})

	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteJSON(w, http.StatusConflict, errorResponse{
			Error:  "validation_failed",
			Fields: map[string]string{"email": "Email is already registered"},
		})

	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteJSON(w, http.StatusUnauthorized, errorResponse{
			Error:   "invalid_credentials",
			Message: "Invalid email or password.",
		})

	case errors.Is(err, service.ErrStoreUnavailable):
		log.Error("storage failure", "error", err)
		httpx.WriteJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:   "service_unavailable",
			Message: "Please try again shortly.",
		})

	default:
		log.Error("unhandled service error", "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal_error",
			Message: "Something went wrong.",
		})
	}
}

// weakPasswordDetail digs the human-readable strength message out of the
// wrapped error chain.
func weakPasswordDetail(err error) string {
	msg := err.Error()
	prefix := service.ErrWeakPassword.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return "Password is too weak"
}

// decodeJSON reads a JSON request body into dst with a sane size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "invalid_request",
			Message: "Request body must be valid JSON.",
		})
		return false
	}
	return true
}
