package http

import (
	"net/http"

	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/pkg/httpx"
	"github.com/pulsehq/pulse/pkg/jwtx"
)

type MeHandler struct {
	Verifier *service.VerifierService
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
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

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, newIdentityResponse(identity))
}
