package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulsehq/pulse/internal/auth/notify"
	"github.com/pulsehq/pulse/internal/auth/service"
	"github.com/pulsehq/pulse/internal/auth/store/drivers/sqlite"
	"github.com/pulsehq/pulse/pkg/jwtx"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	signer, err := jwtx.NewSignerHS256(testSecret)
	require.NoError(t, err)
	jwtVerifier, err := jwtx.NewVerifierHS256(testSecret, "pulse-auth-test")
	require.NoError(t, err)

	notifier := notify.NewLogNotifier(logger)
	verifier := &service.VerifierService{Verifier: jwtVerifier, Store: st}
	throttle := &service.ThrottleService{
		Store:       st,
		MaxAttempts: service.DefaultMaxAttempts,
		Window:      service.DefaultAttemptWindow,
	}

	r := NewRouter(st, logger, "test")
	r.Sessions = &service.SessionService{
		Store:      st,
		Signer:     signer,
		Verifier:   verifier,
		Notifier:   notifier,
		Issuer:     "pulse-auth-test",
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
	r.Recovery = &service.RecoveryService{Store: st, Notifier: notifier, Throttle: throttle}
	r.Verifier = verifier
	r.RefreshTTL = jwtx.DefaultRefreshTokenTTL
	r.ApplyRoutes()

	return r
}

func doJSON(t *testing.T, router *Router, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func registerUser(t *testing.T, router *Router, email string) map[string]any {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":            email,
		"name":             "Test User",
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody(t, rec)
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestRegisterEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")

	require.NotEmpty(t, body["access_token"])
	require.NotEmpty(t, body["refresh_token"])
	require.Equal(t, "Bearer", body["token_type"])

	codes, ok := body["recovery_codes"].([]any)
	require.True(t, ok)
	require.Len(t, codes, service.RecoveryCodeCount)

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "alice@example.com", user["email"])
}

func TestRegisterEndpoint_Validation(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":            "not-an-email",
		"name":             "X",
		"password":         "weak",
		"confirm_password": "other",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	require.Equal(t, "validation_failed", body["error"])

	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "email")
	require.Contains(t, fields, "name")
	require.Contains(t, fields, "password")
	require.Contains(t, fields, "confirm_password")
}

func TestRegisterEndpoint_DuplicateEmail(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/register", map[string]string{
		"email":            "alice@example.com",
		"name":             "Test User",
		"password":         "Secret1!",
		"confirm_password": "Secret1!",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Secret1!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, decodeBody(t, rec)["access_token"])

	// Session cookies ride along for browser clients
	cookies := rec.Result().Cookies()
	names := make(map[string]bool, len(cookies))
	for _, c := range cookies {
		names[c.Name] = true
		require.True(t, c.HttpOnly)
	}
	require.True(t, names[accessCookieName])
	require.True(t, names[refreshCookieName])
}

func TestLoginEndpoint_BadPassword(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Wrong1!pass",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown email reads exactly the same
	rec2 := doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "nobody@example.com",
		"password": "Wrong1!pass",
	})
	require.Equal(t, rec.Code, rec2.Code)
	require.JSONEq(t, rec.Body.String(), rec2.Body.String())
}

func TestMeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")
	token := body["access_token"].(string)

	rec := doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	// Works with the cookie too
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: accessCookieName, Value: token})
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMeEndpoint_Unauthenticated(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/v1/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	noToken := rec.Body.String()

	// Garbage, forged and revoked tokens all produce the identical body
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, withBearer("garbage"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, noToken, rec.Body.String())
}

func TestLogoutEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")
	token := body["access_token"].(string)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	// The token is dead from here on
	rec = doJSON(t, router, http.MethodGet, "/v1/auth/me", nil, withBearer(token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logging out again still succeeds
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")
	refresh := body["refresh_token"].(string)

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": refresh,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decodeBody(t, rec)
	require.NotEmpty(t, out["access_token"])
	require.Equal(t, refresh, out["refresh_token"])

	// An access token is not accepted here
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/refresh", map[string]string{
		"refresh_token": body["access_token"].(string),
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoveryEndpoints(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")
	codes := body["recovery_codes"].([]any)
	code := codes[0].(string)

	rec := doJSON(t, router, http.MethodPost, "/v1/recovery/start", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, recoveryAck, decodeBody(t, rec)["message"])

	rec = doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
		"email": "alice@example.com",
		"code":  code,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/recovery/reset", map[string]string{
		"email":            "alice@example.com",
		"code":             code,
		"password":         "Secret2!",
		"confirm_password": "Secret2!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// New password works
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Secret2!",
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryEndpoints_UniformRejection(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	known := doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
		"email": "alice@example.com",
		"code":  "AAAA-AAAA",
	})
	require.Equal(t, http.StatusBadRequest, known.Code)
	require.Equal(t, recoveryAck, decodeBody(t, known)["message"])

	unknown := doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
		"email": "nobody@example.com",
		"code":  "AAAA-AAAA",
	}, func(r *http.Request) {
		// A different client IP so the per-IP limiter stays out of the way
		r.Header.Set("X-Forwarded-For", "198.51.100.9")
	})
	require.Equal(t, known.Code, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())
}

func TestRecoveryEndpoints_Throttled(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	for i := range service.DefaultMaxAttempts {
		rec := doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
			"email": "alice@example.com",
			"code":  "AAAA-AAAA",
		}, func(r *http.Request) {
			// Vary the client IP: the per-email throttle must trip on its own
			r.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i+1))
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
		"email": "alice@example.com",
		"code":  "AAAA-AAAA",
	}, func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", "198.51.100.99")
	})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRegenerateCodesEndpoint(t *testing.T) {
	router := newTestRouter(t)

	body := registerUser(t, router, "alice@example.com")
	token := body["access_token"].(string)
	oldCode := body["recovery_codes"].([]any)[0].(string)

	rec := doJSON(t, router, http.MethodPost, "/v1/recovery/codes", nil, withBearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	fresh := decodeBody(t, rec)["recovery_codes"].([]any)
	require.Len(t, fresh, service.RecoveryCodeCount)

	// The old set is void
	rec = doJSON(t, router, http.MethodPost, "/v1/recovery/verify", map[string]string{
		"email": "alice@example.com",
		"code":  oldCode,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// Unauthenticated regeneration is refused
	rec = doJSON(t, router, http.MethodPost, "/v1/recovery/codes", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/livez", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestLoginEndpoint_RateLimited(t *testing.T) {
	router := newTestRouter(t)

	registerUser(t, router, "alice@example.com")

	var last *httptest.ResponseRecorder
	for range 10 {
		last = doJSON(t, router, http.MethodPost, "/v1/auth/login", map[string]string{
			"email":    "alice@example.com",
			"password": "Wrong1!pass",
		})
		if last.Code == http.StatusTooManyRequests {
			break
		}
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
}
