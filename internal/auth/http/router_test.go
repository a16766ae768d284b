package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	authhttp "github.com/aussiebroadwan/medrec/internal/auth/http"
	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/internal/auth/service"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/identity/identitytest"
	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

type harness struct {
	router *authhttp.Router
	fake   *identitytest.Fake
	user   identity.User
	token  string
}

// newHarness wires a router against the in-memory identity provider. The
// signed-in patient has a profile named Jane Doe.
func newHarness(t *testing.T, configure func(*authhttp.Router)) *harness {
	t.Helper()

	fake := identitytest.New()
	user := fake.AddUser("patient@example.com", "Secret123!")
	fake.SetProfile(identity.ProfileRow{ID: user.ID, FirstName: "Jane", LastName: "Doe", FullName: "Jane Doe"})
	token, err := fake.IssueToken("patient@example.com")
	require.NoError(t, err)

	repo, err := authsdk.NewRepository(authsdk.RepositoryConfig{
		Provider: fake,
		Profiles: fake,
		AppURL:   "https://app.example.com",
		Logger:   slogx.Discard(),
	})
	require.NoError(t, err)

	limiter, err := ratelimit.New(ratelimit.NewMemoryStore())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	r := authhttp.NewRouter("v-test", slogx.Discard())
	r.Verifier = &service.TokenVerifier{Users: repo, Metrics: collector}
	r.ProfileService = &service.ProfileService{Table: fake, Timeout: time.Second, Metrics: collector}
	r.PasswordResetService = &service.PasswordResetService{
		Requester:   repo,
		Limiter:     limiter,
		MaxAttempts: 3,
		Window:      time.Hour,
		Metrics:     collector,
	}
	r.Metrics = collector
	r.Gatherer = reg
	if configure != nil {
		configure(r)
	}
	r.ApplyRoutes()

	return &harness{router: r, fake: fake, user: user, token: token}
}

var clientSeq atomic.Int32

// do sends one request from a fresh client address so the per-IP limits
// of one test never leak into another.
func (h *harness) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.RemoteAddr = fmt.Sprintf("198.51.100.%d:4000", clientSeq.Add(1)%250+1)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *harness) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + h.token}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httpx.ErrorBody {
	t.Helper()
	var body httpx.ErrorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

// ============================================================================
// Health
// ============================================================================

func TestLivez(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body authsdk.HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "v-test", body.Version)
	require.NotEmpty(t, body.Uptime)
}

func TestReadyz(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		h := newHarness(t, func(r *authhttp.Router) {
			r.ReadinessChecks["profiles"] = func(*http.Request) error { return nil }
		})

		rec := h.do(http.MethodGet, "/readyz", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var body authsdk.HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "ok", body.Status)
		require.Equal(t, map[string]string{"profiles": "ok"}, body.Checks)
	})

	t.Run("a failing check degrades without leaking the error", func(t *testing.T) {
		h := newHarness(t, func(r *authhttp.Router) {
			r.ReadinessChecks["profiles"] = func(*http.Request) error { return nil }
			r.ReadinessChecks["limiter"] = func(*http.Request) error {
				return errors.New("dial tcp redis://secret@10.0.0.1: refused")
			}
		})

		rec := h.do(http.MethodGet, "/readyz", "", nil)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.NotContains(t, rec.Body.String(), "secret")

		var body authsdk.HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, "degraded", body.Status)
		require.Equal(t, "error", body.Checks["limiter"])
		require.Equal(t, "ok", body.Checks["profiles"])
	})
}

// ============================================================================
// Verify
// ============================================================================

func TestVerify(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("valid token", func(t *testing.T) {
		rec := h.do(http.MethodPost, "/auth/verify", "", h.bearer())
		require.Equal(t, http.StatusOK, rec.Code)

		var res authsdk.VerifyResult
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		require.True(t, res.Valid)
		require.Equal(t, h.user.ID, res.User.ID)
		require.Equal(t, "patient@example.com", res.User.Email)
	})

	t.Run("missing header", func(t *testing.T) {
		before := h.fake.Calls(identitytest.OpGetUser)
		rec := h.do(http.MethodPost, "/auth/verify", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, httpx.CodeUnauthenticated, decodeError(t, rec).Code)
		require.Equal(t, before, h.fake.Calls(identitytest.OpGetUser))
	})

	t.Run("provider outage rejects the token", func(t *testing.T) {
		h.fake.FailNext(identitytest.OpGetUser, identity.ErrNetwork)
		rec := h.do(http.MethodPost, "/auth/verify", "", h.bearer())
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/auth/verify", "", h.bearer())
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestVerify_NotConfigured(t *testing.T) {
	h := newHarness(t, func(r *authhttp.Router) { r.Verifier = nil })

	rec := h.do(http.MethodPost, "/auth/verify", "", h.bearer())
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, httpx.CodeAuthUnavailable, decodeError(t, rec).Code)

	rec = h.do(http.MethodGet, "/v1/profile", "", h.bearer())
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVerify_RateLimitedPerIP(t *testing.T) {
	h := newHarness(t, nil)

	var limited bool
	for range httpx.AuthLimit.Burst + 2 {
		req := httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
		req.RemoteAddr = "203.0.113.9:5000"
		req.Header.Set("Authorization", "Bearer "+h.token)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.True(t, limited, "the auth budget must survive across requests")
}

func TestAuthRoutes_ShareOnePerIPBudget(t *testing.T) {
	h := newHarness(t, nil)
	const addr = "203.0.113.10:5000"

	send := func(i int) *httptest.ResponseRecorder {
		var req *http.Request
		if i%2 == 0 {
			req = httptest.NewRequest(http.MethodPost, "/auth/verify", nil)
			req.Header.Set("Authorization", "Bearer "+h.token)
		} else {
			body := fmt.Sprintf(`{"email":"patient%d@example.com"}`, i)
			req = httptest.NewRequest(http.MethodPost, "/auth/password/reset", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	for i := range httpx.AuthLimit.Burst {
		rec := send(i)
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code, "request %d", i)
		require.Less(t, rec.Code, 300, "request %d", i)
	}

	require.Equal(t, http.StatusTooManyRequests, send(httpx.AuthLimit.Burst).Code)
	require.Equal(t, http.StatusTooManyRequests, send(httpx.AuthLimit.Burst+1).Code)
}

// ============================================================================
// Password reset
// ============================================================================

func TestPasswordReset(t *testing.T) {
	t.Run("accepted and redirected to the origin", func(t *testing.T) {
		h := newHarness(t, nil)

		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"patient@example.com"}`,
			map[string]string{"Origin": "https://portal.example.org"})
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		reqs := h.fake.ResetRequests()
		require.Len(t, reqs, 1)
		require.Equal(t, "https://portal.example.org/reset-password", reqs[0].RedirectTo)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t, nil)

		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, httpx.CodeBadRequest, decodeError(t, rec).Code)

		rec = h.do(http.MethodPost, "/auth/password/reset", `{"email":"a@b.co","admin":true}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid email names the field", func(t *testing.T) {
		h := newHarness(t, nil)

		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"nope"}`, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		require.Equal(t, string(authsdk.CodeValidation), body.Code)
		require.Equal(t, "email", body.Field)
	})

	t.Run("unknown address looks like success", func(t *testing.T) {
		h := newHarness(t, nil)
		h.fake.FailNext(identitytest.OpResetPassword, &identity.APIError{Status: 404, Code: "user_not_found"})

		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"ghost@example.com"}`, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	})

	t.Run("per-address budget", func(t *testing.T) {
		h := newHarness(t, nil)

		for range 3 {
			rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"patient@example.com"}`, nil)
			require.Equal(t, http.StatusAccepted, rec.Code)
		}
		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"patient@example.com"}`, nil)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, string(authsdk.CodeRateLimited), decodeError(t, rec).Code)
	})

	t.Run("provider unreachable", func(t *testing.T) {
		h := newHarness(t, nil)
		h.fake.FailNext(identitytest.OpResetPassword, identity.ErrNetwork)

		rec := h.do(http.MethodPost, "/auth/password/reset", `{"email":"patient@example.com"}`, nil)
		require.Equal(t, http.StatusBadGateway, rec.Code)
		require.Equal(t, string(authsdk.CodeNetwork), decodeError(t, rec).Code)
	})
}

// ============================================================================
// Profile
// ============================================================================

func TestProfile(t *testing.T) {
	h := newHarness(t, nil)

	t.Run("requires a token", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/profile", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("get", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/v1/profile", "", h.bearer())
		require.Equal(t, http.StatusOK, rec.Code)

		var p authsdk.Profile
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
		require.Equal(t, h.user.ID, p.ID)
		require.Equal(t, "Jane Doe", p.FullName)
	})

	t.Run("missing row", func(t *testing.T) {
		h.fake.FailNext(identitytest.OpSelectProfile, identity.ErrProfileNotFound)
		rec := h.do(http.MethodGet, "/v1/profile", "", h.bearer())
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, string(authsdk.CodeUserNotFound), decodeError(t, rec).Code)
	})

	t.Run("patch", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/v1/profile",
			`{"lastName":"Smith","bloodType":"ab+","heightCm":172.5}`, h.bearer())
		require.Equal(t, http.StatusOK, rec.Code)

		var p authsdk.Profile
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
		require.Equal(t, "Jane Smith", p.FullName)
		require.Equal(t, "AB+", p.BloodType)
		require.NotNil(t, p.HeightCM)
	})

	t.Run("patch validation names the field", func(t *testing.T) {
		before := h.fake.Calls(identitytest.OpUpdateProfile)
		rec := h.do(http.MethodPatch, "/v1/profile", `{"weightKg":-3}`, h.bearer())
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		require.Equal(t, string(authsdk.CodeValidation), body.Code)
		require.Equal(t, "weightKg", body.Field)
		require.Equal(t, before, h.fake.Calls(identitytest.OpUpdateProfile))
	})

	t.Run("patch rejects unknown fields", func(t *testing.T) {
		rec := h.do(http.MethodPatch, "/v1/profile", `{"fullName":"Someone Else"}`, h.bearer())
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, httpx.CodeBadRequest, decodeError(t, rec).Code)
	})
}

// ============================================================================
// Metrics and docs
// ============================================================================

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/auth/verify", "", h.bearer()).Code)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `medrec_token_verifications_total{result="ok"} 1`)
	require.Contains(t, body, "medrec_http_responses_total")
}

func TestSwagger(t *testing.T) {
	off := newHarness(t, nil)
	require.Equal(t, http.StatusNotFound, off.do(http.MethodGet, "/swagger/doc.json", "", nil).Code)

	on := newHarness(t, func(r *authhttp.Router) { r.SwaggerEnabled = true })
	rec := on.do(http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/v1/profile")
}
