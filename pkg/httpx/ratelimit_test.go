package httpx_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = addr
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(requestFrom("192.168.1.1:12345")))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})

	t.Run("RemoteAddr without port", func(t *testing.T) {
		require.Equal(t, "10.0.0.1", httpx.IPKeyExtractor(requestFrom("10.0.0.1")))
	})
}

func TestUserIDKeyExtractor(t *testing.T) {
	req := requestFrom("192.168.1.1:12345")
	require.Empty(t, httpx.UserIDKeyExtractor(req))

	ctx := httpx.WithAuth(req.Context(), authsdk.User{ID: "user-1"}, "tok")
	require.Equal(t, "user-1", httpx.UserIDKeyExtractor(req.WithContext(ctx)))
}

func TestCompositeKeyExtractor(t *testing.T) {
	extractor := httpx.CompositeKeyExtractor(":", httpx.UserIDKeyExtractor, httpx.IPKeyExtractor)

	t.Run("combines multiple extractors", func(t *testing.T) {
		req := requestFrom("192.168.1.1:12345")
		req = req.WithContext(httpx.WithAuth(req.Context(), authsdk.User{ID: "alice"}, "tok"))
		require.Equal(t, "alice:192.168.1.1", extractor(req))
	})

	t.Run("skips empty values", func(t *testing.T) {
		require.Equal(t, "192.168.1.1", extractor(requestFrom("192.168.1.1:12345")))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("allows requests under limit", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
			RequestsPerWindow: 5,
			Window:            time.Second,
			Burst:             5,
		}, httpx.IPKeyExtractor)(okHandler)

		for i := range 5 {
			rec := serve(h, requestFrom("192.168.1.1:12345"))
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
			RequestsPerWindow: 3,
			Window:            time.Minute,
			Burst:             3,
		}, httpx.IPKeyExtractor)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:12345")).Code)
		}

		rec := serve(h, requestFrom("192.168.1.1:12345"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
			RequestsPerWindow: 2,
			Window:            time.Minute,
			Burst:             2,
		}, httpx.IPKeyExtractor)(okHandler)

		for range 2 {
			require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:12345")).Code)
		}
		require.Equal(t, http.StatusTooManyRequests, serve(h, requestFrom("192.168.1.1:12345")).Code)
		require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.2:12345")).Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
			Burst:             1,
		}, func(*http.Request) string { return "" })(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
		}
	})
}

func TestRateLimitByIP(t *testing.T) {
	h := httpx.RateLimitByIP(httpx.RateLimitConfig{
		RequestsPerWindow: 2,
		Window:            time.Minute,
		Burst:             2,
	})(okHandler)

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:12345")).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(h, requestFrom("192.168.1.1:12345")).Code)
}

func TestRateLimitByUser(t *testing.T) {
	h := httpx.RateLimitByUser(httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	})(okHandler)

	as := func(userID string) *http.Request {
		req := requestFrom("192.168.1.1:12345")
		return req.WithContext(httpx.WithAuth(req.Context(), authsdk.User{ID: userID}, "tok"))
	}

	require.Equal(t, http.StatusOK, serve(h, as("alice")).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, as("alice")).Code)
	require.Equal(t, http.StatusOK, serve(h, as("bob")).Code)
}

func TestRateLimitProfiles(t *testing.T) {
	for name, cfg := range map[string]httpx.RateLimitConfig{
		"auth":    httpx.AuthLimit,
		"general": httpx.GeneralLimit,
	} {
		t.Run(name, func(t *testing.T) {
			require.Greater(t, cfg.RequestsPerWindow, 0)
			require.Greater(t, cfg.Window, time.Duration(0))
			require.Greater(t, cfg.Burst, 0)
		})
	}

	require.Less(t, httpx.AuthLimit.RequestsPerWindow, httpx.GeneralLimit.RequestsPerWindow)
}

func TestRateLimitResponse(t *testing.T) {
	h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
		RequestsPerWindow: 1,
		Window:            time.Minute,
		Burst:             1,
	}, httpx.IPKeyExtractor)(okHandler)

	require.Equal(t, http.StatusOK, serve(h, requestFrom("192.168.1.1:12345")).Code)

	rec := serve(h, requestFrom("192.168.1.1:12345"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body httpx.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, httpx.CodeRateLimitExceeded, body.Code)
	require.NotEmpty(t, body.Error)
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
		RequestsPerWindow: 1000000,
		Window:            time.Minute,
		Burst:             1000,
	}, httpx.IPKeyExtractor)(okHandler)

	req := requestFrom("192.168.1.1:12345")
	for b.Loop() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	h := httpx.RateLimitMiddleware(httpx.RateLimitConfig{
		RequestsPerWindow: 1000000,
		Window:            time.Minute,
		Burst:             1000,
	}, httpx.IPKeyExtractor)(okHandler)

	for i := 0; b.Loop(); i++ {
		h.ServeHTTP(httptest.NewRecorder(), requestFrom(fmt.Sprintf("192.168.%d.%d:12345", i%255, (i/255)%255)))
	}
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
		Burst:             10,
	}

	t.Run("NoEnvVarsUsesDefaults", func(t *testing.T) {
		require.Equal(t, def, httpx.ParseRateLimitFromEnv("TEST", def))
	})

	t.Run("OverrideAllParameters", func(t *testing.T) {
		t.Setenv("RATELIMIT_TEST_REQUESTS", "200")
		t.Setenv("RATELIMIT_TEST_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_TEST_BURST", "250")

		cfg := httpx.ParseRateLimitFromEnv("TEST", def)
		require.Equal(t, 200, cfg.RequestsPerWindow)
		require.Equal(t, 30*time.Second, cfg.Window)
		require.Equal(t, 250, cfg.Burst)
	})

	t.Run("OverrideOneParameter", func(t *testing.T) {
		t.Setenv("RATELIMIT_AUTH_BURST", "3")

		cfg := httpx.ParseRateLimitFromEnv("AUTH", def)
		require.Equal(t, def.RequestsPerWindow, cfg.RequestsPerWindow)
		require.Equal(t, def.Window, cfg.Window)
		require.Equal(t, 3, cfg.Burst)
	})

	for name, val := range map[string]string{
		"InvalidValuesUseDefaults":  "not-a-number",
		"NegativeValuesUseDefaults": "-10",
		"ZeroValuesUseDefaults":     "0",
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("RATELIMIT_TEST_REQUESTS", val)
			t.Setenv("RATELIMIT_TEST_WINDOW_SEC", val)
			t.Setenv("RATELIMIT_TEST_BURST", val)
			require.Equal(t, def, httpx.ParseRateLimitFromEnv("TEST", def))
		})
	}
}
