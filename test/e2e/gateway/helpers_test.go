package gateway_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/medrec/internal/auth/app"
	"github.com/aussiebroadwan/medrec/internal/auth/store/drivers/postgres"
)

/*
 * Shared fixtures for the gateway end-to-end tests: Postgres and Redis
 * containers, a stub identity provider and a running gateway.
 */

const (
	patientToken = "patient-access-token"
	patientEmail = "patient@example.com"
)

// provider is a stub GoTrue endpoint that knows a single access token.
type provider struct {
	userID string

	mu      sync.Mutex
	resets  []string
	userHit int
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method + " " + r.URL.Path {
	case "GET /auth/v1/user":
		p.mu.Lock()
		p.userHit++
		p.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+patientToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"code": 401, "error_code": "bad_jwt", "msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":                 p.userID,
			"email":              patientEmail,
			"email_confirmed_at": time.Now().UTC(),
			"created_at":         time.Now().UTC(),
		})
	case "POST /auth/v1/recover":
		p.mu.Lock()
		p.resets = append(p.resets, r.URL.Query().Get("redirect_to"))
		p.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (p *provider) resetRedirects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type env struct {
	baseURL  string
	provider *provider
}

// setupGateway starts every dependency and a gateway wired to them. The
// patient's profile row exists with first and last name set.
func setupGateway(t *testing.T) *env {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	dbURL := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "medrec",
			"POSTGRES_PASSWORD": "medrec",
			"POSTGRES_DB":       "medrec",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432", "postgres://medrec:medrec@%s:%s/medrec?sslmode=disable")

	redisURL := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379", "redis://%s:%s/0")

	p := &provider{userID: uuid.NewString()}
	seedProfile(t, ctx, dbURL, p.userID)

	idp := httptest.NewServer(p)
	t.Cleanup(idp.Close)

	a, err := app.New(ctx, app.Config{
		Env:                 "test",
		LogLevel:            "error",
		LogFormat:           "json",
		Port:                8080,
		ShutdownGracePeriod: time.Second,
		ReadHeaderTimeout:   time.Second,
		IdentityURL:         idp.URL,
		IdentityAnonKey:     "anon-key",
		AppURL:              "https://app.example.com",
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		ResetMaxAttempts:    3,
		ResetWindow:         time.Hour,
		ProfilesTimeout:     5 * time.Second,
		MetricsEnabled:      true,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return &env{baseURL: srv.URL, provider: p}
}

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port, urlFormat string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	require.NoError(t, err)
	return fmt.Sprintf(urlFormat, host, mapped.Port())
}

func seedProfile(t *testing.T, ctx context.Context, dbURL, userID string) {
	t.Helper()

	st, err := postgres.Open(ctx, postgres.Config{URL: dbURL, RetryAttempts: 5, RetryInterval: time.Second})
	require.NoError(t, err)
	require.NoError(t, st.ApplySchema(ctx))
	st.Close()

	conn, err := pgx.Connect(ctx, dbURL)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx,
		`INSERT INTO profiles (id, first_name, last_name, full_name) VALUES ($1, 'Jane', 'Doe', 'Jane Doe')`,
		userID)
	require.NoError(t, err)
}

// call sends one request to the gateway and decodes a JSON response into
// out when out is non-nil.
func (e *env) call(t *testing.T, method, path, token, body string, headers map[string]string, out any) int {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, e.baseURL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}
