package server_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plumeworks/plume/internal/config"
	"github.com/plumeworks/plume/internal/install"
	"github.com/plumeworks/plume/internal/model"
	"github.com/plumeworks/plume/internal/ratelimit"
	"github.com/plumeworks/plume/internal/server"
)

func newTestHandler(t *testing.T, limiter ratelimit.Limiter) http.Handler {
	t.Helper()
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr := config.NewManager(filepath.Join(dir, "plume.yaml"), logger)
	svc := install.NewService(install.Options{
		Config:       mgr,
		DataDir:      filepath.Join(dir, "data"),
		Logger:       logger,
		RestartDelay: 10 * time.Millisecond,
	})
	t.Cleanup(svc.Close)
	srv := server.New(server.Config{
		Install:     svc,
		Logger:      logger,
		Version:     "test",
		Limiter:     limiter,
		OpenAPISpec: []byte("openapi: 3.1.0\n"),
	})
	return srv.Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.APIResponse {
	t.Helper()
	var env model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestStatusFreshInstall(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodGet, "/install/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Meta.RequestID)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var status struct {
		IsInstalled  bool   `json:"is_installed"`
		ConfigExists bool   `json:"config_exists"`
		CurrentStep  string `json:"current_step"`
	}
	require.NoError(t, json.Unmarshal(data, &status))
	assert.False(t, status.IsInstalled)
	assert.False(t, status.ConfigExists)
	assert.Equal(t, "database_config", status.CurrentStep)
}

func TestInvalidJSONBody(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodPost, "/install/database/config", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Code)
}

func TestDatabaseTestRejectsUnknownProvider(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodPost, "/install/database/test",
		`{"provider":"mysql","connection_string":"mysql://x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Code)
}

func TestCreateAdminBeforeConfig(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodPost, "/install/admin",
		`{"username":"admin","email":"admin@example.com","password":"CorrectHorse9Battery"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Code)
}

func TestCompleteBeforeInit(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodPost, "/install/complete",
		`{"site_name":"My Plume","admin_email":"admin@example.com"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Code)
}

func TestHealthUnconfigured(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var health model.HealthResponse
	require.NoError(t, json.Unmarshal(data, &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "unconfigured", health.Postgres)
}

func TestRateLimitedMutation(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 1)
	h := newTestHandler(t, limiter)

	body := `{"provider":"mysql","connection_string":"mysql://x"}`
	rec := doRequest(t, h, http.MethodPost, "/install/database/test", body)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, h, http.MethodPost, "/install/database/test", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, model.ErrCodeRateLimited, env.Code)

	// Read-only routes stay reachable under throttling.
	rec = doRequest(t, h, http.MethodGet, "/install/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenAPISpecServed(t *testing.T) {
	h := newTestHandler(t, nil)

	rec := doRequest(t, h, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "openapi:")
}

func TestRequestIDEchoedFromClient(t *testing.T) {
	h := newTestHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/install/status", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-supplied-id", rec.Header().Get("X-Request-ID"))
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "client-supplied-id", env.Meta.RequestID)
}
