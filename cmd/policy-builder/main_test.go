package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/cluster-policy-builder/app"
	"github.com/upb/cluster-policy-builder/config"
	"github.com/upb/cluster-policy-builder/middleware"
	"github.com/upb/cluster-policy-builder/routes"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	// Setup
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	// Run tests
	code := m.Run()

	// Teardown
	os.Exit(code)
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "info")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "invalid")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestHealthEndpoints(t *testing.T) {
	deps := &app.Dependencies{
		Config: testConfig(t, "https://example.cloud.databricks.com"),
		Logger: zaptest.NewLogger(t),
	}

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	defer ts.Close()

	t.Run("health check returns ok", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		var body map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("status endpoint returns version info", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/status")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Contains(t, body, "version")
		assert.Equal(t, "test", body["environment"])
		assert.Equal(t, config.DraftStoreMemory, body["draft_store"])
		assert.NotZero(t, body["attributes"])
	})

	t.Run("not ready without workspace", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "not_ready", body["status"])
	})

	t.Run("attributes are served without a backend", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/attributes/runtime_engine")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get(middleware.SessionIDHeader))
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/v1/nonexistent")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		data, _ := io.ReadAll(resp.Body)
		assert.JSONEq(t, `{"error":"endpoint not found"}`, string(data))
	})
}

func TestCORSMiddleware(t *testing.T) {
	deps := &app.Dependencies{
		Config: testConfig(t, "https://example.cloud.databricks.com"),
		Logger: zaptest.NewLogger(t),
	}

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	defer ts.Close()

	t.Run("OPTIONS preflight request", func(t *testing.T) {
		req, err := http.NewRequest("OPTIONS", ts.URL+"/api/v1/session/submit", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type, X-Session-ID")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

// fakeWorkspace serves the policy endpoints the editor needs
type fakeWorkspace struct {
	mu      sync.Mutex
	created []map[string]interface{}
}

func (f *fakeWorkspace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/2.0/clusters/spark-versions":
		_, _ = w.Write([]byte(`{"versions":[{"key":"15.4.x-scala2.12","name":"15.4 LTS"}]}`))
	case "/api/2.0/policies/clusters/list":
		_, _ = w.Write([]byte(`{"policies":[]}`))
	case "/api/2.0/policies/clusters/create":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.created = append(f.created, body)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"policy_id":"ABC123"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error_code":"RESOURCE_DOES_NOT_EXIST","message":"not found"}`))
	}
}

func TestEditorRoundTrip(t *testing.T) {
	fake := &fakeWorkspace{}
	workspace := httptest.NewServer(fake)
	defer workspace.Close()

	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, testConfig(t, workspace.URL), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	defer ts.Close()

	call := func(method, path, body string) (int, map[string]interface{}) {
		t.Helper()
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req, err := http.NewRequest(method, ts.URL+path, reader)
		require.NoError(t, err)
		req.Header.Set(middleware.SessionIDHeader, "round-trip-1")
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		var out map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return resp.StatusCode, out
	}

	status, _ := call(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = call(http.MethodPut, "/api/v1/session/constraints",
		`{"attribute":"runtime_engine","mode":"fixed","payload":{"value":"PHOTON"}}`)
	require.Equal(t, http.StatusOK, status)

	status, body := call(http.MethodPost, "/api/v1/session/submit", `{"name":"Photon only"}`)
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "persisted", data["state"])

	// The notification is delivered once on the next read
	status, body = call(http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]interface{})
	notification := data["notification"].(map[string]interface{})
	assert.Equal(t, "ABC123", notification["policy_id"])
	assert.Equal(t, workspace.URL+"/compute/policies/ABC123", notification["url"])

	_, body = call(http.MethodGet, "/api/v1/session", "")
	assert.NotContains(t, body["data"], "notification")

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.created, 1)
	assert.Equal(t, "Photon only", fake.created[0]["name"])
	assert.JSONEq(t, `{"runtime_engine":{"type":"fixed","value":"PHOTON"}}`, fake.created[0]["definition"].(string))

	// Audit events are written asynchronously
	assert.Eventually(t, func() bool {
		status, body := call(http.MethodGet, "/api/v1/session/history", "")
		logs, _ := body["data"].([]interface{})
		return status == http.StatusOK && len(logs) > 0
	}, 2*time.Second, 50*time.Millisecond)
}

// Test helpers

func testConfig(t *testing.T, host string) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Drafts: config.DraftsConfig{
			Store:           config.DraftStoreMemory,
			MaxAge:          time.Hour,
			CleanupInterval: time.Minute,
		},
		Workspace: config.WorkspaceConfig{
			Host:    host,
			Token:   "dapi-test",
			Timeout: 5 * time.Second,
		},
		Catalog: config.CatalogConfig{
			TTL:        time.Minute,
			MaxEntries: 16,
		},
		Audit: config.AuditConfig{
			Enabled:       true,
			BufferSize:    100,
			WorkerCount:   1,
			BatchSize:     1,
			FlushInterval: 20 * time.Millisecond,
		},
		Observability: config.ObservabilityConfig{
			LogLevel:       "error",
			LogFormat:      "json",
			MetricsEnabled: true,
		},
	}
}
