package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/sales-insight/internal/domain/sales/handler"
	"github.com/FACorreiaa/sales-insight/pkg/config"
)

func setupRouterTest(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			RateLimit:      100,
			RateBurst:      100,
		},
		Import: config.ImportConfig{
			Delimiter: ";",
			Encoding:  "utf-8",
			MaxBytes:  1 << 20,
			CacheSize: 4,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	deps, err := InitDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(deps.Cleanup)

	server := httptest.NewServer(SetupRouter(deps))
	t.Cleanup(server.Close)
	return server
}

func TestRouter_HealthEndpoints(t *testing.T) {
	server := setupRouterTest(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(server.URL + "/health/details")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var details map[string]struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&details))
	assert.Equal(t, "warn", details["assistant"].Status)
	assert.Equal(t, "ok", details["db"].Status)
}

func TestRouter_ConnectRoute(t *testing.T) {
	server := setupRouterTest(t)

	resp, err := http.Post(server.URL+handler.ListCategoriesProcedure, "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := setupRouterTest(t)

	req, err := http.NewRequest(http.MethodOptions, server.URL+handler.AskProcedure, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
