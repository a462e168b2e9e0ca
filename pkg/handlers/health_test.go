package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/discovery"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

type primaryProbe struct{}

func (primaryProbe) LoadHighlyAvailableStatus(context.Context, datasource.Connector) (models.HighlyAvailableStatus, error) {
	return models.HighlyAvailableStatus{Primary: true}, nil
}

func (primaryProbe) LoadReplicationDelay(context.Context, datasource.Connector) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{Version: "test-version", Env: "test"}
}

func TestHealthHandler_Health(t *testing.T) {
	d := discovery.NewDiscoverer(primaryProbe{}, discovery.Config{}, nil, nil, nil)
	d.SetPrimaryDataSource("ds_0")

	connManager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{}, zap.NewNop())
	defer connManager.Close()

	handler := NewHealthHandler(testConfig(), connManager, map[string]*discovery.Discoverer{"readwrite_ds": d}, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "ok", response.Status)
	require.NotNil(t, response.Connections)
	assert.Equal(t, 0, response.Connections.TotalConnections)
	assert.Equal(t, map[string]string{"readwrite_ds": "ds_0"}, response.Primaries)
}

func TestHealthHandler_HealthWithoutDependencies(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, nil, nil)

	rec := httptest.NewRecorder()
	handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var response HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Nil(t, response.Connections)
	assert.Nil(t, response.Primaries)
}

func TestHealthHandler_Ping(t *testing.T) {
	handler := NewHealthHandler(testConfig(), nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var response PingResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "test-version", response.Version)
	assert.Equal(t, "ekaya-pipeline", response.Service)
	assert.Equal(t, "test", response.Environment)
}

func TestHealthHandler_Routes(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(testConfig(), nil, nil, nil).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
