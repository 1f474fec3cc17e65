package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/dayjournal/internal/telemetry/metrics"
)

func testServerSetup() *Server {
	return &Server{
		metricsManager: metrics.NewTestManager(),
		versionInfo:    "test-version",
	}
}

func TestServer_connStateMetrics(t *testing.T) {
	server := testServerSetup()

	server.connStateMetrics(nil, http.StateNew)
	server.connStateMetrics(nil, http.StateNew)
	assert.Equal(t, float64(2), testutil.ToFloat64(server.metricsManager.GaugeRequests))

	server.connStateMetrics(nil, http.StateClosed)
	assert.Equal(t, float64(1), testutil.ToFloat64(server.metricsManager.GaugeRequests))

	// other conn states leave the gauge untouched
	server.connStateMetrics(nil, http.StateActive)
	server.connStateMetrics(nil, http.StateIdle)
	assert.Equal(t, float64(1), testutil.ToFloat64(server.metricsManager.GaugeRequests))
}

func TestServer_routerSetup_unknownPath(t *testing.T) {
	server := testServerSetup()
	router := server.routerSetup()

	req := httptest.NewRequest("GET", "/whatever", nil)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_routerSetup_version(t *testing.T) {
	server := testServerSetup()
	router := server.routerSetup()

	req := httptest.NewRequest("GET", "/version", nil)
	req.Header.Set("Origin", "test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test-version", rr.Body.String())
}

func TestServer_routerSetup_health(t *testing.T) {
	server := testServerSetup()
	router := server.routerSetup()

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}
