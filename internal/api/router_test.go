package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/casavia/casavia/internal/app"
	"github.com/casavia/casavia/internal/database/testutil"
)

func newTestConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{
			Port:    8000,
			BaseURL: "https://casavia.test",
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

func TestNewRouterValidatesInputs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t)

	_, err := NewRouter(nil, newTestConfig(), nil)
	require.Error(t, err)

	_, err = NewRouter(db, nil, nil)
	require.Error(t, err)

	r, err := NewRouter(db, newTestConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestRouterServesPublicSurface(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.MustOpenTestDB(t)

	r, err := NewRouter(db, newTestConfig(), nil)
	require.NoError(t, err)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	require.Equal(t, http.StatusOK, get("/health").Code)
	require.Equal(t, http.StatusOK, get("/metrics").Code)
	require.Equal(t, http.StatusOK, get("/api/posts").Code)
	require.Equal(t, http.StatusOK, get("/api/properties").Code)

	// Authenticated surface is closed without a session cookie.
	require.Equal(t, http.StatusUnauthorized, get("/api/profile").Code)
	require.Equal(t, http.StatusUnauthorized, get("/api/sessions").Code)
	require.Equal(t, http.StatusUnauthorized, get("/api/admin/invitations/pending").Code)

	// Unknown routes answer JSON.
	w := get("/api/unknown")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/json")
}
