package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/agentplatform/internal/domain/state"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/config"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = "0"
	cfg.Server.Host = "127.0.0.1"
	cfg.Persistence.StateDir = t.TempDir()
	cfg.Logging.Level = "error"
	cfg.RateLimit.Enabled = false
	cfg.Backend.PortRangeStart = 9300
	cfg.Backend.PortRangeEnd = 9310
	return cfg
}

func request(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Platform.ContainerEnvironment = config.EnvironmentKubernetes

	_, err := NewServer(cfg)
	assert.Error(t, err)
}

func TestAuthenticatedRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.Enabled = true
	cfg.Auth.AdminPassword = "secret"

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/metrics", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/containers", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, h, http.MethodGet, "/containers", "bogus", nil).Code)

	w := request(t, h, http.MethodPost, "/login", "", map[string]string{"user": "admin", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	assert.Equal(t, http.StatusOK, request(t, h, http.MethodGet, "/containers", login.Token, nil).Code)

	w = request(t, h, http.MethodPost, "/users", login.Token, map[string]interface{}{"name": "bob", "password": "pw"})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(t, h, http.MethodPost, "/login", "", map[string]string{"user": "bob", "password": "pw"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &login))

	w = request(t, h, http.MethodPost, "/users", login.Token, map[string]interface{}{"name": "eve", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStateSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)

	srv, err := NewServer(cfg)
	require.NoError(t, err)

	w := request(t, srv.Handler(), http.MethodPost, "/containers", "", map[string]interface{}{
		"image": types.AgentContainerImage{ImageName: "worker", APIPort: 8000},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.NoError(t, srv.Shutdown(context.Background()))

	_, err = os.Stat(state.SnapshotPath(cfg.Persistence.StateDir))
	require.NoError(t, err)

	restarted, err := NewServer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = restarted.Shutdown(context.Background()) })

	pending, err := restarted.API().GetPendingStarts(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "worker", pending[0].Image.ImageName)
}

func TestDiscardPolicySkipsRecovery(t *testing.T) {
	cfg := testConfig(t)
	cfg.Persistence.SessionPolicy = config.SessionDiscard

	srv, err := NewServer(cfg)
	require.NoError(t, err)
	w := request(t, srv.Handler(), http.MethodPost, "/containers", "", map[string]interface{}{
		"image": types.AgentContainerImage{ImageName: "worker", APIPort: 8000},
	})
	require.Equal(t, http.StatusAccepted, w.Code)
	require.NoError(t, srv.Shutdown(context.Background()))

	_, err = os.Stat(state.SnapshotPath(cfg.Persistence.StateDir))
	assert.True(t, os.IsNotExist(err))
}
