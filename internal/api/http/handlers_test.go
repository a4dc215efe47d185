package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/backend"
	"github.com/GriffinCanCode/agentplatform/internal/backend/memory"
	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/domain/platform"
	"github.com/GriffinCanCode/agentplatform/internal/domain/schema"
	"github.com/GriffinCanCode/agentplatform/internal/domain/state"
	"github.com/GriffinCanCode/agentplatform/internal/domain/validation"
	"github.com/GriffinCanCode/agentplatform/internal/remote"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

type fixture struct {
	router  *gin.Engine
	history *audit.Log
	mem     *memory.Backend
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := memory.New()
	mem.RegisterImage("calc", []types.AgentDescriptor{{
		AgentID:   "calc-1",
		AgentType: "Calculator",
		Actions: []types.Action{{
			Name:       "Add",
			Parameters: types.ActionSignature{"a": {Name: "a", Type: "Integer", Required: true}},
		}},
	}})

	schemas := schema.NewRegistry(zap.NewNop())
	svc := platform.NewService(types.PlatformInfo{ID: "local", ContainerEnvironment: "memory"}, platform.Dependencies{
		Store:             state.NewStore(state.PortRange{Start: 9200, End: 9210}).WithBcryptCost(4),
		Backend:           mem,
		Validator:         validation.New(schemas, zap.NewNop()),
		CapabilityTimeout: time.Second,
	})

	history := audit.NewLog()
	h := NewHandlers(audit.Wrap(svc, history), history, schemas, zap.NewNop())

	router := gin.New()
	h.Register(router)
	h.RegisterAdmin(router)
	return fixture{router: router, history: history, mem: mem}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, sonic.ConfigStd.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestContainerLifecycle(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/containers", `{"image":{"imageName":"calc","apiPort":8080}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode(t, w)["containerId"].(string)

	w = f.do(http.MethodGet, "/containers", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/containers/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodDelete, "/containers/"+id, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/containers/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, "/containers/"+id, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodGet, "/history", "")
	assert.Equal(t, float64(6), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/history?since=4", "")
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = f.do(http.MethodGet, "/history?since=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingAndConfirm(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/containers", `{"image":{"imageName":"opaque","apiPort":8080}}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	id := decode(t, w)["containerId"].(string)

	w = f.do(http.MethodGet, "/pending", "")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	w = f.do(http.MethodPost, "/containers/"+id+"/confirm", `{"agents":[{"agentId":"x","agentType":"X","actions":[]}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/provisions", "")
	assert.Contains(t, decode(t, w)["provisions"], "agent:X")
}

func TestDeployMissingRequirements(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/containers", `{"image":{"imageName":"planner","requires":["agent:Planner"]}}`)
	assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, []interface{}{"agent:Planner"}, decode(t, w)["missing"])
}

func TestInvokeRejectsInvalidArguments(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/containers", `{"image":{"imageName":"calc","apiPort":8080}}`).Code)

	w := f.do(http.MethodPost, "/invoke/Add", `{"agentId":"calc-1","arguments":{"a":"1.5"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "a", body["path"])

	w = f.do(http.MethodPost, "/invoke/Missing", `{"agentId":"calc-1","arguments":{}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidJSON(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/containers", `{"image":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, f.history.Len())
}

func TestUsersAndLogin(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/users", `{"name":"alice","password":"pw","roles":["admin"]}`).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/login", `{"user":"alice","password":"nope"}`).Code)

	w := f.do(http.MethodPost, "/login", `{"user":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["token"])

	assert.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/users/alice", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/users/alice", "").Code)
}

func TestSchemas(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/schemas/Point", `{"type":"object","required":["x"],"properties":{"x":{"type":"number"}}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/schemas/Broken", `{"type":`).Code)

	w = f.do(http.MethodGet, "/schemas", "")
	assert.Equal(t, []interface{}{"Point"}, decode(t, w)["types"])
}

func TestConnectionsHideTokens(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"remote","containerEnvironment":"memory"}`)
	}))
	defer peer.Close()

	f := newFixture(t)
	w := f.do(http.MethodPost, "/connections", `{"baseUrl":"`+peer.URL+`","token":"secret"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "secret")

	w = f.do(http.MethodGet, "/connections", "")
	assert.NotContains(t, w.Body.String(), "secret")
	assert.Equal(t, float64(1), decode(t, w)["count"])

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/connections/peer_unknown", "").Code)
}

func TestInfoAndHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "local", decode(t, w)["id"])

	w = f.do(http.MethodGet, "/health", "")
	assert.Equal(t, "healthy", decode(t, w)["status"])

	f.mem.SetUnavailable(true)
	w = f.do(http.MethodGet, "/provisions", "")
	assert.Equal(t, float64(0), decode(t, w)["count"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{platform.ErrInvalidRequest, http.StatusBadRequest},
		{&platform.InvalidArgumentsError{Action: "Add"}, http.StatusBadRequest},
		{&platform.MissingRequirementsError{Image: "x"}, http.StatusPreconditionFailed},
		{fmt.Errorf("wrapped: %w", platform.ErrPeerNotFound), http.StatusNotFound},
		{platform.ErrInvalidToken, http.StatusUnauthorized},
		{platform.ErrNoEndpoint, http.StatusConflict},
		{&remote.StatusError{StatusCode: 404}, http.StatusBadGateway},
		{backend.ErrUnavailable, http.StatusServiceUnavailable},
		{audit.ErrTargetUnavailable, http.StatusServiceUnavailable},
		{state.ErrNoFreePort, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}
