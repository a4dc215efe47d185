package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/api/middleware"
	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/domain/platform"
	"github.com/GriffinCanCode/agentplatform/internal/domain/schema"
	"github.com/GriffinCanCode/agentplatform/internal/shared/value"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

// maxBodySize bounds request bodies
const maxBodySize = 4 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	api       platform.API
	history   *audit.Log
	schemas   *schema.Registry
	logger    *zap.Logger
	startedAt time.Time
}

// NewHandlers creates a handler set over an audited API
func NewHandlers(api platform.API, history *audit.Log, schemas *schema.Registry, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		api:       api,
		history:   history,
		schemas:   schemas,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRoutes) {
	r.GET("/health", h.Health)
	r.GET("/info", h.Info)
	r.GET("/stats", h.Stats)
	r.GET("/provisions", h.Provisions)

	r.GET("/containers", h.ListContainers)
	r.POST("/containers", h.DeployContainer)
	r.GET("/containers/:id", h.GetContainer)
	r.DELETE("/containers/:id", h.StopContainer)
	r.POST("/containers/:id/confirm", h.ConfirmContainer)
	r.GET("/pending", h.PendingStarts)

	r.POST("/invoke/:action", h.InvokeAction)

	r.GET("/connections", h.ListConnections)
	r.POST("/connections", h.ConnectPeer)
	r.DELETE("/connections/:id", h.DisconnectPeer)
	r.GET("/connections/:id/containers", h.PeerContainers)

	r.POST("/login", h.Login)

	r.GET("/history", h.History)
	r.GET("/schemas", h.ListSchemas)
}

// RegisterAdmin mounts the routes that manage users and schemas
func (h *Handlers) RegisterAdmin(r gin.IRoutes) {
	r.POST("/users", h.AddUser)
	r.DELETE("/users/:name", h.RemoveUser)
	r.POST("/schemas/:type", h.RegisterSchema)
}

// Health reports liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Info describes this platform; peers call it when connecting
func (h *Handlers) Info(c *gin.Context) {
	info, _ := h.api.GetPlatformConfig(c.Request.Context())
	c.JSON(http.StatusOK, info)
}

// Stats returns state sizes and the audit history length
func (h *Handlers) Stats(c *gin.Context) {
	stats, _ := h.api.GetStats(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"state":         stats,
		"audit_events":  h.history.Len(),
		"schema_types":  len(h.schemas.Types()),
		"uptime_second": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Provisions lists current capabilities
func (h *Handlers) Provisions(c *gin.Context) {
	provisions, _ := h.api.GetProvisions(c.Request.Context())
	if provisions == nil {
		provisions = []types.Capability{}
	}
	c.JSON(http.StatusOK, gin.H{"provisions": provisions, "count": len(provisions)})
}

// ListContainers lists running containers
func (h *Handlers) ListContainers(c *gin.Context) {
	containers, _ := h.api.GetContainers(c.Request.Context())
	if containers == nil {
		containers = []types.RunningContainer{}
	}
	c.JSON(http.StatusOK, gin.H{"containers": containers, "count": len(containers)})
}

// GetContainer returns one running container
func (h *Handlers) GetContainer(c *gin.Context) {
	container, _ := h.api.GetContainer(c.Request.Context(), c.Param("id"))
	if container.ID == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "container not found"})
		return
	}
	c.JSON(http.StatusOK, container)
}

// PendingStarts lists starts awaiting confirmation
func (h *Handlers) PendingStarts(c *gin.Context) {
	pending, _ := h.api.GetPendingStarts(c.Request.Context())
	if pending == nil {
		pending = []types.StartRequest{}
	}
	c.JSON(http.StatusOK, gin.H{"pending": pending, "count": len(pending)})
}

// DeployContainer starts a container
func (h *Handlers) DeployContainer(c *gin.Context) {
	var req platform.DeployRequest
	if !h.bind(c, &req) {
		return
	}
	if owner := c.GetString(middleware.ContextOwner); owner != "" && req.Owner == "" {
		req.Owner = owner
	}

	res, err := h.api.DeployContainer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if res.Status == platform.StatusPending {
		status = http.StatusAccepted
	}
	c.JSON(status, res)
}

// StopContainer stops a container
func (h *Handlers) StopContainer(c *gin.Context) {
	if err := h.api.StopContainer(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "containerId": c.Param("id")})
}

// ConfirmContainer completes a pending start
func (h *Handlers) ConfirmContainer(c *gin.Context) {
	var req platform.ConfirmRequest
	if !h.bind(c, &req) {
		return
	}
	req.ContainerID = c.Param("id")

	container, err := h.api.ConfirmContainer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, container)
}

// InvokeAction calls an agent action
func (h *Handlers) InvokeAction(c *gin.Context) {
	var req platform.InvokeRequest
	if !h.bind(c, &req) {
		return
	}
	req.Action = c.Param("action")
	if req.Arguments == nil {
		req.Arguments = map[string]value.Value{}
	}

	result, err := h.api.InvokeAction(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// ListConnections lists connected peers
func (h *Handlers) ListConnections(c *gin.Context) {
	connections, _ := h.api.GetConnections(c.Request.Context())
	if connections == nil {
		connections = []types.PeerConnection{}
	}
	for i := range connections {
		connections[i].Token = ""
	}
	c.JSON(http.StatusOK, gin.H{"connections": connections, "count": len(connections)})
}

// ConnectPeer federates with another platform
func (h *Handlers) ConnectPeer(c *gin.Context) {
	var req platform.ConnectRequest
	if !h.bind(c, &req) {
		return
	}

	conn, err := h.api.ConnectPeer(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	conn.Token = ""
	c.JSON(http.StatusCreated, conn)
}

// DisconnectPeer forgets a peer
func (h *Handlers) DisconnectPeer(c *gin.Context) {
	if err := h.api.DisconnectPeer(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PeerContainers lists a peer's running containers
func (h *Handlers) PeerContainers(c *gin.Context) {
	containers, _ := h.api.GetPeerContainers(c.Request.Context(), c.Param("id"))
	if containers == nil {
		containers = []types.RunningContainer{}
	}
	c.JSON(http.StatusOK, gin.H{"containers": containers, "count": len(containers)})
}

// Login exchanges credentials for a bearer token
func (h *Handlers) Login(c *gin.Context) {
	var req platform.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	token, err := h.api.Login(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// AddUser creates or updates a user
func (h *Handlers) AddUser(c *gin.Context) {
	var req platform.UserRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.api.AddUser(c.Request.Context(), req); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "name": req.Name})
}

// RemoveUser deletes a user
func (h *Handlers) RemoveUser(c *gin.Context) {
	if err := h.api.RemoveUser(c.Request.Context(), c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// History returns audit events, optionally only those after ?since=n
func (h *Handlers) History(c *gin.Context) {
	since := 0
	if raw := c.Query("since"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
			return
		}
		since = n
	}

	events := h.history.Since(since)
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events), "total": h.history.Len()})
}

// ListSchemas lists registered object types
func (h *Handlers) ListSchemas(c *gin.Context) {
	names := h.schemas.Types()
	c.JSON(http.StatusOK, gin.H{"types": names, "count": len(names)})
}

// RegisterSchema registers or replaces the schema of an object type
func (h *Handlers) RegisterSchema(c *gin.Context) {
	document, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	typeName := c.Param("type")
	if err := h.schemas.Register(typeName, document); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("Schema registered", zap.String("type", typeName))
	c.JSON(http.StatusCreated, gin.H{"success": true, "type": typeName})
}

// bind decodes the JSON body into v, answering 400 on failure
func (h *Handlers) bind(c *gin.Context, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := sonic.ConfigStd.Unmarshal(body, v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

// fail writes err with its mapped status and any structured detail
func (h *Handlers) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	body := gin.H{"error": err.Error()}

	var missing *platform.MissingRequirementsError
	if errors.As(err, &missing) {
		body["missing"] = missing.Missing
	}
	var invalid *platform.InvalidArgumentsError
	if errors.As(err, &invalid) && invalid.Detail != nil {
		body["path"] = invalid.Detail.Path
		body["reason"] = invalid.Detail.Reason
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, body)
}
