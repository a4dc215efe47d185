package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is one frame sent to clients
type Message struct {
	Type    string       `json:"type"`
	Event   *types.Event `json:"event,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Handler serves the live audit stream
type Handler struct {
	history *audit.Log
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

// NewHandler creates a stream handler over history
func NewHandler(history *audit.Log, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{history: history, logger: logger}
}

// WithMetrics sets the metrics collector
func (h *Handler) WithMetrics(metrics *monitoring.Metrics) *Handler {
	h.metrics = metrics
	return h
}

// Stream upgrades the connection and forwards audit events until the client
// goes away
func (h *Handler) Stream(c *gin.Context) {
	since, err := strconv.Atoi(c.DefaultQuery("since", "0"))
	if err != nil || since < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be a non-negative integer"})
		return
	}

	// Subscribe before reading the backlog so nothing falls in between
	events, unsubscribe := h.history.Subscribe(0)
	defer unsubscribe()
	backlog := h.history.Since(since)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.IncWSConnections()
		defer h.metrics.DecWSConnections()
	}

	s := &session{conn: conn, metrics: h.metrics}
	seen := make(map[string]struct{}, len(backlog))
	for i := range backlog {
		seen[backlog[i].ID] = struct{}{}
		if err := s.send(Message{Type: "event", Event: &backlog[i]}); err != nil {
			return
		}
	}

	closed := make(chan struct{})
	go s.readLoop(closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				_ = s.send(Message{Type: "error", Message: "stream closed"})
				return
			}
			if _, dup := seen[e.ID]; dup {
				delete(seen, e.ID)
				continue
			}
			event := e
			if err := s.send(Message{Type: "event", Event: &event}); err != nil {
				h.logger.Debug("WebSocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := s.ping(); err != nil {
				return
			}
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// session serializes writes to one connection
type session struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	metrics *monitoring.Metrics
}

func (s *session) send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(msg); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordWSMessage("out", msg.Type)
	}
	return nil
}

func (s *session) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// readLoop answers pings and closes done once the client disconnects
func (s *session) readLoop(done chan<- struct{}) {
	defer close(done)

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		if s.metrics != nil {
			s.metrics.RecordWSMessage("in", msg.Type)
		}
		if msg.Type == "ping" {
			_ = s.send(Message{Type: "pong"})
		}
	}
}
