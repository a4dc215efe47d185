package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/agentplatform/internal/domain/audit"
	"github.com/GriffinCanCode/agentplatform/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/agentplatform/internal/types"
)

func dial(t *testing.T, history *audit.Log, query string) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/history/stream", NewHandler(history, nil).WithMetrics(monitoring.NewMetrics()).Stream)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/history/stream" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamBacklogThenLive(t *testing.T) {
	history := audit.NewLog()
	first := history.Append(types.Event{Type: types.EventCall})
	second := history.Append(types.Event{Type: types.EventResult, RelatedID: &first.ID})

	conn := dial(t, history, "?since=1")

	msg := read(t, conn)
	require.Equal(t, "event", msg.Type)
	assert.Equal(t, second.ID, msg.Event.ID)

	live := history.Append(types.Event{Type: types.EventCall})
	msg = read(t, conn)
	assert.Equal(t, live.ID, msg.Event.ID)
}

func TestStreamPing(t *testing.T) {
	conn := dial(t, audit.NewLog(), "")

	require.NoError(t, conn.WriteJSON(Message{Type: "ping"}))
	assert.Equal(t, "pong", read(t, conn).Type)
}
