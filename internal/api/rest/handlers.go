package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/oshokin/fire-sentinel/internal/logger"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = pongWait * 9 / 10
	writeWait    = 10 * time.Second
	readLimit    = 512
)

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status      string `json:"status"`
	Phase       string `json:"phase"`
	LinkHealthy bool   `json:"link_healthy"`
	// NotifierConnected is omitted when no alert transport is configured.
	NotifierConnected *bool `json:"notifier_connected,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// health reports liveness. A failing actuator link or a disconnected alert
// transport degrades but does not fail the probe.
func (s *Server) health(c *gin.Context) {
	snapshot := s.source.Snapshot()

	response := HealthResponse{
		Status:      "ok",
		Phase:       snapshot.Phase.String(),
		LinkHealthy: snapshot.LinkHealthy,
	}

	if s.notifierUp != nil {
		connected := s.notifierUp()
		response.NotifierConnected = &connected
	}

	if !snapshot.LinkHealthy || (response.NotifierConnected != nil && !*response.NotifierConnected) {
		response.Status = "degraded"
	}

	c.JSON(http.StatusOK, response)
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Snapshot().Fields())
}

// stream pushes every status update to a websocket client until it disconnects.
func (s *Server) stream(c *gin.Context) {
	ctx := logger.WithKV(c.Request.Context(), "remote", c.ClientIP())

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WarnKV(ctx, "Websocket upgrade failed", "error", err)

		return
	}
	defer conn.Close()

	updates, cancel := s.source.Subscribe()
	defer cancel()

	logger.Debug(ctx, "Websocket client connected")

	closed := make(chan struct{})

	go func() {
		defer close(closed)

		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			logger.Debug(ctx, "Websocket client disconnected")

			return
		case <-ctx.Done():
			return
		case status := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err = conn.WriteJSON(status.Fields()); err != nil {
				logger.DebugKV(ctx, "Websocket write failed", "error", err)

				return
			}
		case <-ticker.C:
			if err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
