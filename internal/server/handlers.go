// Package server exposes HTTP handlers: the WebSocket upgrade, the health
// check and the status snapshot.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HealthMessage is the body of GET /.
const HealthMessage = "Chess Pro Server is running"

// Handlers serves the HTTP side of the relay.
type Handlers struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandlers builds handlers bound to hub. The upgrader only accepts the
// origins allowed by the hub's configuration.
func NewHandlers(hub *Hub) *Handlers {
	return newHandlers(hub, newOriginPolicy(hub.cfg.AllowedOrigins, hub.logger))
}

func newHandlers(hub *Hub, policy *originPolicy) *Handlers {
	return &Handlers{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		logger: hub.logger,
	}
}

// WebSocket upgrades the request and registers the new client with the hub.
func (h *Handlers) WebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket_upgrade_failed", zap.Error(err))
		return
	}

	client := NewClient(conn, h.hub, c.Request.RemoteAddr)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// Health reports that the server is up.
func (h *Handlers) Health(c *gin.Context) {
	c.String(http.StatusOK, HealthMessage)
}

// Status returns the hub's counters.
func (h *Handlers) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	stats, err := h.hub.Stats(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
