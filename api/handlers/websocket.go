package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/shared-terminal/backend/internal/ws"
)

// WebSocketHandler exposes the subscriber attach endpoint.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates the WebSocket attach route handler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

// RegisterRoutes registers the WebSocket routes on the router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/terminal/attach", h.Attach)
}

// Attach handles GET /api/terminal/attach - upgrades to WebSocket and
// attaches the stream to the terminal session.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	h.wsHandler.HandleAttach(c.Writer, c.Request)
}
