package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/shared-terminal/backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Subscribers are unauthenticated by design; deployments that need
		// origin checks front the service with a proxy.
		return true
	},
}

// Handler upgrades HTTP requests and attaches the resulting streams to
// the terminal session.
type Handler struct {
	session *session.Session
	logger  *zap.Logger
}

// NewHandler creates the WebSocket attach handler.
func NewHandler(sess *session.Session, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		session: sess,
		logger:  logger.Named("ws"),
	}
}

// HandleAttach upgrades the connection and hands it to the session. The
// session replays scrollback as the first frame and starts the terminal
// process if it was never started.
func (h *Handler) HandleAttach(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	conn := NewConn(wsConn)
	if err := h.session.Attach(conn); err != nil {
		h.logger.Warn("attach rejected", zap.Error(err))
		conn.Close()
	}
}
