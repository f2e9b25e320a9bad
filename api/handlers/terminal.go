// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shared-terminal/backend/internal/journal"
	"github.com/shared-terminal/backend/internal/model"
	"github.com/shared-terminal/backend/internal/session"
)

// TerminalHandler exposes the terminal control surface over HTTP.
type TerminalHandler struct {
	session *session.Session
	journal *journal.Journal
	logger  *zap.Logger
}

// NewTerminalHandler creates the terminal HTTP handler.
func NewTerminalHandler(sess *session.Session, jrnl *journal.Journal, logger *zap.Logger) *TerminalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalHandler{
		session: sess,
		journal: jrnl,
		logger:  logger.Named("http"),
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// RegisterRoutes registers the terminal routes on the router group.
func (h *TerminalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/terminal", h.Status)
	rg.POST("/terminal/start", h.Start)
	rg.POST("/terminal/shutdown", h.Shutdown)
	rg.POST("/terminal/resize", h.Resize)
	rg.GET("/terminal/events", h.Events)
}

// Status handles GET /api/terminal - returns the session status snapshot.
func (h *TerminalHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Status())
}

// Start handles POST /api/terminal/start - spawns the terminal process.
func (h *TerminalHandler) Start(c *gin.Context) {
	if err := h.session.Start(); err != nil {
		switch {
		case errors.Is(err, model.ErrAlreadyStarted):
			sendError(c, http.StatusConflict, "ALREADY_STARTED", err.Error())
		case errors.Is(err, model.ErrShutDown):
			sendError(c, http.StatusConflict, "SHUT_DOWN", err.Error())
		default:
			h.logger.Error("terminal start failed", zap.Error(err))
			sendError(c, http.StatusInternalServerError, "START_FAILED", err.Error())
		}
		return
	}

	c.JSON(http.StatusCreated, h.session.Status())
}

// Shutdown handles POST /api/terminal/shutdown. Idempotent.
func (h *TerminalHandler) Shutdown(c *gin.Context) {
	if err := h.session.Shutdown(); err != nil {
		h.logger.Error("terminal shutdown failed", zap.Error(err))
		sendError(c, http.StatusInternalServerError, "SHUTDOWN_FAILED", err.Error())
		return
	}
	c.Status(http.StatusNoContent)
}

// Resize handles POST /api/terminal/resize with body {"rows":R,"cols":C}.
func (h *TerminalHandler) Resize(c *gin.Context) {
	var req model.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		sendError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	if err := h.session.Resize(req.Rows, req.Cols); err != nil {
		switch {
		case errors.Is(err, model.ErrNotRunning):
			sendError(c, http.StatusConflict, "NOT_RUNNING", err.Error())
		case errors.Is(err, model.ErrInvalidDimensions):
			sendError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		default:
			h.logger.Error("terminal resize failed", zap.Error(err))
			sendError(c, http.StatusInternalServerError, "RESIZE_FAILED", err.Error())
		}
		return
	}

	c.Status(http.StatusNoContent)
}

// Events handles GET /api/terminal/events?limit=N - recent journal events.
func (h *TerminalHandler) Events(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			sendError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("journal query failed", zap.Error(err))
		sendError(c, http.StatusInternalServerError, "JOURNAL_ERROR", err.Error())
		return
	}
	if events == nil {
		events = []*journal.Event{}
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}
