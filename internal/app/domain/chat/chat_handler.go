// Package chat exposes the persisted prompt/response log of the guide
// agent. The agent itself is an external collaborator; this package only
// records and serves turns.
package chat

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/storage"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/observability/metrics"
)

type Handler struct {
	store  storage.Store
	logger *zap.Logger
}

func NewHandler(store storage.Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

type saveTurnRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
	Response string `json:"response" binding:"required"`
	Model    string `json:"model"`
}

// SaveTurn handles POST /chat/turns. The user is created lazily on the
// first turn.
func (h *Handler) SaveTurn(c *gin.Context) {
	var req saveTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	if err := h.store.EnsureUser(ctx, req.UserID, models.UserPatch{}); err != nil {
		h.writeStorageError(c, err, "ensuring user")
		return
	}

	id, err := h.store.SaveChatTurn(ctx, req.UserID, req.Prompt, req.Response, req.Model)
	if err != nil {
		h.writeStorageError(c, err, "saving chat turn")
		return
	}

	if m := metrics.Get(); m != nil {
		m.ChatTurnsTotal.Add(ctx, 1)
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// History handles GET /chat/history?user_id=...&limit=..., newest first.
func (h *Handler) History(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	turns, err := h.store.GetChatHistory(c.Request.Context(), userID, limit)
	if err != nil {
		h.writeStorageError(c, err, "reading chat history")
		return
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}
	c.JSON(http.StatusOK, gin.H{"history": turns})
}

// GetTurn handles GET /chat/turns/:id.
func (h *Handler) GetTurn(c *gin.Context) {
	turn, err := h.store.GetChatTurn(c.Request.Context(), c.Param("id"))
	if errors.Is(err, models.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat turn not found"})
		return
	}
	if err != nil {
		h.writeStorageError(c, err, "reading chat turn")
		return
	}
	c.JSON(http.StatusOK, turn)
}

func (h *Handler) writeStorageError(c *gin.Context, err error, op string) {
	if errors.Is(err, models.ErrStorageUnavailable) {
		h.logger.Error("Storage unavailable", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	h.logger.Error("Chat storage operation failed", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
