// Package location persists user-reported positions and enforces the
// retention policy on the stored history.
package location

import (
	"errors"
	"net/http"

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

type locationRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	TTLDays     int     `json:"ttl_days"`
	ProfileType *string `json:"profile_type"`
	PMR         bool    `json:"pmr"`
	AgeRange    *string `json:"age_range"`
}

// SaveLocation handles POST /locations. Every report appends a new
// history row; profile hints patch the user record.
func (h *Handler) SaveLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coordinates out of range"})
		return
	}

	err := h.store.SaveLocation(c.Request.Context(), models.LocationUpdate{
		UserID:            req.UserID,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		TTLDays:           req.TTLDays,
		ProfileType:       req.ProfileType,
		HasMobilityIssues: req.PMR,
		AgeRange:          req.AgeRange,
	})
	switch {
	case errors.Is(err, models.ErrStorageUnavailable):
		h.logger.Error("Saving location failed, storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	case err != nil:
		h.logger.Error("Saving location failed", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if m := metrics.Get(); m != nil {
		m.LocationsSavedTotal.Add(c.Request.Context(), 1)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
