package recommend

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/models"
)

const (
	defaultRadiusM = 1000
	defaultK       = 3
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// recommendationsRequest mirrors the location-update body plus the result
// cap; radius and k fall back to sensible defaults when omitted.
type recommendationsRequest struct {
	UserID    string  `json:"user_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	RadiusM   *int    `json:"radius_m"`
	PMR       bool    `json:"pmr"`
	AgeRange  *string `json:"age_range"`
	K         *int    `json:"k"`
}

// Recommendations handles POST /recommendations.
func (h *Handler) Recommendations(c *gin.Context) {
	var req recommendationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	q := models.RecommendationQuery{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		RadiusM:   defaultRadiusM,
		PMR:       req.PMR,
		AgeRange:  req.AgeRange,
		K:         defaultK,
	}
	if req.RadiusM != nil {
		q.RadiusM = *req.RadiusM
	}
	if req.K != nil {
		q.K = *req.K
	}

	top, err := h.service.TopPOIs(c.Request.Context(), q)
	switch {
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, models.ErrStorageUnavailable):
		h.logger.Error("Recommendation query failed, storage unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	case err != nil:
		h.logger.Error("Recommendation query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// An empty list means zero POIs matched; store failures never reach
	// this branch.
	if top == nil {
		top = []models.Recommendation{}
	}
	c.JSON(http.StatusOK, gin.H{"top": top})
}
