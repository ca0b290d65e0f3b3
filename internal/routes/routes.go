package routes

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/chat"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/location"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/recommend"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/app/domain/storage"
	"github.com/osrodgon/Hakathon-Grupo-6-Reto-2/internal/pkg/config"
)

type AppHandlers struct {
	Recommend *recommend.Handler
	Location  *location.Handler
	Chat      *chat.Handler
}

// NewAppHandlers wires the domain handlers on top of a shared store.
func NewAppHandlers(store storage.Store, logger *zap.Logger) *AppHandlers {
	return &AppHandlers{
		Recommend: recommend.NewHandler(recommend.NewService(store, logger), logger),
		Location:  location.NewHandler(store, logger),
		Chat:      chat.NewHandler(store, logger),
	}
}

// Setup registers every route on the router. The ready flag gates /health
// until bootstrap (schema init, seeding, first prune) has finished.
func Setup(r *gin.Engine, cfg *config.Config, store storage.Store, ready *atomic.Bool, logger *zap.Logger) {
	h := NewAppHandlers(store, logger)

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "perez-core",
			"backend": string(cfg.Storage.Backend),
			"endpoints": []string{
				"GET /health",
				"GET /summary",
				"POST /recommendations",
				"POST /locations",
				"POST /chat/turns",
				"GET /chat/history",
				"GET /chat/turns/:id",
			},
		})
	})

	r.GET("/health", func(c *gin.Context) {
		if ready == nil || !ready.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": string(cfg.Storage.Backend)})
	})

	r.GET("/summary", func(c *gin.Context) {
		summary, err := store.Summary(c.Request.Context())
		if err != nil {
			logger.Error("Summary failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	r.POST("/recommendations", h.Recommend.Recommendations)
	r.POST("/locations", h.Location.SaveLocation)

	chatGroup := r.Group("/chat")
	{
		chatGroup.POST("/turns", h.Chat.SaveTurn)
		chatGroup.GET("/turns/:id", h.Chat.GetTurn)
		chatGroup.GET("/history", h.Chat.History)
	}
}
