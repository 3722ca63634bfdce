package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/mossy-p/callrelay/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	// JWTSecret enables the admin API when set.
	JWTSecret string
}

// NewRouter wires the endpoints onto a gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(h.log))

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/sessions/:sessionId/active", h.SessionActive)
		apiGroup.GET("/turn-credentials", h.TurnCredentials)

		if cfg.JWTSecret != "" {
			apiGroup.GET("/admin/stats", middleware.JWTAuth(cfg.JWTSecret, middleware.RoleAdmin), h.Stats)
		}
	}

	wsGroup := router.Group("/ws")
	{
		wsGroup.GET("/webrtc", h.HandleNegotiation)
		wsGroup.GET("/chat", h.HandleChat)
	}

	return router
}
