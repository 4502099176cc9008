package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/services"
)

type RouterConfig struct {
	Redis           *services.RedisService
	JWT             *services.JWTService
	Auth            *AuthHandler
	Game            *GameHandler
	User            *UserHandler
	WebSocket       *WebSocketHandler
	ActionRateLimit int
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := cfg.Redis.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/auth/telegram", cfg.Auth.Authenticate)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg.JWT))
	{
		protected.GET("/me", cfg.User.GetCurrentUser)
		protected.POST("/logout", cfg.User.Logout)

		protected.GET("/ws", cfg.WebSocket.HandleWebSocket)

		protected.GET("/state", cfg.Game.GetState)
		protected.GET("/leaderboard", cfg.Game.Leaderboard)

		actions := protected.Group("")
		actions.Use(middleware.RateLimitMiddleware(cfg.Redis, cfg.ActionRateLimit, time.Minute))
		{
			actions.POST("/spin", cfg.Game.Spin)
			actions.POST("/coin_flip", cfg.Game.CoinFlip)

			bonus := actions.Group("/bonus")
			{
				bonus.POST("/daily", cfg.Game.ClaimDailyBonus)
				bonus.POST("/quick", cfg.Game.ClaimQuickBonus)
			}
		}
	}

	return router
}
