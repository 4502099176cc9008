package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/services"
)

const (
	ContextUserID    = "user_id"
	ContextSessionID = "session_id"
)

// TokenValidator is the part of JWTService the middleware needs.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

// RateLimiter is the part of RedisService the middleware needs.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)
}

// AuthMiddleware accepts the token as a Bearer header or, for websocket
// upgrades, a token query parameter.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.SessionID)

		c.Next()
	}
}

// RateLimitMiddleware caps game actions per user per window. Requests
// without an authenticated user pass through.
func RateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserID)
		if userID == 0 || limit <= 0 {
			c.Next()
			return
		}

		action := c.FullPath()
		if action == "" {
			action = c.Request.URL.Path
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil {
			log.Error().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limit check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
