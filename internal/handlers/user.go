package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/services"
)

type UserHandler struct {
	redisService *services.RedisService
	sessions     *services.SessionManager
}

func NewUserHandler(redisService *services.RedisService, sessions *services.SessionManager) *UserHandler {
	return &UserHandler{
		redisService: redisService,
		sessions:     sessions,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)
	sessionID := c.GetString(middleware.ContextSessionID)

	session, err := h.redisService.GetUserSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	resp := gin.H{
		"user": session.TelegramUser,
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
	}
	if live, ok := h.sessions.Get(userID); ok {
		view := live.View()
		resp["state"] = view.State
		resp["progress"] = view.Progress
	}

	c.JSON(http.StatusOK, resp)
}

func (h *UserHandler) Logout(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)
	sessionID := c.GetString(middleware.ContextSessionID)

	if err := h.redisService.DeleteUserSession(c.Request.Context(), userID, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}
	h.sessions.Close(userID)

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
