package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
	"casino-miniapp/internal/session"
	"casino-miniapp/internal/telegram"
)

type AuthHandler struct {
	redisService *services.RedisService
	jwtService   *services.JWTService
	sessions     *services.SessionManager
	validator    *telegram.Validator
}

func NewAuthHandler(redisService *services.RedisService, jwtService *services.JWTService, sessions *services.SessionManager, validator *telegram.Validator) *AuthHandler {
	return &AuthHandler{
		redisService: redisService,
		jwtService:   jwtService,
		sessions:     sessions,
		validator:    validator,
	}
}

type authRequest struct {
	InitData string `json:"init_data"`
}

// Authenticate verifies the WebApp launch data, opens the player's game
// session and hands back a token for the /api routes.
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	user, err := h.validator.Identify(req.InitData)
	if err != nil {
		log.Warn().Err(err).Msg("telegram launch rejected")
		notice, _ := session.Classify(session.ErrMissingIdentity)
		c.JSON(http.StatusUnauthorized, gin.H{"error": notice.Message, "notice": notice})
		return
	}

	ctx := c.Request.Context()
	now := time.Now()
	userSession := &models.UserSession{
		ID:           user.ID,
		SessionID:    models.GenerateSessionID(),
		TelegramUser: *user,
		CreatedAt:    now,
		LastAccessed: now,
	}
	if err := h.redisService.StoreUserSession(ctx, userSession, h.jwtService.Expiry()); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	if err := h.redisService.StoreUser(ctx, user); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("failed to store user info")
	}

	token, err := h.jwtService.GenerateToken(user.ID, userSession.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	s, err := h.sessions.Open(ctx, *user)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("failed to open game session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open game session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.jwtService.Expiry().Seconds()),
		"user":       user,
		"view":       s.View(),
	})
}
