package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"casino-miniapp/internal/middleware"
	"casino-miniapp/internal/models"
	"casino-miniapp/internal/services"
	"casino-miniapp/internal/session"
)

type GameHandler struct {
	sessions     *services.SessionManager
	redisService *services.RedisService
}

func NewGameHandler(sessions *services.SessionManager, redisService *services.RedisService) *GameHandler {
	return &GameHandler{
		sessions:     sessions,
		redisService: redisService,
	}
}

// session finds the caller's live game session, reopening it from the
// stored auth session after a restart.
func (h *GameHandler) session(c *gin.Context) (*session.Session, bool) {
	return liveSession(c, h.sessions, h.redisService)
}

func liveSession(c *gin.Context, sessions *services.SessionManager, redisService *services.RedisService) (*session.Session, bool) {
	userID := c.GetInt64(middleware.ContextUserID)
	ctx := c.Request.Context()

	// The token is only as good as its auth session, even while another
	// device keeps the game session open.
	stored, err := redisService.GetUserSession(ctx, userID, c.GetString(middleware.ContextSessionID))
	if err != nil {
		if !errors.Is(err, services.ErrSessionNotFound) {
			log.Error().Err(err).Int64("user_id", userID).Msg("failed to load session")
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return nil, false
	}

	if s, ok := sessions.Get(userID); ok {
		return s, true
	}
	s, err := sessions.Open(ctx, stored.TelegramUser)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open game session"})
		return nil, false
	}
	return s, true
}

func (h *GameHandler) GetState(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Load(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// Spin answers once the reels have stopped and the new balance is applied.
func (h *GameHandler) Spin(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.Spin(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "view": s.View()})
}

type coinFlipRequest struct {
	Choice models.CoinSide `json:"choice" binding:"required"`
}

func (h *GameHandler) CoinFlip(c *gin.Context) {
	var req coinFlipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	res, err := s.FlipCoin(c.Request.Context(), req.Choice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "view": s.View()})
}

func (h *GameHandler) ClaimDailyBonus(c *gin.Context) {
	h.claim(c, models.BonusDaily)
}

func (h *GameHandler) ClaimQuickBonus(c *gin.Context) {
	h.claim(c, models.BonusQuick)
}

func (h *GameHandler) claim(c *gin.Context, kind models.BonusKind) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	claim, err := s.ClaimBonus(c.Request.Context(), kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": claim, "view": s.View()})
}

// Leaderboard is served from a short-lived Redis copy when one exists.
func (h *GameHandler) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()

	entries, hit, err := h.redisService.GetCachedLeaderboard(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("leaderboard cache unavailable")
	}
	if hit {
		c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "cached": true})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	entries, err = s.Leaderboard(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.redisService.CacheLeaderboard(ctx, entries); err != nil {
		log.Warn().Err(err).Msg("failed to cache leaderboard")
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries, "cached": false})
}
