package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"casino-miniapp/internal/session"
)

// respondError maps a session error onto a status code. The notice, when
// there is one, rides along so the client can show it as is.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "Action already in progress"})
		return
	case errors.Is(err, session.ErrInvalidChoice):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Choice must be heads or tails"})
		return
	case errors.Is(err, session.ErrOnCooldown):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimPrefix(err.Error(), "session: ")})
		return
	}

	notice, ok := session.Classify(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	status := http.StatusBadGateway
	switch notice.Kind {
	case session.NoticeMissingIdentity:
		status = http.StatusForbidden
	case session.NoticeRemoteRejection:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": notice.Message, "notice": notice})
}
