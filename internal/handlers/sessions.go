package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mossy-p/callrelay/internal/metrics"
	"github.com/mossy-p/callrelay/internal/models"
	"github.com/mossy-p/callrelay/internal/turn"
)

// SessionHeader carries the session id when it is not in the query string.
const SessionHeader = "X-Session-Id"

// SessionActive reports whether a session has a connected participant.
func (h *Handler) SessionActive(c *gin.Context) {
	c.JSON(http.StatusOK, models.SessionStatus{
		Active: h.sessions.IsActive(c.Param("sessionId")),
	})
}

// TurnCredentials issues TURN credentials to callers of an active session.
func (h *Handler) TurnCredentials(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		sessionID = c.GetHeader(SessionHeader)
	}

	creds, err := h.issuer.Issue(sessionID)
	switch {
	case errors.Is(err, turn.ErrMissingSessionID):
		h.log.Warn("turn credentials requested without sessionId", zap.String("ip", c.ClientIP()))
		h.metrics.Credential(metrics.CredentialMissingSession)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, turn.ErrUnauthorized):
		h.log.Warn("turn credentials requested for inactive session",
			zap.String("session", sessionID),
			zap.String("ip", c.ClientIP()))
		h.metrics.Credential(metrics.CredentialUnauthorized)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.log.Error("failed to issue turn credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue credentials"})
		return
	}

	h.log.Info("turn credentials issued",
		zap.String("session", sessionID),
		zap.String("ip", c.ClientIP()),
		zap.Int64("expiresAt", creds.ExpiresAt))
	h.metrics.Credential(metrics.CredentialIssued)

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, creds)
}

// Stats summarizes live sessions and relay groups for operators. When the
// Redis mirror is enabled its view is included; a mirror failure only omits
// that part.
func (h *Handler) Stats(c *gin.Context) {
	stats := models.Stats{
		ActiveSessions: h.sessions.Len(),
		Negotiation:    h.negotiation.Stats(),
		Chat:           h.chat.Stats(),
	}
	if h.presence != nil {
		mirrored, err := h.presence.Active(c.Request.Context())
		if err != nil {
			h.log.Warn("failed to read presence mirror", zap.Error(err))
		} else {
			sort.Strings(mirrored)
			stats.MirroredSessions = mirrored
		}
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
