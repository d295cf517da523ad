package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodsnap/internal/service"
)

// SessionHandler expone el usuario resuelto y su resumen de acceso.
type SessionHandler struct {
	logger *zap.Logger
	access *service.AccessService
}

func NewSessionHandler(logger *zap.Logger, access *service.AccessService) *SessionHandler {
	return &SessionHandler{
		logger: logger,
		access: access,
	}
}

// Me maneja GET /me.
func (h *SessionHandler) Me(c *gin.Context) {
	state, ok := GetSessionState(c)
	if !ok || state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":               state.User,
		"profile_incomplete": state.ProfileIncomplete,
	})
}

// Access maneja GET /me/access.
func (h *SessionHandler) Access(c *gin.Context) {
	state, ok := GetSessionState(c)
	if !ok || state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	summary, err := h.access.Summary(c.Request.Context(), *state.User)
	if err != nil {
		h.logger.Error("access summary failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load access summary"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": summary})
}
