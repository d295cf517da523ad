package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"foodsnap/internal/repository"
)

// AdminHandler expone lecturas de configuración para la consola admin.
type AdminHandler struct {
	logger   *zap.Logger
	settings repository.SettingsRepository
}

func NewAdminHandler(logger *zap.Logger, settings repository.SettingsRepository) *AdminHandler {
	return &AdminHandler{
		logger:   logger,
		settings: settings,
	}
}

var adminSettingKeys = []string{"whatsapp_number", "free_daily_limit"}

// Settings maneja GET /admin/settings.
func (h *AdminHandler) Settings(c *gin.Context) {
	values := make(map[string]string, len(adminSettingKeys))
	for _, key := range adminSettingKeys {
		value, err := h.settings.Get(c.Request.Context(), key)
		if err != nil {
			if err == pgx.ErrNoRows {
				continue
			}
			h.logger.Error("read setting failed", zap.Error(err), zap.String("key", key))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load settings"})
			return
		}
		values[key] = value
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}
