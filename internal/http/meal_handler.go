package http

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodsnap/internal/repository"
	"foodsnap/internal/service"
)

// MealHandler expone el análisis de fotos y el historial de comidas.
type MealHandler struct {
	logger   *zap.Logger
	analysis *service.AnalysisService
	meals    repository.MealRepository
}

func NewMealHandler(logger *zap.Logger, analysis *service.AnalysisService, meals repository.MealRepository) *MealHandler {
	return &MealHandler{
		logger:   logger,
		analysis: analysis,
		meals:    meals,
	}
}

// Analyze maneja POST /meals/analyze.
func (h *MealHandler) Analyze(c *gin.Context) {
	state, ok := GetSessionState(c)
	if !ok || state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req struct {
		ImageBase64 string `json:"image_base64" binding:"required"`
		MimeType    string `json:"mime_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid analyze request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	analysis, err := h.analysis.Analyze(c.Request.Context(), *state.User, req.ImageBase64, req.MimeType)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidImage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image"})
		case errors.Is(err, service.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
		case errors.Is(err, service.ErrQuotaExceeded):
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "daily quota exceeded"})
		case errors.Is(err, service.ErrVisionUnavailable), errors.Is(err, service.ErrUnreadableAnalysis):
			h.logger.Error("meal analysis failed", zap.Error(err), zap.String("user_id", state.User.ID))
			c.JSON(http.StatusBadGateway, gin.H{"error": "analysis unavailable"})
		default:
			h.logger.Error("meal analysis failed", zap.Error(err), zap.String("user_id", state.User.ID))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not analyze meal"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"analysis": analysis})
}

// History maneja GET /meals.
func (h *MealHandler) History(c *gin.Context) {
	state, ok := GetSessionState(c)
	if !ok || state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	analyses, err := h.meals.ListByUser(c.Request.Context(), state.User.ID, 20)
	if err != nil {
		h.logger.Error("list meals failed", zap.Error(err), zap.String("user_id", state.User.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

// Stats maneja GET /meals/stats.
func (h *MealHandler) Stats(c *gin.Context) {
	state, ok := GetSessionState(c)
	if !ok || state.User == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	count, err := h.meals.CountByUser(c.Request.Context(), state.User.ID)
	if err != nil {
		h.logger.Error("count meals failed", zap.Error(err), zap.String("user_id", state.User.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}

	avg, err := h.meals.AverageCalories(c.Request.Context(), state.User.ID)
	if err != nil {
		h.logger.Error("average calories failed", zap.Error(err), zap.String("user_id", state.User.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_count":  count,
		"avg_calories": int(math.Round(avg)),
	})
}
