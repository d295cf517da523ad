package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/repository"
	"foodsnap/internal/vision"
)

var (
	ErrRateLimited        = errors.New("rate limited")
	ErrQuotaExceeded      = errors.New("daily analysis quota exceeded")
	ErrVisionUnavailable  = errors.New("vision backend unavailable")
	ErrUnreadableAnalysis = errors.New("analysis response unreadable")
	ErrInvalidImage       = errors.New("invalid image")
)

const freeDailyLimitKey = "free_daily_limit"

// nutritionPrompt fija el contrato JSON con el modelo. El esquema y los
// valores de categoría/confianza son los que consume el dashboard.
const nutritionPrompt = `You are FoodSnap.ai, a behavioral and scientific nutritionist.
Analyze the attached meal photo and return pure JSON (no markdown) strictly following this schema:

{
  "items": [
    {
      "name": "Food name",
      "portion": "Estimated amount (e.g. 150g, 1 unit)",
      "calories": 0,
      "protein": 0,
      "carbs": 0,
      "fat": 0,
      "fiber": 0,
      "sugar": 0,
      "sodium_mg": 0,
      "flags": ["fritura", "processado", "saudavel", "alto_acucar"]
    }
  ],
  "total": {
    "calories": 0,
    "protein": 0,
    "carbs": 0,
    "fat": 0,
    "fiber": 0,
    "sugar": 0,
    "sodium_mg": 0
  },
  "category": "Café da Manhã" | "Almoço" | "Jantar" | "Lanche" | "Pré-Treino" | "Pós-Treino",
  "health_score": 0,
  "confidence": "alta" | "media" | "baixa",
  "tip": {
    "title": "Short title",
    "text": "Practical, motivating tip of up to 2 sentences about the meal.",
    "reason": "Short scientific explanation"
  }
}

Rules:
1. Health score from 0 to 100. Consider nutrient density, not just calories.
2. If no food is identified, return an empty items list and confidence "baixa".`

// AnalysisService analiza fotos de comida con el modelo de visión y persiste
// el resultado, aplicando rate limit y cuota diaria del plan free.
type AnalysisService struct {
	logger   *zap.Logger
	vision   vision.Client
	meals    repository.MealRepository
	settings repository.SettingsRepository
	limiter  AnalysisRateLimiter

	freeDailyLimit int
}

func NewAnalysisService(
	logger *zap.Logger,
	visionClient vision.Client,
	meals repository.MealRepository,
	settings repository.SettingsRepository,
	limiter AnalysisRateLimiter,
	freeDailyLimit int,
) *AnalysisService {
	if limiter == nil {
		limiter = NewMemoryAnalysisRateLimiter(time.Minute, 3)
	}
	if freeDailyLimit <= 0 {
		freeDailyLimit = 5
	}
	return &AnalysisService{
		logger:         logger,
		vision:         visionClient,
		meals:          meals,
		settings:       settings,
		limiter:        limiter,
		freeDailyLimit: freeDailyLimit,
	}
}

// analysisPayload es la respuesta cruda del modelo antes de validar.
type analysisPayload struct {
	Items       []domain.MealItem      `json:"items"`
	Total       domain.NutritionTotals `json:"total"`
	Category    string                 `json:"category"`
	HealthScore int                    `json:"health_score"`
	Confidence  string                 `json:"confidence"`
	Tip         domain.MealTip         `json:"tip"`
}

func (s *AnalysisService) Analyze(ctx context.Context, user domain.User, imageBase64, mimeType string) (domain.MealAnalysis, error) {
	if s.vision == nil || s.meals == nil {
		return domain.MealAnalysis{}, errors.New("analysis service not configured")
	}
	if strings.TrimSpace(imageBase64) == "" {
		return domain.MealAnalysis{}, ErrInvalidImage
	}

	if !s.limiter.Allow(user.ID) {
		return domain.MealAnalysis{}, ErrRateLimited
	}

	if user.Plan == domain.PlanFree {
		if err := s.checkDailyQuota(ctx, user.ID); err != nil {
			return domain.MealAnalysis{}, err
		}
	}

	raw, err := s.vision.Analyze(ctx, nutritionPrompt, imageBase64, mimeType)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("vision analyze failed", zap.Error(err), zap.String("user_id", user.ID))
		}
		return domain.MealAnalysis{}, ErrVisionUnavailable
	}

	payload, err := parseAnalysisPayload(raw)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("unreadable analysis payload", zap.Error(err), zap.String("user_id", user.ID))
		}
		return domain.MealAnalysis{}, ErrUnreadableAnalysis
	}

	analysis := domain.MealAnalysis{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		Category:    payload.Category,
		HealthScore: payload.HealthScore,
		Confidence:  payload.Confidence,
		Items:       payload.Items,
		Total:       payload.Total,
		Tip:         payload.Tip,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.meals.Create(ctx, analysis); err != nil {
		return domain.MealAnalysis{}, err
	}
	return analysis, nil
}

func (s *AnalysisService) checkDailyQuota(ctx context.Context, userID string) error {
	used, err := s.meals.CountSince(ctx, userID, startOfDayUTC(time.Now()))
	if err != nil {
		// Best effort: una cuota incontable no bloquea el análisis.
		if s.logger != nil {
			s.logger.Warn("daily quota count failed", zap.Error(err), zap.String("user_id", userID))
		}
		return nil
	}
	if used >= s.dailyLimit(ctx) {
		return ErrQuotaExceeded
	}
	return nil
}

// dailyLimit lee el override de app_settings; sin fila o con valor inválido
// rige el límite configurado por entorno.
func (s *AnalysisService) dailyLimit(ctx context.Context) int {
	if s.settings == nil {
		return s.freeDailyLimit
	}
	value, err := s.settings.Get(ctx, freeDailyLimitKey)
	if err != nil {
		return s.freeDailyLimit
	}
	limit, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || limit <= 0 {
		return s.freeDailyLimit
	}
	return limit
}

func parseAnalysisPayload(raw string) (analysisPayload, error) {
	obj := firstJSONObject(stripCodeFences(raw))
	if obj == "" {
		return analysisPayload{}, errors.New("no json object in response")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return analysisPayload{}, err
	}

	if payload.HealthScore < 0 {
		payload.HealthScore = 0
	}
	if payload.HealthScore > 100 {
		payload.HealthScore = 100
	}
	switch payload.Confidence {
	case "alta", "media", "baixa":
	default:
		payload.Confidence = "baixa"
	}
	if strings.TrimSpace(payload.Category) == "" {
		payload.Category = "Refeição"
	}
	return payload, nil
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
