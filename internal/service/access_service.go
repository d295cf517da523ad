package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/repository"
)

// AccessSummary es el resumen de uso que muestra el dashboard.
type AccessSummary struct {
	FreeUsed       int         `json:"free_used"`
	FreeRemaining  int         `json:"free_remaining"`
	PlanActive     bool        `json:"plan_active"`
	PlanCode       domain.Plan `json:"plan_code"`
	PlanValidUntil *time.Time  `json:"plan_valid_until,omitempty"`
	CanUsePaid     bool        `json:"can_use_paid"`
}

// AccessService calcula el resumen de acceso de un usuario a partir de su
// plan resuelto y de los análisis consumidos hoy.
type AccessService struct {
	logger   *zap.Logger
	meals    repository.MealRepository
	analysis *AnalysisService
}

func NewAccessService(logger *zap.Logger, meals repository.MealRepository, analysis *AnalysisService) *AccessService {
	return &AccessService{
		logger:   logger,
		meals:    meals,
		analysis: analysis,
	}
}

func (s *AccessService) Summary(ctx context.Context, user domain.User) (AccessSummary, error) {
	if s.meals == nil {
		return AccessSummary{}, errors.New("access service not configured")
	}

	used, err := s.meals.CountSince(ctx, user.ID, startOfDayUTC(time.Now()))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("free usage count failed", zap.Error(err), zap.String("user_id", user.ID))
		}
		return AccessSummary{}, err
	}

	limit := 0
	if s.analysis != nil {
		limit = s.analysis.dailyLimit(ctx)
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	planActive := user.Plan != domain.PlanFree
	canUsePaid := planActive
	if canUsePaid && user.PlanValidUntil != nil && user.PlanValidUntil.Before(time.Now().UTC()) {
		canUsePaid = false
	}

	return AccessSummary{
		FreeUsed:       used,
		FreeRemaining:  remaining,
		PlanActive:     planActive,
		PlanCode:       user.Plan,
		PlanValidUntil: user.PlanValidUntil,
		CanUsePaid:     canUsePaid,
	}, nil
}
