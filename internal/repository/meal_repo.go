package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"foodsnap/internal/domain"
)

type MealRepository interface {
	Create(ctx context.Context, analysis domain.MealAnalysis) error
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.MealAnalysis, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	AverageCalories(ctx context.Context, userID string) (float64, error)
}

type PgMealRepository struct {
	pool *pgxpool.Pool
}

func NewPgMealRepository(pool *pgxpool.Pool) *PgMealRepository {
	return &PgMealRepository{pool: pool}
}

// structuredPayload es el detalle completo guardado en ai_structured.
type structuredPayload struct {
	Items      []domain.MealItem      `json:"items"`
	Total      domain.NutritionTotals `json:"total"`
	Tip        domain.MealTip         `json:"tip"`
	Confidence string                 `json:"confidence"`
}

func (r *PgMealRepository) Create(ctx context.Context, analysis domain.MealAnalysis) error {
	structured, err := json.Marshal(structuredPayload{
		Items:      analysis.Items,
		Total:      analysis.Total,
		Tip:        analysis.Tip,
		Confidence: analysis.Confidence,
	})
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO food_analyses (
			id, user_id, category, nutrition_score,
			total_calories, total_protein, total_carbs, total_fat,
			ai_structured, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.pool.Exec(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.Category,
		analysis.HealthScore,
		analysis.Total.Calories,
		analysis.Total.Protein,
		analysis.Total.Carbs,
		analysis.Total.Fat,
		structured,
		analysis.CreatedAt,
	)
	return err
}

func (r *PgMealRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.MealAnalysis, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `
		SELECT id, user_id, COALESCE(category, ''), COALESCE(nutrition_score, 0),
		       COALESCE(total_calories, 0), COALESCE(total_protein, 0),
		       COALESCE(total_carbs, 0), COALESCE(total_fat, 0),
		       ai_structured, created_at
		FROM food_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []domain.MealAnalysis
	for rows.Next() {
		var a domain.MealAnalysis
		var structured []byte
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Category,
			&a.HealthScore,
			&a.Total.Calories,
			&a.Total.Protein,
			&a.Total.Carbs,
			&a.Total.Fat,
			&structured,
			&a.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(structured) > 0 {
			var payload structuredPayload
			if err := json.Unmarshal(structured, &payload); err == nil {
				a.Items = payload.Items
				a.Tip = payload.Tip
				a.Confidence = payload.Confidence
				if payload.Total != (domain.NutritionTotals{}) {
					a.Total = payload.Total
				}
			}
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func (r *PgMealRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM food_analyses WHERE user_id = $1`
	var count int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

func (r *PgMealRepository) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM food_analyses WHERE user_id = $1 AND created_at >= $2`
	var count int
	err := r.pool.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

func (r *PgMealRepository) AverageCalories(ctx context.Context, userID string) (float64, error) {
	const query = `SELECT COALESCE(AVG(total_calories), 0) FROM food_analyses WHERE user_id = $1`
	var avg float64
	err := r.pool.QueryRow(ctx, query, userID).Scan(&avg)
	return avg, err
}
