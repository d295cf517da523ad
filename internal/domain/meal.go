package domain

import "time"

// MealItem es un alimento identificado dentro de una foto.
type MealItem struct {
	Name     string   `json:"name"`
	Portion  string   `json:"portion"`
	Calories float64  `json:"calories"`
	Protein  float64  `json:"protein"`
	Carbs    float64  `json:"carbs"`
	Fat      float64  `json:"fat"`
	Fiber    float64  `json:"fiber"`
	Sugar    float64  `json:"sugar"`
	SodiumMg float64  `json:"sodium_mg"`
	Flags    []string `json:"flags,omitempty"`
}

// NutritionTotals agrega los macros de todos los items.
type NutritionTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
	Fiber    float64 `json:"fiber"`
	Sugar    float64 `json:"sugar"`
	SodiumMg float64 `json:"sodium_mg"`
}

// MealTip es la recomendación corta generada junto con el análisis.
type MealTip struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// MealAnalysis es el resultado persistido de analizar una foto de comida.
type MealAnalysis struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Category    string          `json:"category"`
	HealthScore int             `json:"health_score"`
	Confidence  string          `json:"confidence"`
	Items       []MealItem      `json:"items"`
	Total       NutritionTotals `json:"total"`
	Tip         MealTip         `json:"tip"`
	CreatedAt   time.Time       `json:"created_at"`
}
