package domain

import "time"

// Plan es el código de plan resuelto para un usuario.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
)

// User es el valor derivado que consume el resto de la aplicación.
// Se construye completo a partir de (Profile, Entitlement); nunca se muta parcialmente.
type User struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	PublicID       string     `json:"public_id,omitempty"`
	AvatarURL      string     `json:"avatar,omitempty"`
	Plan           Plan       `json:"plan"`
	PlanValidUntil *time.Time `json:"plan_valid_until,omitempty"`
	IsAdmin        bool       `json:"is_admin"`
}
