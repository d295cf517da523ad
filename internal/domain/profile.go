package domain

import "time"

// Profile es el registro de aplicación para una identidad; propiedad del
// backend de datos, solo lectura para este servicio.
// Un Profile está completo si y solo si PhoneE164 no está vacío.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name,omitempty"`
	Email     string    `json:"email,omitempty"`
	PhoneE164 string    `json:"phone_e164,omitempty"`
	PublicID  string    `json:"public_id,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Complete indica si el perfil tiene teléfono registrado.
func (p Profile) Complete() bool {
	return p.PhoneE164 != ""
}

// Entitlement describe el estado de plan pago de un usuario.
// Ausencia o IsActive=false implican plan free.
type Entitlement struct {
	UserID     string     `json:"user_id"`
	Code       Plan       `json:"entitlement_code"`
	IsActive   bool       `json:"is_active"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}
