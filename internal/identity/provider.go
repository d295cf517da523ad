package identity

import (
	"context"
	"time"
)

// Identity es el principal autenticado tal como lo entiende el proveedor externo.
type Identity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// Session es la asociación viva entre el cliente y una Identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event es un cambio de estado emitido por el proveedor de identidad.
// Session es nil para EventSignedOut.
type Event struct {
	Type    EventType
	Session *Session
}

// Provider es la única fuente de verdad sobre si existe una identidad logueada.
type Provider interface {
	// CurrentSession devuelve la sesión vigente o nil si no hay ninguna.
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe registra un handler para eventos de autenticación y devuelve
	// la función para cancelar la suscripción. El handler no debe bloquear.
	Subscribe(handler func(Event)) (func(), error)
	// SignOut invalida la sesión en el proveedor.
	SignOut(ctx context.Context) error
}
