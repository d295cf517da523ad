package session

import "foodsnap/internal/domain"

// State es el snapshot observable de la sesión. Mientras IsLoading sea true
// los consumidores no deben tomar decisiones de autorización.
// ProfileIncomplete solo puede ser true con User no nulo.
type State struct {
	User              *domain.User
	IsLoading         bool
	ProfileIncomplete bool
}
