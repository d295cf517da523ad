package session

// Requirement describe qué exige una ruta para renderizarse.
type Requirement struct {
	RequiresAuth  bool
	RequiresAdmin bool
}

// Decision es el resultado de evaluar una ruta contra el estado de sesión.
type Decision int

const (
	// DecisionPending: la sesión aún hidrata; mostrar spinner, nunca redirigir.
	DecisionPending Decision = iota
	DecisionAllow
	DecisionRedirectLanding
	DecisionRedirectDashboard
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectLanding:
		return "redirect_landing"
	case DecisionRedirectDashboard:
		return "redirect_dashboard"
	default:
		return "unknown"
	}
}

// Decide es una función pura, segura de evaluar en cada navegación.
// La regla de loading va primero: decidir allow/deny con la sesión a medio
// hidratar es la clase de bug que esto existe para impedir.
func Decide(state State, req Requirement) Decision {
	if state.IsLoading {
		return DecisionPending
	}
	if req.RequiresAuth && state.User == nil {
		return DecisionRedirectLanding
	}
	if req.RequiresAdmin && (state.User == nil || !state.User.IsAdmin) {
		return DecisionRedirectDashboard
	}
	return DecisionAllow
}
