package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodsnap/internal/domain"
	"foodsnap/internal/identity"
	"foodsnap/internal/session"
)

const currentUserKey = "current_user"

// AuthMiddleware resuelve el bearer token a un User de aplicación y aplica
// el RouteGuard por request. Toda request llega ya hidratada, así que el
// guard nunca ve IsLoading en este camino.
type AuthMiddleware struct {
	logger    *zap.Logger
	jwtSecret string
	resolver  *session.Resolver
}

func NewAuthMiddleware(logger *zap.Logger, jwtSecret string, resolver *session.Resolver) *AuthMiddleware {
	return &AuthMiddleware{
		logger:    logger,
		jwtSecret: jwtSecret,
		resolver:  resolver,
	}
}

// currentUser extrae y resuelve la identidad del header Authorization.
// Devuelve (nil, true) cuando simplemente no hay token.
func (m *AuthMiddleware) currentUser(c *gin.Context) (*domain.User, bool, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, false, true
	}

	token := strings.TrimSpace(header[len("Bearer "):])
	id, _, err := identity.ParseAccessToken(token, m.jwtSecret)
	if err != nil {
		m.logger.Warn("invalid access token", zap.Error(err))
		return nil, false, true
	}

	res, err := m.resolver.Resolve(c.Request.Context(), id)
	if err != nil {
		m.logger.Error("profile resolution failed", zap.Error(err), zap.String("user_id", id.ID))
		return nil, false, false
	}
	user := res.User
	return &user, res.Incomplete, true
}

// Guard aplica un Requirement de ruta mapeando las decisiones a HTTP.
func (m *AuthMiddleware) Guard(req session.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, incomplete, ok := m.currentUser(c)
		if !ok {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "profile backend unavailable"})
			c.Abort()
			return
		}

		state := session.State{User: user, ProfileIncomplete: incomplete}
		switch session.Decide(state, req) {
		case session.DecisionAllow:
			c.Set(currentUserKey, state)
			c.Next()
		case session.DecisionRedirectLanding:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
		case session.DecisionRedirectDashboard:
			c.JSON(http.StatusForbidden, gin.H{"error": "admin required"})
			c.Abort()
		default:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session not ready"})
			c.Abort()
		}
	}
}

// RequireCompleteProfile bloquea features hasta que el perfil tenga teléfono.
func RequireCompleteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := GetSessionState(c)
		if !ok || state.User == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		if state.ProfileIncomplete {
			c.JSON(http.StatusForbidden, gin.H{"error": "profile_incomplete"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetSessionState obtiene el estado resuelto para la request actual.
func GetSessionState(c *gin.Context) (session.State, bool) {
	val, ok := c.Get(currentUserKey)
	if !ok {
		return session.State{}, false
	}
	state, ok := val.(session.State)
	return state, ok
}
