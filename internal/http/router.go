package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"foodsnap/internal/session"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	auth *AuthMiddleware,
	sessionH *SessionHandler,
	mealH *MealHandler,
	adminH *AdminHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/", auth.Guard(session.Requirement{RequiresAuth: true}))
	authed.GET("/me", sessionH.Me)
	authed.GET("/me/access", sessionH.Access)

	meals := authed.Group("/meals", RequireCompleteProfile())
	meals.POST("/analyze", mealH.Analyze)
	meals.GET("", mealH.History)
	meals.GET("/stats", mealH.Stats)

	admin := r.Group("/admin", auth.Guard(session.Requirement{RequiresAuth: true, RequiresAdmin: true}))
	admin.GET("/settings", adminH.Settings)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
