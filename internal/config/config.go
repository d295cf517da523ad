package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	AuthBaseURL string `env:"AUTH_BASE_URL"`
	AuthAnonKey string `env:"AUTH_ANON_KEY"`
	JWTSecret   string `env:"JWT_SECRET"`

	VisionAPIKey  string `env:"VISION_API_KEY"`
	VisionBaseURL string `env:"VISION_BASE_URL" envDefault:"https://api.openai.com/v1"`
	VisionModel   string `env:"VISION_MODEL" envDefault:"gpt-4o-mini"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Timeouts de sesión: resolve 12s, safety 15s, signout 8s (valores de producción).
	ResolveTimeoutSeconds   int `env:"SESSION_RESOLVE_TIMEOUT_SECONDS" envDefault:"12"`
	BootstrapTimeoutSeconds int `env:"SESSION_BOOTSTRAP_TIMEOUT_SECONDS" envDefault:"20"`
	SafetyTimeoutSeconds    int `env:"SESSION_SAFETY_TIMEOUT_SECONDS" envDefault:"15"`
	SignOutTimeoutSeconds   int `env:"SESSION_SIGNOUT_TIMEOUT_SECONDS" envDefault:"8"`

	FreeDailyAnalyses int `env:"FREE_DAILY_ANALYSES" envDefault:"5"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
