package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"foodsnap/internal/config"
	"foodsnap/internal/db"
	apihttp "foodsnap/internal/http"
	"foodsnap/internal/repository"
	"foodsnap/internal/service"
	"foodsnap/internal/session"
	"foodsnap/internal/vision"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	profileRepo := repository.NewPgProfileRepository(pool)
	entitlementRepo := repository.NewPgEntitlementRepository(pool)
	mealRepo := repository.NewPgMealRepository(pool)
	settingsRepo := repository.NewPgSettingsRepository(pool)

	var limiter service.AnalysisRateLimiter
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			limiter = service.NewRedisAnalysisRateLimiter(redisClient, time.Minute, 3)
		}
		cancel()
	}

	visionClient := vision.NewHTTPClient(cfg.VisionBaseURL, cfg.VisionAPIKey, cfg.VisionModel, logger)
	if cfg.VisionAPIKey == "" {
		logger.Warn("vision api key not configured")
	}
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured, tokens accepted unverified")
	}

	resolver := session.NewResolver(logger, profileRepo, entitlementRepo)
	analysisSvc := service.NewAnalysisService(logger, visionClient, mealRepo, settingsRepo, limiter, cfg.FreeDailyAnalyses)
	accessSvc := service.NewAccessService(logger, mealRepo, analysisSvc)

	auth := apihttp.NewAuthMiddleware(logger, cfg.JWTSecret, resolver)
	sessionHandler := apihttp.NewSessionHandler(logger, accessSvc)
	mealHandler := apihttp.NewMealHandler(logger, analysisSvc, mealRepo)
	adminHandler := apihttp.NewAdminHandler(logger, settingsRepo)
	router := apihttp.NewRouter(logger, auth, sessionHandler, mealHandler, adminHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
