package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/staywise/guest-services/backend/internal/attachment"
	"github.com/staywise/guest-services/backend/internal/auth"
	"github.com/staywise/guest-services/backend/internal/chat"
	"github.com/staywise/guest-services/backend/internal/config"
	"github.com/staywise/guest-services/backend/internal/events"
	"github.com/staywise/guest-services/backend/internal/health"
	"github.com/staywise/guest-services/backend/internal/logger"
	"github.com/staywise/guest-services/backend/internal/metrics"
	"github.com/staywise/guest-services/backend/internal/middleware"
	"github.com/staywise/guest-services/backend/internal/realtime"
	"github.com/staywise/guest-services/backend/internal/repository"
	"github.com/staywise/guest-services/backend/internal/storage"
)

const version = "1.3.0"

func main() {
	cfg := config.Load()

	if cfg.JWT.AccessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET environment variable is required")
	}
	if cfg.JWT.RefreshSecret == "" {
		log.Fatal("JWT_REFRESH_SECRET environment variable is required")
	}

	appLogger := logger.New(logger.DefaultConfig())

	// Database connections. pgx pool for auth and the notification bus,
	// sqlx over pgx stdlib for the chat repositories.
	dbPool, err := setupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	sqlxDB, err := sqlx.Connect("pgx", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to open sqlx connection: %v", err)
	}
	defer sqlxDB.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	sessionRepo := repository.NewSessionRepository(dbPool)
	messageRepo := repository.NewMessageRepo(sqlxDB)
	threadRepo := repository.NewThreadRepo(sqlxDB)
	attachmentRepo := repository.NewAttachmentRepo(sqlxDB)

	// Auth
	tokenService := auth.NewTokenService(auth.TokenServiceConfig{
		AccessSecret:       cfg.JWT.AccessSecret,
		RefreshSecret:      cfg.JWT.RefreshSecret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
		Issuer:             cfg.JWT.Issuer,
	})
	authService := auth.NewAuthService(userRepo, sessionRepo, tokenService, appLogger)
	authHandler := auth.NewHandler(authService, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	// Realtime bus: publisher writes NOTIFY, the lazy listener fans
	// notifications out to the registry's open streams.
	registry := realtime.NewRegistry(cfg.Realtime.HeartbeatInterval, appLogger)
	listener := events.NewListener(dbPool, cfg.Realtime.Channel, registry, appLogger)
	publisher := events.NewPublisher(dbPool, cfg.Realtime.Channel)
	realtimeHandler := realtime.NewHandler(cfg.Realtime, registry, listener, tokenService)

	// Chat
	chatService := chat.NewService(messageRepo, threadRepo, publisher, appLogger)
	chatHandler := chat.NewHandler(chatService, appLogger)

	// With Redis configured the send limit is shared across instances;
	// otherwise each instance counts on its own.
	sendLimit := middleware.NewMessageSendRateLimiter(60).Limit
	if redisClient != nil {
		sendLimit = middleware.NewRedisRateLimiter(redisClient, "msg_send", 60, time.Minute).Limit
	}

	// Attachments
	storageService, err := storage.NewStorageService(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	attachmentHandler := attachment.NewHandler(attachmentRepo, messageRepo, storageService, cfg.Storage.MaxAttachmentBytes, appLogger)

	// Observability
	healthHandler := health.NewHandler(health.Config{
		DBPool:      dbPool,
		RedisClient: redisClient,
		Listener:    listener,
		Registry:    registry,
		Version:     version,
	})
	dbCollector := metrics.NewDBStatsCollector(dbPool, sqlxDB.DB)
	dbCollector.Start(15 * time.Second)
	defer dbCollector.Stop()

	// Router
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(appLogger))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*.staywise.app", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Readiness)
	r.Get("/health/live", healthHandler.Liveness)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		auth.RegisterRoutes(r, authHandler)

		// Push streams authenticate inside the handler; a request
		// timeout here would cut long-lived streams short.
		realtime.RegisterRoutes(r, realtimeHandler)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))
			r.Use(authMiddleware.Authenticate)
			r.Use(sendLimit)
			chat.RegisterRoutes(r, chatHandler)
			attachment.RegisterRoutes(r, attachmentHandler)
		})
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout must cover the longest-lived SSE stream
		WriteTimeout: cfg.Realtime.ConnectionTimeout + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down server")
	healthHandler.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Close open streams so Shutdown does not wait out their timeouts
	registry.Close()
	listener.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	appLogger.Info("server exited")
}

// setupDatabase creates and configures the pgx connection pool
func setupDatabase(cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 5 * time.Minute
	poolConfig.MaxConnIdleTime = 1 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
