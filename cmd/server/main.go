package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/careops/hospital-backend/internal/booking"
	"github.com/careops/hospital-backend/internal/cache"
	"github.com/careops/hospital-backend/internal/config"
	"github.com/careops/hospital-backend/internal/database"
	"github.com/careops/hospital-backend/internal/handlers"
	"github.com/careops/hospital-backend/internal/middleware"
	"github.com/careops/hospital-backend/internal/models"
	"github.com/careops/hospital-backend/internal/notify"
	"github.com/careops/hospital-backend/internal/repository"
	"github.com/careops/hospital-backend/internal/session"
	"github.com/careops/hospital-backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting Hospital Backend")

	// Connect to database
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		LogLevel: cfg.Database.LogLevel,
	}

	if err := database.Connect(dbConfig); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	// Initialize slot cache
	var cacheImpl cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Type == "redis" {
			addr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			cacheImpl, err = cache.NewRedisCache(addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				log.Fatal().Err(err).Msg("Failed to connect to Redis")
			}
			log.Info().Msg("Redis cache initialized")
		} else {
			cacheImpl = cache.NewMemoryCache()
			log.Info().Msg("Memory cache initialized")
		}
		defer cacheImpl.Close()
	}

	// Initialize notifier
	var notifier notify.Notifier
	if cfg.AMQP.URL != "" {
		notifier, err = notify.NewAMQPNotifier(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("AMQP notifier initialized")
	} else {
		notifier = notify.NewLogNotifier()
		log.Info().Msg("No broker configured, notifications are logged")
	}
	defer notifier.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository()
	apptRepo := repository.NewAppointmentRepository()
	availRepo := repository.NewAvailabilityRepository()
	sessionRepo := repository.NewSessionRepository()
	activityRepo := repository.NewActivityRepository()

	// Initialize services
	bookingService := booking.NewService(apptRepo, availRepo, userRepo, cacheImpl, notifier, cfg.Cache.SlotTTL)
	sessionService := session.NewService(userRepo, sessionRepo, activityRepo, cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(sessionService, sessionRepo, activityRepo)
	apptHandler := handlers.NewAppointmentHandler(bookingService)
	scheduleHandler := handlers.NewScheduleHandler(availRepo, userRepo)

	// Rate limit credential and booking endpoints per client IP
	loginLimiter := middleware.NewRateLimiter(5, 10)
	defer loginLimiter.Close()
	bookLimiter := middleware.NewRateLimiter(10, 20)
	defer bookLimiter.Close()

	authRequired := middleware.Auth(sessionService)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimiter.Handler).Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.With(authRequired).Post("/logout-all", authHandler.LogoutAll)
			r.With(authRequired).Get("/me", authHandler.Me)
			r.With(authRequired).Get("/activity", authHandler.Activity)
		})

		// Appointments
		r.Route("/appointments", func(r chi.Router) {
			r.Use(authRequired)
			r.With(bookLimiter.Handler).Post("/", apptHandler.Book)
			r.Get("/", apptHandler.List)
			r.Get("/{id}", apptHandler.Get)
			r.Post("/{id}/cancel", apptHandler.Cancel)
			r.With(middleware.RequireRole(models.RoleDoctor, models.RoleAdmin)).
				Post("/{id}/complete", apptHandler.Complete)
			r.With(middleware.RequireRole(models.RoleDoctor, models.RoleAdmin)).
				Post("/{id}/no-show", apptHandler.NoShow)
		})

		// Doctor schedules and free slots
		r.Route("/doctors/{id}", func(r chi.Router) {
			r.With(authRequired).Get("/availability", apptHandler.Availability)
			r.With(authRequired).Get("/appointments", apptHandler.ListForDoctor)
			r.With(authRequired).Get("/schedule", scheduleHandler.Get)
			r.With(authRequired).Put("/schedule", scheduleHandler.Put)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
