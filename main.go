package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkguard/auth"
	"linkguard/cache"
	"linkguard/config"
	"linkguard/email"
	"linkguard/handler"
	appLogger "linkguard/logger"
	"linkguard/middleware"
	"linkguard/probe"
	redisClient "linkguard/redis"
	"linkguard/scheduler"
	"linkguard/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// @title LinkGuard API
// @version 1.0
// @description URL reachability monitoring service with plan-based scan quotas, scheduled probes, and email reports.

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @tag.name Authentication
// @tag.description User registration and login

// @tag.name Scans
// @tag.description Registering and querying monitored URLs

// @tag.name Plans
// @tag.description Subscription plan management

// @tag.name Scheduler
// @tag.description On-demand scan passes

func main() {
	// Initialize logger
	appLogger.Initialize()

	// Load configuration
	cfg := config.MustLoadConfig()
	log.Info().Msg("Configuration loaded successfully")

	// Initialize Redis client
	rdb := redisClient.NewClient(cfg.Redis)

	// Initialize cache (if enabled)
	var cacheClient *cache.Cache
	if cfg.Cache.Enabled {
		var err error
		cacheClient, err = cache.New(cfg.Cache)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize cache")
		}
	} else {
		log.Info().Msg("Cache disabled in configuration")
	}

	storage := store.New(rdb, cacheClient)

	jwtManager, err := auth.NewJWTManager(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token manager")
	}

	emailService := email.NewEmailService(cfg.SMTP)
	prober := probe.New(time.Duration(cfg.Scheduler.ProbeTimeoutMS) * time.Millisecond)

	// Scan pass orchestration
	orchestrator := scheduler.New(storage, prober, emailService, cfg.Scheduler.Workers)
	if cfg.Scheduler.Enabled {
		if _, err := orchestrator.Start(cfg.Scheduler.Cron); err != nil {
			log.Fatal().Err(err).Str("cron", cfg.Scheduler.Cron).Msg("Failed to start scan scheduler")
		}
	} else {
		log.Info().Msg("Scan scheduler disabled in configuration")
	}

	// Create handlers with dependency injection
	userHandler := handler.NewUserHandler(storage, jwtManager, emailService, cfg.Password.User)
	planHandler := handler.NewPlanHandler(storage)
	scanHandler := handler.NewScanHandler(storage, prober, emailService)
	schedulerHandler := handler.NewSchedulerHandler(orchestrator)

	// Set up router
	r := mux.NewRouter()

	// Apply global middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	userAuth := middleware.NewUserAuth(jwtManager)

	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogger)
	r.Use(rateLimiter.Limit)

	// Public routes
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/auth/register", userHandler.Register).Methods("POST")
	r.HandleFunc("/api/auth/login", userHandler.Login).Methods("POST")
	r.HandleFunc("/api/plans", planHandler.List).Methods("GET")
	r.HandleFunc("/api/plans/{id}", planHandler.Get).Methods("GET")
	r.HandleFunc("/api/scans/anonymous", scanHandler.CreateWithoutAccount).Methods("POST")

	// Authenticated routes
	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(userAuth.Protect)
	authed.HandleFunc("/users/me", userHandler.Me).Methods("GET")
	authed.HandleFunc("/users/me", userHandler.Update).Methods("PATCH")
	authed.HandleFunc("/users/me/password", userHandler.ChangePassword).Methods("POST")
	authed.HandleFunc("/scans", scanHandler.Create).Methods("POST")
	authed.HandleFunc("/scans", scanHandler.List).Methods("GET")
	authed.HandleFunc("/scans/run", schedulerHandler.RunMine).Methods("POST")
	authed.HandleFunc("/scans/{id}", scanHandler.Get).Methods("GET")
	authed.HandleFunc("/scans/{id}", scanHandler.Delete).Methods("DELETE")

	// Admin routes
	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(userAuth.Protect, userAuth.RequireAdmin)
	admin.HandleFunc("/plans", planHandler.Create).Methods("POST")
	admin.HandleFunc("/plans/{id}", planHandler.Update).Methods("PATCH")
	admin.HandleFunc("/plans/{id}", planHandler.Delete).Methods("DELETE")
	admin.HandleFunc("/scans/run", schedulerHandler.RunAll).Methods("POST")

	// Configure HTTP server
	serverAddress := fmt.Sprintf("%s:%s", cfg.WebServer.IP, cfg.WebServer.Port)
	server := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.WebServer.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WebServer.WriteTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("address", serverAddress).
			Str("scheme", cfg.WebServer.Scheme).
			Msg("Starting server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.WebServer.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the scheduler, waiting for a running pass to finish
	orchestrator.Stop()

	// Close cache
	if cacheClient != nil {
		cacheClient.Close()
	}

	// Close Redis connection
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Redis connection")
	}

	log.Info().Msg("Server stopped gracefully")
}

// healthCheck handles GET /health
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
