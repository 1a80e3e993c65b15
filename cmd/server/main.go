package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginprometheus "github.com/zsais/go-gin-prometheus"

	"medsim-server/internal/backend"
	"medsim-server/internal/batch"
	"medsim-server/internal/config"
	"medsim-server/internal/generation"
	"medsim-server/internal/handler"
	"medsim-server/internal/logger"
	"medsim-server/internal/middleware"
	"medsim-server/internal/notifier"
	"medsim-server/internal/service"
	"medsim-server/internal/workspace"
)

func main() {
	// --- Configuration ---
	cfg := config.Load()

	// --- Logger Setup ---
	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.Logger.Level))
	zap.L().Info("Configuration loaded", zap.String("backend", cfg.Backend.Kind))

	// --- Backend Client ---
	client, err := backend.NewClient(cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to create backend client", zap.Error(err))
	}
	if !cfg.CredentialPresent() {
		zap.L().Warn("No backend API key configured, generation requests will fail fast")
	}

	// --- Dependency Injection ---
	pipeline := generation.NewPipeline(generation.Params{
		Logger:            log,
		Client:            client,
		Config:            cfg.Generation,
		CredentialPresent: cfg.CredentialPresent(),
	})
	store := workspace.NewStore(log)
	runner := batch.NewRunner(log, cfg.Generation.BatchCooldown(), nil)
	hub := notifier.NewHub(log)
	svc := service.New(log, store, pipeline, runner, hub)
	apiHandler := handler.New(svc, log, func(c *gin.Context) {
		hub.Handle(c.Writer, c.Request)
	}, !cfg.CredentialPresent())

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.AppEnv == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(middleware.ZapLogger(log))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.Server.CORSAllowedOrigins
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORS_ALLOWED_ORIGINS not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	apiHandler.RegisterRoutes(router)

	// Prometheus middleware goes after route registration.
	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout(),
		WriteTimeout: cfg.Server.WriteTimeout(),
		IdleTimeout:  cfg.Server.IdleTimeout(),
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.Server.Port))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight image batches finish before exiting.
	done := make(chan struct{})
	go func() {
		svc.Wait()
		close(done)
	}()
	select {
	case <-done:
		zap.L().Info("Background batches drained")
	case <-shutdownCtx.Done():
		zap.L().Warn("Shutdown timeout reached with batches still running")
	}

	zap.L().Info("Server exiting")
}
