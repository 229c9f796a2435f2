package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stocksense/stocksense/internal/api"
	"github.com/stocksense/stocksense/internal/cache"
	"github.com/stocksense/stocksense/internal/config"
	"github.com/stocksense/stocksense/internal/forecast"
	"github.com/stocksense/stocksense/internal/repository/postgres"
	"github.com/stocksense/stocksense/internal/service"
	"github.com/stocksense/stocksense/internal/storage"
	"github.com/stocksense/stocksense/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Initialize repositories
	demandRepo := postgres.NewDemandRepository(db)
	inputsRepo := postgres.NewPolicyInputsRepository(db)
	forecastSink := postgres.NewForecastSink(db)

	// Classification cache falls back to a noop when redis is disabled or
	// unreachable.
	classificationCache, err := cache.NewClassificationCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Classification cache unavailable, continuing without")
		classificationCache = cache.NewNoopClassificationCache()
	}

	// Run artifact export is optional.
	var artifacts *storage.RunArtifactStore
	if cfg.Export.Enabled {
		client, err := storage.NewMinioClient(cfg.Export)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize artifact storage")
		}
		artifacts = storage.NewRunArtifactStore(client)
	}

	var transformer forecast.TransformerBackend
	if cfg.Engine.TransformerURL != "" {
		transformer = forecast.NewTransformerClient(
			cfg.Engine.TransformerURL,
			time.Duration(cfg.Engine.TransformerTimeoutMS)*time.Millisecond,
		)
	}

	engineService := service.NewEngineService(
		demandRepo, inputsRepo, forecastSink,
		transformer, classificationCache, artifacts,
		cfg.Engine,
	)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{EngineService: engineService}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
