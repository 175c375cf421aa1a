package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/merchantiq/catalog-service/config"
	"github.com/merchantiq/catalog-service/internal/database"
	"github.com/merchantiq/catalog-service/internal/enrichqueue"
	"github.com/merchantiq/catalog-service/internal/handlers"
	"github.com/merchantiq/catalog-service/internal/importer"
	"github.com/merchantiq/catalog-service/internal/middleware"
	"github.com/merchantiq/catalog-service/internal/storage"
	"github.com/merchantiq/catalog-service/internal/sweepers"
	"github.com/merchantiq/catalog-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting catalog service")

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	ctx := context.Background()
	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	if cfg.Storage.Type == "local" {
		store, err := storage.NewLocalStorage(cfg.Storage.BasePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.Storage.BasePath).Msg("Failed to initialize file storage")
		}
		handlers.FileStore = store
	}

	// Jobs left in processing by a previous instance cannot make
	// progress; fail them so their files can be re-submitted
	failed, err := importer.HandleInterruptedJobs(ctx, database.Pool(), cfg.Import.InterruptedAfterMinutes)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to handle interrupted jobs")
	} else if failed > 0 {
		logger.Info().Int("count", failed).Msg("Failed interrupted import jobs")
	}

	if cfg.Import.ChunkSize > 0 {
		handlers.ImportChunkSize = cfg.Import.ChunkSize
	}
	handlers.RetryConfigProvider = func() importer.RetryConfig {
		return importer.RetryConfig{
			MaxAttempts:    cfg.Import.ChunkMaxAttempts,
			InitialBackoff: cfg.Import.InitialBackoff,
			MaxBackoff:     cfg.Import.MaxBackoff,
		}
	}

	coordinatorCfg := enrichqueue.CoordinatorConfig{
		StuckThreshold: cfg.Queue.StuckThreshold,
		HighWaterMark:  cfg.Queue.HighWaterMark,
	}
	handlers.ReconcileConfigProvider = func() enrichqueue.CoordinatorConfig {
		return coordinatorCfg
	}

	queueSweeper := sweepers.NewQueueSweeper(database.Pool(), logger, cfg.Queue.SweepInterval, coordinatorCfg)
	go queueSweeper.Start(ctx)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Auth.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize))
	{
		internal.GET("/health", handlers.HealthCheck)

		imports := internal.Group("/imports")
		{
			imports.POST("", handlers.StartImport)
			imports.POST("/feed", handlers.ImportFeed)
			imports.GET("", handlers.ListImportJobs)
			imports.GET("/:jobId", handlers.GetImportJob)
			imports.GET("/:jobId/failed-rows", handlers.ListJobFailedRows)
			imports.POST("/:jobId/chunks", handlers.SubmitChunk)
		}

		matching := internal.Group("/matching")
		{
			matching.POST("/run", handlers.RunMatching)
		}

		queue := internal.Group("/queue")
		{
			queue.GET("/stats", handlers.GetQueueStats)
			queue.POST("/reconcile", handlers.ReconcileQueue)
		}

		deadLetters := internal.Group("/dead-letters")
		{
			deadLetters.GET("", handlers.ListDeadLetters)
			deadLetters.GET("/:entryId", handlers.GetDeadLetter)
			deadLetters.POST("/:entryId/retry", handlers.RetryDeadLetter)
			deadLetters.POST("/:entryId/resolve", handlers.ResolveDeadLetter)
		}

		internal.GET("/alerts", handlers.ListAlerts)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	queueSweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Telemetry shutdown failed")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "catalog-service").Logger()
	return &logger
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		end := time.Now()
		latency := end.Sub(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
