package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/mkazymov/imgcache/internal/config"
	httpHandler "github.com/mkazymov/imgcache/internal/handler/http"
	"github.com/mkazymov/imgcache/internal/handler/middleware"
	"github.com/mkazymov/imgcache/internal/helpers"
	"github.com/mkazymov/imgcache/internal/infrastructure/engine"
	"github.com/mkazymov/imgcache/internal/infrastructure/storage"
	"github.com/mkazymov/imgcache/internal/usecase"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting Image Cache API Server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := config.Load("")
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup Storage
	store, err := storage.New(&cfg.Storage)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	// Resize engine
	resizeEngine := engine.New(&cfg.Processing)

	persistStrategy := retry.Strategy{
		Attempts: cfg.Processing.PersistAttempts,
		Delay:    time.Duration(cfg.Processing.PersistDelaySec) * time.Second,
		Backoff:  2.0,
	}
	imageUsecase := usecase.NewImageUsecase(store, resizeEngine, persistStrategy)

	// Gin engine + middleware
	ginEngine := ginext.New("api")
	ginEngine.Use(
		middleware.ErrorHandlerMiddleware(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(),
		middleware.CORSMiddleware(helpers.SplitAndTrim(cfg.Server.CORSOrigins, ",")),
	)

	ginEngine.GET("/health", func(c *ginext.Context) {
		c.JSON(http.StatusOK, ginext.H{"status": "ok"})
	})

	usage := func(c *ginext.Context) {
		c.String(http.StatusOK, "specify the image with /api/images?filename=name&width=number&height=number")
	}
	ginEngine.GET("/", usage)
	ginEngine.GET("/api", usage)

	imageHandler := httpHandler.NewImageHandler(imageUsecase)
	imageHandler.RegisterRoutes(ginEngine)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      ginEngine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	// Let in-flight variant writes finish so the cache is not left with
	// half-written work queued behind a dead process.
	imageUsecase.Wait()

	zlog.Logger.Info().Msg("API shutdown complete")
}
