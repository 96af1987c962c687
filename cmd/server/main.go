package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion-call-demo/backend/pkg/config"
	"companion-call-demo/backend/pkg/di"
	"companion-call-demo/backend/pkg/grpcserver"
	"companion-call-demo/backend/pkg/logger"
	"companion-call-demo/backend/pkg/router"
)

func main() {
	// Load configuration, including .env if present
	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application",
		"version", os.Getenv("APP_VERSION"),
		"env", cfg.Server.Env,
		"directory", cfg.Directory.Backend,
		"peer_mode", cfg.Call.PeerMode,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize dependency injection container
	container, err := di.New(ctx, cfg, log, di.Options{})
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	container.Health.Start(ctx)
	go container.RateLimiter.Run(ctx)

	// Initialize and setup router
	r := router.New(container)
	r.SetupRoutes()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.New(container.Health, log)

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	go func() {
		if err := grpcSrv.ListenAndServe(cfg.Server.GRPCPort); err != nil {
			log.LogError(err, "gRPC server failed")
			stop()
		}
	}()

	// Block until we receive a signal
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.Timeout)
	defer cancel()

	// End live calls first so their sockets get a final frame
	container.Rooms.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	grpcSrv.Stop()

	if err := container.Close(shutdownCtx); err != nil {
		log.LogError(err, "Failed to release resources")
	}

	log.Info("Server exited gracefully")
}
