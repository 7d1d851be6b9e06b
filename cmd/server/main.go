package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Tyrowin/chessrelay/internal/obslog"
	"github.com/Tyrowin/chessrelay/internal/server"
)

func main() {
	config, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := obslog.New(config.Log.Level, config.Log.Format)
	defer func() { _ = logger.Sync() }()

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := server.NewHub(*config, logger)
	go hub.Run()

	httpServer := server.CreateServer(config.Port, server.SetupRoutes(hub))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer, logger)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("signal_received", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("http_server_failed", zap.Error(err))
		}
	}

	if err := server.ShutdownServer(httpServer, config.ShutdownTimeout, logger); err != nil {
		logger.Warn("http_shutdown_incomplete", zap.Error(err))
	}
	if err := hub.Shutdown(config.ShutdownTimeout); err != nil {
		logger.Warn("hub_shutdown_incomplete", zap.Error(err))
	}
}
